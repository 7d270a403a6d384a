package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/cli"
	"github.com/hoaworks/fundledger/internal/ledger"
)

func reverseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reverse <entry-id>",
		Short: "Reverse a posted journal entry",
		Long: `Create and post a reversing entry for a posted entry. The original is
never edited; it is marked reversed and back-references its reversal. The
reversal posts into whichever open period covers the reversal date, so a
closed original period stays untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: runReverse,
	}

	cmd.Flags().String("reason", "", "why the entry is being reversed (required)")
	cmd.Flags().String("date", time.Now().Format(dateLayout), "reversal date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func runReverse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, err := requireTenant()
	if err != nil {
		return err
	}

	reason, _ := cmd.Flags().GetString("reason")
	dateStr, _ := cmd.Flags().GetString("date")
	date, err := parseDate(dateStr)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reversal, err := ledger.NewPoster(store).Reverse(ctx, tenantID, args[0], reason, date)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Reversed with %s (%s debits / %s credits)",
		reversal.EntryNumber,
		reversal.TotalDebits.StringFixed(2), reversal.TotalCredits.StringFixed(2))))
	return nil
}
