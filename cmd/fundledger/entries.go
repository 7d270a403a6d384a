package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/cli"
	"github.com/hoaworks/fundledger/internal/ledger"
)

func entriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Inspect journal entries",
	}

	cmd.AddCommand(entriesListCmd())
	cmd.AddCommand(entriesShowCmd())
	cmd.AddCommand(entriesVoidCmd())

	return cmd
}

func entriesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		RunE:  runEntriesList,
	}
	cmd.Flags().String("period", "", "limit to one accounting period ID")
	return cmd
}

func runEntriesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	tenantID, err := requireTenant()
	if err != nil {
		return err
	}
	periodID, _ := cmd.Flags().GetString("period")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.ListEntries(ctx, tenantID, periodID)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle("Journal Entries"))
	fmt.Println(cli.TableHeaderStyle.Render(fmt.Sprintf("%-14s %-12s %-10s %12s  %s",
		"NUMBER", "DATE", "STATUS", "AMOUNT", "MEMO")))
	for _, entry := range entries {
		fmt.Printf("%-14s %-12s %-10s %12s  %s\n",
			entry.EntryNumber,
			entry.EntryDate.Format(dateLayout),
			entry.Status,
			entry.TotalDebits.StringFixed(2),
			entry.Memo)
	}
	return nil
}

func entriesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show one entry with its lines",
		Args:  cobra.ExactArgs(1),
		RunE:  runEntriesShow,
	}
}

func runEntriesShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, err := requireTenant()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entry, err := store.GetEntry(ctx, tenantID, args[0])
	if err != nil {
		return err
	}

	var lines []string
	lines = append(lines,
		fmt.Sprintf("Date:      %s", entry.EntryDate.Format(dateLayout)),
		fmt.Sprintf("Status:    %s", entry.Status),
		fmt.Sprintf("Memo:      %s", entry.Memo))
	if entry.Reference != "" {
		lines = append(lines, fmt.Sprintf("Reference: %s", entry.Reference))
	}
	if entry.ReversedByEntryID != "" {
		lines = append(lines, fmt.Sprintf("Reversed by: %s", entry.ReversedByEntryID))
	}
	lines = append(lines, "")
	for _, line := range entry.Lines {
		side := cli.AmountDebitStyle.Render(fmt.Sprintf("Dr %12s", line.DebitAmount.StringFixed(2)))
		if line.CreditAmount.IsPositive() {
			side = cli.AmountCreditStyle.Render(fmt.Sprintf("Cr %12s", line.CreditAmount.StringFixed(2)))
		}
		lines = append(lines, fmt.Sprintf("%2d  %-24s %s", line.LineNumber, line.AccountID, side))
	}

	fmt.Println(cli.RenderBox(entry.EntryNumber, strings.Join(lines, "\n")))
	return nil
}

func entriesVoidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "void <entry-id>",
		Short: "Delete a draft entry that was never posted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tenantID, err := requireTenant()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := ledger.NewPoster(store).Void(ctx, tenantID, args[0]); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Draft voided"))
			return nil
		},
	}
}
