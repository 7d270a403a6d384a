package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/cli"
	"github.com/hoaworks/fundledger/internal/ledger"
	"github.com/hoaworks/fundledger/internal/model"
)

func postCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a balanced journal entry",
		Long: `Post a journal entry to the ledger. Lines are given as repeated
--debit and --credit flags in ACCOUNT_ID=AMOUNT form; debits must equal
credits to the cent.

Examples:
  # Record a dues payment: cash up, dues revenue up
  fundledger post --date 2026-03-01 --memo "March dues, unit 14" \
    --debit op-cash=350.00 --credit op-dues-revenue=350.00

  # Save as a draft for later review instead of posting
  fundledger post --draft --date 2026-03-05 --memo "Pool repair invoice" \
    --debit op-repairs=1200.00 --credit op-ap=1200.00`,
		RunE: runPost,
	}

	cmd.Flags().String("date", "", "entry date (YYYY-MM-DD, required)")
	cmd.Flags().String("memo", "", "entry memo")
	cmd.Flags().String("reference", "", "external reference (check number, invoice)")
	cmd.Flags().StringArray("debit", nil, "debit line as ACCOUNT_ID=AMOUNT (repeatable)")
	cmd.Flags().StringArray("credit", nil, "credit line as ACCOUNT_ID=AMOUNT (repeatable)")
	cmd.Flags().Bool("draft", false, "save as a draft instead of posting")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

// parseLineFlag parses one ACCOUNT_ID=AMOUNT flag value.
func parseLineFlag(value string) (string, decimal.Decimal, error) {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", decimal.Zero, fmt.Errorf("invalid line %q: expected ACCOUNT_ID=AMOUNT", value)
	}
	amount, err := decimal.NewFromString(parts[1])
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("invalid amount in %q: %w", value, err)
	}
	return parts[0], amount, nil
}

func runPost(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	tenantID, err := requireTenant()
	if err != nil {
		return err
	}

	dateStr, _ := cmd.Flags().GetString("date")
	memo, _ := cmd.Flags().GetString("memo")
	reference, _ := cmd.Flags().GetString("reference")
	debits, _ := cmd.Flags().GetStringArray("debit")
	credits, _ := cmd.Flags().GetStringArray("credit")
	asDraft, _ := cmd.Flags().GetBool("draft")

	date, err := parseDate(dateStr)
	if err != nil {
		return err
	}

	var lines []model.DraftLine
	for _, flag := range debits {
		accountID, amount, err := parseLineFlag(flag)
		if err != nil {
			return err
		}
		lines = append(lines, model.DraftLine{AccountID: accountID, DebitAmount: amount})
	}
	for _, flag := range credits {
		accountID, amount, err := parseLineFlag(flag)
		if err != nil {
			return err
		}
		lines = append(lines, model.DraftLine{AccountID: accountID, CreditAmount: amount})
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	poster := ledger.NewPoster(store)
	draft := model.DraftEntry{
		TenantID:  tenantID,
		EntryDate: date,
		Memo:      memo,
		Reference: reference,
		Lines:     lines,
	}

	var entry *model.JournalEntry
	if asDraft {
		entry, err = poster.SaveDraft(ctx, draft)
	} else {
		entry, err = poster.Post(ctx, draft)
	}
	if err != nil {
		return err
	}

	verb := "Posted"
	if asDraft {
		verb = "Drafted"
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s %s: %s debits, %s credits",
		verb, entry.EntryNumber,
		entry.TotalDebits.StringFixed(2), entry.TotalCredits.StringFixed(2))))
	return nil
}
