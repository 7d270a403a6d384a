package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/cli"
	"github.com/hoaworks/fundledger/internal/ledger"
)

func balancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances <account-id>",
		Short: "Show one account's balance in a period",
		Args:  cobra.ExactArgs(1),
		RunE:  runBalances,
	}
	cmd.Flags().String("period", "", "accounting period ID (required)")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func runBalances(cmd *cobra.Command, args []string) error {
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

	balance, err := ledger.NewPoster(store).AccountBalance(ctx, tenantID, args[0], periodID)
	if err != nil {
		return err
	}

	content := fmt.Sprintf("Debits:  %14s\nCredits: %14s\nBalance: %14s",
		balance.DebitTotal.StringFixed(2),
		balance.CreditTotal.StringFixed(2),
		balance.SignedBalance.StringFixed(2))
	fmt.Println(cli.RenderBox(fmt.Sprintf("%s in %s", args[0], periodID), content))
	return nil
}

func trialBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance for a period",
		Long: `Print every account's debit and credit totals for one period. A healthy
ledger always shows a zero difference; anything else means the posting
invariants were bypassed and is worth an audit chain verification.`,
		RunE: runTrialBalance,
	}
	cmd.Flags().String("period", "", "accounting period ID (required)")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func runTrialBalance(cmd *cobra.Command, _ []string) error {
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

	tb, err := ledger.NewPoster(store).TrialBalance(ctx, tenantID, periodID)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle(cli.ChartIcon + " Trial Balance " + periodID))
	fmt.Println(cli.TableHeaderStyle.Render(fmt.Sprintf("%-6s %-32s %14s %14s %14s",
		"NUM", "ACCOUNT", "DEBITS", "CREDITS", "BALANCE")))
	for _, row := range tb.Rows {
		fmt.Printf("%-6s %-32s %14s %14s %14s\n",
			row.AccountNumber, row.AccountName,
			row.DebitTotal.StringFixed(2),
			row.CreditTotal.StringFixed(2),
			row.SignedBalance.StringFixed(2))
	}

	fmt.Printf("\n%-39s %14s %14s\n", "TOTALS",
		tb.TotalDebits.StringFixed(2), tb.TotalCredits.StringFixed(2))

	difference := tb.Difference()
	if difference.IsZero() {
		fmt.Println(cli.FormatSuccess("In balance"))
	} else {
		fmt.Println(cli.FormatError("OUT OF BALANCE by " + difference.StringFixed(2)))
	}
	return nil
}
