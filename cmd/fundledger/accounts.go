package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/cli"
	"github.com/hoaworks/fundledger/internal/model"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Show the chart of accounts by fund",
		RunE:  runAccounts,
	}
	return cmd
}

func runAccounts(cmd *cobra.Command, _ []string) error {
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

	funds, err := store.ListFunds(ctx, tenantID)
	if err != nil {
		return err
	}
	accounts, err := store.ListAccounts(ctx, tenantID)
	if err != nil {
		return err
	}

	byFund := make(map[string][]model.Account)
	for _, account := range accounts {
		byFund[account.FundID] = append(byFund[account.FundID], account)
	}

	fmt.Println(cli.FormatTitle("Chart of Accounts"))
	for _, fund := range funds {
		var lines []string
		for _, account := range byFund[fund.ID] {
			status := ""
			if !account.Active {
				status = cli.SubtleStyle.Render(" (inactive)")
			}
			lines = append(lines, fmt.Sprintf("%-6s %-32s %-10s %s%s",
				account.Number, account.Name, account.Type, account.NormalBalance, status))
		}
		if len(lines) == 0 {
			lines = append(lines, cli.SubtleStyle.Render("no accounts"))
		}
		title := fmt.Sprintf("%s (%s)", fund.Name, fund.Type)
		fmt.Println(cli.RenderBox(title, strings.Join(lines, "\n")))
	}
	return nil
}
