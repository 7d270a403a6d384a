package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/cli"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and manage learned match rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesDeactivateCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List match rules with accuracy statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tenantID, err := requireTenant()
			if err != nil {
				return err
			}
			all, _ := cmd.Flags().GetBool("all")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := store.ListMatchRules(ctx, tenantID, !all)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatTitle("Match Rules"))
			fmt.Println(cli.TableHeaderStyle.Render(fmt.Sprintf("%-38s %-10s %6s %6s %9s  %s",
				"ID", "TYPE", "CONF", "USED", "ACCURACY", "PATTERN")))
			for _, rule := range rules {
				id := rule.ID
				if !rule.Active {
					id = cli.SubtleStyle.Render(id)
				}
				fmt.Printf("%-38s %-10s %6.2f %6d %8.0f%%  %s\n",
					id, rule.Type, rule.ConfidenceScore, rule.TimesUsed,
					rule.AccuracyRate*100, rule.Pattern)
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "include deactivated rules")
	return cmd
}

func rulesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <rule-id>",
		Short: "Deactivate a rule so it stops proposing matches",
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

			if err := store.DeactivateMatchRule(ctx, tenantID, args[0]); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Rule deactivated"))
			return nil
		},
	}
}
