package main

import (
	"errors"
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/cli"
	"github.com/hoaworks/fundledger/internal/common"
	"github.com/hoaworks/fundledger/internal/ledger"
	"github.com/hoaworks/fundledger/internal/match"
	"github.com/hoaworks/fundledger/internal/service"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match bank transactions against the ledger",
	}

	cmd.AddCommand(reconcileProposeCmd())
	cmd.AddCommand(reconcileQueueCmd())
	cmd.AddCommand(reconcileAcceptCmd())
	cmd.AddCommand(reconcileRejectCmd())
	cmd.AddCommand(reconcileIgnoreCmd())
	cmd.AddCommand(reconcileUnmatchCmd())
	cmd.AddCommand(reconcileMatchCmd())

	return cmd
}

func newMatcher(store service.Storage) *match.Matcher {
	return match.NewMatcher(store, ledger.NewPoster(store), nil)
}

// currentUser names the operator for the audit trail.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

func reconcileProposeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "propose <bank-transaction-id>",
		Short: "Generate match proposals for an unmatched bank transaction",
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

			matcher := newMatcher(store)
			results, err := matcher.Propose(ctx, tenantID, args[0])
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println(cli.FormatWarning("No candidates found"))
				return nil
			}

			fmt.Println(cli.FormatTitle("Match Proposals"))
			for _, result := range results {
				fmt.Printf("%-38s %-10s %.2f  entry %s\n",
					result.ID, result.Strategy, result.ConfidenceScore, result.CandidateEntryID)
			}

			best, err := matcher.Best(results)
			switch {
			case errors.Is(err, common.ErrAmbiguousMatch):
				fmt.Println(cli.FormatWarning("Top candidates tie; review required"))
			case err != nil:
				return err
			default:
				fmt.Println(cli.FormatInfo(fmt.Sprintf("Best: %s via %s (%.2f)",
					best.CandidateEntryID, best.Strategy, best.ConfidenceScore)))
			}
			return nil
		},
	}
}

func reconcileQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show unmatched transactions and their pending proposals",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			queue, err := newMatcher(store).Queue(ctx, tenantID)
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				fmt.Println(cli.FormatSuccess("Nothing awaiting reconciliation"))
				return nil
			}

			fmt.Println(cli.FormatTitle("Reconciliation Queue"))
			for txnID, results := range queue {
				txn, err := store.GetBankTransaction(ctx, tenantID, txnID)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s  %12s  %s\n",
					txn.ID, txn.TransactionDate.Format(dateLayout),
					txn.Amount.StringFixed(2), txn.Description)
				for _, result := range results {
					fmt.Printf("    %-38s %-10s %.2f\n",
						result.ID, result.Strategy, result.ConfidenceScore)
				}
			}
			return nil
		},
	}
}

func reconcileAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <match-result-id>",
		Short: "Accept a proposal, posting its candidate entry",
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

			entry, err := newMatcher(store).Accept(ctx, tenantID, args[0], currentUser())
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Matched and posted " + entry.EntryNumber))
			return nil
		},
	}
}

func reconcileRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <match-result-id>",
		Short: "Reject a proposal",
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

			if err := newMatcher(store).Reject(ctx, tenantID, args[0]); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Proposal rejected"))
			return nil
		},
	}
}

func reconcileIgnoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ignore <bank-transaction-id>",
		Short: "Mark a bank transaction as deliberately unreconciled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tenantID, err := requireTenant()
			if err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := newMatcher(store).Ignore(ctx, tenantID, args[0], notes); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Transaction ignored"))
			return nil
		},
	}
	cmd.Flags().String("notes", "", "why the transaction is being ignored")
	return cmd
}

func reconcileUnmatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unmatch <bank-transaction-id>",
		Short: "Undo an accepted match by reversing its entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := newMatcher(store).Unmatch(ctx, tenantID, args[0], reason, date); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Unmatched; ledger entry reversed"))
			return nil
		},
	}
	cmd.Flags().String("reason", "", "why the match is being undone (required)")
	cmd.Flags().String("date", time.Now().Format(dateLayout), "reversal date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func reconcileMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <bank-transaction-id> <entry-id>",
		Short: "Manually pair a bank transaction with an entry",
		Args:  cobra.ExactArgs(2),
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

			if err := newMatcher(store).MatchManually(ctx, tenantID, args[0], args[1], currentUser()); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Manually matched"))
			return nil
		},
	}
}
