package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/audit"
	"github.com/hoaworks/fundledger/internal/cli"
)

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity of the audit event chain",
		Long: `Walk the tenant's hash-chained audit log from genesis to head,
recomputing every hash. Any tampering or corruption is reported with the
exact chain position where the break occurs.`,
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

			err = audit.NewStore(store).VerifyChain(ctx, tenantID)
			var integrityErr *audit.IntegrityError
			if errors.As(err, &integrityErr) {
				fmt.Println(cli.FormatError(fmt.Sprintf(
					"Audit chain broken at sequence %d", integrityErr.BrokenAt)))
				return err
			}
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("Audit chain verified"))
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <aggregate-id>",
		Short: "Show the audit history of an entry, period, or bank transaction",
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

			events, err := store.ListAggregateEvents(ctx, tenantID, args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println(cli.FormatWarning("No events recorded for " + args[0]))
				return nil
			}

			fmt.Println(cli.FormatTitle("Audit History"))
			for _, event := range events {
				fmt.Printf("#%-4d %-28s %-22s %s\n",
					event.SequenceNumber,
					event.Timestamp.Format("2006-01-02 15:04:05"),
					event.EventType,
					cli.SubtleStyle.Render(event.CurrentHash[:12]))
			}
			return nil
		},
	}
	return cmd
}
