package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/cli"
	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/period"
	"github.com/hoaworks/fundledger/internal/storage"
)

func periodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Manage accounting periods",
	}

	cmd.AddCommand(periodsListCmd())
	cmd.AddCommand(periodsGenerateCmd())
	cmd.AddCommand(periodsCloseCmd())
	cmd.AddCommand(periodsLockCmd())

	return cmd
}

func periodsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounting periods",
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

			periods, err := store.ListPeriods(ctx, tenantID)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatTitle("Accounting Periods"))
			for _, p := range periods {
				status := string(p.Status)
				switch p.Status {
				case model.PeriodOpen:
					status = cli.StyleSuccess(status)
				case model.PeriodLocked:
					status = cli.LockIcon + " " + cli.SubtleStyle.Render(status)
				case model.PeriodClosing, model.PeriodClosed:
					status = cli.StyleWarning(status)
				}
				fmt.Printf("%-12s %-10s  %s → %s  (v%d)  %s\n",
					p.ID, p.Name,
					p.StartDate.Format(dateLayout), p.EndDate.Format(dateLayout),
					p.Version, status)
			}
			return nil
		},
	}
}

func periodsGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate monthly periods for a fiscal year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tenantID, err := requireTenant()
			if err != nil {
				return err
			}
			year, _ := cmd.Flags().GetInt("year")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			periods, err := period.NewManager(store).Generate(ctx, tenantID, year)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Generated %d periods for %d", len(periods), year)))
			return nil
		},
	}
	cmd.Flags().Int("year", time.Now().Year(), "fiscal year")
	return cmd
}

func periodsCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <period-id>",
		Short: "Close an open period",
		Long: `Close an accounting period. The close validates that no draft entries
remain in the period and that posted debits equal posted credits; any
failure leaves the period open. A concurrent close of the same period
loses the version race and reports a conflict instead of double-closing.`,
		Args: cobra.ExactArgs(1),
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

			current, err := store.GetPeriod(ctx, tenantID, args[0])
			if err != nil {
				return err
			}

			closed, err := period.NewManager(store).Close(ctx, tenantID, args[0], current.Version)
			var closeErr *period.CloseValidationError
			switch {
			case errors.As(err, &closeErr):
				fmt.Println(cli.FormatError("Close blocked: " + closeErr.Reason))
				return err
			case errors.Is(err, storage.ErrStaleVersion):
				fmt.Println(cli.FormatWarning("Another close won the race; period state unchanged here"))
				return err
			case err != nil:
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Closed %s (now v%d)", closed.Name, closed.Version)))
			return nil
		},
	}
}

func periodsLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <period-id>",
		Short: "Lock a closed period permanently",
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

			current, err := store.GetPeriod(ctx, tenantID, args[0])
			if err != nil {
				return err
			}

			locked, err := period.NewManager(store).Lock(ctx, tenantID, args[0], current.Version)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(cli.LockIcon + " Locked " + locked.Name))
			return nil
		},
	}
}
