package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/cli"
	"github.com/hoaworks/fundledger/internal/period"
	"github.com/hoaworks/fundledger/internal/storage"
)

func initTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an association with default funds, accounts, and periods",
		Long: `Set up a new association (tenant): creates the operating, reserve, and
special assessment funds with a standard HOA chart of accounts, and
generates monthly accounting periods for the given fiscal year.`,
		RunE: runInitTenant,
	}

	cmd.Flags().Int("year", time.Now().Year(), "fiscal year to generate periods for")

	return cmd
}

func runInitTenant(cmd *cobra.Command, _ []string) error {
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

	sqlStore, ok := store.(*storage.SQLiteStorage)
	if !ok {
		return fmt.Errorf("seeding requires SQLite storage")
	}
	if err := sqlStore.SeedDefaults(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to seed defaults: %w", err)
	}

	periods, err := period.NewManager(store).Generate(ctx, tenantID, year)
	if err != nil {
		return fmt.Errorf("failed to generate periods: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Initialized %s with default chart of accounts and %d periods for %d",
		tenantID, len(periods), year)))
	return nil
}
