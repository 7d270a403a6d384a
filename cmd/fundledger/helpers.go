package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/hoaworks/fundledger/internal/config"
	"github.com/hoaworks/fundledger/internal/service"
	"github.com/hoaworks/fundledger/internal/storage"
)

const dateLayout = "2006-01-02"

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/fundledger/fundledger.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// requireTenant returns the tenant ID from --tenant or config, erroring when
// neither is set.
func requireTenant() (string, error) {
	tenant := viper.GetString("tenant")
	if tenant == "" {
		return "", fmt.Errorf("no tenant specified: use --tenant or set tenant in config")
	}
	return tenant, nil
}

// parseDate parses a YYYY-MM-DD flag value.
func parseDate(value string) (time.Time, error) {
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return date, nil
}
