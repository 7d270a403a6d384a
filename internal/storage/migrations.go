package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Core ledger schema: funds, accounts, periods, entries, balances, events",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS funds (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(tenant_id, name)
				)`,

				`CREATE TABLE IF NOT EXISTS accounts (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					fund_id TEXT NOT NULL REFERENCES funds(id),
					number TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					normal_balance TEXT NOT NULL,
					active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(tenant_id, fund_id, number)
				)`,

				`CREATE TABLE IF NOT EXISTS accounting_periods (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					name TEXT NOT NULL,
					start_date TEXT NOT NULL,
					end_date TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'OPEN',
					version INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(tenant_id, name)
				)`,

				`CREATE TABLE IF NOT EXISTS journal_entries (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					entry_number TEXT NOT NULL,
					entry_date TEXT NOT NULL,
					period_id TEXT REFERENCES accounting_periods(id),
					memo TEXT,
					reference TEXT,
					status TEXT NOT NULL DEFAULT 'draft',
					total_debits TEXT NOT NULL,
					total_credits TEXT NOT NULL,
					reversed_by_entry_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(tenant_id, entry_number)
				)`,

				`CREATE TABLE IF NOT EXISTS journal_entry_lines (
					id TEXT PRIMARY KEY,
					entry_id TEXT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
					line_number INTEGER NOT NULL,
					account_id TEXT NOT NULL REFERENCES accounts(id),
					fund_id TEXT NOT NULL,
					debit_amount TEXT NOT NULL,
					credit_amount TEXT NOT NULL,
					UNIQUE(entry_id, line_number)
				)`,

				`CREATE TABLE IF NOT EXISTS account_balances (
					tenant_id TEXT NOT NULL,
					account_id TEXT NOT NULL,
					period_id TEXT NOT NULL,
					debit_total TEXT NOT NULL DEFAULT '0.00',
					credit_total TEXT NOT NULL DEFAULT '0.00',
					signed_balance TEXT NOT NULL DEFAULT '0.00',
					PRIMARY KEY (account_id, period_id)
				)`,

				`CREATE TABLE IF NOT EXISTS ledger_events (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					chain_seq INTEGER NOT NULL,
					aggregate_type TEXT NOT NULL,
					aggregate_id TEXT NOT NULL,
					sequence_number INTEGER NOT NULL,
					event_type TEXT NOT NULL,
					payload TEXT NOT NULL,
					previous_hash TEXT NOT NULL,
					current_hash TEXT NOT NULL,
					timestamp TEXT NOT NULL,
					UNIQUE(tenant_id, chain_seq),
					UNIQUE(tenant_id, aggregate_id, sequence_number)
				)`,

				`CREATE TABLE IF NOT EXISTS entry_counters (
					tenant_id TEXT NOT NULL,
					year INTEGER NOT NULL,
					next_seq INTEGER NOT NULL DEFAULT 1,
					PRIMARY KEY (tenant_id, year)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Bank reconciliation: transactions, match rules, match results",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS bank_transactions (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					bank_account_id TEXT NOT NULL,
					transaction_date TEXT NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					hash TEXT UNIQUE NOT NULL,
					status TEXT NOT NULL DEFAULT 'unmatched',
					matched_entry_id TEXT,
					notes TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS match_rules (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					rule_type TEXT NOT NULL,
					pattern TEXT NOT NULL DEFAULT '',
					confidence_score REAL NOT NULL DEFAULT 0,
					times_used INTEGER NOT NULL DEFAULT 0,
					times_accepted INTEGER NOT NULL DEFAULT 0,
					accuracy_rate REAL NOT NULL DEFAULT 0,
					active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS match_results (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					bank_transaction_id TEXT NOT NULL REFERENCES bank_transactions(id),
					candidate_entry_id TEXT NOT NULL REFERENCES journal_entries(id),
					rule_id TEXT,
					strategy TEXT NOT NULL,
					confidence_score REAL NOT NULL,
					was_accepted INTEGER,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Indexes and single-acceptance guarantee for matching",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_entries_tenant_period ON journal_entries(tenant_id, period_id)`,
				`CREATE INDEX IF NOT EXISTS idx_entries_tenant_status ON journal_entries(tenant_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_lines_account ON journal_entry_lines(account_id)`,
				`CREATE INDEX IF NOT EXISTS idx_events_tenant_chain ON ledger_events(tenant_id, chain_seq)`,
				`CREATE INDEX IF NOT EXISTS idx_bank_tenant_status ON bank_transactions(tenant_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_results_bank_txn ON match_results(bank_transaction_id)`,
				// A ledger entry reconciles at most one bank transaction.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_bank_matched_entry
					ON bank_transactions(matched_entry_id) WHERE matched_entry_id IS NOT NULL`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		// PRAGMA does not accept bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
