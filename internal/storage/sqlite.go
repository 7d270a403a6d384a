package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Foreign keys are enforced so a line can never outlive its entry.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps posting and period-close serialized at the
	// database level; SQLite doesn't benefit from more.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{tx: tx, storage: s}, nil
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction. Every
// method delegates to the same ...Tx helpers the storage methods use, so
// callers compose multi-table writes under one commit.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

// Fund and account registry.

func (t *sqliteTransaction) CreateFund(ctx context.Context, fund *model.Fund) error {
	return t.storage.createFundTx(ctx, t.tx, fund)
}

func (t *sqliteTransaction) GetFund(ctx context.Context, tenantID, id string) (*model.Fund, error) {
	return t.storage.getFundTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) ListFunds(ctx context.Context, tenantID string) ([]model.Fund, error) {
	return t.storage.listFundsTx(ctx, t.tx, tenantID)
}

func (t *sqliteTransaction) DeactivateFund(ctx context.Context, tenantID, id string) error {
	return t.storage.deactivateFundTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) CreateAccount(ctx context.Context, account *model.Account) error {
	return t.storage.createAccountTx(ctx, t.tx, account)
}

func (t *sqliteTransaction) GetAccount(ctx context.Context, tenantID, id string) (*model.Account, error) {
	return t.storage.getAccountTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error) {
	return t.storage.listAccountsTx(ctx, t.tx, tenantID)
}

// Journal entries.

func (t *sqliteTransaction) CreateEntry(ctx context.Context, entry *model.JournalEntry) error {
	return t.storage.createEntryTx(ctx, t.tx, entry)
}

func (t *sqliteTransaction) GetEntry(ctx context.Context, tenantID, id string) (*model.JournalEntry, error) {
	return t.storage.getEntryTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) ListEntries(ctx context.Context, tenantID, periodID string) ([]model.JournalEntry, error) {
	return t.storage.listEntriesTx(ctx, t.tx, tenantID, periodID)
}

func (t *sqliteTransaction) UpdateEntryStatus(ctx context.Context, tenantID, id string, status model.EntryStatus, reversedBy string) error {
	return t.storage.updateEntryStatusTx(ctx, t.tx, tenantID, id, status, reversedBy)
}

func (t *sqliteTransaction) DeleteDraftEntry(ctx context.Context, tenantID, id string) error {
	return t.storage.deleteDraftEntryTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) NextEntryNumber(ctx context.Context, tenantID string, year int) (string, error) {
	return t.storage.nextEntryNumberTx(ctx, t.tx, tenantID, year)
}

func (t *sqliteTransaction) CountDraftEntries(ctx context.Context, tenantID, periodID string) (int, error) {
	return t.storage.countDraftEntriesTx(ctx, t.tx, tenantID, periodID)
}

func (t *sqliteTransaction) GetMatchCandidates(ctx context.Context, tenantID string) ([]model.JournalEntry, error) {
	return t.storage.getMatchCandidatesTx(ctx, t.tx, tenantID)
}

// Accounting periods.

func (t *sqliteTransaction) CreatePeriod(ctx context.Context, period *model.AccountingPeriod) error {
	return t.storage.createPeriodTx(ctx, t.tx, period)
}

func (t *sqliteTransaction) GetPeriod(ctx context.Context, tenantID, id string) (*model.AccountingPeriod, error) {
	return t.storage.getPeriodTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) GetPeriodFor(ctx context.Context, tenantID string, date time.Time) (*model.AccountingPeriod, error) {
	return t.storage.getPeriodForTx(ctx, t.tx, tenantID, date)
}

func (t *sqliteTransaction) ListPeriods(ctx context.Context, tenantID string) ([]model.AccountingPeriod, error) {
	return t.storage.listPeriodsTx(ctx, t.tx, tenantID)
}

func (t *sqliteTransaction) TransitionPeriod(ctx context.Context, tenantID, id string, from, to model.PeriodStatus, expectedVersion int64) (*model.AccountingPeriod, error) {
	return t.storage.transitionPeriodTx(ctx, t.tx, tenantID, id, from, to, expectedVersion)
}

// Balance projection.

func (t *sqliteTransaction) ApplyBalanceDelta(ctx context.Context, tenantID, accountID, periodID string, debit, credit, signed decimal.Decimal) error {
	return t.storage.applyBalanceDeltaTx(ctx, t.tx, tenantID, accountID, periodID, debit, credit, signed)
}

func (t *sqliteTransaction) GetAccountBalance(ctx context.Context, tenantID, accountID, periodID string) (*model.AccountBalance, error) {
	return t.storage.getAccountBalanceTx(ctx, t.tx, tenantID, accountID, periodID)
}

func (t *sqliteTransaction) GetTrialBalance(ctx context.Context, tenantID, periodID string) (*model.TrialBalance, error) {
	return t.storage.getTrialBalanceTx(ctx, t.tx, tenantID, periodID)
}

func (t *sqliteTransaction) SumPostedEntries(ctx context.Context, tenantID, periodID string) (decimal.Decimal, decimal.Decimal, error) {
	return t.storage.sumPostedEntriesTx(ctx, t.tx, tenantID, periodID)
}

// Event store.

func (t *sqliteTransaction) InsertEvent(ctx context.Context, event *model.LedgerEvent) error {
	return t.storage.insertEventTx(ctx, t.tx, event)
}

func (t *sqliteTransaction) GetChainHead(ctx context.Context, tenantID string) (*model.LedgerEvent, error) {
	return t.storage.getChainHeadTx(ctx, t.tx, tenantID)
}

func (t *sqliteTransaction) GetAggregateSeq(ctx context.Context, tenantID, aggregateID string) (int64, error) {
	return t.storage.getAggregateSeqTx(ctx, t.tx, tenantID, aggregateID)
}

func (t *sqliteTransaction) ListEvents(ctx context.Context, tenantID string) ([]model.LedgerEvent, error) {
	return t.storage.listEventsTx(ctx, t.tx, tenantID)
}

func (t *sqliteTransaction) ListAggregateEvents(ctx context.Context, tenantID, aggregateID string) ([]model.LedgerEvent, error) {
	return t.storage.listAggregateEventsTx(ctx, t.tx, tenantID, aggregateID)
}

// Bank transactions.

func (t *sqliteTransaction) SaveBankTransactions(ctx context.Context, transactions []model.BankTransaction) (int, error) {
	return t.storage.saveBankTransactionsTx(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) GetBankTransaction(ctx context.Context, tenantID, id string) (*model.BankTransaction, error) {
	return t.storage.getBankTransactionTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) ListBankTransactions(ctx context.Context, tenantID string, filter service.BankTransactionFilter) ([]model.BankTransaction, error) {
	return t.storage.listBankTransactionsTx(ctx, t.tx, tenantID, filter)
}

func (t *sqliteTransaction) UpdateBankTransaction(ctx context.Context, txn *model.BankTransaction) error {
	return t.storage.updateBankTransactionTx(ctx, t.tx, txn)
}

// Match rules and results.

func (t *sqliteTransaction) SaveMatchRule(ctx context.Context, rule *model.MatchRule) error {
	return t.storage.saveMatchRuleTx(ctx, t.tx, rule)
}

func (t *sqliteTransaction) GetMatchRule(ctx context.Context, tenantID, id string) (*model.MatchRule, error) {
	return t.storage.getMatchRuleTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) ListMatchRules(ctx context.Context, tenantID string, activeOnly bool) ([]model.MatchRule, error) {
	return t.storage.listMatchRulesTx(ctx, t.tx, tenantID, activeOnly)
}

func (t *sqliteTransaction) DeactivateMatchRule(ctx context.Context, tenantID, id string) error {
	return t.storage.deactivateMatchRuleTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) SaveMatchResult(ctx context.Context, result *model.MatchResult) error {
	return t.storage.saveMatchResultTx(ctx, t.tx, result)
}

func (t *sqliteTransaction) GetMatchResult(ctx context.Context, tenantID, id string) (*model.MatchResult, error) {
	return t.storage.getMatchResultTx(ctx, t.tx, tenantID, id)
}

func (t *sqliteTransaction) ListMatchResults(ctx context.Context, tenantID, bankTransactionID string) ([]model.MatchResult, error) {
	return t.storage.listMatchResultsTx(ctx, t.tx, tenantID, bankTransactionID)
}

func (t *sqliteTransaction) DeleteUnresolvedMatchResults(ctx context.Context, tenantID, bankTransactionID string) error {
	return t.storage.deleteUnresolvedMatchResultsTx(ctx, t.tx, tenantID, bankTransactionID)
}

func (t *sqliteTransaction) ResolveMatchResult(ctx context.Context, tenantID, id string, accepted bool) error {
	return t.storage.resolveMatchResultTx(ctx, t.tx, tenantID, id, accepted)
}
