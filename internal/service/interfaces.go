// Package service defines the interfaces between the ledger engine and its
// persistence layer.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hoaworks/fundledger/internal/model"
)

// BankTransactionFilter narrows bank transaction queries.
type BankTransactionFilter struct {
	Status        model.ReconciliationStatus
	BankAccountID string
	Limit         int
}

// Storage defines the contract for the persistence layer. Every operation is
// tenant-scoped through explicit parameters; there is no ambient tenant.
type Storage interface {
	// Fund and account registry
	CreateFund(ctx context.Context, fund *model.Fund) error
	GetFund(ctx context.Context, tenantID, id string) (*model.Fund, error)
	ListFunds(ctx context.Context, tenantID string) ([]model.Fund, error)
	DeactivateFund(ctx context.Context, tenantID, id string) error
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, tenantID, id string) (*model.Account, error)
	ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error)

	// Journal entries
	CreateEntry(ctx context.Context, entry *model.JournalEntry) error
	GetEntry(ctx context.Context, tenantID, id string) (*model.JournalEntry, error)
	ListEntries(ctx context.Context, tenantID, periodID string) ([]model.JournalEntry, error)
	UpdateEntryStatus(ctx context.Context, tenantID, id string, status model.EntryStatus, reversedBy string) error
	DeleteDraftEntry(ctx context.Context, tenantID, id string) error
	NextEntryNumber(ctx context.Context, tenantID string, year int) (string, error)
	CountDraftEntries(ctx context.Context, tenantID, periodID string) (int, error)
	GetMatchCandidates(ctx context.Context, tenantID string) ([]model.JournalEntry, error)

	// Accounting periods
	CreatePeriod(ctx context.Context, period *model.AccountingPeriod) error
	GetPeriod(ctx context.Context, tenantID, id string) (*model.AccountingPeriod, error)
	GetPeriodFor(ctx context.Context, tenantID string, date time.Time) (*model.AccountingPeriod, error)
	ListPeriods(ctx context.Context, tenantID string) ([]model.AccountingPeriod, error)
	TransitionPeriod(ctx context.Context, tenantID, id string, from, to model.PeriodStatus, expectedVersion int64) (*model.AccountingPeriod, error)

	// Balance projection
	ApplyBalanceDelta(ctx context.Context, tenantID, accountID, periodID string, debit, credit, signed decimal.Decimal) error
	GetAccountBalance(ctx context.Context, tenantID, accountID, periodID string) (*model.AccountBalance, error)
	GetTrialBalance(ctx context.Context, tenantID, periodID string) (*model.TrialBalance, error)
	SumPostedEntries(ctx context.Context, tenantID, periodID string) (debits, credits decimal.Decimal, err error)

	// Event store
	InsertEvent(ctx context.Context, event *model.LedgerEvent) error
	GetChainHead(ctx context.Context, tenantID string) (*model.LedgerEvent, error)
	GetAggregateSeq(ctx context.Context, tenantID, aggregateID string) (int64, error)
	ListEvents(ctx context.Context, tenantID string) ([]model.LedgerEvent, error)
	ListAggregateEvents(ctx context.Context, tenantID, aggregateID string) ([]model.LedgerEvent, error)

	// Bank transactions
	SaveBankTransactions(ctx context.Context, transactions []model.BankTransaction) (int, error)
	GetBankTransaction(ctx context.Context, tenantID, id string) (*model.BankTransaction, error)
	ListBankTransactions(ctx context.Context, tenantID string, filter BankTransactionFilter) ([]model.BankTransaction, error)
	UpdateBankTransaction(ctx context.Context, txn *model.BankTransaction) error

	// Match rules and results
	SaveMatchRule(ctx context.Context, rule *model.MatchRule) error
	GetMatchRule(ctx context.Context, tenantID, id string) (*model.MatchRule, error)
	ListMatchRules(ctx context.Context, tenantID string, activeOnly bool) ([]model.MatchRule, error)
	DeactivateMatchRule(ctx context.Context, tenantID, id string) error
	SaveMatchResult(ctx context.Context, result *model.MatchResult) error
	GetMatchResult(ctx context.Context, tenantID, id string) (*model.MatchResult, error)
	ListMatchResults(ctx context.Context, tenantID, bankTransactionID string) ([]model.MatchResult, error)
	DeleteUnresolvedMatchResults(ctx context.Context, tenantID, bankTransactionID string) error
	ResolveMatchResult(ctx context.Context, tenantID, id string, accepted bool) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction is a database transaction exposing the full Storage surface.
// All writes issued through it commit or roll back together.
type Transaction interface {
	Commit() error
	Rollback() error
	Storage
}
