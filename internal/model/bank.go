package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus tracks a bank transaction through matching.
type ReconciliationStatus string

const (
	ReconUnmatched       ReconciliationStatus = "unmatched"
	ReconMatched         ReconciliationStatus = "matched"
	ReconManuallyMatched ReconciliationStatus = "manually_matched"
	ReconIgnored         ReconciliationStatus = "ignored"
)

// BankTransaction is one row of ingested bank activity. Amount is signed:
// negative for money leaving the account. Mutated only by the matcher's
// accept/ignore/unmatch operations.
type BankTransaction struct {
	TransactionDate time.Time
	CreatedAt       time.Time
	ID              string
	TenantID        string
	BankAccountID   string
	Description     string
	Hash            string
	Notes           string
	Status          ReconciliationStatus
	MatchedEntryID  string
	Amount          decimal.Decimal
}

// GenerateHash creates a dedupe hash so re-ingesting the same feed is a no-op.
func (t *BankTransaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s",
		t.TenantID,
		t.BankAccountID,
		t.TransactionDate.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Validate ensures the bank transaction has valid data.
func (t *BankTransaction) Validate() error {
	if t.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if t.BankAccountID == "" {
		return fmt.Errorf("bank account ID is required")
	}
	if t.TransactionDate.IsZero() {
		return fmt.Errorf("transaction date is required")
	}
	if t.Amount.IsZero() {
		return fmt.Errorf("amount must be non-zero")
	}
	return nil
}
