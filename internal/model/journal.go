package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus represents the lifecycle state of a journal entry.
type EntryStatus string

const (
	EntryDraft    EntryStatus = "draft"
	EntryPosted   EntryStatus = "posted"
	EntryReversed EntryStatus = "reversed"
	EntryVoided   EntryStatus = "voided"
)

// JournalEntry is a balanced multi-line accounting transaction. Once posted,
// every field except status-transition metadata is immutable; corrections are
// new reversing entries, never edits.
type JournalEntry struct {
	EntryDate         time.Time
	CreatedAt         time.Time
	ID                string
	TenantID          string
	EntryNumber       string
	PeriodID          string
	Memo              string
	Reference         string
	Status            EntryStatus
	ReversedByEntryID string
	TotalDebits       decimal.Decimal
	TotalCredits      decimal.Decimal
	Lines             []JournalEntryLine
}

// JournalEntryLine is one side of a double-entry. Exactly one of
// DebitAmount/CreditAmount is strictly positive; the other is exactly zero.
type JournalEntryLine struct {
	ID           string
	EntryID      string
	AccountID    string
	FundID       string
	LineNumber   int
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
}

// Amount returns the magnitude of the line's single non-zero side.
func (l JournalEntryLine) Amount() decimal.Decimal {
	if l.DebitAmount.IsPositive() {
		return l.DebitAmount
	}
	return l.CreditAmount
}

// DraftLine is caller input for one line of a draft entry.
type DraftLine struct {
	AccountID    string
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
}

// DraftEntry is caller input to the poster. Entry numbers and periods are
// assigned by the core, never by the caller.
type DraftEntry struct {
	EntryDate time.Time
	TenantID  string
	Memo      string
	Reference string
	Lines     []DraftLine
}

// twoDecimalPlaces reports whether d is exact at 2 fractional digits.
func twoDecimalPlaces(d decimal.Decimal) bool {
	scaled := d.Mul(decimal.NewFromInt(100))
	return scaled.Equal(scaled.Truncate(0))
}

// ValidateLines enforces the line-level double-entry invariants: at least one
// line, exactly one positive side per line, exact 2-decimal amounts, and
// debits equal to credits at full precision.
func ValidateLines(lines []DraftLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("entry must have at least one line")
	}

	totalDebits := decimal.Zero
	totalCredits := decimal.Zero
	for i, line := range lines {
		if line.AccountID == "" {
			return fmt.Errorf("line %d: account ID is required", i+1)
		}
		hasDebit := line.DebitAmount.IsPositive()
		hasCredit := line.CreditAmount.IsPositive()
		if line.DebitAmount.IsNegative() || line.CreditAmount.IsNegative() {
			return fmt.Errorf("line %d: amounts must not be negative", i+1)
		}
		if hasDebit == hasCredit {
			return fmt.Errorf("line %d: exactly one of debit or credit must be set", i+1)
		}
		if !twoDecimalPlaces(line.DebitAmount) || !twoDecimalPlaces(line.CreditAmount) {
			return fmt.Errorf("line %d: amounts must have at most 2 decimal places", i+1)
		}
		totalDebits = totalDebits.Add(line.DebitAmount)
		totalCredits = totalCredits.Add(line.CreditAmount)
	}

	if !totalDebits.Equal(totalCredits) {
		return fmt.Errorf("entry is unbalanced: debits %s != credits %s",
			totalDebits.StringFixed(2), totalCredits.StringFixed(2))
	}
	return nil
}

// Totals sums both sides of a set of draft lines.
func Totals(lines []DraftLine) (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debits = debits.Add(line.DebitAmount)
		credits = credits.Add(line.CreditAmount)
	}
	return debits, credits
}
