package model

import (
	"fmt"
	"time"
)

// AccountType classifies a chart-of-accounts entry.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

// NormalBalance is the side on which an account's balance grows.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "debit"
	NormalCredit NormalBalance = "credit"
)

// NormalBalanceFor derives the normal balance from the account type. This is
// the only place the mapping lives; it is never independently settable.
func NormalBalanceFor(t AccountType) (NormalBalance, error) {
	switch t {
	case AccountAsset, AccountExpense:
		return NormalDebit, nil
	case AccountLiability, AccountEquity, AccountRevenue:
		return NormalCredit, nil
	default:
		return "", fmt.Errorf("unknown account type %q", t)
	}
}

// Account is a chart-of-accounts entry owned by exactly one fund.
// Number is unique within its fund.
type Account struct {
	CreatedAt     time.Time
	ID            string
	TenantID      string
	FundID        string
	Number        string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	Active        bool
}

// Validate ensures the account has valid data and a normal balance
// consistent with its type.
func (a *Account) Validate() error {
	if a.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if a.FundID == "" {
		return fmt.Errorf("fund ID is required")
	}
	if a.Number == "" {
		return fmt.Errorf("account number is required")
	}
	if a.Name == "" {
		return fmt.Errorf("account name is required")
	}
	normal, err := NormalBalanceFor(a.Type)
	if err != nil {
		return err
	}
	if a.NormalBalance != "" && a.NormalBalance != normal {
		return fmt.Errorf("normal balance %q contradicts account type %q", a.NormalBalance, a.Type)
	}
	return nil
}
