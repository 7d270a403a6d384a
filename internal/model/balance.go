package model

import "github.com/shopspring/decimal"

// AccountBalance is the materialized per-(account, period) projection.
// It is recomputed incrementally inside the same transaction as each posting
// and is never independently writable.
type AccountBalance struct {
	AccountID     string
	PeriodID      string
	DebitTotal    decimal.Decimal
	CreditTotal   decimal.Decimal
	SignedBalance decimal.Decimal
}

// TrialBalanceRow is one account's totals in a period trial balance.
type TrialBalanceRow struct {
	AccountID     string
	AccountNumber string
	AccountName   string
	FundID        string
	DebitTotal    decimal.Decimal
	CreditTotal   decimal.Decimal
	SignedBalance decimal.Decimal
}

// TrialBalance is the full report for one period. Difference is zero for a
// ledger whose posted entries all balance.
type TrialBalance struct {
	PeriodID     string
	Rows         []TrialBalanceRow
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
}

// Difference returns total debits minus total credits.
func (tb *TrialBalance) Difference() decimal.Decimal {
	return tb.TotalDebits.Sub(tb.TotalCredits)
}

// BalanceDelta applies a posting line's effect to an account balance given
// the account's normal balance side. A debit increases the signed balance of
// a debit-normal account and decreases a credit-normal one; credits mirror.
func BalanceDelta(normal NormalBalance, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == NormalDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
