package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hoaworks/fundledger/internal/model"
)

// ApplyBalanceDelta folds one posting line's effect into the materialized
// (account, period) balance. Always called inside the posting transaction;
// the projection is never independently writable.
func (s *SQLiteStorage) ApplyBalanceDelta(ctx context.Context, tenantID, accountID, periodID string, debit, credit, signed decimal.Decimal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}
	if err := validateString(periodID, "periodID"); err != nil {
		return err
	}
	return s.applyBalanceDeltaTx(ctx, s.db, tenantID, accountID, periodID, debit, credit, signed)
}

func (s *SQLiteStorage) applyBalanceDeltaTx(ctx context.Context, q queryable, tenantID, accountID, periodID string, debit, credit, signed decimal.Decimal) error {
	// Totals are stored as exact decimal strings, so the arithmetic runs in
	// Go on the current row under the posting transaction's lock rather than
	// in SQLite's float engine.
	var curDebit, curCredit, curSigned string
	err := q.QueryRowContext(ctx, `
		SELECT debit_total, credit_total, signed_balance
		FROM account_balances WHERE account_id = ? AND period_id = ?
	`, accountID, periodID).Scan(&curDebit, &curCredit, &curSigned)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = q.ExecContext(ctx, `
			INSERT INTO account_balances (tenant_id, account_id, period_id, debit_total, credit_total, signed_balance)
			VALUES (?, ?, ?, ?, ?, ?)
		`, tenantID, accountID, periodID,
			debit.StringFixed(2), credit.StringFixed(2), signed.StringFixed(2))
		if err != nil {
			return fmt.Errorf("failed to insert account balance: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read account balance: %w", err)
	}

	d, err := parseAmount(curDebit)
	if err != nil {
		return err
	}
	c, err := parseAmount(curCredit)
	if err != nil {
		return err
	}
	sb, err := parseAmount(curSigned)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		UPDATE account_balances SET debit_total = ?, credit_total = ?, signed_balance = ?
		WHERE account_id = ? AND period_id = ?
	`, d.Add(debit).StringFixed(2), c.Add(credit).StringFixed(2), sb.Add(signed).StringFixed(2),
		accountID, periodID)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	return nil
}

// GetAccountBalance returns the materialized balance for an account in a
// period. An account with no activity reports zeros rather than ErrNotFound.
func (s *SQLiteStorage) GetAccountBalance(ctx context.Context, tenantID, accountID, periodID string) (*model.AccountBalance, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}
	if err := validateString(periodID, "periodID"); err != nil {
		return nil, err
	}
	return s.getAccountBalanceTx(ctx, s.db, tenantID, accountID, periodID)
}

func (s *SQLiteStorage) getAccountBalanceTx(ctx context.Context, q queryable, tenantID, accountID, periodID string) (*model.AccountBalance, error) {
	var debit, credit, signed string
	err := q.QueryRowContext(ctx, `
		SELECT debit_total, credit_total, signed_balance
		FROM account_balances WHERE tenant_id = ? AND account_id = ? AND period_id = ?
	`, tenantID, accountID, periodID).Scan(&debit, &credit, &signed)

	balance := &model.AccountBalance{
		AccountID:     accountID,
		PeriodID:      periodID,
		DebitTotal:    decimal.Zero,
		CreditTotal:   decimal.Zero,
		SignedBalance: decimal.Zero,
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return balance, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read account balance: %w", err)
	}

	if balance.DebitTotal, err = parseAmount(debit); err != nil {
		return nil, err
	}
	if balance.CreditTotal, err = parseAmount(credit); err != nil {
		return nil, err
	}
	if balance.SignedBalance, err = parseAmount(signed); err != nil {
		return nil, err
	}
	return balance, nil
}

// GetTrialBalance assembles the per-account totals for one period.
func (s *SQLiteStorage) GetTrialBalance(ctx context.Context, tenantID, periodID string) (*model.TrialBalance, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(periodID, "periodID"); err != nil {
		return nil, err
	}
	return s.getTrialBalanceTx(ctx, s.db, tenantID, periodID)
}

func (s *SQLiteStorage) getTrialBalanceTx(ctx context.Context, q queryable, tenantID, periodID string) (*model.TrialBalance, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT b.account_id, a.number, a.name, a.fund_id,
			b.debit_total, b.credit_total, b.signed_balance
		FROM account_balances b
		JOIN accounts a ON a.id = b.account_id
		WHERE b.tenant_id = ? AND b.period_id = ?
		ORDER BY a.fund_id, a.number
	`, tenantID, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trial balance: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tb := &model.TrialBalance{
		PeriodID:     periodID,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for rows.Next() {
		var row model.TrialBalanceRow
		var debit, credit, signed string
		if err := rows.Scan(&row.AccountID, &row.AccountNumber, &row.AccountName,
			&row.FundID, &debit, &credit, &signed); err != nil {
			return nil, fmt.Errorf("failed to scan trial balance row: %w", err)
		}
		if row.DebitTotal, err = parseAmount(debit); err != nil {
			return nil, err
		}
		if row.CreditTotal, err = parseAmount(credit); err != nil {
			return nil, err
		}
		if row.SignedBalance, err = parseAmount(signed); err != nil {
			return nil, err
		}
		tb.TotalDebits = tb.TotalDebits.Add(row.DebitTotal)
		tb.TotalCredits = tb.TotalCredits.Add(row.CreditTotal)
		tb.Rows = append(tb.Rows, row)
	}
	return tb, rows.Err()
}

// SumPostedEntries totals the debit and credit sides of all posted entries in
// a period, the close-time trial-balance check.
func (s *SQLiteStorage) SumPostedEntries(ctx context.Context, tenantID, periodID string) (decimal.Decimal, decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return s.sumPostedEntriesTx(ctx, s.db, tenantID, periodID)
}

func (s *SQLiteStorage) sumPostedEntriesTx(ctx context.Context, q queryable, tenantID, periodID string) (decimal.Decimal, decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT total_debits, total_credits FROM journal_entries
		WHERE tenant_id = ? AND period_id = ? AND status IN ('posted', 'reversed')
	`, tenantID, periodID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to query posted entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	debits, credits := decimal.Zero, decimal.Zero
	for rows.Next() {
		var d, c string
		if err := rows.Scan(&d, &c); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to scan entry totals: %w", err)
		}
		dd, err := parseAmount(d)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		cc, err := parseAmount(c)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		debits = debits.Add(dd)
		credits = credits.Add(cc)
	}
	return debits, credits, rows.Err()
}
