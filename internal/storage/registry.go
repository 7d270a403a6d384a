package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hoaworks/fundledger/internal/model"
)

// CreateFund inserts a new fund.
func (s *SQLiteStorage) CreateFund(ctx context.Context, fund *model.Fund) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if fund == nil {
		return fmt.Errorf("%w: fund", ErrNilParameter)
	}
	if err := fund.Validate(); err != nil {
		return err
	}
	return s.createFundTx(ctx, s.db, fund)
}

func (s *SQLiteStorage) createFundTx(ctx context.Context, q queryable, fund *model.Fund) error {
	if fund.ID == "" {
		fund.ID = uuid.NewString()
	}
	fund.CreatedAt = time.Now().UTC()
	fund.Active = true

	_, err := q.ExecContext(ctx, `
		INSERT INTO funds (id, tenant_id, name, type, active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
	`, fund.ID, fund.TenantID, fund.Name, string(fund.Type), fund.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert fund: %w", err)
	}
	return nil
}

// GetFund fetches a fund by tenant and id.
func (s *SQLiteStorage) GetFund(ctx context.Context, tenantID, id string) (*model.Fund, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getFundTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) getFundTx(ctx context.Context, q queryable, tenantID, id string) (*model.Fund, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, type, active, created_at
		FROM funds WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	fund, err := scanFund(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: fund %s", ErrNotFound, id)
	}
	return fund, err
}

// ListFunds returns all funds for a tenant ordered by name.
func (s *SQLiteStorage) ListFunds(ctx context.Context, tenantID string) ([]model.Fund, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.listFundsTx(ctx, s.db, tenantID)
}

func (s *SQLiteStorage) listFundsTx(ctx context.Context, q queryable, tenantID string) ([]model.Fund, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, name, type, active, created_at
		FROM funds WHERE tenant_id = ? ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var funds []model.Fund
	for rows.Next() {
		fund, err := scanFund(rows)
		if err != nil {
			return nil, err
		}
		funds = append(funds, *fund)
	}
	return funds, rows.Err()
}

// DeactivateFund marks a fund inactive; funds are never deleted.
func (s *SQLiteStorage) DeactivateFund(ctx context.Context, tenantID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deactivateFundTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) deactivateFundTx(ctx context.Context, q queryable, tenantID, id string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE funds SET active = 0 WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate fund: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: fund %s", ErrNotFound, id)
	}
	return nil
}

// CreateAccount inserts a new chart-of-accounts entry. The normal balance is
// always derived from the account type, regardless of the caller's value.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := account.Validate(); err != nil {
		return err
	}
	return s.createAccountTx(ctx, s.db, account)
}

func (s *SQLiteStorage) createAccountTx(ctx context.Context, q queryable, account *model.Account) error {
	normal, err := model.NormalBalanceFor(account.Type)
	if err != nil {
		return err
	}
	account.NormalBalance = normal

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.CreatedAt = time.Now().UTC()
	account.Active = true

	_, err = q.ExecContext(ctx, `
		INSERT INTO accounts (id, tenant_id, fund_id, number, name, type, normal_balance, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, account.ID, account.TenantID, account.FundID, account.Number, account.Name,
		string(account.Type), string(account.NormalBalance), account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetAccount fetches an account by tenant and id.
func (s *SQLiteStorage) GetAccount(ctx context.Context, tenantID, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getAccountTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) getAccountTx(ctx context.Context, q queryable, tenantID, id string) (*model.Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, fund_id, number, name, type, normal_balance, active, created_at
		FROM accounts WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	return account, err
}

// ListAccounts returns all accounts for a tenant ordered by fund and number.
func (s *SQLiteStorage) ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.listAccountsTx(ctx, s.db, tenantID)
}

func (s *SQLiteStorage) listAccountsTx(ctx context.Context, q queryable, tenantID string) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, fund_id, number, name, type, normal_balance, active, created_at
		FROM accounts WHERE tenant_id = ? ORDER BY fund_id, number
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFund(row rowScanner) (*model.Fund, error) {
	var fund model.Fund
	var fundType string
	if err := row.Scan(&fund.ID, &fund.TenantID, &fund.Name, &fundType, &fund.Active, &fund.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan fund: %w", err)
	}
	fund.Type = model.FundType(fundType)
	return &fund, nil
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var account model.Account
	var accountType, normal string
	err := row.Scan(&account.ID, &account.TenantID, &account.FundID, &account.Number,
		&account.Name, &accountType, &normal, &account.Active, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	account.Type = model.AccountType(accountType)
	account.NormalBalance = model.NormalBalance(normal)
	return &account, nil
}
