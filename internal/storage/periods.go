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

// CreatePeriod inserts a new accounting period in OPEN status.
func (s *SQLiteStorage) CreatePeriod(ctx context.Context, period *model.AccountingPeriod) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if period == nil {
		return fmt.Errorf("%w: period", ErrNilParameter)
	}
	if err := period.Validate(); err != nil {
		return err
	}
	return s.createPeriodTx(ctx, s.db, period)
}

func (s *SQLiteStorage) createPeriodTx(ctx context.Context, q queryable, period *model.AccountingPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	period.Status = model.PeriodOpen
	period.Version = 1
	period.CreatedAt = time.Now().UTC()

	_, err := q.ExecContext(ctx, `
		INSERT INTO accounting_periods (id, tenant_id, name, start_date, end_date, status, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, period.ID, period.TenantID, period.Name,
		period.StartDate.Format(dateLayout), period.EndDate.Format(dateLayout),
		string(period.Status), period.Version, period.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert period: %w", err)
	}
	return nil
}

// GetPeriod fetches a period by tenant and id.
func (s *SQLiteStorage) GetPeriod(ctx context.Context, tenantID, id string) (*model.AccountingPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getPeriodTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) getPeriodTx(ctx context.Context, q queryable, tenantID, id string) (*model.AccountingPeriod, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, start_date, end_date, status, version, created_at
		FROM accounting_periods WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	period, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: period %s", ErrNotFound, id)
	}
	return period, err
}

// GetPeriodFor finds the period whose date range covers the given calendar
// date, regardless of status; the poster decides what a non-OPEN hit means.
func (s *SQLiteStorage) GetPeriodFor(ctx context.Context, tenantID string, date time.Time) (*model.AccountingPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.getPeriodForTx(ctx, s.db, tenantID, date)
}

func (s *SQLiteStorage) getPeriodForTx(ctx context.Context, q queryable, tenantID string, date time.Time) (*model.AccountingPeriod, error) {
	day := date.Format(dateLayout)
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, start_date, end_date, status, version, created_at
		FROM accounting_periods
		WHERE tenant_id = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date LIMIT 1
	`, tenantID, day, day)

	period, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no period covers %s", ErrNotFound, day)
	}
	return period, err
}

// ListPeriods returns all periods for a tenant in date order.
func (s *SQLiteStorage) ListPeriods(ctx context.Context, tenantID string) ([]model.AccountingPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.listPeriodsTx(ctx, s.db, tenantID)
}

func (s *SQLiteStorage) listPeriodsTx(ctx context.Context, q queryable, tenantID string) ([]model.AccountingPeriod, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, name, start_date, end_date, status, version, created_at
		FROM accounting_periods WHERE tenant_id = ? ORDER BY start_date
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var periods []model.AccountingPeriod
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *period)
	}
	return periods, rows.Err()
}

// TransitionPeriod advances a period's status with a compare-and-swap on the
// version column. Exactly one of two concurrent callers with the same
// expected version wins; the loser gets ErrStaleVersion and must refetch.
func (s *SQLiteStorage) TransitionPeriod(ctx context.Context, tenantID, id string, from, to model.PeriodStatus, expectedVersion int64) (*model.AccountingPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.transitionPeriodTx(ctx, s.db, tenantID, id, from, to, expectedVersion)
}

func (s *SQLiteStorage) transitionPeriodTx(ctx context.Context, q queryable, tenantID, id string, from, to model.PeriodStatus, expectedVersion int64) (*model.AccountingPeriod, error) {
	if !from.CanTransition(to) {
		return nil, fmt.Errorf("period cannot transition from %s to %s", from, to)
	}

	result, err := q.ExecContext(ctx, `
		UPDATE accounting_periods
		SET status = ?, version = version + 1
		WHERE tenant_id = ? AND id = ? AND status = ? AND version = ?
	`, string(to), tenantID, id, string(from), expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to transition period: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing period from a lost CAS.
		if _, getErr := s.getPeriodTx(ctx, q, tenantID, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: period %s version %d", ErrStaleVersion, id, expectedVersion)
	}

	return s.getPeriodTx(ctx, q, tenantID, id)
}

func scanPeriod(row rowScanner) (*model.AccountingPeriod, error) {
	var period model.AccountingPeriod
	var start, end, status string
	err := row.Scan(&period.ID, &period.TenantID, &period.Name, &start, &end,
		&status, &period.Version, &period.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan period: %w", err)
	}

	period.Status = model.PeriodStatus(status)
	if period.StartDate, err = time.Parse(dateLayout, start); err != nil {
		return nil, fmt.Errorf("failed to parse period start %q: %w", start, err)
	}
	if period.EndDate, err = time.Parse(dateLayout, end); err != nil {
		return nil, fmt.Errorf("failed to parse period end %q: %w", end, err)
	}
	return &period, nil
}
