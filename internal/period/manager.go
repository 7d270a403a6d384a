// Package period manages the accounting period lifecycle: a strictly forward
// OPEN → CLOSING → CLOSED → LOCKED state machine with optimistic-concurrency
// close.
package period

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoaworks/fundledger/internal/audit"
	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/service"
)

// CloseValidationError reports a close refused by its pre-close checks. The
// period stays OPEN; nothing is forced through.
type CloseValidationError struct {
	PeriodName string
	Reason     string
}

func (e *CloseValidationError) Error() string {
	return fmt.Sprintf("cannot close period %s: %s", e.PeriodName, e.Reason)
}

// Manager drives period lifecycle transitions.
type Manager struct {
	storage service.Storage
}

// NewManager creates a period manager over the given storage.
func NewManager(storage service.Storage) *Manager {
	return &Manager{storage: storage}
}

// periodEvent is the audit payload for period transitions.
type periodEvent struct {
	PeriodID string `json:"period_id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Version  int64  `json:"version"`
}

// Close advances a period OPEN → CLOSING → CLOSED. The first transition is a
// compare-and-swap on the version column: of two concurrent callers with the
// same expected version, exactly one wins; the loser gets
// storage.ErrStaleVersion and must refetch before deciding to retry — there
// is no automatic retry, so a superseded close is never silently re-run.
// Close validations (no pending drafts, trial balance in balance) run between
// the two transitions; a failure rolls the whole attempt back, leaving the
// period OPEN at its original version.
func (m *Manager) Close(ctx context.Context, tenantID, periodID string, expectedVersion int64) (*model.AccountingPeriod, error) {
	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	period, err := tx.TransitionPeriod(ctx, tenantID, periodID,
		model.PeriodOpen, model.PeriodClosing, expectedVersion)
	if err != nil {
		return nil, err
	}

	drafts, err := tx.CountDraftEntries(ctx, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	if drafts > 0 {
		return nil, &CloseValidationError{
			PeriodName: period.Name,
			Reason:     fmt.Sprintf("%d draft entries still reference it", drafts),
		}
	}

	debits, credits, err := tx.SumPostedEntries(ctx, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	if !debits.Equal(credits) {
		return nil, &CloseValidationError{
			PeriodName: period.Name,
			Reason: fmt.Sprintf("trial balance is out of balance: debits %s != credits %s",
				debits.StringFixed(2), credits.StringFixed(2)),
		}
	}

	period, err = tx.TransitionPeriod(ctx, tenantID, periodID,
		model.PeriodClosing, model.PeriodClosed, period.Version)
	if err != nil {
		return nil, err
	}

	_, err = audit.Append(ctx, tx, tenantID,
		model.AggregatePeriod, period.ID, model.EventPeriodClosed,
		periodEvent{PeriodID: period.ID, Name: period.Name, Status: string(period.Status), Version: period.Version})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit period close: %w", err)
	}

	slog.Info("Closed accounting period",
		"tenant_id", tenantID,
		"period", period.Name,
		"version", period.Version)
	return period, nil
}

// Lock finalizes a CLOSED period. Locked periods are permanent; there is no
// reopening.
func (m *Manager) Lock(ctx context.Context, tenantID, periodID string, expectedVersion int64) (*model.AccountingPeriod, error) {
	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	period, err := tx.TransitionPeriod(ctx, tenantID, periodID,
		model.PeriodClosed, model.PeriodLocked, expectedVersion)
	if err != nil {
		return nil, err
	}

	_, err = audit.Append(ctx, tx, tenantID,
		model.AggregatePeriod, period.ID, model.EventPeriodLocked,
		periodEvent{PeriodID: period.ID, Name: period.Name, Status: string(period.Status), Version: period.Version})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit period lock: %w", err)
	}
	return period, nil
}

// Generate creates twelve monthly OPEN periods for a calendar year with
// canonical names like 2025-01. Period names are assigned by the core, never
// by the caller.
func (m *Manager) Generate(ctx context.Context, tenantID string, year int) ([]model.AccountingPeriod, error) {
	periods := make([]model.AccountingPeriod, 0, 12)
	for month := time.January; month <= time.December; month++ {
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		period := model.AccountingPeriod{
			TenantID:  tenantID,
			Name:      fmt.Sprintf("%04d-%02d", year, month),
			StartDate: start,
			EndDate:   end,
		}
		if err := m.storage.CreatePeriod(ctx, &period); err != nil {
			return nil, fmt.Errorf("failed to create period %s: %w", period.Name, err)
		}
		periods = append(periods, period)
	}
	return periods, nil
}
