package model

import (
	"fmt"
	"time"
)

// PeriodStatus is the finality state of an accounting period. Transitions
// move strictly forward; a LOCKED period is never reopened.
type PeriodStatus string

const (
	PeriodOpen    PeriodStatus = "OPEN"
	PeriodClosing PeriodStatus = "CLOSING"
	PeriodClosed  PeriodStatus = "CLOSED"
	PeriodLocked  PeriodStatus = "LOCKED"
)

// CanTransition reports whether a period may move from its current status to
// the target status.
func (s PeriodStatus) CanTransition(to PeriodStatus) bool {
	switch s {
	case PeriodOpen:
		return to == PeriodClosing
	case PeriodClosing:
		return to == PeriodClosed
	case PeriodClosed:
		return to == PeriodLocked
	default:
		return false
	}
}

// AccountingPeriod is a bounded interval that can be progressively finalized.
// Version is a monotonically incremented integer used for optimistic
// concurrency on close.
type AccountingPeriod struct {
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	ID        string
	TenantID  string
	Name      string
	Status    PeriodStatus
	Version   int64
}

// Contains reports whether the calendar date d falls inside the period.
func (p *AccountingPeriod) Contains(d time.Time) bool {
	day := d.Truncate(24 * time.Hour)
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

// Validate ensures the period has valid data.
func (p *AccountingPeriod) Validate() error {
	if p.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if p.Name == "" {
		return fmt.Errorf("period name is required")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return fmt.Errorf("period dates are required")
	}
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("period end %s is before start %s",
			p.EndDate.Format("2006-01-02"), p.StartDate.Format("2006-01-02"))
	}
	return nil
}
