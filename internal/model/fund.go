// Package model defines the core domain types for the fund-accounting ledger.
package model

import (
	"fmt"
	"time"
)

// FundType partitions association money into independent pools, each with its
// own balance sheet.
type FundType string

const (
	FundOperating         FundType = "operating"
	FundReserve           FundType = "reserve"
	FundSpecialAssessment FundType = "special_assessment"
)

// Fund is a segregated pool of money owning a disjoint set of accounts.
// Immutable after creation except for deactivation.
type Fund struct {
	CreatedAt time.Time
	ID        string
	TenantID  string
	Name      string
	Type      FundType
	Active    bool
}

// Validate ensures the fund has valid data.
func (f *Fund) Validate() error {
	if f.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if f.Name == "" {
		return fmt.Errorf("fund name is required")
	}
	switch f.Type {
	case FundOperating, FundReserve, FundSpecialAssessment:
	default:
		return fmt.Errorf("unknown fund type %q", f.Type)
	}
	return nil
}
