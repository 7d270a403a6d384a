package model

import (
	"fmt"
	"time"
)

// RuleType identifies which matching strategy owns a rule.
type RuleType string

const (
	RuleExact     RuleType = "exact"
	RuleFuzzy     RuleType = "fuzzy"
	RuleReference RuleType = "reference"
	RulePattern   RuleType = "pattern"
	RuleML        RuleType = "ml"
)

// MatchRule is a learned matching rule. Rules are never deleted, only
// deactivated; accuracy is a rolling ratio of accepted to total uses.
type MatchRule struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ID              string
	TenantID        string
	Type            RuleType
	Pattern         string
	ConfidenceScore float64
	AccuracyRate    float64
	TimesUsed       int64
	TimesAccepted   int64
	Active          bool
}

// RecordOutcome folds one accept/reject decision into the rule's rolling
// accuracy rate.
func (r *MatchRule) RecordOutcome(accepted bool) {
	r.TimesUsed++
	if accepted {
		r.TimesAccepted++
	}
	r.AccuracyRate = float64(r.TimesAccepted) / float64(r.TimesUsed)
}

// Validate ensures the rule has valid data.
func (r *MatchRule) Validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	switch r.Type {
	case RuleExact, RuleFuzzy, RuleReference, RulePattern, RuleML:
	default:
		return fmt.Errorf("unknown rule type %q", r.Type)
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score must be between 0 and 1")
	}
	return nil
}

// MatchResult is a cached match proposal pairing a bank transaction with a
// candidate draft entry. WasAccepted is nil until a reviewer decides; the
// result is terminal once accepted or rejected.
type MatchResult struct {
	CreatedAt         time.Time
	WasAccepted       *bool
	ID                string
	TenantID          string
	BankTransactionID string
	CandidateEntryID  string
	RuleID            string
	Strategy          RuleType
	ConfidenceScore   float64
}
