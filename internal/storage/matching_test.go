package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/hoaworks/fundledger/internal/model"
)

func TestMatchRuleRoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := &model.MatchRule{
		TenantID:        testTenant,
		Type:            model.RulePattern,
		Pattern:         `(?i)^ACME LANDSCAPING \d+$`,
		ConfidenceScore: 0.70,
		Active:          true,
	}
	if err := store.SaveMatchRule(ctx, rule); err != nil {
		t.Fatalf("SaveMatchRule() error: %v", err)
	}

	rule.RecordOutcome(true)
	rule.RecordOutcome(false)
	if err := store.SaveMatchRule(ctx, rule); err != nil {
		t.Fatalf("SaveMatchRule() update error: %v", err)
	}

	got, err := store.GetMatchRule(ctx, testTenant, rule.ID)
	if err != nil {
		t.Fatalf("GetMatchRule() error: %v", err)
	}
	if got.TimesUsed != 2 || got.TimesAccepted != 1 {
		t.Errorf("usage stats = %d/%d, want 1 of 2", got.TimesAccepted, got.TimesUsed)
	}
	if got.AccuracyRate != 0.5 {
		t.Errorf("accuracy = %f, want 0.5", got.AccuracyRate)
	}

	if err := store.DeactivateMatchRule(ctx, testTenant, rule.ID); err != nil {
		t.Fatalf("DeactivateMatchRule() error: %v", err)
	}
	active, err := store.ListMatchRules(ctx, testTenant, true)
	if err != nil {
		t.Fatalf("ListMatchRules(active) error: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("deactivated rule still listed as active")
	}
	all, err := store.ListMatchRules(ctx, testTenant, false)
	if err != nil {
		t.Fatalf("ListMatchRules(all) error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("rule deleted rather than deactivated")
	}
}

func saveTestResult(t *testing.T, store *SQLiteStorage, bankTransactionID, candidateID string, confidence float64) *model.MatchResult {
	t.Helper()
	result := &model.MatchResult{
		TenantID:          testTenant,
		BankTransactionID: bankTransactionID,
		CandidateEntryID:  candidateID,
		Strategy:          model.RuleExact,
		ConfidenceScore:   confidence,
	}
	if err := store.SaveMatchResult(context.Background(), result); err != nil {
		t.Fatalf("SaveMatchResult() error: %v", err)
	}
	return result
}

func TestResolveMatchResult(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	result := saveTestResult(t, store, "txn-1", "entry-1", 1.0)

	if err := store.ResolveMatchResult(ctx, testTenant, result.ID, true); err != nil {
		t.Fatalf("ResolveMatchResult() error: %v", err)
	}

	got, err := store.GetMatchResult(ctx, testTenant, result.ID)
	if err != nil {
		t.Fatalf("GetMatchResult() error: %v", err)
	}
	if got.WasAccepted == nil || !*got.WasAccepted {
		t.Errorf("WasAccepted = %v, want true", got.WasAccepted)
	}

	// A decision is terminal.
	if err := store.ResolveMatchResult(ctx, testTenant, result.ID, false); !errors.Is(err, ErrAlreadyMatched) {
		t.Errorf("second resolution error = %v, want ErrAlreadyMatched", err)
	}
}

func TestDeleteUnresolvedMatchResults(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	kept := saveTestResult(t, store, "txn-1", "entry-1", 1.0)
	saveTestResult(t, store, "txn-1", "entry-2", 0.9)
	other := saveTestResult(t, store, "txn-2", "entry-3", 0.95)

	if err := store.ResolveMatchResult(ctx, testTenant, kept.ID, false); err != nil {
		t.Fatalf("ResolveMatchResult() error: %v", err)
	}

	if err := store.DeleteUnresolvedMatchResults(ctx, testTenant, "txn-1"); err != nil {
		t.Fatalf("DeleteUnresolvedMatchResults() error: %v", err)
	}

	// Resolved history survives; stale pending proposals are gone.
	results, err := store.ListMatchResults(ctx, testTenant, "txn-1")
	if err != nil {
		t.Fatalf("ListMatchResults() error: %v", err)
	}
	if len(results) != 1 || results[0].ID != kept.ID {
		t.Errorf("expected only the resolved result, got %d rows", len(results))
	}

	// Other transactions untouched.
	results, err = store.ListMatchResults(ctx, testTenant, other.BankTransactionID)
	if err != nil {
		t.Fatalf("ListMatchResults(txn-2) error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("unrelated transaction's results affected")
	}
}

func TestListMatchResults_OrderedByConfidence(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	saveTestResult(t, store, "txn-1", "entry-low", 0.70)
	saveTestResult(t, store, "txn-1", "entry-high", 1.00)
	saveTestResult(t, store, "txn-1", "entry-mid", 0.90)

	results, err := store.ListMatchResults(ctx, testTenant, "txn-1")
	if err != nil {
		t.Fatalf("ListMatchResults() error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"entry-high", "entry-mid", "entry-low"}
	for i, result := range results {
		if result.CandidateEntryID != want[i] {
			t.Errorf("result %d = %s, want %s", i, result.CandidateEntryID, want[i])
		}
	}
}
