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

// SaveMatchRule inserts or updates a matching rule. Rules are never deleted,
// only deactivated, so the upsert keeps statistics across restarts.
func (s *SQLiteStorage) SaveMatchRule(ctx context.Context, rule *model.MatchRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	return s.saveMatchRuleTx(ctx, s.db, rule)
}

func (s *SQLiteStorage) saveMatchRuleTx(ctx context.Context, q queryable, rule *model.MatchRule) error {
	now := time.Now().UTC()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	active := 0
	if rule.Active {
		active = 1
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO match_rules (
			id, tenant_id, rule_type, pattern, confidence_score,
			times_used, times_accepted, accuracy_rate, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pattern = excluded.pattern,
			confidence_score = excluded.confidence_score,
			times_used = excluded.times_used,
			times_accepted = excluded.times_accepted,
			accuracy_rate = excluded.accuracy_rate,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, rule.ID, rule.TenantID, string(rule.Type), rule.Pattern, rule.ConfidenceScore,
		rule.TimesUsed, rule.TimesAccepted, rule.AccuracyRate, active,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save match rule: %w", err)
	}
	return nil
}

// GetMatchRule fetches a rule by tenant and id.
func (s *SQLiteStorage) GetMatchRule(ctx context.Context, tenantID, id string) (*model.MatchRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getMatchRuleTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) getMatchRuleTx(ctx context.Context, q queryable, tenantID, id string) (*model.MatchRule, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, rule_type, pattern, confidence_score,
			times_used, times_accepted, accuracy_rate, active, created_at, updated_at
		FROM match_rules WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	rule, err := scanMatchRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: match rule %s", ErrNotFound, id)
	}
	return rule, err
}

// ListMatchRules returns a tenant's rules, optionally active ones only.
func (s *SQLiteStorage) ListMatchRules(ctx context.Context, tenantID string, activeOnly bool) ([]model.MatchRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.listMatchRulesTx(ctx, s.db, tenantID, activeOnly)
}

func (s *SQLiteStorage) listMatchRulesTx(ctx context.Context, q queryable, tenantID string, activeOnly bool) ([]model.MatchRule, error) {
	query := `
		SELECT id, tenant_id, rule_type, pattern, confidence_score,
			times_used, times_accepted, accuracy_rate, active, created_at, updated_at
		FROM match_rules WHERE tenant_id = ?`
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY created_at, id"

	rows, err := q.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.MatchRule
	for rows.Next() {
		rule, err := scanMatchRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// DeactivateMatchRule marks a rule inactive.
func (s *SQLiteStorage) DeactivateMatchRule(ctx context.Context, tenantID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deactivateMatchRuleTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) deactivateMatchRuleTx(ctx context.Context, q queryable, tenantID, id string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE match_rules SET active = 0, updated_at = ? WHERE tenant_id = ? AND id = ?
	`, time.Now().UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate match rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: match rule %s", ErrNotFound, id)
	}
	return nil
}

// SaveMatchResult caches one match proposal.
func (s *SQLiteStorage) SaveMatchResult(ctx context.Context, result *model.MatchResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("%w: result", ErrNilParameter)
	}
	return s.saveMatchResultTx(ctx, s.db, result)
}

func (s *SQLiteStorage) saveMatchResultTx(ctx context.Context, q queryable, result *model.MatchResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	result.CreatedAt = time.Now().UTC()

	var accepted any
	if result.WasAccepted != nil {
		accepted = *result.WasAccepted
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO match_results (
			id, tenant_id, bank_transaction_id, candidate_entry_id, rule_id,
			strategy, confidence_score, was_accepted, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.ID, result.TenantID, result.BankTransactionID, result.CandidateEntryID,
		nullable(result.RuleID), string(result.Strategy), result.ConfidenceScore,
		accepted, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save match result: %w", err)
	}
	return nil
}

// GetMatchResult fetches a match result by tenant and id.
func (s *SQLiteStorage) GetMatchResult(ctx context.Context, tenantID, id string) (*model.MatchResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getMatchResultTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) getMatchResultTx(ctx context.Context, q queryable, tenantID, id string) (*model.MatchResult, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, bank_transaction_id, candidate_entry_id, rule_id,
			strategy, confidence_score, was_accepted, created_at
		FROM match_results WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	result, err := scanMatchResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: match result %s", ErrNotFound, id)
	}
	return result, err
}

// ListMatchResults returns proposals, optionally scoped to one bank
// transaction, highest confidence first.
func (s *SQLiteStorage) ListMatchResults(ctx context.Context, tenantID, bankTransactionID string) ([]model.MatchResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.listMatchResultsTx(ctx, s.db, tenantID, bankTransactionID)
}

func (s *SQLiteStorage) listMatchResultsTx(ctx context.Context, q queryable, tenantID, bankTransactionID string) ([]model.MatchResult, error) {
	query := `
		SELECT id, tenant_id, bank_transaction_id, candidate_entry_id, rule_id,
			strategy, confidence_score, was_accepted, created_at
		FROM match_results WHERE tenant_id = ?`
	args := []any{tenantID}
	if bankTransactionID != "" {
		query += " AND bank_transaction_id = ?"
		args = append(args, bankTransactionID)
	}
	query += " ORDER BY confidence_score DESC, created_at, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query match results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.MatchResult
	for rows.Next() {
		result, err := scanMatchResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// DeleteUnresolvedMatchResults discards cached proposals that never received
// a decision, so re-proposing a transaction replaces stale alternatives.
// Resolved results are terminal and stay.
func (s *SQLiteStorage) DeleteUnresolvedMatchResults(ctx context.Context, tenantID, bankTransactionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(bankTransactionID, "bankTransactionID"); err != nil {
		return err
	}
	return s.deleteUnresolvedMatchResultsTx(ctx, s.db, tenantID, bankTransactionID)
}

func (s *SQLiteStorage) deleteUnresolvedMatchResultsTx(ctx context.Context, q queryable, tenantID, bankTransactionID string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM match_results
		WHERE tenant_id = ? AND bank_transaction_id = ? AND was_accepted IS NULL
	`, tenantID, bankTransactionID)
	if err != nil {
		return fmt.Errorf("failed to delete unresolved match results: %w", err)
	}
	return nil
}

// ResolveMatchResult records the reviewer's terminal accept/reject decision.
// A result that already has a decision is not overwritten.
func (s *SQLiteStorage) ResolveMatchResult(ctx context.Context, tenantID, id string, accepted bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.resolveMatchResultTx(ctx, s.db, tenantID, id, accepted)
}

func (s *SQLiteStorage) resolveMatchResultTx(ctx context.Context, q queryable, tenantID, id string, accepted bool) error {
	result, err := q.ExecContext(ctx, `
		UPDATE match_results SET was_accepted = ?
		WHERE tenant_id = ? AND id = ? AND was_accepted IS NULL
	`, accepted, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to resolve match result: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: match result %s already resolved or missing", ErrAlreadyMatched, id)
	}
	return nil
}

func scanMatchRule(row rowScanner) (*model.MatchRule, error) {
	var rule model.MatchRule
	var ruleType string
	var active int
	err := row.Scan(&rule.ID, &rule.TenantID, &ruleType, &rule.Pattern,
		&rule.ConfidenceScore, &rule.TimesUsed, &rule.TimesAccepted,
		&rule.AccuracyRate, &active, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match rule: %w", err)
	}
	rule.Type = model.RuleType(ruleType)
	rule.Active = active == 1
	return &rule, nil
}

func scanMatchResult(row rowScanner) (*model.MatchResult, error) {
	var result model.MatchResult
	var strategy string
	var ruleID sql.NullString
	var accepted sql.NullBool
	err := row.Scan(&result.ID, &result.TenantID, &result.BankTransactionID,
		&result.CandidateEntryID, &ruleID, &strategy, &result.ConfidenceScore,
		&accepted, &result.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match result: %w", err)
	}
	result.Strategy = model.RuleType(strategy)
	result.RuleID = ruleID.String
	if accepted.Valid {
		result.WasAccepted = &accepted.Bool
	}
	return &result, nil
}
