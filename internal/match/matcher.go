// Package match implements the bank transaction auto-matching engine: a
// multi-strategy candidate generator with confidence scoring, a human-review
// queue, and a rule-accuracy feedback loop.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hoaworks/fundledger/internal/audit"
	"github.com/hoaworks/fundledger/internal/common"
	"github.com/hoaworks/fundledger/internal/ledger"
	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/service"
	"github.com/hoaworks/fundledger/internal/storage"
)

// Matcher proposes and commits reconciliations. Accepted matches post their
// candidate entry through the same poster path manual entries use.
type Matcher struct {
	storage service.Storage
	poster  *ledger.Poster
	scorer  Scorer
}

// NewMatcher creates a matcher. scorer may be nil to disable the model-based
// strategy.
func NewMatcher(store service.Storage, poster *ledger.Poster, scorer Scorer) *Matcher {
	return &Matcher{storage: store, poster: poster, scorer: scorer}
}

// matchEvent is the audit payload for reconciliation transitions.
type matchEvent struct {
	BankTransactionID string `json:"bank_transaction_id"`
	EntryID           string `json:"entry_id,omitempty"`
	Status            string `json:"status"`
	Amount            string `json:"amount"`
	Notes             string `json:"notes,omitempty"`
}

// Propose generates ranked match proposals for one unmatched bank
// transaction. Strategies run in fixed priority order; every non-empty
// result is retained as an alternative for human review, highest confidence
// first. Proposal generation reads the ledger but never writes to it, so it
// is safe to run in parallel across bank transactions.
func (m *Matcher) Propose(ctx context.Context, tenantID, bankTransactionID string) ([]model.MatchResult, error) {
	txn, err := m.storage.GetBankTransaction(ctx, tenantID, bankTransactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != model.ReconUnmatched {
		return nil, fmt.Errorf("%w: bank transaction %s is %s", storage.ErrAlreadyMatched, txn.ID, txn.Status)
	}

	candidates, err := m.storage.GetMatchCandidates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	rules, err := m.storage.ListMatchRules(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}

	proposals := matchExact(txn, candidates)
	proposals = append(proposals, matchFuzzy(txn, candidates)...)
	proposals = append(proposals, matchReference(txn, candidates)...)
	proposals = append(proposals, matchPattern(txn, candidates, rules)...)
	proposals = append(proposals, m.matchML(ctx, txn, candidates)...)

	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].confidence > proposals[j].confidence
	})

	// Replace any cached proposals that never got a decision.
	if err := m.storage.DeleteUnresolvedMatchResults(ctx, tenantID, txn.ID); err != nil {
		return nil, err
	}

	results := make([]model.MatchResult, 0, len(proposals))
	for _, p := range proposals {
		result := model.MatchResult{
			TenantID:          tenantID,
			BankTransactionID: txn.ID,
			CandidateEntryID:  p.entry.ID,
			RuleID:            p.ruleID,
			Strategy:          p.strategy,
			ConfidenceScore:   p.confidence,
		}
		if err := m.storage.SaveMatchResult(ctx, &result); err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	slog.Debug("Proposed matches",
		"tenant_id", tenantID,
		"bank_transaction_id", txn.ID,
		"proposals", len(results))
	return results, nil
}

// matchML delegates to the pluggable scorer; only scores above the threshold
// are surfaced.
func (m *Matcher) matchML(ctx context.Context, txn *model.BankTransaction, candidates []model.JournalEntry) []proposal {
	if m.scorer == nil {
		return nil
	}

	var best *proposal
	for i := range candidates {
		entry := &candidates[i]
		score, err := m.scorer.Score(ctx, *txn, *entry)
		if err != nil {
			slog.Warn("Match scorer failed",
				"bank_transaction_id", txn.ID,
				"candidate_entry_id", entry.ID,
				"error", err)
			continue
		}
		if score <= mlThreshold {
			continue
		}
		if best == nil || score > best.confidence ||
			(score == best.confidence && entry.ID < best.entry.ID) {
			best = &proposal{entry: entry, strategy: model.RuleML, confidence: score}
		}
	}
	if best == nil {
		return nil
	}
	return []proposal{*best}
}

// Best returns the top-ranked proposal, or ErrAmbiguousMatch when the two
// highest proposals tie in confidence — equally-confident candidates go to a
// human reviewer, never a coin flip.
func (m *Matcher) Best(results []model.MatchResult) (*model.MatchResult, error) {
	if len(results) == 0 {
		return nil, common.ErrNoCandidates
	}
	if len(results) > 1 && results[0].ConfidenceScore == results[1].ConfidenceScore &&
		results[0].CandidateEntryID != results[1].CandidateEntryID {
		return nil, common.ErrAmbiguousMatch
	}
	return &results[0], nil
}

// Accept commits a proposal: the candidate draft posts through the poster,
// the bank transaction flips to matched, the result and its rule statistics
// update — all in one transaction, so a transaction can never be matched
// without its ledger entry existing.
func (m *Matcher) Accept(ctx context.Context, tenantID, matchResultID, user string) (*model.JournalEntry, error) {
	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.GetMatchResult(ctx, tenantID, matchResultID)
	if err != nil {
		return nil, err
	}
	if result.WasAccepted != nil {
		return nil, fmt.Errorf("%w: match result %s already resolved", storage.ErrAlreadyMatched, result.ID)
	}

	txn, err := tx.GetBankTransaction(ctx, tenantID, result.BankTransactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != model.ReconUnmatched {
		return nil, fmt.Errorf("%w: bank transaction %s is %s", storage.ErrAlreadyMatched, txn.ID, txn.Status)
	}

	entry, err := m.poster.PostDraftTx(ctx, tx, tenantID, result.CandidateEntryID)
	if err != nil {
		return nil, err
	}

	txn.Status = model.ReconMatched
	txn.MatchedEntryID = entry.ID
	if err := tx.UpdateBankTransaction(ctx, txn); err != nil {
		return nil, err
	}

	if err := tx.ResolveMatchResult(ctx, tenantID, result.ID, true); err != nil {
		return nil, err
	}

	if err := m.recordOutcome(ctx, tx, tenantID, result, txn, true); err != nil {
		return nil, err
	}

	_, err = audit.Append(ctx, tx, tenantID,
		model.AggregateBankTransaction, txn.ID, model.EventMatchAccepted,
		matchEvent{
			BankTransactionID: txn.ID,
			EntryID:           entry.ID,
			Status:            string(txn.Status),
			Amount:            txn.Amount.StringFixed(2),
			Notes:             "accepted by " + user,
		})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match acceptance: %w", err)
	}

	slog.Info("Accepted match",
		"tenant_id", tenantID,
		"bank_transaction_id", txn.ID,
		"entry_number", entry.EntryNumber,
		"strategy", result.Strategy,
		"confidence", result.ConfidenceScore,
		"user", user)
	return entry, nil
}

// recordOutcome feeds the accept/reject decision back into rule statistics.
// A result produced by a stored rule updates that rule; an accepted result
// from a stateless strategy learns a new description-fingerprint rule so
// recurring activity matches by pattern next time.
func (m *Matcher) recordOutcome(ctx context.Context, tx service.Transaction, tenantID string, result *model.MatchResult, txn *model.BankTransaction, accepted bool) error {
	if result.RuleID != "" {
		rule, err := tx.GetMatchRule(ctx, tenantID, result.RuleID)
		if err != nil {
			return err
		}
		rule.RecordOutcome(accepted)
		return tx.SaveMatchRule(ctx, rule)
	}

	if !accepted {
		return nil
	}
	fingerprint := Fingerprint(txn.Description)
	if fingerprint == "" {
		return nil
	}

	rules, err := tx.ListMatchRules(ctx, tenantID, false)
	if err != nil {
		return err
	}
	for i := range rules {
		if rules[i].Type == model.RulePattern && rules[i].Pattern == fingerprint {
			rules[i].RecordOutcome(true)
			return tx.SaveMatchRule(ctx, &rules[i])
		}
	}

	rule := &model.MatchRule{
		TenantID:        tenantID,
		Type:            model.RulePattern,
		Pattern:         fingerprint,
		ConfidenceScore: 0.70,
		Active:          true,
	}
	rule.RecordOutcome(true)
	return tx.SaveMatchRule(ctx, rule)
}

// Reject records a reviewer's rejection of a proposal. Rule statistics take
// the negative outcome; the bank transaction stays unmatched.
func (m *Matcher) Reject(ctx context.Context, tenantID, matchResultID string) error {
	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.GetMatchResult(ctx, tenantID, matchResultID)
	if err != nil {
		return err
	}
	if err := tx.ResolveMatchResult(ctx, tenantID, result.ID, false); err != nil {
		return err
	}

	txn, err := tx.GetBankTransaction(ctx, tenantID, result.BankTransactionID)
	if err != nil {
		return err
	}
	if err := m.recordOutcome(ctx, tx, tenantID, result, txn, false); err != nil {
		return err
	}
	return tx.Commit()
}

// Ignore marks a bank transaction as deliberately unreconciled. Rule
// statistics are untouched.
func (m *Matcher) Ignore(ctx context.Context, tenantID, bankTransactionID, notes string) error {
	txn, err := m.storage.GetBankTransaction(ctx, tenantID, bankTransactionID)
	if err != nil {
		return err
	}
	if txn.Status == model.ReconMatched || txn.Status == model.ReconManuallyMatched {
		return fmt.Errorf("%w: bank transaction %s is %s", storage.ErrAlreadyMatched, txn.ID, txn.Status)
	}

	txn.Status = model.ReconIgnored
	txn.Notes = notes
	return m.storage.UpdateBankTransaction(ctx, txn)
}

// Unmatch undoes an accepted match: the posted entry is reversed through the
// poster and the bank transaction returns to unmatched, in one transaction.
func (m *Matcher) Unmatch(ctx context.Context, tenantID, bankTransactionID, reason string, date time.Time) error {
	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	txn, err := tx.GetBankTransaction(ctx, tenantID, bankTransactionID)
	if err != nil {
		return err
	}
	if txn.MatchedEntryID == "" {
		return fmt.Errorf("bank transaction %s is not matched", txn.ID)
	}

	if _, err := m.poster.ReverseTx(ctx, tx, tenantID, txn.MatchedEntryID, reason, date); err != nil {
		return err
	}

	matchedEntryID := txn.MatchedEntryID
	txn.Status = model.ReconUnmatched
	txn.MatchedEntryID = ""
	txn.Notes = reason
	if err := tx.UpdateBankTransaction(ctx, txn); err != nil {
		return err
	}

	_, err = audit.Append(ctx, tx, tenantID,
		model.AggregateBankTransaction, txn.ID, model.EventMatchUnmatched,
		matchEvent{
			BankTransactionID: txn.ID,
			EntryID:           matchedEntryID,
			Status:            string(txn.Status),
			Amount:            txn.Amount.StringFixed(2),
			Notes:             reason,
		})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// MatchManually records a human-confirmed pairing against an existing posted
// entry without running any strategy.
func (m *Matcher) MatchManually(ctx context.Context, tenantID, bankTransactionID, entryID, user string) error {
	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	txn, err := tx.GetBankTransaction(ctx, tenantID, bankTransactionID)
	if err != nil {
		return err
	}
	if txn.Status != model.ReconUnmatched {
		return fmt.Errorf("%w: bank transaction %s is %s", storage.ErrAlreadyMatched, txn.ID, txn.Status)
	}

	entry, err := tx.GetEntry(ctx, tenantID, entryID)
	if err != nil {
		return err
	}
	if entry.Status == model.EntryDraft {
		if entry, err = m.poster.PostDraftTx(ctx, tx, tenantID, entryID); err != nil {
			return err
		}
	}

	txn.Status = model.ReconManuallyMatched
	txn.MatchedEntryID = entry.ID
	if err := tx.UpdateBankTransaction(ctx, txn); err != nil {
		return err
	}

	_, err = audit.Append(ctx, tx, tenantID,
		model.AggregateBankTransaction, txn.ID, model.EventMatchAccepted,
		matchEvent{
			BankTransactionID: txn.ID,
			EntryID:           entry.ID,
			Status:            string(txn.Status),
			Amount:            txn.Amount.StringFixed(2),
			Notes:             "manually matched by " + user,
		})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Queue lists the pending review queue: unmatched transactions with their
// cached, unresolved proposals.
func (m *Matcher) Queue(ctx context.Context, tenantID string) (map[string][]model.MatchResult, error) {
	transactions, err := m.storage.ListBankTransactions(ctx, tenantID, service.BankTransactionFilter{
		Status: model.ReconUnmatched,
	})
	if err != nil {
		return nil, err
	}

	queue := make(map[string][]model.MatchResult, len(transactions))
	for _, txn := range transactions {
		results, err := m.storage.ListMatchResults(ctx, tenantID, txn.ID)
		if err != nil {
			return nil, err
		}
		var pending []model.MatchResult
		for _, result := range results {
			if result.WasAccepted == nil {
				pending = append(pending, result)
			}
		}
		queue[txn.ID] = pending
	}
	return queue, nil
}
