package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoaworks/fundledger/internal/audit"
	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/service"
)

// Poster validates and atomically commits balanced journal entries. Every
// successful post writes the entry header, its lines, the balance deltas, and
// an audit event in a single database transaction; any failure rolls back the
// whole thing, so callers never observe a header without its lines.
type Poster struct {
	storage service.Storage
}

// NewPoster creates a poster over the given storage.
func NewPoster(storage service.Storage) *Poster {
	return &Poster{storage: storage}
}

// entryEvent is the audit payload for posting-related transitions. It is a
// full snapshot so point-in-time reconstruction needs no joins.
type entryEvent struct {
	EntryID      string           `json:"entry_id"`
	EntryNumber  string           `json:"entry_number"`
	EntryDate    string           `json:"entry_date"`
	PeriodID     string           `json:"period_id"`
	Status       string           `json:"status"`
	Memo         string           `json:"memo,omitempty"`
	Reference    string           `json:"reference,omitempty"`
	TotalDebits  string           `json:"total_debits"`
	TotalCredits string           `json:"total_credits"`
	ReversesID   string           `json:"reverses_entry_id,omitempty"`
	Lines        []entryEventLine `json:"lines"`
}

type entryEventLine struct {
	AccountID string `json:"account_id"`
	FundID    string `json:"fund_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
}

func snapshotEntry(entry *model.JournalEntry, reversesID string) entryEvent {
	event := entryEvent{
		EntryID:      entry.ID,
		EntryNumber:  entry.EntryNumber,
		EntryDate:    entry.EntryDate.Format("2006-01-02"),
		PeriodID:     entry.PeriodID,
		Status:       string(entry.Status),
		Memo:         entry.Memo,
		Reference:    entry.Reference,
		TotalDebits:  entry.TotalDebits.StringFixed(2),
		TotalCredits: entry.TotalCredits.StringFixed(2),
		ReversesID:   reversesID,
	}
	for _, line := range entry.Lines {
		event.Lines = append(event.Lines, entryEventLine{
			AccountID: line.AccountID,
			FundID:    line.FundID,
			Debit:     line.DebitAmount.StringFixed(2),
			Credit:    line.CreditAmount.StringFixed(2),
		})
	}
	return event
}

// Post validates a draft and commits it as a posted entry. All preconditions
// are checked before any write; a rejected draft leaves no trace.
func (p *Poster) Post(ctx context.Context, draft model.DraftEntry) (*model.JournalEntry, error) {
	tx, err := p.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	entry, err := p.postTx(ctx, tx, draft)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit posting: %w", err)
	}

	slog.Info("Posted journal entry",
		"tenant_id", entry.TenantID,
		"entry_number", entry.EntryNumber,
		"total", entry.TotalDebits.StringFixed(2))
	return entry, nil
}

func (p *Poster) postTx(ctx context.Context, tx service.Transaction, draft model.DraftEntry) (*model.JournalEntry, error) {
	if draft.TenantID == "" {
		return nil, NewValidationError("tenant ID is required")
	}
	if draft.EntryDate.IsZero() {
		return nil, NewValidationError("entry date is required")
	}
	if err := model.ValidateLines(draft.Lines); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	lines, err := p.resolveLines(ctx, tx, draft.TenantID, draft.Lines)
	if err != nil {
		return nil, err
	}

	period, err := p.openPeriodFor(ctx, tx, draft.TenantID, draft.EntryDate)
	if err != nil {
		return nil, err
	}

	number, err := tx.NextEntryNumber(ctx, draft.TenantID, draft.EntryDate.Year())
	if err != nil {
		return nil, err
	}

	debits, credits := model.Totals(draft.Lines)
	entry := &model.JournalEntry{
		TenantID:     draft.TenantID,
		EntryNumber:  number,
		EntryDate:    draft.EntryDate,
		PeriodID:     period.ID,
		Memo:         draft.Memo,
		Reference:    draft.Reference,
		Status:       model.EntryPosted,
		TotalDebits:  debits,
		TotalCredits: credits,
		Lines:        lines,
	}
	if err := tx.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	if err := p.applyBalances(ctx, tx, entry, false); err != nil {
		return nil, err
	}

	_, err = audit.Append(ctx, tx, entry.TenantID,
		model.AggregateJournalEntry, entry.ID, model.EventEntryPosted,
		snapshotEntry(entry, ""))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// resolveLines checks that every referenced account exists and is active,
// and denormalizes each account's fund onto its line.
func (p *Poster) resolveLines(ctx context.Context, tx service.Transaction, tenantID string, drafts []model.DraftLine) ([]model.JournalEntryLine, error) {
	lines := make([]model.JournalEntryLine, 0, len(drafts))
	for i, draft := range drafts {
		account, err := tx.GetAccount(ctx, tenantID, draft.AccountID)
		if err != nil {
			return nil, NewValidationError("line %d: unknown account %s", i+1, draft.AccountID)
		}
		if !account.Active {
			return nil, NewValidationError("line %d: account %s is inactive", i+1, account.Number)
		}
		lines = append(lines, model.JournalEntryLine{
			AccountID:    account.ID,
			FundID:       account.FundID,
			DebitAmount:  draft.DebitAmount,
			CreditAmount: draft.CreditAmount,
		})
	}
	return lines, nil
}

// openPeriodFor resolves the period covering date and requires it to be OPEN.
func (p *Poster) openPeriodFor(ctx context.Context, tx service.Transaction, tenantID string, date time.Time) (*model.AccountingPeriod, error) {
	period, err := tx.GetPeriodFor(ctx, tenantID, date)
	if err != nil {
		return nil, NewValidationError("no accounting period covers %s", date.Format("2006-01-02"))
	}
	if period.Status != model.PeriodOpen {
		return nil, fmt.Errorf("%w: period %s is %s", ErrPeriodClosed, period.Name, period.Status)
	}
	return period, nil
}

// applyBalances folds each line into the (account, period) projection.
// Reversing swaps the sign by swapping each line's sides.
func (p *Poster) applyBalances(ctx context.Context, tx service.Transaction, entry *model.JournalEntry, negate bool) error {
	for _, line := range entry.Lines {
		account, err := tx.GetAccount(ctx, entry.TenantID, line.AccountID)
		if err != nil {
			return err
		}
		debit, credit := line.DebitAmount, line.CreditAmount
		if negate {
			debit, credit = credit, debit
		}
		signed := model.BalanceDelta(account.NormalBalance, debit, credit)
		if err := tx.ApplyBalanceDelta(ctx, entry.TenantID, line.AccountID, entry.PeriodID, debit, credit, signed); err != nil {
			return err
		}
	}
	return nil
}

// SaveDraft validates and stores a draft entry without posting it. Drafts
// carry an entry number and period assignment but no balance or audit effect;
// they are the matcher's candidate pool and may be discarded with Void.
func (p *Poster) SaveDraft(ctx context.Context, draft model.DraftEntry) (*model.JournalEntry, error) {
	tx, err := p.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if draft.TenantID == "" {
		return nil, NewValidationError("tenant ID is required")
	}
	if err := model.ValidateLines(draft.Lines); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	lines, err := p.resolveLines(ctx, tx, draft.TenantID, draft.Lines)
	if err != nil {
		return nil, err
	}
	period, err := p.openPeriodFor(ctx, tx, draft.TenantID, draft.EntryDate)
	if err != nil {
		return nil, err
	}
	number, err := tx.NextEntryNumber(ctx, draft.TenantID, draft.EntryDate.Year())
	if err != nil {
		return nil, err
	}

	debits, credits := model.Totals(draft.Lines)
	entry := &model.JournalEntry{
		TenantID:     draft.TenantID,
		EntryNumber:  number,
		EntryDate:    draft.EntryDate,
		PeriodID:     period.ID,
		Memo:         draft.Memo,
		Reference:    draft.Reference,
		Status:       model.EntryDraft,
		TotalDebits:  debits,
		TotalCredits: credits,
		Lines:        lines,
	}
	if err := tx.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit draft: %w", err)
	}
	return entry, nil
}

// PostDraft promotes a stored draft to posted, applying balances and the
// audit event exactly as a direct post would.
func (p *Poster) PostDraft(ctx context.Context, tenantID, entryID string) (*model.JournalEntry, error) {
	tx, err := p.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	entry, err := p.PostDraftTx(ctx, tx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit posting: %w", err)
	}
	return entry, nil
}

// PostDraftTx is the transaction-scoped variant used by the matcher so a
// bank transaction can never be matched without its ledger entry committing
// in the same transaction.
func (p *Poster) PostDraftTx(ctx context.Context, tx service.Transaction, tenantID, entryID string) (*model.JournalEntry, error) {
	entry, err := tx.GetEntry(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.EntryDraft {
		return nil, NewValidationError("entry %s is %s, not draft", entry.EntryNumber, entry.Status)
	}

	// The draft's period may have advanced toward close since it was saved.
	period, err := tx.GetPeriod(ctx, tenantID, entry.PeriodID)
	if err != nil {
		return nil, err
	}
	if period.Status != model.PeriodOpen {
		return nil, fmt.Errorf("%w: period %s is %s", ErrPeriodClosed, period.Name, period.Status)
	}

	if err := tx.UpdateEntryStatus(ctx, tenantID, entry.ID, model.EntryPosted, ""); err != nil {
		return nil, err
	}
	entry.Status = model.EntryPosted

	if err := p.applyBalances(ctx, tx, entry, false); err != nil {
		return nil, err
	}

	_, err = audit.Append(ctx, tx, tenantID,
		model.AggregateJournalEntry, entry.ID, model.EventEntryPosted,
		snapshotEntry(entry, ""))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Reverse produces a new posted entry with every line's sides swapped, in the
// open period covering date, and marks the original reversed. The original's
// lines are untouched.
func (p *Poster) Reverse(ctx context.Context, tenantID, entryID, reason string, date time.Time) (*model.JournalEntry, error) {
	tx, err := p.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	reversal, err := p.ReverseTx(ctx, tx, tenantID, entryID, reason, date)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reversal: %w", err)
	}

	slog.Info("Reversed journal entry",
		"tenant_id", tenantID,
		"original", entryID,
		"reversal", reversal.EntryNumber)
	return reversal, nil
}

// ReverseTx is the transaction-scoped variant used by the matcher's unmatch.
func (p *Poster) ReverseTx(ctx context.Context, tx service.Transaction, tenantID, entryID, reason string, date time.Time) (*model.JournalEntry, error) {
	original, err := tx.GetEntry(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if original.Status != model.EntryPosted {
		return nil, NewValidationError("entry %s is %s and cannot be reversed", original.EntryNumber, original.Status)
	}

	lines := make([]model.DraftLine, 0, len(original.Lines))
	for _, line := range original.Lines {
		lines = append(lines, model.DraftLine{
			AccountID:    line.AccountID,
			DebitAmount:  line.CreditAmount,
			CreditAmount: line.DebitAmount,
		})
	}

	reversal, err := p.postTx(ctx, tx, model.DraftEntry{
		TenantID:  tenantID,
		EntryDate: date,
		Memo:      fmt.Sprintf("Reversal of %s: %s", original.EntryNumber, reason),
		Reference: original.Reference,
		Lines:     lines,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.UpdateEntryStatus(ctx, tenantID, original.ID, model.EntryReversed, reversal.ID); err != nil {
		return nil, err
	}

	_, err = audit.Append(ctx, tx, tenantID,
		model.AggregateJournalEntry, original.ID, model.EventEntryReversed,
		snapshotEntry(reversal, original.ID))
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// Void discards a draft entry. Drafts never became canonical, so no audit
// event is required; posted entries cannot be voided, only reversed.
func (p *Poster) Void(ctx context.Context, tenantID, entryID string) error {
	return p.storage.DeleteDraftEntry(ctx, tenantID, entryID)
}

// AccountBalance reads the materialized balance for an account in a period.
func (p *Poster) AccountBalance(ctx context.Context, tenantID, accountID, periodID string) (*model.AccountBalance, error) {
	return p.storage.GetAccountBalance(ctx, tenantID, accountID, periodID)
}

// TrialBalance reads the per-account totals for one period. A non-zero
// difference means something bypassed the poster.
func (p *Poster) TrialBalance(ctx context.Context, tenantID, periodID string) (*model.TrialBalance, error) {
	return p.storage.GetTrialBalance(ctx, tenantID, periodID)
}
