package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hoaworks/fundledger/internal/model"
)

const dateLayout = "2006-01-02"

// parseAmount converts a stored decimal string back to a decimal.Decimal.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse stored amount %q: %w", s, err)
	}
	return d, nil
}

// CreateEntry inserts a journal entry header and all of its lines. The entry
// is written with whatever status it carries; the poster owns the decision of
// whether that is draft or posted.
func (s *SQLiteStorage) CreateEntry(ctx context.Context, entry *model.JournalEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.createEntryTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) createEntryTx(ctx context.Context, q queryable, entry *model.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	var reversedBy any
	if entry.ReversedByEntryID != "" {
		reversedBy = entry.ReversedByEntryID
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO journal_entries (
			id, tenant_id, entry_number, entry_date, period_id, memo, reference,
			status, total_debits, total_credits, reversed_by_entry_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.TenantID, entry.EntryNumber,
		entry.EntryDate.Format(dateLayout), nullable(entry.PeriodID), entry.Memo, entry.Reference,
		string(entry.Status), entry.TotalDebits.StringFixed(2), entry.TotalCredits.StringFixed(2),
		reversedBy, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}

	for i := range entry.Lines {
		line := &entry.Lines[i]
		if line.ID == "" {
			line.ID = uuid.NewString()
		}
		line.EntryID = entry.ID
		line.LineNumber = i + 1

		_, err := q.ExecContext(ctx, `
			INSERT INTO journal_entry_lines (
				id, entry_id, line_number, account_id, fund_id, debit_amount, credit_amount
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, line.ID, line.EntryID, line.LineNumber, line.AccountID, line.FundID,
			line.DebitAmount.StringFixed(2), line.CreditAmount.StringFixed(2))
		if err != nil {
			return fmt.Errorf("failed to insert entry line %d: %w", line.LineNumber, err)
		}
	}
	return nil
}

// GetEntry fetches a journal entry with its lines in line order.
func (s *SQLiteStorage) GetEntry(ctx context.Context, tenantID, id string) (*model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getEntryTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) getEntryTx(ctx context.Context, q queryable, tenantID, id string) (*model.JournalEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, entry_number, entry_date, period_id, memo, reference,
			status, total_debits, total_credits, reversed_by_entry_id, created_at
		FROM journal_entries WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: journal entry %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	lines, err := s.getEntryLinesTx(ctx, q, entry.ID)
	if err != nil {
		return nil, err
	}
	entry.Lines = lines
	return entry, nil
}

func (s *SQLiteStorage) getEntryLinesTx(ctx context.Context, q queryable, entryID string) ([]model.JournalEntryLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, entry_id, line_number, account_id, fund_id, debit_amount, credit_amount
		FROM journal_entry_lines WHERE entry_id = ? ORDER BY line_number
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []model.JournalEntryLine
	for rows.Next() {
		var line model.JournalEntryLine
		var debit, credit string
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNumber,
			&line.AccountID, &line.FundID, &debit, &credit); err != nil {
			return nil, fmt.Errorf("failed to scan entry line: %w", err)
		}
		if line.DebitAmount, err = parseAmount(debit); err != nil {
			return nil, err
		}
		if line.CreditAmount, err = parseAmount(credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListEntries returns entries for a tenant, optionally narrowed to one
// period, in posting order. Lines are not loaded; use GetEntry for detail.
func (s *SQLiteStorage) ListEntries(ctx context.Context, tenantID, periodID string) ([]model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.listEntriesTx(ctx, s.db, tenantID, periodID)
}

func (s *SQLiteStorage) listEntriesTx(ctx context.Context, q queryable, tenantID, periodID string) ([]model.JournalEntry, error) {
	query := `
		SELECT id, tenant_id, entry_number, entry_date, period_id, memo, reference,
			status, total_debits, total_credits, reversed_by_entry_id, created_at
		FROM journal_entries WHERE tenant_id = ?`
	args := []any{tenantID}
	if periodID != "" {
		query += ` AND period_id = ?`
		args = append(args, periodID)
	}
	query += ` ORDER BY entry_date, entry_number`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// UpdateEntryStatus advances an entry's status. The only mutable fields on a
// posted entry are its status and the reversing back-reference.
func (s *SQLiteStorage) UpdateEntryStatus(ctx context.Context, tenantID, id string, status model.EntryStatus, reversedBy string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.updateEntryStatusTx(ctx, s.db, tenantID, id, status, reversedBy)
}

func (s *SQLiteStorage) updateEntryStatusTx(ctx context.Context, q queryable, tenantID, id string, status model.EntryStatus, reversedBy string) error {
	var result sql.Result
	var err error
	if reversedBy != "" {
		result, err = q.ExecContext(ctx, `
			UPDATE journal_entries SET status = ?, reversed_by_entry_id = ?
			WHERE tenant_id = ? AND id = ?
		`, string(status), reversedBy, tenantID, id)
	} else {
		result, err = q.ExecContext(ctx, `
			UPDATE journal_entries SET status = ?
			WHERE tenant_id = ? AND id = ?
		`, string(status), tenantID, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update entry status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: journal entry %s", ErrNotFound, id)
	}
	return nil
}

// DeleteDraftEntry discards a draft and its lines. Posted entries are never
// deleted; the status guard in the WHERE clause makes that structural.
func (s *SQLiteStorage) DeleteDraftEntry(ctx context.Context, tenantID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteDraftEntryTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) deleteDraftEntryTx(ctx context.Context, q queryable, tenantID, id string) error {
	result, err := q.ExecContext(ctx, `
		DELETE FROM journal_entries WHERE tenant_id = ? AND id = ? AND status = 'draft'
	`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: draft entry %s", ErrEntryNotDraft, id)
	}
	return nil
}

// NextEntryNumber assigns the next sequential entry number for a tenant year,
// formatted JE-<year>-<seq>. The counter row is bumped in the same statement
// that reads it, so concurrent posters never observe the same number.
func (s *SQLiteStorage) NextEntryNumber(ctx context.Context, tenantID string, year int) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return "", err
	}
	return s.nextEntryNumberTx(ctx, s.db, tenantID, year)
}

func (s *SQLiteStorage) nextEntryNumberTx(ctx context.Context, q queryable, tenantID string, year int) (string, error) {
	var seq int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO entry_counters (tenant_id, year, next_seq) VALUES (?, ?, 2)
		ON CONFLICT(tenant_id, year) DO UPDATE SET next_seq = next_seq + 1
		RETURNING next_seq - 1
	`, tenantID, year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("failed to allocate entry number: %w", err)
	}
	return fmt.Sprintf("JE-%d-%05d", year, seq), nil
}

// CountDraftEntries counts drafts referencing a period; the period manager
// refuses to close while any exist.
func (s *SQLiteStorage) CountDraftEntries(ctx context.Context, tenantID, periodID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.countDraftEntriesTx(ctx, s.db, tenantID, periodID)
}

func (s *SQLiteStorage) countDraftEntriesTx(ctx context.Context, q queryable, tenantID, periodID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM journal_entries
		WHERE tenant_id = ? AND period_id = ? AND status = 'draft'
	`, tenantID, periodID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count draft entries: %w", err)
	}
	return count, nil
}

// GetMatchCandidates returns draft entries not yet reconciled against any
// bank transaction, the matcher's candidate pool.
func (s *SQLiteStorage) GetMatchCandidates(ctx context.Context, tenantID string) ([]model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.getMatchCandidatesTx(ctx, s.db, tenantID)
}

func (s *SQLiteStorage) getMatchCandidatesTx(ctx context.Context, q queryable, tenantID string) ([]model.JournalEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, entry_number, entry_date, period_id, memo, reference,
			status, total_debits, total_credits, reversed_by_entry_id, created_at
		FROM journal_entries
		WHERE tenant_id = ? AND status = 'draft'
			AND id NOT IN (
				SELECT matched_entry_id FROM bank_transactions
				WHERE matched_entry_id IS NOT NULL
			)
		ORDER BY entry_date, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*model.JournalEntry, error) {
	var entry model.JournalEntry
	var entryDate, status, debits, credits string
	var periodID, reversedBy sql.NullString
	err := row.Scan(&entry.ID, &entry.TenantID, &entry.EntryNumber, &entryDate,
		&periodID, &entry.Memo, &entry.Reference, &status, &debits, &credits,
		&reversedBy, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan journal entry: %w", err)
	}

	entry.Status = model.EntryStatus(status)
	entry.PeriodID = periodID.String
	entry.ReversedByEntryID = reversedBy.String
	if entry.EntryDate, err = time.Parse(dateLayout, entryDate); err != nil {
		return nil, fmt.Errorf("failed to parse entry date %q: %w", entryDate, err)
	}
	if entry.TotalDebits, err = parseAmount(debits); err != nil {
		return nil, err
	}
	if entry.TotalCredits, err = parseAmount(credits); err != nil {
		return nil, err
	}
	return &entry, nil
}

// nullable maps an empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
