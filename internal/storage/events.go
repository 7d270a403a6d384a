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

// InsertEvent appends one fully-computed event row. Hash and sequence
// assignment belong to the audit store; this only persists. The unique
// constraint on (tenant_id, chain_seq) rejects concurrent appenders that
// raced to the same chain position.
func (s *SQLiteStorage) InsertEvent(ctx context.Context, event *model.LedgerEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("%w: event", ErrNilParameter)
	}
	return s.insertEventTx(ctx, s.db, event)
}

func (s *SQLiteStorage) insertEventTx(ctx context.Context, q queryable, event *model.LedgerEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_events (
			id, tenant_id, chain_seq, aggregate_type, aggregate_id, sequence_number,
			event_type, payload, previous_hash, current_hash, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.TenantID, event.ChainSeq, event.AggregateType, event.AggregateID,
		event.SequenceNumber, event.EventType, string(event.Payload),
		event.PreviousHash, event.CurrentHash,
		event.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert ledger event: %w", err)
	}
	return nil
}

// GetChainHead returns the most recent event in a tenant's chain, or nil for
// an empty chain.
func (s *SQLiteStorage) GetChainHead(ctx context.Context, tenantID string) (*model.LedgerEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.getChainHeadTx(ctx, s.db, tenantID)
}

func (s *SQLiteStorage) getChainHeadTx(ctx context.Context, q queryable, tenantID string) (*model.LedgerEvent, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, chain_seq, aggregate_type, aggregate_id, sequence_number,
			event_type, payload, previous_hash, current_hash, timestamp
		FROM ledger_events WHERE tenant_id = ?
		ORDER BY chain_seq DESC LIMIT 1
	`, tenantID)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return event, err
}

// GetAggregateSeq returns the highest sequence number recorded for an
// aggregate, zero if none.
func (s *SQLiteStorage) GetAggregateSeq(ctx context.Context, tenantID, aggregateID string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.getAggregateSeqTx(ctx, s.db, tenantID, aggregateID)
}

func (s *SQLiteStorage) getAggregateSeqTx(ctx context.Context, q queryable, tenantID, aggregateID string) (int64, error) {
	var seq sql.NullInt64
	err := q.QueryRowContext(ctx, `
		SELECT MAX(sequence_number) FROM ledger_events
		WHERE tenant_id = ? AND aggregate_id = ?
	`, tenantID, aggregateID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read aggregate sequence: %w", err)
	}
	return seq.Int64, nil
}

// ListEvents returns a tenant's full chain in chain order.
func (s *SQLiteStorage) ListEvents(ctx context.Context, tenantID string) ([]model.LedgerEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.listEventsTx(ctx, s.db, tenantID)
}

func (s *SQLiteStorage) listEventsTx(ctx context.Context, q queryable, tenantID string) ([]model.LedgerEvent, error) {
	return s.queryEvents(ctx, q, `
		SELECT id, tenant_id, chain_seq, aggregate_type, aggregate_id, sequence_number,
			event_type, payload, previous_hash, current_hash, timestamp
		FROM ledger_events WHERE tenant_id = ? ORDER BY chain_seq
	`, tenantID)
}

// ListAggregateEvents returns one aggregate's events in sequence order.
func (s *SQLiteStorage) ListAggregateEvents(ctx context.Context, tenantID, aggregateID string) ([]model.LedgerEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(aggregateID, "aggregateID"); err != nil {
		return nil, err
	}
	return s.listAggregateEventsTx(ctx, s.db, tenantID, aggregateID)
}

func (s *SQLiteStorage) listAggregateEventsTx(ctx context.Context, q queryable, tenantID, aggregateID string) ([]model.LedgerEvent, error) {
	return s.queryEvents(ctx, q, `
		SELECT id, tenant_id, chain_seq, aggregate_type, aggregate_id, sequence_number,
			event_type, payload, previous_hash, current_hash, timestamp
		FROM ledger_events WHERE tenant_id = ? AND aggregate_id = ?
		ORDER BY sequence_number
	`, tenantID, aggregateID)
}

func (s *SQLiteStorage) queryEvents(ctx context.Context, q queryable, query string, args ...any) ([]model.LedgerEvent, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.LedgerEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func scanEvent(row rowScanner) (*model.LedgerEvent, error) {
	var event model.LedgerEvent
	var payload, timestamp string
	err := row.Scan(&event.ID, &event.TenantID, &event.ChainSeq, &event.AggregateType,
		&event.AggregateID, &event.SequenceNumber, &event.EventType, &payload,
		&event.PreviousHash, &event.CurrentHash, &timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan ledger event: %w", err)
	}

	event.Payload = []byte(payload)
	if event.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
		return nil, fmt.Errorf("failed to parse event timestamp %q: %w", timestamp, err)
	}
	return &event, nil
}
