// Package audit maintains the append-only, hash-chained ledger event log.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/service"
)

// IntegrityError reports the first broken link found while verifying a
// tenant's chain. A broken chain is never auto-repaired; it is a hard stop
// for manual audit.
type IntegrityError struct {
	TenantID string
	BrokenAt int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("event chain for tenant %s broken at sequence %d", e.TenantID, e.BrokenAt)
}

// Append computes the next link of the tenant's hash chain and persists it.
// Call it with a service.Transaction so the event commits atomically with
// the state change it records. The payload is serialized once and that
// canonical byte form is what the hash covers.
func Append(ctx context.Context, store service.Storage, tenantID, aggregateType, aggregateID, eventType string, payload any) (*model.LedgerEvent, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event payload: %w", err)
	}

	head, err := store.GetChainHead(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	previousHash := model.GenesisHash
	var chainSeq int64 = 1
	if head != nil {
		previousHash = head.CurrentHash
		chainSeq = head.ChainSeq + 1
	}

	aggregateSeq, err := store.GetAggregateSeq(ctx, tenantID, aggregateID)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC()
	event := &model.LedgerEvent{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ChainSeq:       chainSeq,
		AggregateType:  aggregateType,
		AggregateID:    aggregateID,
		SequenceNumber: aggregateSeq + 1,
		EventType:      eventType,
		Payload:        canonical,
		PreviousHash:   previousHash,
		CurrentHash:    model.ComputeEventHash(previousHash, canonical, timestamp),
		Timestamp:      timestamp,
	}

	if err := store.InsertEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Store provides read-side chain operations.
type Store struct {
	storage service.Storage
}

// NewStore creates an audit store over the given storage.
func NewStore(storage service.Storage) *Store {
	return &Store{storage: storage}
}

// VerifyChain recomputes every hash in a tenant's chain in order and returns
// an IntegrityError naming the first mismatched link. It is a read-only
// check, never a repair mechanism.
func (s *Store) VerifyChain(ctx context.Context, tenantID string) error {
	events, err := s.storage.ListEvents(ctx, tenantID)
	if err != nil {
		return err
	}

	previousHash := model.GenesisHash
	for i := range events {
		event := &events[i]
		if !event.Verify(previousHash) {
			return &IntegrityError{TenantID: tenantID, BrokenAt: event.ChainSeq}
		}
		previousHash = event.CurrentHash
	}
	return nil
}

// Reconstruct replays an aggregate's events up to asOf and returns the
// point-in-time state. Payloads are full snapshots, so the last event at or
// before asOf wins. Stored aggregates are never touched.
func (s *Store) Reconstruct(ctx context.Context, tenantID, aggregateID string, asOf time.Time) (map[string]any, error) {
	events, err := s.storage.ListAggregateEvents(ctx, tenantID, aggregateID)
	if err != nil {
		return nil, err
	}

	var state map[string]any
	for i := range events {
		event := &events[i]
		if event.Timestamp.After(asOf) {
			break
		}
		var snapshot map[string]any
		if err := json.Unmarshal(event.Payload, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode event %s payload: %w", event.ID, err)
		}
		state = snapshot
	}

	if state == nil {
		return nil, fmt.Errorf("no events for aggregate %s at or before %s",
			aggregateID, asOf.UTC().Format(time.RFC3339))
	}
	return state, nil
}
