package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hoaworks/fundledger/internal/model"
)

func insertTestEvent(t *testing.T, store *SQLiteStorage, chainSeq, aggregateSeq int64, aggregateID, previousHash string) *model.LedgerEvent {
	t.Helper()
	payload, _ := json.Marshal(map[string]int64{"seq": chainSeq})
	ts := time.Now().UTC()
	event := &model.LedgerEvent{
		TenantID:       testTenant,
		AggregateType:  model.AggregateJournalEntry,
		AggregateID:    aggregateID,
		EventType:      model.EventEntryPosted,
		Payload:        payload,
		Timestamp:      ts,
		ChainSeq:       chainSeq,
		SequenceNumber: aggregateSeq,
		PreviousHash:   previousHash,
		CurrentHash:    model.ComputeEventHash(previousHash, payload, ts),
	}
	if err := store.InsertEvent(context.Background(), event); err != nil {
		t.Fatalf("InsertEvent() error: %v", err)
	}
	return event
}

func TestEventStore(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Empty chain has no head and aggregate sequences start at zero.
	head, err := store.GetChainHead(ctx, testTenant)
	if err != nil {
		t.Fatalf("GetChainHead() on empty chain error: %v", err)
	}
	if head != nil {
		t.Fatalf("expected nil head on empty chain, got %+v", head)
	}
	seq, err := store.GetAggregateSeq(ctx, testTenant, "entry-1")
	if err != nil {
		t.Fatalf("GetAggregateSeq() error: %v", err)
	}
	if seq != 0 {
		t.Errorf("aggregate seq on empty store = %d, want 0", seq)
	}

	first := insertTestEvent(t, store, 1, 1, "entry-1", model.GenesisHash)
	second := insertTestEvent(t, store, 2, 1, "entry-2", first.CurrentHash)
	third := insertTestEvent(t, store, 3, 2, "entry-1", second.CurrentHash)

	head, err = store.GetChainHead(ctx, testTenant)
	if err != nil {
		t.Fatalf("GetChainHead() error: %v", err)
	}
	if head.ChainSeq != 3 || head.CurrentHash != third.CurrentHash {
		t.Errorf("head = seq %d hash %s, want seq 3 hash %s", head.ChainSeq, head.CurrentHash, third.CurrentHash)
	}

	seq, err = store.GetAggregateSeq(ctx, testTenant, "entry-1")
	if err != nil {
		t.Fatalf("GetAggregateSeq() error: %v", err)
	}
	if seq != 2 {
		t.Errorf("aggregate seq = %d, want 2", seq)
	}

	events, err := store.ListEvents(ctx, testTenant)
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, event := range events {
		if event.ChainSeq != int64(i+1) {
			t.Errorf("events out of chain order at index %d: seq %d", i, event.ChainSeq)
		}
	}

	entryEvents, err := store.ListAggregateEvents(ctx, testTenant, "entry-1")
	if err != nil {
		t.Fatalf("ListAggregateEvents() error: %v", err)
	}
	if len(entryEvents) != 2 {
		t.Fatalf("expected 2 events for entry-1, got %d", len(entryEvents))
	}
	if entryEvents[0].SequenceNumber != 1 || entryEvents[1].SequenceNumber != 2 {
		t.Error("aggregate events out of sequence order")
	}
}

func TestInsertEvent_ChainSeqCollision(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	first := insertTestEvent(t, store, 1, 1, "entry-1", model.GenesisHash)

	// A second event claiming the same chain position must be rejected;
	// the unique index is what makes concurrent appends safe.
	payload, _ := json.Marshal(map[string]string{"dup": "yes"})
	ts := time.Now().UTC()
	dup := &model.LedgerEvent{
		TenantID:       testTenant,
		AggregateType:  model.AggregateJournalEntry,
		AggregateID:    "entry-9",
		EventType:      model.EventEntryPosted,
		Payload:        payload,
		Timestamp:      ts,
		ChainSeq:       first.ChainSeq,
		SequenceNumber: 1,
		PreviousHash:   model.GenesisHash,
		CurrentHash:    model.ComputeEventHash(model.GenesisHash, payload, ts),
	}
	if err := store.InsertEvent(context.Background(), dup); err == nil {
		t.Error("duplicate chain_seq insert succeeded, want unique violation")
	}
}
