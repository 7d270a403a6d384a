package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/storage"
)

const testTenant = "hoa-sunset-ridge"

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

type testPayload struct {
	EntryID string `json:"entry_id"`
	Status  string `json:"status"`
}

func TestAppend(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first, err := Append(ctx, store, testTenant,
		model.AggregateJournalEntry, "entry-1", model.EventEntryPosted,
		testPayload{EntryID: "entry-1", Status: "posted"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ChainSeq)
	assert.Equal(t, int64(1), first.SequenceNumber)
	assert.Equal(t, model.GenesisHash, first.PreviousHash)

	second, err := Append(ctx, store, testTenant,
		model.AggregateJournalEntry, "entry-2", model.EventEntryPosted,
		testPayload{EntryID: "entry-2", Status: "posted"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ChainSeq)
	assert.Equal(t, int64(1), second.SequenceNumber, "aggregate sequences are independent")
	assert.Equal(t, first.CurrentHash, second.PreviousHash)

	third, err := Append(ctx, store, testTenant,
		model.AggregateJournalEntry, "entry-1", model.EventEntryReversed,
		testPayload{EntryID: "entry-1", Status: "reversed"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.ChainSeq)
	assert.Equal(t, int64(2), third.SequenceNumber)
	assert.Equal(t, second.CurrentHash, third.PreviousHash)

	var decoded testPayload
	require.NoError(t, json.Unmarshal(third.Payload, &decoded))
	assert.Equal(t, "reversed", decoded.Status)
}

func TestAppend_TenantChainsAreIndependent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := Append(ctx, store, testTenant,
		model.AggregateJournalEntry, "entry-1", model.EventEntryPosted,
		testPayload{EntryID: "entry-1"})
	require.NoError(t, err)

	other, err := Append(ctx, store, "hoa-willow-creek",
		model.AggregateJournalEntry, "entry-1", model.EventEntryPosted,
		testPayload{EntryID: "entry-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.ChainSeq)
	assert.Equal(t, model.GenesisHash, other.PreviousHash)
}

func TestVerifyChain(t *testing.T) {
	store := newTestStorage(t)
	auditStore := NewStore(store)
	ctx := context.Background()

	require.NoError(t, auditStore.VerifyChain(ctx, testTenant), "empty chain is valid")

	for i := 1; i <= 3; i++ {
		_, err := Append(ctx, store, testTenant,
			model.AggregateJournalEntry, fmt.Sprintf("entry-%d", i), model.EventEntryPosted,
			testPayload{EntryID: fmt.Sprintf("entry-%d", i), Status: "posted"})
		require.NoError(t, err)
	}
	require.NoError(t, auditStore.VerifyChain(ctx, testTenant))
}

func TestVerifyChain_DetectsForgedLink(t *testing.T) {
	store := newTestStorage(t)
	auditStore := NewStore(store)
	ctx := context.Background()

	head, err := Append(ctx, store, testTenant,
		model.AggregateJournalEntry, "entry-1", model.EventEntryPosted,
		testPayload{EntryID: "entry-1", Status: "posted"})
	require.NoError(t, err)

	// A forged event claims the right predecessor but its hash does not cover
	// its own payload.
	forged := &model.LedgerEvent{
		TenantID:       testTenant,
		ChainSeq:       head.ChainSeq + 1,
		AggregateType:  model.AggregateJournalEntry,
		AggregateID:    "entry-2",
		SequenceNumber: 1,
		EventType:      model.EventEntryPosted,
		Payload:        json.RawMessage(`{"entry_id":"entry-2","status":"posted"}`),
		PreviousHash:   head.CurrentHash,
		CurrentHash:    "deadbeef",
		Timestamp:      time.Now().UTC(),
	}
	require.NoError(t, store.InsertEvent(ctx, forged))

	err = auditStore.VerifyChain(ctx, testTenant)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, testTenant, integrity.TenantID)
	assert.Equal(t, forged.ChainSeq, integrity.BrokenAt)
}

func TestReconstruct(t *testing.T) {
	store := newTestStorage(t)
	auditStore := NewStore(store)
	ctx := context.Background()

	// Insert snapshots with controlled timestamps a day apart so asOf can
	// land between them.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	previousHash := model.GenesisHash
	for i, status := range []string{"draft", "posted", "reversed"} {
		payload := []byte(fmt.Sprintf(`{"entry_id":"entry-1","status":%q}`, status))
		ts := base.AddDate(0, 0, i)
		event := &model.LedgerEvent{
			TenantID:       testTenant,
			ChainSeq:       int64(i + 1),
			AggregateType:  model.AggregateJournalEntry,
			AggregateID:    "entry-1",
			SequenceNumber: int64(i + 1),
			EventType:      model.EventEntryPosted,
			Payload:        payload,
			PreviousHash:   previousHash,
			CurrentHash:    model.ComputeEventHash(previousHash, payload, ts),
			Timestamp:      ts,
		}
		require.NoError(t, store.InsertEvent(ctx, event))
		previousHash = event.CurrentHash
	}

	state, err := auditStore.Reconstruct(ctx, testTenant, "entry-1", base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "posted", state["status"], "last snapshot at or before asOf wins")

	state, err = auditStore.Reconstruct(ctx, testTenant, "entry-1", base.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, "reversed", state["status"])

	_, err = auditStore.Reconstruct(ctx, testTenant, "entry-1", base.Add(-time.Hour))
	require.Error(t, err, "no state exists before the first event")
}
