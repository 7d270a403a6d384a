package model

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// GenesisHash anchors the first event in every tenant chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Aggregate types recorded in the audit log.
const (
	AggregateJournalEntry    = "journal_entry"
	AggregatePeriod          = "accounting_period"
	AggregateBankTransaction = "bank_transaction"
)

// Event types recorded in the audit log.
const (
	EventEntryPosted    = "entry.posted"
	EventEntryReversed  = "entry.reversed"
	EventPeriodClosing  = "period.closing"
	EventPeriodClosed   = "period.closed"
	EventPeriodLocked   = "period.locked"
	EventMatchAccepted  = "match.accepted"
	EventMatchUnmatched = "match.unmatched"
)

// LedgerEvent is one link in a tenant's append-only, hash-chained audit log.
// ChainSeq orders the tenant chain; SequenceNumber orders events within a
// single aggregate. Events are never updated or deleted.
type LedgerEvent struct {
	Timestamp      time.Time
	ID             string
	TenantID       string
	AggregateType  string
	AggregateID    string
	EventType      string
	PreviousHash   string
	CurrentHash    string
	Payload        json.RawMessage
	ChainSeq       int64
	SequenceNumber int64
}

// ComputeEventHash derives the chain hash for an event from its predecessor's
// hash, the canonical payload bytes, and the event timestamp. Timestamps are
// fixed to UTC RFC 3339 with nanoseconds so recomputation is byte-stable.
func ComputeEventHash(previousHash string, payload []byte, timestamp time.Time) string {
	data := fmt.Sprintf("%s\x1f%s\x1f%s",
		previousHash,
		payload,
		timestamp.UTC().Format(time.RFC3339Nano))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Verify recomputes the event's hash against the given predecessor hash.
func (e *LedgerEvent) Verify(previousHash string) bool {
	if e.PreviousHash != previousHash {
		return false
	}
	return e.CurrentHash == ComputeEventHash(previousHash, e.Payload, e.Timestamp)
}
