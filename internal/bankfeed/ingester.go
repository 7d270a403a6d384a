package bankfeed

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hoaworks/fundledger/internal/service"
)

// Ingester parses a feed file and stores its transactions, skipping rows
// already ingested under the same dedupe hash.
type Ingester struct {
	parser  *Parser
	storage service.Storage
}

// NewIngester creates an ingester backed by the given storage.
func NewIngester(store service.Storage) *Ingester {
	return &Ingester{parser: NewParser(), storage: store}
}

// IngestResult summarizes one feed ingestion.
type IngestResult struct {
	Parsed   int
	Imported int
	Skipped  int
}

// Ingest parses reader and stores the transactions for tenantID. Re-running
// the same file is safe: duplicate hashes are skipped, not re-inserted.
func (i *Ingester) Ingest(ctx context.Context, tenantID string, reader io.Reader) (*IngestResult, error) {
	transactions, err := i.parser.ParseFile(ctx, tenantID, reader)
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return &IngestResult{}, nil
	}

	imported, err := i.storage.SaveBankTransactions(ctx, transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to save bank transactions: %w", err)
	}

	result := &IngestResult{
		Parsed:   len(transactions),
		Imported: imported,
		Skipped:  len(transactions) - imported,
	}
	slog.Info("Ingested bank feed",
		"tenant_id", tenantID,
		"parsed", result.Parsed,
		"imported", result.Imported,
		"skipped", result.Skipped)
	return result, nil
}
