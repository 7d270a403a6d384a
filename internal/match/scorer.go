package match

import (
	"context"

	"github.com/hoaworks/fundledger/internal/model"
)

// Scorer is the pluggable hook for model-based matching. A scorer returns a
// 0–1 confidence that the bank transaction and candidate entry reconcile;
// the matcher only surfaces scores above its acceptance threshold.
type Scorer interface {
	Score(ctx context.Context, txn model.BankTransaction, candidate model.JournalEntry) (float64, error)
}
