package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hoaworks/fundledger/internal/model"
)

func TestGetPeriodFor(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	march := createTestPeriod(t, store, "2026-03", 2026, time.March)
	createTestPeriod(t, store, "2026-04", 2026, time.April)

	got, err := store.GetPeriodFor(ctx, testTenant, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetPeriodFor() error: %v", err)
	}
	if got.ID != march.ID {
		t.Errorf("period = %s, want march %s", got.ID, march.ID)
	}

	// Boundary days belong to the period.
	got, err = store.GetPeriodFor(ctx, testTenant, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetPeriodFor(last day) error: %v", err)
	}
	if got.ID != march.ID {
		t.Errorf("last day resolved to %s, want march", got.ID)
	}

	if _, err := store.GetPeriodFor(ctx, testTenant, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrNotFound) {
		t.Errorf("uncovered date error = %v, want ErrNotFound", err)
	}
}

func TestTransitionPeriod(t *testing.T) {
	tests := []struct {
		name            string
		from            model.PeriodStatus
		to              model.PeriodStatus
		expectedVersion int64
		wantErr         error
	}{
		{
			name: "open to closing succeeds",
			from: model.PeriodOpen, to: model.PeriodClosing,
			expectedVersion: 1,
		},
		{
			name: "stale version loses the race",
			from: model.PeriodOpen, to: model.PeriodClosing,
			expectedVersion: 7,
			wantErr:         ErrStaleVersion,
		},
		{
			name: "wrong current status loses",
			from: model.PeriodClosing, to: model.PeriodClosed,
			expectedVersion: 1,
			wantErr:         ErrStaleVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()

			period := createTestPeriod(t, store, "2026-03", 2026, time.March)

			got, err := store.TransitionPeriod(ctx, testTenant, period.ID, tt.from, tt.to, tt.expectedVersion)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("TransitionPeriod() error = %v, want %v", err, tt.wantErr)
				}
				// The failed transition left the row untouched.
				current, err := store.GetPeriod(ctx, testTenant, period.ID)
				if err != nil {
					t.Fatalf("GetPeriod() error: %v", err)
				}
				if current.Status != model.PeriodOpen || current.Version != 1 {
					t.Errorf("period mutated after failed CAS: %+v", current)
				}
				return
			}
			if err != nil {
				t.Fatalf("TransitionPeriod() error: %v", err)
			}
			if got.Status != tt.to {
				t.Errorf("status = %q, want %q", got.Status, tt.to)
			}
			if got.Version != tt.expectedVersion+1 {
				t.Errorf("version = %d, want %d", got.Version, tt.expectedVersion+1)
			}
		})
	}
}

func TestTransitionPeriod_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.TransitionPeriod(context.Background(), testTenant, "no-such-period",
		model.PeriodOpen, model.PeriodClosing, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("TransitionPeriod() error = %v, want ErrNotFound", err)
	}
}
