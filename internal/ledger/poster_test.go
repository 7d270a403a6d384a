package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/storage"
)

const testTenant = "hoa-sunset-ridge"

type posterFixture struct {
	store  *storage.SQLiteStorage
	poster *Poster
	fund   *model.Fund
	cash   *model.Account
	dues   *model.Account
	period *model.AccountingPeriod
}

func newPosterFixture(t *testing.T) *posterFixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	fund := &model.Fund{TenantID: testTenant, Name: "Operating Fund", Type: model.FundOperating}
	require.NoError(t, store.CreateFund(ctx, fund))

	cash := &model.Account{
		TenantID: testTenant, FundID: fund.ID,
		Number: "1010", Name: "Operating Checking", Type: model.AccountAsset,
	}
	require.NoError(t, store.CreateAccount(ctx, cash))

	dues := &model.Account{
		TenantID: testTenant, FundID: fund.ID,
		Number: "4010", Name: "Assessment Income", Type: model.AccountRevenue,
	}
	require.NoError(t, store.CreateAccount(ctx, dues))

	period := &model.AccountingPeriod{
		TenantID:  testTenant,
		Name:      "2026-03",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreatePeriod(ctx, period))

	return &posterFixture{
		store:  store,
		poster: NewPoster(store),
		fund:   fund,
		cash:   cash,
		dues:   dues,
		period: period,
	}
}

func (f *posterFixture) duesDraft(amount string) model.DraftEntry {
	amt := decimal.RequireFromString(amount)
	return model.DraftEntry{
		TenantID:  testTenant,
		EntryDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Memo:      "March assessments",
		Reference: "CHECK #1042",
		Lines: []model.DraftLine{
			{AccountID: f.cash.ID, DebitAmount: amt},
			{AccountID: f.dues.ID, CreditAmount: amt},
		},
	}
}

func TestPost(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()

	entry, err := f.poster.Post(ctx, f.duesDraft("500.00"))
	require.NoError(t, err)

	assert.Equal(t, "JE-2026-00001", entry.EntryNumber)
	assert.Equal(t, model.EntryPosted, entry.Status)
	assert.Equal(t, f.period.ID, entry.PeriodID)
	assert.True(t, entry.TotalDebits.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, entry.TotalCredits.Equal(entry.TotalDebits))
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, f.fund.ID, entry.Lines[0].FundID, "fund should be denormalized from the account")

	// Both sides of the projection move toward their normal balance.
	cashBal, err := f.store.GetAccountBalance(ctx, testTenant, f.cash.ID, f.period.ID)
	require.NoError(t, err)
	assert.True(t, cashBal.SignedBalance.Equal(decimal.RequireFromString("500.00")))

	duesBal, err := f.store.GetAccountBalance(ctx, testTenant, f.dues.ID, f.period.ID)
	require.NoError(t, err)
	assert.True(t, duesBal.SignedBalance.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, duesBal.DebitTotal.IsZero())

	events, err := f.store.ListAggregateEvents(ctx, testTenant, entry.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventEntryPosted, events[0].EventType)
	assert.Equal(t, model.GenesisHash, events[0].PreviousHash)
}

func TestPost_ClosedPeriodHasNoSideEffects(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()

	_, err := f.store.TransitionPeriod(ctx, testTenant, f.period.ID,
		model.PeriodOpen, model.PeriodClosing, f.period.Version)
	require.NoError(t, err)

	_, err = f.poster.Post(ctx, f.duesDraft("500.00"))
	require.ErrorIs(t, err, ErrPeriodClosed)

	entries, err := f.store.ListEntries(ctx, testTenant, "")
	require.NoError(t, err)
	assert.Empty(t, entries)

	events, err := f.store.ListEvents(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, events)

	tb, err := f.store.GetTrialBalance(ctx, testTenant, f.period.ID)
	require.NoError(t, err)
	assert.Empty(t, tb.Rows)
}

func TestPost_Validation(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()
	march := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		draft model.DraftEntry
	}{
		{
			name: "missing tenant",
			draft: model.DraftEntry{
				EntryDate: march,
				Lines: []model.DraftLine{
					{AccountID: f.cash.ID, DebitAmount: decimal.RequireFromString("10.00")},
					{AccountID: f.dues.ID, CreditAmount: decimal.RequireFromString("10.00")},
				},
			},
		},
		{
			name: "unbalanced",
			draft: model.DraftEntry{
				TenantID:  testTenant,
				EntryDate: march,
				Lines: []model.DraftLine{
					{AccountID: f.cash.ID, DebitAmount: decimal.RequireFromString("10.00")},
					{AccountID: f.dues.ID, CreditAmount: decimal.RequireFromString("9.99")},
				},
			},
		},
		{
			name: "unknown account",
			draft: model.DraftEntry{
				TenantID:  testTenant,
				EntryDate: march,
				Lines: []model.DraftLine{
					{AccountID: "nonexistent", DebitAmount: decimal.RequireFromString("10.00")},
					{AccountID: f.dues.ID, CreditAmount: decimal.RequireFromString("10.00")},
				},
			},
		},
		{
			name: "no period covers date",
			draft: model.DraftEntry{
				TenantID:  testTenant,
				EntryDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
				Lines: []model.DraftLine{
					{AccountID: f.cash.ID, DebitAmount: decimal.RequireFromString("10.00")},
					{AccountID: f.dues.ID, CreditAmount: decimal.RequireFromString("10.00")},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.poster.Post(ctx, tt.draft)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}

	entries, err := f.store.ListEntries(ctx, testTenant, "")
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected drafts should leave no trace")
}

func TestSaveDraft(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()

	entry, err := f.poster.SaveDraft(ctx, f.duesDraft("250.00"))
	require.NoError(t, err)

	assert.Equal(t, model.EntryDraft, entry.Status)
	assert.Equal(t, "JE-2026-00001", entry.EntryNumber)
	assert.Equal(t, f.period.ID, entry.PeriodID)

	// Drafts are visible as match candidates but have no balance or audit
	// effect until posted.
	bal, err := f.store.GetAccountBalance(ctx, testTenant, f.cash.ID, f.period.ID)
	require.NoError(t, err)
	assert.True(t, bal.SignedBalance.IsZero())

	events, err := f.store.ListEvents(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, events)

	candidates, err := f.store.GetMatchCandidates(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, entry.ID, candidates[0].ID)
}

func TestPostDraft(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()

	draft, err := f.poster.SaveDraft(ctx, f.duesDraft("250.00"))
	require.NoError(t, err)

	posted, err := f.poster.PostDraft(ctx, testTenant, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryPosted, posted.Status)
	assert.Equal(t, draft.EntryNumber, posted.EntryNumber)

	bal, err := f.store.GetAccountBalance(ctx, testTenant, f.cash.ID, f.period.ID)
	require.NoError(t, err)
	assert.True(t, bal.SignedBalance.Equal(decimal.RequireFromString("250.00")))

	events, err := f.store.ListAggregateEvents(ctx, testTenant, draft.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventEntryPosted, events[0].EventType)

	// Posting twice is rejected and applies nothing.
	_, err = f.poster.PostDraft(ctx, testTenant, draft.ID)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	bal, err = f.store.GetAccountBalance(ctx, testTenant, f.cash.ID, f.period.ID)
	require.NoError(t, err)
	assert.True(t, bal.SignedBalance.Equal(decimal.RequireFromString("250.00")))
}

func TestPostDraft_PeriodAdvanced(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()

	draft, err := f.poster.SaveDraft(ctx, f.duesDraft("250.00"))
	require.NoError(t, err)

	_, err = f.store.TransitionPeriod(ctx, testTenant, f.period.ID,
		model.PeriodOpen, model.PeriodClosing, f.period.Version)
	require.NoError(t, err)

	_, err = f.poster.PostDraft(ctx, testTenant, draft.ID)
	require.ErrorIs(t, err, ErrPeriodClosed)
}

func TestReverse(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()

	original, err := f.poster.Post(ctx, f.duesDraft("500.00"))
	require.NoError(t, err)

	reversal, err := f.poster.Reverse(ctx, testTenant, original.ID,
		"duplicate deposit", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, model.EntryPosted, reversal.Status)
	assert.Contains(t, reversal.Memo, "Reversal of "+original.EntryNumber)
	assert.Contains(t, reversal.Memo, "duplicate deposit")
	require.Len(t, reversal.Lines, 2)
	assert.True(t, reversal.Lines[0].CreditAmount.Equal(decimal.RequireFromString("500.00")),
		"debit side of the original must come back as a credit")

	// The projection nets to zero while gross activity is preserved.
	bal, err := f.store.GetAccountBalance(ctx, testTenant, f.cash.ID, f.period.ID)
	require.NoError(t, err)
	assert.True(t, bal.SignedBalance.IsZero())
	assert.True(t, bal.DebitTotal.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, bal.CreditTotal.Equal(decimal.RequireFromString("500.00")))

	got, err := f.store.GetEntry(ctx, testTenant, original.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryReversed, got.Status)
	assert.Equal(t, reversal.ID, got.ReversedByEntryID)

	events, err := f.store.ListAggregateEvents(ctx, testTenant, original.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventEntryPosted, events[0].EventType)
	assert.Equal(t, model.EventEntryReversed, events[1].EventType)
	assert.Equal(t, int64(2), events[1].SequenceNumber)

	// A reversed entry cannot be reversed again.
	_, err = f.poster.Reverse(ctx, testTenant, original.ID,
		"again", time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestReverse_DraftRejected(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()

	draft, err := f.poster.SaveDraft(ctx, f.duesDraft("100.00"))
	require.NoError(t, err)

	_, err = f.poster.Reverse(ctx, testTenant, draft.ID,
		"not posted", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestVoid(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()

	draft, err := f.poster.SaveDraft(ctx, f.duesDraft("100.00"))
	require.NoError(t, err)
	require.NoError(t, f.poster.Void(ctx, testTenant, draft.ID))

	_, err = f.store.GetEntry(ctx, testTenant, draft.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	posted, err := f.poster.Post(ctx, f.duesDraft("100.00"))
	require.NoError(t, err)
	err = f.poster.Void(ctx, testTenant, posted.ID)
	require.ErrorIs(t, err, storage.ErrEntryNotDraft)
}

func TestTrialBalance(t *testing.T) {
	f := newPosterFixture(t)
	ctx := context.Background()

	_, err := f.poster.Post(ctx, f.duesDraft("500.00"))
	require.NoError(t, err)
	_, err = f.poster.Post(ctx, f.duesDraft("125.50"))
	require.NoError(t, err)

	tb, err := f.poster.TrialBalance(ctx, testTenant, f.period.ID)
	require.NoError(t, err)
	require.Len(t, tb.Rows, 2)
	assert.True(t, tb.TotalDebits.Equal(decimal.RequireFromString("625.50")))
	assert.True(t, tb.Difference().IsZero())
}
