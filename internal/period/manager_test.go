package period

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoaworks/fundledger/internal/ledger"
	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/storage"
)

const testTenant = "hoa-sunset-ridge"

type managerFixture struct {
	store   *storage.SQLiteStorage
	manager *Manager
	poster  *ledger.Poster
	cash    *model.Account
	dues    *model.Account
	period  *model.AccountingPeriod
}

func newManagerFixture(t *testing.T) *managerFixture {
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

	return &managerFixture{
		store:   store,
		manager: NewManager(store),
		poster:  ledger.NewPoster(store),
		cash:    cash,
		dues:    dues,
		period:  period,
	}
}

func (f *managerFixture) postEntry(t *testing.T, amount string) *model.JournalEntry {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	entry, err := f.poster.Post(context.Background(), model.DraftEntry{
		TenantID:  testTenant,
		EntryDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Memo:      "March assessments",
		Lines: []model.DraftLine{
			{AccountID: f.cash.ID, DebitAmount: amt},
			{AccountID: f.dues.ID, CreditAmount: amt},
		},
	})
	require.NoError(t, err)
	return entry
}

func TestClose(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	f.postEntry(t, "500.00")

	closed, err := f.manager.Close(ctx, testTenant, f.period.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PeriodClosed, closed.Status)
	assert.Equal(t, int64(3), closed.Version, "both transitions bump the version")

	got, err := f.store.GetPeriod(ctx, testTenant, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PeriodClosed, got.Status)

	events, err := f.store.ListAggregateEvents(ctx, testTenant, f.period.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventPeriodClosed, events[0].EventType)
}

func TestClose_DraftsBlock(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	amt := decimal.RequireFromString("75.00")
	_, err := f.poster.SaveDraft(ctx, model.DraftEntry{
		TenantID:  testTenant,
		EntryDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Lines: []model.DraftLine{
			{AccountID: f.cash.ID, DebitAmount: amt},
			{AccountID: f.dues.ID, CreditAmount: amt},
		},
	})
	require.NoError(t, err)

	_, err = f.manager.Close(ctx, testTenant, f.period.ID, 1)
	var cve *CloseValidationError
	require.ErrorAs(t, err, &cve)
	assert.Contains(t, cve.Reason, "draft")

	// The failed attempt rolls back entirely.
	got, err := f.store.GetPeriod(ctx, testTenant, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PeriodOpen, got.Status)
	assert.Equal(t, int64(1), got.Version)

	events, err := f.store.ListAggregateEvents(ctx, testTenant, f.period.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClose_OutOfBalance(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// A posted entry that bypassed the poster. Close must refuse rather than
	// seal a broken period.
	number, err := f.store.NextEntryNumber(ctx, testTenant, 2026)
	require.NoError(t, err)
	err = f.store.CreateEntry(ctx, &model.JournalEntry{
		TenantID:    testTenant,
		EntryNumber: number,
		EntryDate:   time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		PeriodID:    f.period.ID,
		Status:      model.EntryPosted,
		TotalDebits: decimal.RequireFromString("100.00"),
		Lines: []model.JournalEntryLine{
			{AccountID: f.cash.ID, FundID: f.cash.FundID, DebitAmount: decimal.RequireFromString("100.00")},
		},
	})
	require.NoError(t, err)

	_, err = f.manager.Close(ctx, testTenant, f.period.ID, 1)
	var cve *CloseValidationError
	require.ErrorAs(t, err, &cve)
	assert.Contains(t, cve.Reason, "out of balance")
}

func TestClose_StaleVersion(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.Close(ctx, testTenant, f.period.ID, 99)
	require.ErrorIs(t, err, storage.ErrStaleVersion)

	got, err := f.store.GetPeriod(ctx, testTenant, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PeriodOpen, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestLock(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	closed, err := f.manager.Close(ctx, testTenant, f.period.ID, 1)
	require.NoError(t, err)

	locked, err := f.manager.Lock(ctx, testTenant, f.period.ID, closed.Version)
	require.NoError(t, err)
	assert.Equal(t, model.PeriodLocked, locked.Status)
	assert.Equal(t, closed.Version+1, locked.Version)

	events, err := f.store.ListAggregateEvents(ctx, testTenant, f.period.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventPeriodLocked, events[1].EventType)
	assert.Equal(t, int64(2), events[1].SequenceNumber)
}

func TestLock_RequiresClosed(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Lock(context.Background(), testTenant, f.period.ID, 1)
	require.ErrorIs(t, err, storage.ErrStaleVersion)
}

func TestGenerate(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	periods, err := f.manager.Generate(ctx, "hoa-willow-creek", 2026)
	require.NoError(t, err)
	require.Len(t, periods, 12)

	assert.Equal(t, "2026-01", periods[0].Name)
	assert.Equal(t, "2026-12", periods[11].Name)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), periods[1].EndDate,
		"2026 is not a leap year")
	for _, p := range periods {
		assert.Equal(t, model.PeriodOpen, p.Status)
		assert.Equal(t, int64(1), p.Version)
	}

	got, err := f.store.GetPeriodFor(ctx, "hoa-willow-creek",
		time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-07", got.Name)
}
