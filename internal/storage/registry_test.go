package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/hoaworks/fundledger/internal/model"
)

func TestFundRegistry(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	fund := createTestFund(t, store)
	if fund.ID == "" {
		t.Fatal("fund ID was not assigned")
	}
	if !fund.Active {
		t.Error("new fund should be active")
	}

	got, err := store.GetFund(ctx, testTenant, fund.ID)
	if err != nil {
		t.Fatalf("GetFund() error: %v", err)
	}
	if got.Name != "Operating Fund" || got.Type != model.FundOperating {
		t.Errorf("GetFund() = %+v, want name and type preserved", got)
	}

	// Tenant isolation: the same fund is invisible to another tenant.
	if _, err := store.GetFund(ctx, "other-hoa", fund.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant GetFund() error = %v, want ErrNotFound", err)
	}

	if err := store.DeactivateFund(ctx, testTenant, fund.ID); err != nil {
		t.Fatalf("DeactivateFund() error: %v", err)
	}
	got, err = store.GetFund(ctx, testTenant, fund.ID)
	if err != nil {
		t.Fatalf("GetFund() after deactivate error: %v", err)
	}
	if got.Active {
		t.Error("fund still active after deactivation")
	}
}

func TestCreateAccount(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	fund := createTestFund(t, store)

	tests := []struct {
		name    string
		account model.Account
		wantErr bool
	}{
		{
			name: "asset account derives debit normal balance",
			account: model.Account{
				TenantID: testTenant, FundID: fund.ID,
				Number: "1010", Name: "Operating Cash", Type: model.AccountAsset,
			},
		},
		{
			name: "revenue account derives credit normal balance",
			account: model.Account{
				TenantID: testTenant, FundID: fund.ID,
				Number: "4010", Name: "Assessment Revenue", Type: model.AccountRevenue,
			},
		},
		{
			name: "contradictory normal balance rejected",
			account: model.Account{
				TenantID: testTenant, FundID: fund.ID,
				Number: "1020", Name: "Petty Cash", Type: model.AccountAsset,
				NormalBalance: model.NormalCredit,
			},
			wantErr: true,
		},
		{
			name: "duplicate number within fund rejected",
			account: model.Account{
				TenantID: testTenant, FundID: fund.ID,
				Number: "1010", Name: "Cash Again", Type: model.AccountAsset,
			},
			wantErr: true,
		},
		{
			name: "unknown type rejected",
			account: model.Account{
				TenantID: testTenant, FundID: fund.ID,
				Number: "9999", Name: "Mystery", Type: model.AccountType("suspense"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := tt.account
			err := store.CreateAccount(ctx, &account)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateAccount() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			got, err := store.GetAccount(ctx, testTenant, account.ID)
			if err != nil {
				t.Fatalf("GetAccount() error: %v", err)
			}
			wantNormal, _ := model.NormalBalanceFor(tt.account.Type)
			if got.NormalBalance != wantNormal {
				t.Errorf("normal balance = %q, want %q", got.NormalBalance, wantNormal)
			}
		})
	}
}

func TestSeedDefaults(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SeedDefaults(ctx, testTenant); err != nil {
		t.Fatalf("SeedDefaults() error: %v", err)
	}

	funds, err := store.ListFunds(ctx, testTenant)
	if err != nil {
		t.Fatalf("ListFunds() error: %v", err)
	}
	if len(funds) != 3 {
		t.Fatalf("expected 3 seeded funds, got %d", len(funds))
	}

	types := make(map[model.FundType]bool)
	for _, fund := range funds {
		types[fund.Type] = true
	}
	for _, want := range []model.FundType{model.FundOperating, model.FundReserve, model.FundSpecialAssessment} {
		if !types[want] {
			t.Errorf("missing seeded fund type %q", want)
		}
	}

	accounts, err := store.ListAccounts(ctx, testTenant)
	if err != nil {
		t.Fatalf("ListAccounts() error: %v", err)
	}
	if len(accounts) != 20 {
		t.Errorf("expected 20 seeded accounts, got %d", len(accounts))
	}
}
