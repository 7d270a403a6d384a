package storage

import (
	"context"
	"fmt"

	"github.com/hoaworks/fundledger/internal/model"
)

// seedAccount is one row of the default chart of accounts.
type seedAccount struct {
	Number string
	Name   string
	Type   model.AccountType
}

// defaultChart returns the standard HOA chart for a fund type.
func defaultChart(fundType model.FundType) []seedAccount {
	switch fundType {
	case model.FundOperating:
		return []seedAccount{
			{Number: "1010", Name: "Operating Cash", Type: model.AccountAsset},
			{Number: "1200", Name: "Assessments Receivable", Type: model.AccountAsset},
			{Number: "2010", Name: "Accounts Payable", Type: model.AccountLiability},
			{Number: "2100", Name: "Prepaid Assessments", Type: model.AccountLiability},
			{Number: "3010", Name: "Operating Fund Balance", Type: model.AccountEquity},
			{Number: "4010", Name: "Assessment Revenue", Type: model.AccountRevenue},
			{Number: "4020", Name: "Late Fee Revenue", Type: model.AccountRevenue},
			{Number: "5010", Name: "Landscaping Expense", Type: model.AccountExpense},
			{Number: "5020", Name: "Utilities Expense", Type: model.AccountExpense},
			{Number: "5030", Name: "Management Fees", Type: model.AccountExpense},
			{Number: "5040", Name: "Insurance Expense", Type: model.AccountExpense},
		}
	case model.FundReserve:
		return []seedAccount{
			{Number: "1010", Name: "Reserve Cash", Type: model.AccountAsset},
			{Number: "3010", Name: "Reserve Fund Balance", Type: model.AccountEquity},
			{Number: "4010", Name: "Reserve Contributions", Type: model.AccountRevenue},
			{Number: "5010", Name: "Reserve Expenditures", Type: model.AccountExpense},
		}
	case model.FundSpecialAssessment:
		return []seedAccount{
			{Number: "1010", Name: "Special Assessment Cash", Type: model.AccountAsset},
			{Number: "1200", Name: "Special Assessments Receivable", Type: model.AccountAsset},
			{Number: "3010", Name: "Special Assessment Fund Balance", Type: model.AccountEquity},
			{Number: "4010", Name: "Special Assessment Revenue", Type: model.AccountRevenue},
			{Number: "5010", Name: "Project Expenditures", Type: model.AccountExpense},
		}
	default:
		return nil
	}
}

// SeedDefaults creates the three standard funds and their chart of accounts
// for a new tenant. Safe to call once per tenant at provisioning time.
func (s *SQLiteStorage) SeedDefaults(ctx context.Context, tenantID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	funds := []model.Fund{
		{TenantID: tenantID, Name: "Operating Fund", Type: model.FundOperating},
		{TenantID: tenantID, Name: "Reserve Fund", Type: model.FundReserve},
		{TenantID: tenantID, Name: "Special Assessment Fund", Type: model.FundSpecialAssessment},
	}

	for i := range funds {
		fund := &funds[i]
		if err := s.createFundTx(ctx, tx, fund); err != nil {
			return err
		}
		for _, seed := range defaultChart(fund.Type) {
			account := &model.Account{
				TenantID: tenantID,
				FundID:   fund.ID,
				Number:   seed.Number,
				Name:     seed.Name,
				Type:     seed.Type,
			}
			if err := s.createAccountTx(ctx, tx, account); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
