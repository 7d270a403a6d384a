package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hoaworks/fundledger/internal/model"
	"github.com/hoaworks/fundledger/internal/service"
)

// SaveBankTransactions inserts ingested bank activity, skipping rows whose
// dedupe hash has been seen before. Returns the number actually inserted.
func (s *SQLiteStorage) SaveBankTransactions(ctx context.Context, transactions []model.BankTransaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(transactions) == 0 {
		return 0, fmt.Errorf("%w: transactions", ErrEmptySlice)
	}
	for i := range transactions {
		if err := transactions[i].Validate(); err != nil {
			return 0, fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := s.saveBankTransactionsTx(ctx, tx, transactions)
	if err != nil {
		return 0, err
	}
	return inserted, tx.Commit()
}

func (s *SQLiteStorage) saveBankTransactionsTx(ctx context.Context, q queryable, transactions []model.BankTransaction) (int, error) {
	inserted := 0
	for i := range transactions {
		txn := &transactions[i]
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		if txn.Status == "" {
			txn.Status = model.ReconUnmatched
		}
		txn.CreatedAt = time.Now().UTC()

		result, err := q.ExecContext(ctx, `
			INSERT OR IGNORE INTO bank_transactions (
				id, tenant_id, bank_account_id, transaction_date, amount,
				description, hash, status, matched_entry_id, notes, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, txn.ID, txn.TenantID, txn.BankAccountID,
			txn.TransactionDate.Format(dateLayout), txn.Amount.StringFixed(2),
			txn.Description, txn.Hash, string(txn.Status),
			nullable(txn.MatchedEntryID), txn.Notes, txn.CreatedAt)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert bank transaction: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to check rows affected: %w", err)
		}
		inserted += int(affected)
	}
	return inserted, nil
}

// GetBankTransaction fetches a bank transaction by tenant and id.
func (s *SQLiteStorage) GetBankTransaction(ctx context.Context, tenantID, id string) (*model.BankTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getBankTransactionTx(ctx, s.db, tenantID, id)
}

func (s *SQLiteStorage) getBankTransactionTx(ctx context.Context, q queryable, tenantID, id string) (*model.BankTransaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, bank_account_id, transaction_date, amount,
			description, hash, status, matched_entry_id, notes, created_at
		FROM bank_transactions WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	txn, err := scanBankTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: bank transaction %s", ErrNotFound, id)
	}
	return txn, err
}

// ListBankTransactions returns a tenant's bank transactions, optionally
// filtered by status and bank account, in date order.
func (s *SQLiteStorage) ListBankTransactions(ctx context.Context, tenantID string, filter service.BankTransactionFilter) ([]model.BankTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.listBankTransactionsTx(ctx, s.db, tenantID, filter)
}

func (s *SQLiteStorage) listBankTransactionsTx(ctx context.Context, q queryable, tenantID string, filter service.BankTransactionFilter) ([]model.BankTransaction, error) {
	query := `
		SELECT id, tenant_id, bank_account_id, transaction_date, amount,
			description, hash, status, matched_entry_id, notes, created_at
		FROM bank_transactions WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.BankAccountID != "" {
		query += " AND bank_account_id = ?"
		args = append(args, filter.BankAccountID)
	}
	query += " ORDER BY transaction_date, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.BankTransaction
	for rows.Next() {
		txn, err := scanBankTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// UpdateBankTransaction persists the matcher's status changes. The partial
// unique index on matched_entry_id turns a double-accept race into a
// constraint error instead of a silent double match.
func (s *SQLiteStorage) UpdateBankTransaction(ctx context.Context, txn *model.BankTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	return s.updateBankTransactionTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) updateBankTransactionTx(ctx context.Context, q queryable, txn *model.BankTransaction) error {
	result, err := q.ExecContext(ctx, `
		UPDATE bank_transactions SET status = ?, matched_entry_id = ?, notes = ?
		WHERE tenant_id = ? AND id = ?
	`, string(txn.Status), nullable(txn.MatchedEntryID), txn.Notes, txn.TenantID, txn.ID)
	if err != nil {
		return fmt.Errorf("failed to update bank transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: bank transaction %s", ErrNotFound, txn.ID)
	}
	return nil
}

func scanBankTransaction(row rowScanner) (*model.BankTransaction, error) {
	var txn model.BankTransaction
	var txnDate, amount, status string
	var matchedEntryID, notes sql.NullString
	err := row.Scan(&txn.ID, &txn.TenantID, &txn.BankAccountID, &txnDate, &amount,
		&txn.Description, &txn.Hash, &status, &matchedEntryID, &notes, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan bank transaction: %w", err)
	}

	txn.Status = model.ReconciliationStatus(status)
	txn.MatchedEntryID = matchedEntryID.String
	txn.Notes = notes.String
	if txn.TransactionDate, err = time.Parse(dateLayout, txnDate); err != nil {
		return nil, fmt.Errorf("failed to parse transaction date %q: %w", txnDate, err)
	}
	if txn.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &txn, nil
}
