/*
Copyright 2025 Kolo Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
)

const withdrawalColumns = `id, withdrawal_id, user_id, currency, amount, fee, net_amount, status, scheduled_at, COALESCE(provider_transfer_id, ''), COALESCE(error_message, ''), created_at, updated_at`

func scanWithdrawal(scan func(dest ...interface{}) error) (*model.Withdrawal, error) {
	wd := &model.Withdrawal{}
	err := scan(&wd.ID, &wd.WithdrawalID, &wd.UserID, &wd.Currency, &wd.Amount, &wd.Fee,
		&wd.NetAmount, &wd.Status, &wd.ScheduledAt, &wd.ProviderTransferID, &wd.ErrorMessage,
		&wd.CreatedAt, &wd.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return wd, nil
}

// CreateWithdrawal escrows the requested amount and inserts the pending
// withdrawal in one transaction. The conditional debit is the overdraft
// guard: a balance below the requested amount updates zero rows and the
// whole request fails with no side effects.
func (d Datasource) CreateWithdrawal(ctx context.Context, wd *model.Withdrawal) (*model.Withdrawal, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE kolo.wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND currency = $3 AND balance >= $1
	`, wd.Amount, wd.UserID, wd.Currency)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit wallet", err)
	}
	debited, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if debited == 0 {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Insufficient wallet balance for withdrawal", nil)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO kolo.withdrawals (withdrawal_id, user_id, currency, amount, fee, net_amount, status, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at
	`, wd.WithdrawalID, wd.UserID, wd.Currency, wd.Amount, wd.Fee, wd.NetAmount, wd.Status, wd.ScheduledAt).
		Scan(&wd.ID, &wd.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Withdrawal with this ID already exists", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create withdrawal", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return wd, nil
}

// GetWithdrawalByID retrieves a withdrawal by its external id.
func (d Datasource) GetWithdrawalByID(ctx context.Context, withdrawalID string) (*model.Withdrawal, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+withdrawalColumns+`
		FROM kolo.withdrawals
		WHERE withdrawal_id = $1
	`, withdrawalID)
	wd, err := scanWithdrawal(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Withdrawal with ID '%s' not found", withdrawalID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve withdrawal", err)
	}
	return wd, nil
}

// GetDueWithdrawals lists pending withdrawals whose hold window has elapsed,
// oldest first.
func (d Datasource) GetDueWithdrawals(ctx context.Context, asOf time.Time, limit int) ([]*model.Withdrawal, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+withdrawalColumns+`
		FROM kolo.withdrawals
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`, asOf, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve due withdrawals", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var withdrawals []*model.Withdrawal
	for rows.Next() {
		wd, err := scanWithdrawal(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan withdrawal data", err)
		}
		withdrawals = append(withdrawals, wd)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating withdrawals", err)
	}
	return withdrawals, nil
}

// ClaimWithdrawal moves a pending withdrawal to processing. The status guard
// in the WHERE clause makes overlapping sweep runs safe: only one run can
// claim a given row.
func (d Datasource) ClaimWithdrawal(ctx context.Context, withdrawalID string) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE kolo.withdrawals
		SET status = 'processing', updated_at = NOW()
		WHERE withdrawal_id = $1 AND status = 'pending'
	`, withdrawalID)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to claim withdrawal", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	return affected > 0, nil
}

// CompleteWithdrawal marks a processing withdrawal completed. It reports
// false when the withdrawal already reached a terminal state.
func (d Datasource) CompleteWithdrawal(ctx context.Context, withdrawalID, providerTransferID string) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE kolo.withdrawals
		SET status = 'completed', provider_transfer_id = $1, updated_at = NOW()
		WHERE withdrawal_id = $2 AND status IN ('pending', 'processing')
	`, providerTransferID, withdrawalID)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete withdrawal", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	return affected > 0, nil
}

// FailWithdrawal marks a non-terminal withdrawal failed and refunds the
// escrowed amount to the wallet in the same transaction. It reports false
// when the withdrawal was already terminal, so a provider redelivering a
// failure event can never refund twice.
func (d Datasource) FailWithdrawal(ctx context.Context, withdrawalID, errorMessage string) (bool, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var userID, currency string
	var amount int64
	err = tx.QueryRowContext(ctx, `
		UPDATE kolo.withdrawals
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE withdrawal_id = $2 AND status IN ('pending', 'processing')
		RETURNING user_id, currency, amount
	`, errorMessage, withdrawalID).Scan(&userID, &currency, &amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fail withdrawal", err)
	}

	if err := creditWallet(ctx, tx, userID, currency, amount); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return true, nil
}

// CancelWithdrawal refunds a withdrawal that is still pending inside its
// hold window. The status guard keeps a cancel that races the payout sweep
// from refunding a withdrawal whose transfer is already in flight.
func (d Datasource) CancelWithdrawal(ctx context.Context, withdrawalID, userID string) (bool, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var currency string
	var amount int64
	err = tx.QueryRowContext(ctx, `
		UPDATE kolo.withdrawals
		SET status = 'failed', error_message = 'cancelled by user', updated_at = NOW()
		WHERE withdrawal_id = $1 AND user_id = $2 AND status = 'pending'
		RETURNING currency, amount
	`, withdrawalID, userID).Scan(&currency, &amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to cancel withdrawal", err)
	}

	if err := creditWallet(ctx, tx, userID, currency, amount); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return true, nil
}

// CreateBankAccount stores a payout destination for one currency.
func (d Datasource) CreateBankAccount(ctx context.Context, account *model.BankAccount) (*model.BankAccount, error) {
	if account.AccountID == "" {
		account.AccountID = model.GenerateUUIDWithSuffix("bnk")
	}
	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO kolo.bank_accounts (account_id, user_id, currency, bank_name, account_number, account_name, recipient_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, account.AccountID, account.UserID, account.Currency, account.BankName,
		account.AccountNumber, account.AccountName, account.RecipientCode).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Bank account for this currency already exists", err)
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid user ID", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create bank account", err)
	}
	return account, nil
}

// GetBankAccount resolves a user's payout destination for a currency.
func (d Datasource) GetBankAccount(ctx context.Context, userID, currency string) (*model.BankAccount, error) {
	account := &model.BankAccount{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, account_id, user_id, currency, COALESCE(bank_name, ''), COALESCE(account_number, ''), COALESCE(account_name, ''), COALESCE(recipient_code, ''), created_at
		FROM kolo.bank_accounts
		WHERE user_id = $1 AND currency = $2
	`, userID, currency).Scan(&account.ID, &account.AccountID, &account.UserID, &account.Currency,
		&account.BankName, &account.AccountNumber, &account.AccountName, &account.RecipientCode, &account.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("No bank account for user '%s' in %s", userID, currency), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve bank account", err)
	}
	return account, nil
}
