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

	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
)

// creditWallet adds to a (user, currency) balance inside the caller's
// transaction, creating the wallet row on first credit.
func creditWallet(ctx context.Context, tx *sql.Tx, userID, currency string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kolo.wallets (wallet_id, user_id, currency, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, currency)
		DO UPDATE SET balance = kolo.wallets.balance + EXCLUDED.balance, updated_at = NOW()
	`, model.GenerateUUIDWithSuffix("wal"), userID, currency, amount)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit wallet", err)
	}
	return nil
}

// GetWallet retrieves one (user, currency) balance. A user with no credits
// yet gets a zero-balance wallet rather than an error.
func (d Datasource) GetWallet(ctx context.Context, userID, currency string) (*model.Wallet, error) {
	wallet := &model.Wallet{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, wallet_id, user_id, currency, balance, created_at, updated_at
		FROM kolo.wallets
		WHERE user_id = $1 AND currency = $2
	`, userID, currency).Scan(&wallet.ID, &wallet.WalletID, &wallet.UserID, &wallet.Currency,
		&wallet.Balance, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return &model.Wallet{UserID: userID, Currency: currency}, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve wallet", err)
	}
	return wallet, nil
}

// GetWalletsByUser lists every currency balance a user holds.
func (d Datasource) GetWalletsByUser(ctx context.Context, userID string) ([]*model.Wallet, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, wallet_id, user_id, currency, balance, created_at, updated_at
		FROM kolo.wallets
		WHERE user_id = $1
		ORDER BY currency
	`, userID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve wallets", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var wallets []*model.Wallet
	for rows.Next() {
		wallet := &model.Wallet{}
		if err := rows.Scan(&wallet.ID, &wallet.WalletID, &wallet.UserID, &wallet.Currency,
			&wallet.Balance, &wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan wallet data", err)
		}
		wallets = append(wallets, wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating wallets", err)
	}
	return wallets, nil
}
