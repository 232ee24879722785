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

	"github.com/lib/pq"

	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
)

const attemptColumns = `id, attempt_id, obligation_id, payer_id, group_id, amount, currency, provider, status, retry_count, COALESCE(provider_txn_id, ''), COALESCE(error_message, ''), created_at, updated_at`

func scanAttempt(scan func(dest ...interface{}) error) (*model.PaymentAttempt, error) {
	att := &model.PaymentAttempt{}
	err := scan(&att.ID, &att.AttemptID, &att.ObligationID, &att.PayerID, &att.GroupID,
		&att.Amount, &att.Currency, &att.Provider, &att.Status, &att.RetryCount,
		&att.ProviderTxnID, &att.ErrorMessage, &att.CreatedAt, &att.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return att, nil
}

// RecordAttempt appends a new attempt to the charge ledger.
func (d Datasource) RecordAttempt(ctx context.Context, att *model.PaymentAttempt) (*model.PaymentAttempt, error) {
	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO kolo.payment_attempts (attempt_id, obligation_id, payer_id, group_id, amount, currency, provider, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id
	`, att.AttemptID, att.ObligationID, att.PayerID, att.GroupID, att.Amount, att.Currency,
		att.Provider, att.Status, att.RetryCount).Scan(&att.ID)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Attempt with this ID already exists", err)
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid obligation ID", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record payment attempt", err)
	}
	return att, nil
}

// GetOpenAttempt retrieves the most recent pending or retry attempt for an
// obligation, or nil when none is open. The dispatcher's duplicate-charge
// guard reads through this.
func (d Datasource) GetOpenAttempt(ctx context.Context, obligationID string) (*model.PaymentAttempt, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM kolo.payment_attempts
		WHERE obligation_id = $1 AND status IN ('pending', 'retry')
		ORDER BY updated_at DESC
		LIMIT 1
	`, obligationID)
	att, err := scanAttempt(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve open attempt", err)
	}
	return att, nil
}

// GetAttemptByID retrieves an attempt by its external id.
func (d Datasource) GetAttemptByID(ctx context.Context, attemptID string) (*model.PaymentAttempt, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM kolo.payment_attempts
		WHERE attempt_id = $1
	`, attemptID)
	att, err := scanAttempt(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Attempt with ID '%s' not found", attemptID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve attempt", err)
	}
	return att, nil
}

// MarkAttemptDispatched stores the provider transaction reference once the
// charge call has been accepted. The attempt goes back to pending whatever
// state it was dispatched from: it is awaiting a webhook outcome again, and
// a re-dispatched retry left in retry state would be picked up and
// resubmitted by every subsequent retry sweep.
func (d Datasource) MarkAttemptDispatched(ctx context.Context, attemptID, providerTxnID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE kolo.payment_attempts
		SET provider_txn_id = $1, status = 'pending', updated_at = NOW()
		WHERE attempt_id = $2
	`, providerTxnID, attemptID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark attempt dispatched", err)
	}
	return nil
}

// SupersedeAttempt closes out a stale open attempt so a fresh one can be
// dispatched. Only open attempts are touched.
func (d Datasource) SupersedeAttempt(ctx context.Context, attemptID, reason string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE kolo.payment_attempts
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE attempt_id = $2 AND status IN ('pending', 'retry')
	`, reason, attemptID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to supersede attempt", err)
	}
	return nil
}

// GetRetryableAttempts lists attempts sitting in retry state under the cap,
// oldest first, for the retry sweep.
func (d Datasource) GetRetryableAttempts(ctx context.Context, cap int, limit int) ([]*model.PaymentAttempt, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+attemptColumns+`
		FROM kolo.payment_attempts
		WHERE status = 'retry' AND retry_count <= $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, cap, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve retryable attempts", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var attempts []*model.PaymentAttempt
	for rows.Next() {
		att, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan attempt data", err)
		}
		attempts = append(attempts, att)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating retryable attempts", err)
	}
	return attempts, nil
}
