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

	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
)

// insertEventMarker records the idempotency marker for an inbound provider
// event inside the caller's transaction. It reports false when the marker
// already exists, meaning the event was processed by an earlier delivery.
func insertEventMarker(ctx context.Context, tx *sql.Tx, event *model.WebhookEvent) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO kolo.webhook_events (event_id, provider, received_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_id, provider) DO NOTHING
	`, event.EventID, event.Provider)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record webhook event", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	return affected > 0, nil
}

// ConfirmContribution applies a successful charge event as one atomic unit:
// event marker, attempt success, obligation paid, and a wallet credit of
// exactly the contribution amount to the recipient. It reports false with no
// side effects beyond the marker when the event is a duplicate or the
// obligation was already settled by another path, such as a manual payment
// landing between dispatch and callback.
func (d Datasource) ConfirmContribution(ctx context.Context, event *model.WebhookEvent, env model.ChargeEnvelope, providerTxnID string) (bool, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	fresh, err := insertEventMarker(ctx, tx, event)
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM kolo.obligations
		WHERE obligation_id = $1
		FOR UPDATE
	`, env.ObligationID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Obligation with ID '%s' not found", env.ObligationID), err)
		}
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock obligation", err)
	}
	if status == model.ObligationPaid || status == model.ObligationConfirmed {
		// Already settled; keep the marker so redeliveries stay no-ops.
		if err := tx.Commit(); err != nil {
			return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
		}
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE kolo.payment_attempts
		SET status = 'success', provider_txn_id = $1, updated_at = NOW()
		WHERE attempt_id = $2
	`, providerTxnID, env.AttemptID)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark attempt successful", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE kolo.obligations
		SET status = 'paid', updated_at = NOW()
		WHERE obligation_id = $1
	`, env.ObligationID)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark obligation paid", err)
	}

	if err := creditWallet(ctx, tx, env.RecipientID, env.Currency, env.Amount); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return true, nil
}

// FailContribution applies a failed charge event: event marker plus the
// retry cap logic. Returns the attempt's resulting status, or empty when the
// event deduplicated or the attempt was no longer open.
func (d Datasource) FailContribution(ctx context.Context, event *model.WebhookEvent, env model.ChargeEnvelope, failureCode, failureCause string, retryCap int) (string, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	fresh, err := insertEventMarker(ctx, tx, event)
	if err != nil {
		return "", err
	}
	if !fresh {
		return "", nil
	}

	message := failureCause
	if failureCode != "" {
		message = fmt.Sprintf("%s: %s", failureCode, failureCause)
	}
	status, err := failAttempt(ctx, tx, env.AttemptID, env.GroupID, env.PayerID, message, retryCap)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return status, nil
}

// RecordAttemptFailure applies the retry cap logic for a synchronous
// dispatch failure, where there is no provider event to deduplicate.
func (d Datasource) RecordAttemptFailure(ctx context.Context, attemptID, groupID, payerID, errorMessage string, retryCap int) (string, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	status, err := failAttempt(ctx, tx, attemptID, groupID, payerID, errorMessage, retryCap)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return status, nil
}

// failAttempt increments the attempt's retry count and moves it to retry or,
// past the cap, to failed. A failed attempt also clears the payer's auto-pay
// preference for the group in the same transaction. Returns empty when the
// attempt was not open.
func failAttempt(ctx context.Context, tx *sql.Tx, attemptID, groupID, payerID, errorMessage string, retryCap int) (string, error) {
	var retryCount int
	var current string
	err := tx.QueryRowContext(ctx, `
		SELECT retry_count, status FROM kolo.payment_attempts
		WHERE attempt_id = $1
		FOR UPDATE
	`, attemptID).Scan(&retryCount, &current)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Attempt with ID '%s' not found", attemptID), err)
		}
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock attempt", err)
	}
	if current != model.AttemptPending && current != model.AttemptRetry {
		return "", nil
	}

	retryCount++
	status := model.AttemptRetry
	if retryCount > retryCap {
		status = model.AttemptFailed
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE kolo.payment_attempts
		SET status = $1, retry_count = $2, error_message = $3, updated_at = NOW()
		WHERE attempt_id = $4
	`, status, retryCount, errorMessage, attemptID)
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update attempt", err)
	}

	if status == model.AttemptFailed {
		_, err = tx.ExecContext(ctx, `
			UPDATE kolo.payment_preferences
			SET auto_pay = FALSE, instrument_id = NULL, updated_at = NOW()
			WHERE user_id = $1 AND group_id = $2
		`, payerID, groupID)
		if err != nil {
			return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to disable auto-pay", err)
		}
	}
	return status, nil
}
