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

	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
)

const obligationColumns = `id, obligation_id, group_id, payer_id, recipient_id, period_key, amount, currency, status, due_date, created_at, updated_at`

func scanObligation(scan func(dest ...interface{}) error) (*model.Obligation, error) {
	obl := &model.Obligation{}
	err := scan(&obl.ID, &obl.ObligationID, &obl.GroupID, &obl.PayerID, &obl.RecipientID,
		&obl.PeriodKey, &obl.Amount, &obl.Currency, &obl.Status, &obl.DueDate,
		&obl.CreatedAt, &obl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return obl, nil
}

// EnsureObligation creates the obligation row for its (group, payer, period)
// natural key if absent, and returns the current row either way. Concurrent
// scheduling passes racing on the same period converge on one row.
func (d Datasource) EnsureObligation(ctx context.Context, obl *model.Obligation) (*model.Obligation, error) {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO kolo.obligations (obligation_id, group_id, payer_id, recipient_id, period_key, amount, currency, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (group_id, payer_id, period_key) DO NOTHING
	`, obl.ObligationID, obl.GroupID, obl.PayerID, obl.RecipientID, obl.PeriodKey,
		obl.Amount, obl.Currency, obl.Status, obl.DueDate)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to ensure obligation", err)
	}
	return d.GetObligationForPeriod(ctx, obl.GroupID, obl.PayerID, obl.PeriodKey)
}

// GetObligationByID retrieves an obligation by its external id.
func (d Datasource) GetObligationByID(ctx context.Context, id string) (*model.Obligation, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+obligationColumns+`
		FROM kolo.obligations
		WHERE obligation_id = $1
	`, id)
	obl, err := scanObligation(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Obligation with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve obligation", err)
	}
	return obl, nil
}

// GetObligationForPeriod retrieves an obligation by its natural key.
func (d Datasource) GetObligationForPeriod(ctx context.Context, groupID, payerID, periodKey string) (*model.Obligation, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+obligationColumns+`
		FROM kolo.obligations
		WHERE group_id = $1 AND payer_id = $2 AND period_key = $3
	`, groupID, payerID, periodKey)
	obl, err := scanObligation(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Obligation not found for period", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve obligation", err)
	}
	return obl, nil
}

// HasOverdueObligations reports whether a user owes any unsettled obligation
// past its due date. This is the platform-wide defaulter check.
func (d Datasource) HasOverdueObligations(ctx context.Context, userID string, asOf time.Time) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM kolo.obligations
			WHERE payer_id = $1
			  AND status IN ('not_paid', 'not_received')
			  AND due_date < $2
		)
	`, userID, asOf).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check overdue obligations", err)
	}
	return exists, nil
}

// SettleObligationManually marks an obligation paid outside the auto-pay
// flow and closes any open attempt in the same transaction, so a charge
// still in flight cannot double-settle the period.
func (d Datasource) SettleObligationManually(ctx context.Context, obligationID, payerID string) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE kolo.obligations
		SET status = 'paid', updated_at = NOW()
		WHERE obligation_id = $1 AND payer_id = $2 AND status IN ('not_paid', 'not_received')
	`, obligationID, payerID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to settle obligation", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Obligation '%s' is already settled", obligationID), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE kolo.payment_attempts
		SET status = 'failed', error_message = 'superseded: paid manually', updated_at = NOW()
		WHERE obligation_id = $1 AND status IN ('pending', 'retry')
	`, obligationID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to close open attempts", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// ConfirmObligationReceipt records the recipient's confirmation. A paid
// obligation becomes confirmed and immutable, or not_received on rejection.
func (d Datasource) ConfirmObligationReceipt(ctx context.Context, obligationID, recipientID string, received bool) error {
	status := model.ObligationConfirmed
	if !received {
		status = model.ObligationNotReceived
	}
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE kolo.obligations
		SET status = $1, updated_at = NOW()
		WHERE obligation_id = $2 AND recipient_id = $3 AND status = 'paid'
	`, status, obligationID, recipientID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to confirm obligation receipt", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Obligation '%s' is not awaiting confirmation", obligationID), nil)
	}
	return nil
}

// GetObligationsByGroup lists a group's obligations, newest first.
func (d Datasource) GetObligationsByGroup(ctx context.Context, groupID string, limit, offset int) ([]*model.Obligation, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+obligationColumns+`
		FROM kolo.obligations
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, groupID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve obligations", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var obligations []*model.Obligation
	for rows.Next() {
		obl, err := scanObligation(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan obligation data", err)
		}
		obligations = append(obligations, obl)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating obligations", err)
	}
	return obligations, nil
}
