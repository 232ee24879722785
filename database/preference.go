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

// GetPaymentPreference retrieves a payer's auto-pay preference for a group.
func (d Datasource) GetPaymentPreference(ctx context.Context, userID, groupID string) (*model.PaymentPreference, error) {
	pref := &model.PaymentPreference{}
	var instrumentID sql.NullString
	err := d.Conn.QueryRowContext(ctx, `
		SELECT user_id, group_id, auto_pay, instrument_id, charge_offset, updated_at
		FROM kolo.payment_preferences
		WHERE user_id = $1 AND group_id = $2
	`, userID, groupID).Scan(&pref.UserID, &pref.GroupID, &pref.AutoPay, &instrumentID, &pref.Offset, &pref.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Payment preference not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment preference", err)
	}
	pref.InstrumentID = instrumentID.String
	return pref, nil
}

// UpsertPaymentPreference creates or replaces a payer's preference for a group.
func (d Datasource) UpsertPaymentPreference(ctx context.Context, pref *model.PaymentPreference) error {
	if pref.Offset == "" {
		pref.Offset = model.OffsetSameDay
	}
	var instrumentID interface{}
	if pref.InstrumentID != "" {
		instrumentID = pref.InstrumentID
	}
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO kolo.payment_preferences (user_id, group_id, auto_pay, instrument_id, charge_offset, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, group_id)
		DO UPDATE SET auto_pay = EXCLUDED.auto_pay, instrument_id = EXCLUDED.instrument_id, charge_offset = EXCLUDED.charge_offset, updated_at = NOW()
	`, pref.UserID, pref.GroupID, pref.AutoPay, instrumentID, pref.Offset)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return apierror.NewAPIError(apierror.ErrBadRequest, "Invalid user or group ID", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save payment preference", err)
	}
	return nil
}

// DisableAutoPay switches off auto-pay for one (payer, group) pair and drops
// the instrument link. The row is kept so the payer's offset choice survives
// a manual re-enable.
func (d Datasource) DisableAutoPay(ctx context.Context, userID, groupID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE kolo.payment_preferences
		SET auto_pay = FALSE, instrument_id = NULL, updated_at = NOW()
		WHERE user_id = $1 AND group_id = $2
	`, userID, groupID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to disable auto-pay", err)
	}
	return nil
}

// CreatePaymentInstrument stores a processor-side card reference.
func (d Datasource) CreatePaymentInstrument(ctx context.Context, instrument *model.PaymentInstrument) (*model.PaymentInstrument, error) {
	if instrument.InstrumentID == "" {
		instrument.InstrumentID = model.GenerateUUIDWithSuffix("ins")
	}
	if instrument.CreatedAt.IsZero() {
		instrument.CreatedAt = time.Now()
	}
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO kolo.payment_instruments (instrument_id, user_id, provider, token, last4, exp_month, exp_year, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, instrument.InstrumentID, instrument.UserID, instrument.Provider, instrument.Token,
		instrument.Last4, instrument.ExpMonth, instrument.ExpYear, instrument.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Instrument with this ID already exists", err)
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid user ID", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to store payment instrument", err)
	}
	return instrument, nil
}

// GetPaymentInstrument retrieves a stored instrument by id.
func (d Datasource) GetPaymentInstrument(ctx context.Context, instrumentID string) (*model.PaymentInstrument, error) {
	instrument := &model.PaymentInstrument{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT instrument_id, user_id, provider, token, COALESCE(last4, ''), COALESCE(exp_month, 0), COALESCE(exp_year, 0), created_at
		FROM kolo.payment_instruments
		WHERE instrument_id = $1
	`, instrumentID).Scan(&instrument.InstrumentID, &instrument.UserID, &instrument.Provider,
		&instrument.Token, &instrument.Last4, &instrument.ExpMonth, &instrument.ExpYear, &instrument.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Payment instrument with ID '%s' not found", instrumentID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment instrument", err)
	}
	return instrument, nil
}

// GetPaymentInstrumentsByUser lists a user's stored instruments, newest first.
func (d Datasource) GetPaymentInstrumentsByUser(ctx context.Context, userID string) ([]*model.PaymentInstrument, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT instrument_id, user_id, provider, token, COALESCE(last4, ''), COALESCE(exp_month, 0), COALESCE(exp_year, 0), created_at
		FROM kolo.payment_instruments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment instruments", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var instruments []*model.PaymentInstrument
	for rows.Next() {
		instrument := &model.PaymentInstrument{}
		if err := rows.Scan(&instrument.InstrumentID, &instrument.UserID, &instrument.Provider,
			&instrument.Token, &instrument.Last4, &instrument.ExpMonth, &instrument.ExpYear, &instrument.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan instrument data", err)
		}
		instruments = append(instruments, instrument)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating payment instruments", err)
	}
	return instruments, nil
}

// DeletePaymentInstrument removes an instrument and, in the same
// transaction, disables every auto-pay preference that pointed at it.
// Returns the number of preferences disabled so callers can notify the user.
func (d Datasource) DeletePaymentInstrument(ctx context.Context, instrumentID, userID string) (int64, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		DELETE FROM kolo.payment_instruments
		WHERE instrument_id = $1 AND user_id = $2
	`, instrumentID, userID)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete payment instrument", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if deleted == 0 {
		return 0, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Payment instrument with ID '%s' not found", instrumentID), nil)
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE kolo.payment_preferences
		SET auto_pay = FALSE, instrument_id = NULL, updated_at = NOW()
		WHERE user_id = $1 AND instrument_id = $2
	`, userID, instrumentID)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to disable preferences for instrument", err)
	}
	disabled, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return disabled, nil
}
