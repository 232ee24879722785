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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
	"github.com/stretchr/testify/assert"
)

func obligationRows(obl *model.Obligation) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "obligation_id", "group_id", "payer_id", "recipient_id", "period_key", "amount", "currency", "status", "due_date", "created_at", "updated_at"}).
		AddRow(1, obl.ObligationID, obl.GroupID, obl.PayerID, obl.RecipientID, obl.PeriodKey, obl.Amount, obl.Currency, obl.Status, obl.DueDate, time.Now(), time.Now())
}

func TestEnsureObligation_CreatesThenReturnsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	due := time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC)
	obl := model.NewObligation("grp_1", "usr_p", "usr_r", "2026-04", 5000_00, "NGN", due)

	mock.ExpectExec("INSERT INTO kolo.obligations").
		WithArgs(obl.ObligationID, obl.GroupID, obl.PayerID, obl.RecipientID, obl.PeriodKey, obl.Amount, obl.Currency, obl.Status, obl.DueDate).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT (.+) FROM kolo.obligations").
		WithArgs(obl.GroupID, obl.PayerID, obl.PeriodKey).
		WillReturnRows(obligationRows(obl))

	got, err := ds.EnsureObligation(context.Background(), obl)
	assert.NoError(t, err)
	assert.Equal(t, obl.ObligationID, got.ObligationID)
	assert.Equal(t, model.ObligationNotPaid, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureObligation_ExistingRowWins(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	due := time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC)
	obl := model.NewObligation("grp_1", "usr_p", "usr_r", "2026-04", 5000_00, "NGN", due)
	existing := *obl
	existing.ObligationID = "obl_existing"
	existing.Status = model.ObligationPaid

	// A second scheduling pass hits the natural-key conflict and reads back
	// the row the first pass created.
	mock.ExpectExec("INSERT INTO kolo.obligations").
		WithArgs(obl.ObligationID, obl.GroupID, obl.PayerID, obl.RecipientID, obl.PeriodKey, obl.Amount, obl.Currency, obl.Status, obl.DueDate).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM kolo.obligations").
		WithArgs(obl.GroupID, obl.PayerID, obl.PeriodKey).
		WillReturnRows(obligationRows(&existing))

	got, err := ds.EnsureObligation(context.Background(), obl)
	assert.NoError(t, err)
	assert.Equal(t, "obl_existing", got.ObligationID)
	assert.True(t, got.Settled())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasOverdueObligations(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("usr_1", now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	overdue, err := ds.HasOverdueObligations(context.Background(), "usr_1", now)
	assert.NoError(t, err)
	assert.True(t, overdue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmObligationReceipt_OnlyPaidTransitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE kolo.obligations").
		WithArgs(model.ObligationConfirmed, "obl_1", "usr_r").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.ConfirmObligationReceipt(context.Background(), "obl_1", "usr_r", true)
	assert.NoError(t, err)

	// An obligation not in paid state cannot be confirmed.
	mock.ExpectExec("UPDATE kolo.obligations").
		WithArgs(model.ObligationNotReceived, "obl_2", "usr_r").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.ConfirmObligationReceipt(context.Background(), "obl_2", "usr_r", false)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenAttempt_NoneOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM kolo.payment_attempts").
		WithArgs("obl_1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	att, err := ds.GetOpenAttempt(context.Background(), "obl_1")
	assert.NoError(t, err)
	assert.Nil(t, att)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenAttempt_ReturnsNewest(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "attempt_id", "obligation_id", "payer_id", "group_id", "amount", "currency", "provider", "status", "retry_count", "provider_txn_id", "error_message", "created_at", "updated_at"}).
		AddRow(1, "att_1", "obl_1", "usr_p", "grp_1", 5000_00, "NGN", "paystack", "pending", 0, "", "", now, now)
	mock.ExpectQuery("SELECT (.+) FROM kolo.payment_attempts").
		WithArgs("obl_1").
		WillReturnRows(rows)

	att, err := ds.GetOpenAttempt(context.Background(), "obl_1")
	assert.NoError(t, err)
	assert.NotNil(t, att)
	assert.True(t, att.Open())
	assert.False(t, att.Stale(now, time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}
