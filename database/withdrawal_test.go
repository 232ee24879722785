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

func TestCreateWithdrawal_EscrowsBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	wd := model.NewWithdrawal("usr_1", "NGN", 10000_00, 50_00, time.Now().Add(24*time.Hour))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE kolo.wallets").
		WithArgs(wd.Amount, wd.UserID, wd.Currency).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO kolo.withdrawals").
		WithArgs(wd.WithdrawalID, wd.UserID, wd.Currency, wd.Amount, wd.Fee, wd.NetAmount, wd.Status, wd.ScheduledAt).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))
	mock.ExpectCommit()

	created, err := ds.CreateWithdrawal(context.Background(), wd)
	assert.NoError(t, err)
	assert.Equal(t, model.WithdrawalPending, created.Status)
	assert.Equal(t, int64(9950_00), created.NetAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithdrawal_InsufficientBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	wd := model.NewWithdrawal("usr_1", "NGN", 10000_00, 0, time.Now().Add(24*time.Hour))

	// The conditional debit touches zero rows and nothing is inserted.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE kolo.wallets").
		WithArgs(wd.Amount, wd.UserID, wd.Currency).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = ds.CreateWithdrawal(context.Background(), wd)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrBadRequest, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimWithdrawal_OnlyOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE kolo.withdrawals").
		WithArgs("wdl_1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE kolo.withdrawals").
		WithArgs("wdl_1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := ds.ClaimWithdrawal(context.Background(), "wdl_1")
	assert.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = ds.ClaimWithdrawal(context.Background(), "wdl_1")
	assert.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailWithdrawal_RefundsEscrow(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE kolo.withdrawals").
		WithArgs("payout rejected", "wdl_1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "currency", "amount"}).AddRow("usr_1", "NGN", int64(10000_00)))
	mock.ExpectExec("INSERT INTO kolo.wallets").
		WithArgs(sqlmock.AnyArg(), "usr_1", "NGN", int64(10000_00)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := ds.FailWithdrawal(context.Background(), "wdl_1", "payout rejected")
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailWithdrawal_TerminalIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE kolo.withdrawals").
		WithArgs("payout rejected", "wdl_done").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "currency", "amount"}))
	mock.ExpectRollback()

	applied, err := ds.FailWithdrawal(context.Background(), "wdl_done", "payout rejected")
	assert.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteWithdrawal_TerminalIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE kolo.withdrawals").
		WithArgs("TRF_1", "wdl_done").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := ds.CompleteWithdrawal(context.Background(), "wdl_done", "TRF_1")
	assert.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDueWithdrawals(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "withdrawal_id", "user_id", "currency", "amount", "fee", "net_amount", "status", "scheduled_at", "provider_transfer_id", "error_message", "created_at", "updated_at"}).
		AddRow(1, "wdl_1", "usr_1", "NGN", 10000_00, 0, 10000_00, "pending", now.Add(-time.Hour), "", "", now.Add(-25*time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM kolo.withdrawals").
		WithArgs(now, 100).
		WillReturnRows(rows)

	due, err := ds.GetDueWithdrawals(context.Background(), now, 100)
	assert.NoError(t, err)
	assert.Len(t, due, 1)
	assert.Equal(t, "wdl_1", due[0].WithdrawalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
