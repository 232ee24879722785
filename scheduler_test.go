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

package kolo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/kolofinance/kolo/model"
)

func groupRows(grp *model.Group) *sqlmock.Rows {
	var targetDate interface{}
	if !grp.TargetDate.IsZero() {
		targetDate = grp.TargetDate
	}
	return sqlmock.NewRows([]string{"id", "group_id", "name", "kind", "currency", "amount", "admin_id", "billing_interval", "deadline_day", "deadline_month", "target_date", "created_at", "meta_data"}).
		AddRow(1, grp.GroupID, grp.Name, grp.Kind, grp.Currency, grp.Amount, grp.AdminID, string(grp.Interval), grp.DeadlineDay, grp.DeadlineMonth, targetDate, time.Now(), nil)
}

func userRow(userID string, dob interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "email", "first_name", "last_name", "date_of_birth", "stripe_customer_id", "paystack_customer_code", "created_at"}).
		AddRow(1, userID, userID+"@example.com", "Ada", "Obi", dob, "cus_123", "CUS_xyz", time.Now())
}

func preferenceRow(userID, groupID string, autoPay bool, instrumentID string, offset model.ChargeOffset) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "group_id", "auto_pay", "instrument_id", "charge_offset", "updated_at"}).
		AddRow(userID, groupID, autoPay, instrumentID, string(offset), time.Now())
}

func instrumentRow(instrumentID, userID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"instrument_id", "user_id", "provider", "token", "last4", "exp_month", "exp_year", "created_at"}).
		AddRow(instrumentID, userID, "stripe", "pm_123", "4242", 0, 0, time.Now())
}

func TestSweepBirthdaysChargesOnAnniversary(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", "https://api.stripe.com/v1/payment_intents",
		httpmock.NewStringResponder(200, `{"id":"pi_123","status":"processing"}`))

	k, mock, notifier := newTestEngine(t)

	grp := testGroup("USD")
	grp.Kind = model.GroupBirthday
	celebrantID := "usr_celebrant"
	payerID := "usr_payer"
	instrumentID := "ins_1"
	today := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)
	dob := time.Date(1990, time.August, 26, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM kolo.groups WHERE kind =").
		WithArgs(model.GroupBirthday).
		WillReturnRows(groupRows(grp))
	mock.ExpectQuery("SELECT group_id, user_id, joined_at FROM kolo.group_members").
		WithArgs(grp.GroupID).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "user_id", "joined_at"}).
			AddRow(grp.GroupID, celebrantID, time.Now()).
			AddRow(grp.GroupID, payerID, time.Now()))

	// The celebrant's anniversary lands on the sweep day, so their cycle runs.
	mock.ExpectQuery("SELECT .* FROM kolo.users WHERE user_id =").
		WithArgs(celebrantID).
		WillReturnRows(userRow(celebrantID, dob))
	mock.ExpectQuery("SELECT .* FROM kolo.payment_preferences WHERE user_id =").
		WithArgs(payerID, grp.GroupID).
		WillReturnRows(preferenceRow(payerID, grp.GroupID, true, instrumentID, model.OffsetSameDay))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(celebrantID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(payerID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT .* FROM kolo.users WHERE user_id =").
		WithArgs(payerID).
		WillReturnRows(userRow(payerID, nil))
	mock.ExpectQuery("SELECT .* FROM kolo.payment_instruments WHERE instrument_id =").
		WithArgs(instrumentID).
		WillReturnRows(instrumentRow(instrumentID, payerID))

	obl := model.NewObligation(grp.GroupID, payerID, celebrantID, model.BirthdayPeriodKey(celebrantID, today), grp.Amount, grp.Currency, today)
	mock.ExpectExec("INSERT INTO kolo.obligations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT .* FROM kolo.obligations WHERE group_id =").
		WillReturnRows(obligationRow(obl))
	mock.ExpectQuery("SELECT .* FROM kolo.payment_attempts WHERE obligation_id =").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO kolo.payment_attempts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("UPDATE kolo.payment_attempts SET provider_txn_id =").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// The payer has no date of birth recorded, so their own celebrant pass
	// produces no cycle.
	mock.ExpectQuery("SELECT .* FROM kolo.users WHERE user_id =").
		WithArgs(payerID).
		WillReturnRows(userRow(payerID, nil))

	summary, err := k.SweepBirthdays(context.Background(), today)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, notifier.sent)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSweepGeneralGroupsRespectsChargeOffset(t *testing.T) {
	k, mock, _ := newTestEngine(t)

	grp := testGroup("USD")
	grp.Kind = model.GroupGeneral
	grp.TargetDate = time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	payerID := "usr_payer"
	today := time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM kolo.groups WHERE kind =").
		WithArgs(model.GroupGeneral).
		WillReturnRows(groupRows(grp))
	mock.ExpectQuery("SELECT group_id, user_id, joined_at FROM kolo.group_members").
		WithArgs(grp.GroupID).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "user_id", "joined_at"}).
			AddRow(grp.GroupID, payerID, time.Now()))

	// day_before means the charge fires August 31, not today, so nothing is
	// dispatched and nothing else is queried.
	mock.ExpectQuery("SELECT .* FROM kolo.payment_preferences WHERE user_id =").
		WithArgs(payerID, grp.GroupID).
		WillReturnRows(preferenceRow(payerID, grp.GroupID, true, "ins_1", model.OffsetDayBefore))

	summary, err := k.SweepGeneralGroups(context.Background(), today)
	assert.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSweepSubscriptionsChargesDayBeforeAcrossPeriodBoundary(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", "https://api.stripe.com/v1/payment_intents",
		httpmock.NewStringResponder(200, `{"id":"pi_123","status":"processing"}`))

	k, mock, notifier := newTestEngine(t)

	grp := testGroup("USD")
	grp.Kind = model.GroupSubscription
	grp.Interval = model.IntervalMonthly
	grp.DeadlineDay = 1
	payerID := "usr_payer"
	instrumentID := "ins_1"

	// December 31: this month's deadline is long gone, so the relevant due
	// date is January 1 of next year and a day-before payer charges today.
	today := time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)
	due := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM kolo.groups WHERE kind =").
		WithArgs(model.GroupSubscription).
		WillReturnRows(groupRows(grp))
	mock.ExpectQuery("SELECT group_id, user_id, joined_at FROM kolo.group_members").
		WithArgs(grp.GroupID).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "user_id", "joined_at"}).
			AddRow(grp.GroupID, payerID, time.Now()))
	mock.ExpectQuery("SELECT .* FROM kolo.payment_preferences WHERE user_id =").
		WithArgs(payerID, grp.GroupID).
		WillReturnRows(preferenceRow(payerID, grp.GroupID, true, instrumentID, model.OffsetDayBefore))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(grp.AdminID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(payerID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT .* FROM kolo.users WHERE user_id =").
		WithArgs(payerID).
		WillReturnRows(userRow(payerID, nil))
	mock.ExpectQuery("SELECT .* FROM kolo.payment_instruments WHERE instrument_id =").
		WithArgs(instrumentID).
		WillReturnRows(instrumentRow(instrumentID, payerID))

	obl := model.NewObligation(grp.GroupID, payerID, grp.AdminID, model.SubscriptionPeriodKey(grp.Interval, due), grp.Amount, grp.Currency, due)
	mock.ExpectExec("INSERT INTO kolo.obligations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT .* FROM kolo.obligations WHERE group_id =").
		WillReturnRows(obligationRow(obl))
	mock.ExpectQuery("SELECT .* FROM kolo.payment_attempts WHERE obligation_id =").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO kolo.payment_attempts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("UPDATE kolo.payment_attempts SET provider_txn_id =").
		WillReturnResult(sqlmock.NewResult(1, 1))

	summary, err := k.SweepSubscriptions(context.Background(), today)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Empty(t, notifier.sent)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSweepSubscriptionsSuspendsWhenAdminDefaults(t *testing.T) {
	k, mock, notifier := newTestEngine(t)

	grp := testGroup("USD")
	grp.Kind = model.GroupSubscription
	grp.Interval = model.IntervalMonthly
	grp.DeadlineDay = 26
	payerID := "usr_payer"
	today := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM kolo.groups WHERE kind =").
		WithArgs(model.GroupSubscription).
		WillReturnRows(groupRows(grp))
	mock.ExpectQuery("SELECT group_id, user_id, joined_at FROM kolo.group_members").
		WithArgs(grp.GroupID).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "user_id", "joined_at"}).
			AddRow(grp.GroupID, payerID, time.Now()))
	mock.ExpectQuery("SELECT .* FROM kolo.payment_preferences WHERE user_id =").
		WithArgs(payerID, grp.GroupID).
		WillReturnRows(preferenceRow(payerID, grp.GroupID, true, "ins_1", model.OffsetSameDay))

	// The admin, who receives subscription contributions, is in arrears.
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(grp.AdminID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	summary, err := k.SweepSubscriptions(context.Background(), today)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)

	assert.Len(t, notifier.sent, 2)
	assert.Equal(t, notified{userID: grp.AdminID, kind: model.NotifyPayerDefaulting}, notifier.sent[0])
	assert.Equal(t, notified{userID: payerID, kind: model.NotifyGroupSuspended}, notifier.sent[1])

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
