package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClampedDateShortMonth(t *testing.T) {
	// Deadline day 31 in April (30 days) clamps to April 30.
	assert.Equal(t, date(2024, time.April, 30), ClampedDate(2024, time.April, 31))
	assert.Equal(t, date(2024, time.February, 29), ClampedDate(2024, time.February, 31))
	assert.Equal(t, date(2023, time.February, 28), ClampedDate(2023, time.February, 31))
	assert.Equal(t, date(2024, time.May, 31), ClampedDate(2024, time.May, 31))
}

func TestNextAnniversary(t *testing.T) {
	dob := date(1990, time.June, 15)

	assert.Equal(t, date(2024, time.June, 15), NextAnniversary(dob, date(2024, time.January, 1)))
	assert.Equal(t, date(2024, time.June, 15), NextAnniversary(dob, date(2024, time.June, 15)))
	assert.Equal(t, date(2025, time.June, 15), NextAnniversary(dob, date(2024, time.June, 16)))
}

func TestNextAnniversaryLeapDay(t *testing.T) {
	dob := date(1992, time.February, 29)

	// Common year clamps to February 28.
	assert.Equal(t, date(2023, time.February, 28), NextAnniversary(dob, date(2023, time.January, 1)))
	// Leap year keeps February 29.
	assert.Equal(t, date(2024, time.February, 29), NextAnniversary(dob, date(2024, time.January, 1)))
}

func TestSubscriptionDueDate(t *testing.T) {
	monthly := &Group{Kind: GroupSubscription, Interval: IntervalMonthly, DeadlineDay: 31}
	assert.Equal(t, date(2024, time.April, 30), monthly.SubscriptionDueDate(date(2024, time.April, 2)))
	assert.Equal(t, date(2024, time.May, 31), monthly.SubscriptionDueDate(date(2024, time.May, 2)))

	yearly := &Group{Kind: GroupSubscription, Interval: IntervalYearly, DeadlineDay: 1, DeadlineMonth: 9}
	assert.Equal(t, date(2024, time.September, 1), yearly.SubscriptionDueDate(date(2024, time.March, 10)))
}

func TestSubscriptionDueDateRollsPastDeadlineForward(t *testing.T) {
	monthly := &Group{Kind: GroupSubscription, Interval: IntervalMonthly, DeadlineDay: 1}

	// On the deadline day itself the due date is today's.
	assert.Equal(t, date(2026, time.March, 1), monthly.SubscriptionDueDate(date(2026, time.March, 1)))
	// Past the deadline the due date is next month's, so a day-before payer
	// matches on the last day of the month.
	assert.Equal(t, date(2026, time.April, 1), monthly.SubscriptionDueDate(date(2026, time.March, 31)))
	// December rolls into January of the next year.
	assert.Equal(t, date(2027, time.January, 1), monthly.SubscriptionDueDate(date(2026, time.December, 31)))

	// Clamping still applies in the rolled-forward month.
	endOfMonth := &Group{Kind: GroupSubscription, Interval: IntervalMonthly, DeadlineDay: 31}
	assert.Equal(t, date(2026, time.February, 28), endOfMonth.SubscriptionDueDate(date(2026, time.February, 1)))
	assert.Equal(t, date(2026, time.April, 30), endOfMonth.SubscriptionDueDate(date(2026, time.April, 1)))

	yearly := &Group{Kind: GroupSubscription, Interval: IntervalYearly, DeadlineDay: 1, DeadlineMonth: 1}
	assert.Equal(t, date(2027, time.January, 1), yearly.SubscriptionDueDate(date(2026, time.December, 31)))
	assert.Equal(t, date(2027, time.January, 1), yearly.SubscriptionDueDate(date(2027, time.January, 1)))
}

func TestPeriodKeys(t *testing.T) {
	assert.Equal(t, "usr_1:2024", BirthdayPeriodKey("usr_1", date(2024, time.June, 15)))
	assert.Equal(t, "2024-04", SubscriptionPeriodKey(IntervalMonthly, date(2024, time.April, 30)))
	assert.Equal(t, "2024", SubscriptionPeriodKey(IntervalYearly, date(2024, time.September, 1)))
	assert.Equal(t, "2024-09-01", GeneralPeriodKey(date(2024, time.September, 1)))
}

func TestChargeOffsetLeadDays(t *testing.T) {
	assert.Equal(t, 0, OffsetSameDay.LeadDays())
	assert.Equal(t, 1, OffsetDayBefore.LeadDays())
}

func TestChargeEnvelopeRoundTrip(t *testing.T) {
	env := ChargeEnvelope{
		Kind:         EnvelopeContribution,
		AttemptID:    "att_1",
		ObligationID: "obl_1",
		GroupID:      "grp_1",
		PayerID:      "usr_payer",
		RecipientID:  "usr_recipient",
		Amount:       500000,
		ProcessorFee: 17500,
		PlatformFee:  5000,
		Gross:        522500,
		Currency:     "NGN",
		RetryCount:   1,
	}

	parsed, err := ParseChargeEnvelope(env.Encode())
	assert.NoError(t, err)
	assert.Equal(t, env, parsed)
}

func TestParseChargeEnvelopeRejectsForeignMetadata(t *testing.T) {
	_, err := ParseChargeEnvelope(map[string]string{"kind": "payout"})
	assert.Error(t, err)

	_, err = ParseChargeEnvelope(map[string]string{"kind": EnvelopeContribution})
	assert.Error(t, err)
}

func TestInstrumentUsable(t *testing.T) {
	now := date(2024, time.June, 1)

	live := &PaymentInstrument{Token: "tok_1", ExpMonth: 6, ExpYear: 2024}
	assert.True(t, live.Usable(now))

	expired := &PaymentInstrument{Token: "tok_2", ExpMonth: 5, ExpYear: 2024}
	assert.False(t, expired.Usable(now))

	detached := &PaymentInstrument{Token: ""}
	assert.False(t, detached.Usable(now))
}
