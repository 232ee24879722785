package model

import (
	"fmt"
	"time"
)

// DateOnly truncates a time to its calendar date in UTC. All due-date math in
// the scheduler is done on calendar dates, never on wall-clock instants.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LastDayOfMonth returns the number of days in the given month.
func LastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampedDate builds a date, clamping the day to the last day of short
// months (deadline day 31 in April resolves to April 30).
func ClampedDate(year int, month time.Month, day int) time.Time {
	if last := LastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NextAnniversary returns the first anniversary of dob that falls on or after
// the given date. February 29 anniversaries clamp to February 28 in common
// years.
func NextAnniversary(dob, from time.Time) time.Time {
	from = DateOnly(from)
	anniversary := ClampedDate(from.Year(), dob.UTC().Month(), dob.UTC().Day())
	if anniversary.Before(from) {
		anniversary = ClampedDate(from.Year()+1, dob.UTC().Month(), dob.UTC().Day())
	}
	return anniversary
}

// SubscriptionDueDate returns the first deadline that falls on or after the
// given date. A deadline already behind us belongs to a settled period, so
// the date rolls into the next period; without the roll-forward a day-before
// payer of a deadline-day-1 group could never match any sweep day.
func (g *Group) SubscriptionDueDate(today time.Time) time.Time {
	today = DateOnly(today)
	if g.Interval == IntervalYearly {
		month := time.Month(g.DeadlineMonth)
		if month == 0 {
			month = time.January
		}
		due := ClampedDate(today.Year(), month, g.DeadlineDay)
		if due.Before(today) {
			due = ClampedDate(today.Year()+1, month, g.DeadlineDay)
		}
		return due
	}
	due := ClampedDate(today.Year(), today.Month(), g.DeadlineDay)
	if due.Before(today) {
		due = ClampedDate(today.Year(), today.Month()+1, g.DeadlineDay)
	}
	return due
}

// GeneralDueDate is the fixed target date of a one-time group.
func (g *Group) GeneralDueDate() time.Time {
	return DateOnly(g.TargetDate)
}

// BirthdayPeriodKey identifies one celebrant's cycle within a year. Obligation
// rows are unique per (group, payer, period key), so the celebrant must be
// part of the key for groups with multiple honorees a year.
func BirthdayPeriodKey(celebrantID string, dueDate time.Time) string {
	return fmt.Sprintf("%s:%d", celebrantID, dueDate.Year())
}

// SubscriptionPeriodKey identifies the billing period a due date belongs to.
func SubscriptionPeriodKey(interval BillingInterval, dueDate time.Time) string {
	if interval == IntervalYearly {
		return dueDate.Format("2006")
	}
	return dueDate.Format("2006-01")
}

// GeneralPeriodKey identifies the single cycle of a one-time group.
func GeneralPeriodKey(dueDate time.Time) string {
	return dueDate.Format("2006-01-02")
}
