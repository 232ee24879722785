package model

import "time"

// GroupKind identifies how a group's contribution cycle is driven.
type GroupKind string

const (
	// GroupBirthday groups contribute on each member's birthday anniversary.
	GroupBirthday GroupKind = "birthday"
	// GroupSubscription groups contribute on a recurring deadline day.
	GroupSubscription GroupKind = "subscription"
	// GroupGeneral groups contribute once, on a fixed target date.
	GroupGeneral GroupKind = "general"
)

// BillingInterval is the recurrence of a subscription group.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

// Group is a contribution circle. Amount is the per-member contribution in
// minor units of Currency.
type Group struct {
	ID            int64                  `json:"-"`
	GroupID       string                 `json:"group_id"`
	Name          string                 `json:"name"`
	Kind          GroupKind              `json:"kind"`
	Currency      string                 `json:"currency"`
	Amount        int64                  `json:"amount"`
	AdminID       string                 `json:"admin_id"`
	Interval      BillingInterval        `json:"interval,omitempty"`
	DeadlineDay   int                    `json:"deadline_day,omitempty"`
	DeadlineMonth int                    `json:"deadline_month,omitempty"`
	TargetDate    time.Time              `json:"target_date,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
}

// Member is a user's membership of a group.
type Member struct {
	UserID   string    `json:"user_id"`
	GroupID  string    `json:"group_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// User is the slice of the user record the engine needs: identity for
// notifications, date of birth for birthday groups, and the customer
// references held at each processor.
type User struct {
	ID                   int64     `json:"-"`
	UserID               string    `json:"user_id"`
	Email                string    `json:"email"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	DateOfBirth          time.Time `json:"date_of_birth,omitempty"`
	StripeCustomerID     string    `json:"stripe_customer_id,omitempty"`
	PaystackCustomerCode string    `json:"paystack_customer_code,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// CustomerRef returns the customer reference held at the named processor.
func (u *User) CustomerRef(provider string) string {
	switch provider {
	case "paystack":
		return u.PaystackCustomerCode
	default:
		return u.StripeCustomerID
	}
}

// ChargeOffset is a payer's timing preference relative to the due date.
type ChargeOffset string

const (
	OffsetSameDay   ChargeOffset = "same_day"
	OffsetDayBefore ChargeOffset = "day_before"
)

// LeadDays returns how many days before the due date the charge fires.
func (o ChargeOffset) LeadDays() int {
	if o == OffsetDayBefore {
		return 1
	}
	return 0
}

// PaymentPreference is a payer's auto-pay configuration for one group.
// It is mutated by the user, and cleared unilaterally by the retry processor
// on exhaustion or by the instrument deletion flow.
type PaymentPreference struct {
	UserID       string       `json:"user_id"`
	GroupID      string       `json:"group_id"`
	AutoPay      bool         `json:"auto_pay"`
	InstrumentID string       `json:"instrument_id,omitempty"`
	Offset       ChargeOffset `json:"offset"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// PaymentInstrument is a stored card reference at a processor. The raw card
// never touches this system; Token is the processor-side authorization.
type PaymentInstrument struct {
	InstrumentID string    `json:"instrument_id"`
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	Token        string    `json:"-"`
	Last4        string    `json:"last4"`
	ExpMonth     int       `json:"exp_month"`
	ExpYear      int       `json:"exp_year"`
	CreatedAt    time.Time `json:"created_at"`
}

// Usable reports whether the instrument can still be charged at the given time.
func (p *PaymentInstrument) Usable(now time.Time) bool {
	if p.Token == "" {
		return false
	}
	if p.ExpYear == 0 {
		return true
	}
	// A card is good through the last day of its expiry month.
	expiry := time.Date(p.ExpYear, time.Month(p.ExpMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	return now.Before(expiry)
}
