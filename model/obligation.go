package model

import "time"

const (
	ObligationNotPaid     = "not_paid"
	ObligationPaid        = "paid"
	ObligationConfirmed   = "confirmed"
	ObligationNotReceived = "not_received"
)

// Obligation is one payer's owed amount for one billing period of one group.
// The (group, payer, period) triple is a natural key; a period can only ever
// produce one obligation row no matter how many scheduling passes see it.
type Obligation struct {
	ID           int64     `json:"-"`
	ObligationID string    `json:"obligation_id"`
	GroupID      string    `json:"group_id"`
	PayerID      string    `json:"payer_id"`
	RecipientID  string    `json:"recipient_id"`
	PeriodKey    string    `json:"period_key"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	DueDate      time.Time `json:"due_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Overdue reports whether the obligation is unsettled past its due date.
func (o *Obligation) Overdue(now time.Time) bool {
	return !o.Settled() && now.After(o.DueDate)
}

// Settled reports whether money has already moved (or is in flight past the
// point of no return) for this obligation. Settled obligations must never be
// charged again.
func (o *Obligation) Settled() bool {
	return o.Status == ObligationPaid || o.Status == ObligationConfirmed
}

// NewObligation builds an obligation in the not_paid state.
func NewObligation(groupID, payerID, recipientID, periodKey string, amount int64, currency string, dueDate time.Time) *Obligation {
	return &Obligation{
		ObligationID: GenerateUUIDWithSuffix("obl"),
		GroupID:      groupID,
		PayerID:      payerID,
		RecipientID:  recipientID,
		PeriodKey:    periodKey,
		Amount:       amount,
		Currency:     currency,
		Status:       ObligationNotPaid,
		DueDate:      dueDate,
		CreatedAt:    time.Now(),
	}
}
