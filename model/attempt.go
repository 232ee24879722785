package model

import "time"

const (
	AttemptPending = "pending"
	AttemptRetry   = "retry"
	AttemptSuccess = "success"
	AttemptFailed  = "failed"
)

// PaymentAttempt is one dispatched charge try against a provider for an
// obligation. Rows are appended and updated, never deleted — the attempt
// table doubles as the charge audit trail.
type PaymentAttempt struct {
	ID            int64     `json:"-"`
	AttemptID     string    `json:"attempt_id"`
	ObligationID  string    `json:"obligation_id"`
	PayerID       string    `json:"payer_id"`
	GroupID       string    `json:"group_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Provider      string    `json:"provider"`
	Status        string    `json:"status"`
	RetryCount    int       `json:"retry_count"`
	ProviderTxnID string    `json:"provider_txn_id,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Open reports whether the attempt is still waiting on an outcome.
func (a *PaymentAttempt) Open() bool {
	return a.Status == AttemptPending || a.Status == AttemptRetry
}

// Stale reports whether an open attempt has been waiting longer than the
// staleness window and should be treated as abandoned by a crashed run.
func (a *PaymentAttempt) Stale(now time.Time, window time.Duration) bool {
	return a.Open() && now.Sub(a.UpdatedAt) > window
}

// NewPaymentAttempt builds a pending attempt for an obligation.
func NewPaymentAttempt(obligationID, payerID, groupID string, amount int64, currency, provider string) *PaymentAttempt {
	now := time.Now()
	return &PaymentAttempt{
		AttemptID:    GenerateUUIDWithSuffix("att"),
		ObligationID: obligationID,
		PayerID:      payerID,
		GroupID:      groupID,
		Amount:       amount,
		Currency:     currency,
		Provider:     provider,
		Status:       AttemptPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
