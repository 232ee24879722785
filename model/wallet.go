package model

import "time"

// Wallet is a per (user, currency) running balance, held in minor units.
// It is credited only by the webhook reconciler and debited/refunded only by
// the withdrawal flow.
type Wallet struct {
	ID        int64     `json:"-"`
	WalletID  string    `json:"wallet_id"`
	UserID    string    `json:"user_id"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	WithdrawalPending    = "pending"
	WithdrawalProcessing = "processing"
	WithdrawalCompleted  = "completed"
	WithdrawalFailed     = "failed"
)

// Withdrawal is a payout request. The requested amount is debited from the
// wallet at creation (escrowed); terminal states either release the escrow
// (completed) or refund it (failed).
type Withdrawal struct {
	ID                 int64     `json:"-"`
	WithdrawalID       string    `json:"withdrawal_id"`
	UserID             string    `json:"user_id"`
	Currency           string    `json:"currency"`
	Amount             int64     `json:"amount"`
	Fee                int64     `json:"fee"`
	NetAmount          int64     `json:"net_amount"`
	Status             string    `json:"status"`
	ScheduledAt        time.Time `json:"scheduled_at"`
	ProviderTransferID string    `json:"provider_transfer_id,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Terminal reports whether the withdrawal has reached a final state. Webhook
// driven completion or failure must be a no-op once this is true.
func (w *Withdrawal) Terminal() bool {
	return w.Status == WithdrawalCompleted || w.Status == WithdrawalFailed
}

// NewWithdrawal builds a pending withdrawal whose payout is held until
// scheduledAt.
func NewWithdrawal(userID, currency string, amount, fee int64, scheduledAt time.Time) *Withdrawal {
	now := time.Now()
	return &Withdrawal{
		WithdrawalID: GenerateUUIDWithSuffix("wdl"),
		UserID:       userID,
		Currency:     currency,
		Amount:       amount,
		Fee:          fee,
		NetAmount:    amount - fee,
		Status:       WithdrawalPending,
		ScheduledAt:  scheduledAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// BankAccount is a payout destination for one currency.
type BankAccount struct {
	ID            int64     `json:"-"`
	AccountID     string    `json:"account_id"`
	UserID        string    `json:"user_id"`
	Currency      string    `json:"currency"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	AccountName   string    `json:"account_name"`
	RecipientCode string    `json:"recipient_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
