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
	"time"

	"github.com/kolofinance/kolo/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	user           // Interface for user lookups
	group          // Interface for group and membership operations
	preference     // Interface for auto-pay preferences and instruments
	obligation     // Interface for contribution obligations
	attempt        // Interface for the payment attempt ledger
	reconciliation // Interface for webhook-driven settlement
	wallet         // Interface for wallet balances
	withdrawal     // Interface for withdrawals and payout destinations
	notification   // Interface for the in-app notification inbox
}

// user defines methods for reading user records.
type user interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, usr *model.User) (*model.User, error)
}

// group defines methods for groups and their memberships.
type group interface {
	CreateGroup(ctx context.Context, grp *model.Group) (*model.Group, error)
	GetGroupByID(ctx context.Context, id string) (*model.Group, error)
	GetGroupsByKind(ctx context.Context, kind model.GroupKind) ([]*model.Group, error)
	GetGroupMembers(ctx context.Context, groupID string) ([]*model.Member, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
}

// preference defines methods for auto-pay preferences and stored instruments.
type preference interface {
	GetPaymentPreference(ctx context.Context, userID, groupID string) (*model.PaymentPreference, error)
	UpsertPaymentPreference(ctx context.Context, pref *model.PaymentPreference) error
	DisableAutoPay(ctx context.Context, userID, groupID string) error
	CreatePaymentInstrument(ctx context.Context, instrument *model.PaymentInstrument) (*model.PaymentInstrument, error)
	GetPaymentInstrument(ctx context.Context, instrumentID string) (*model.PaymentInstrument, error)
	GetPaymentInstrumentsByUser(ctx context.Context, userID string) ([]*model.PaymentInstrument, error)
	DeletePaymentInstrument(ctx context.Context, instrumentID, userID string) (int64, error) // Removes the instrument and disables every preference pointing at it; returns disabled preference count
}

// obligation defines methods for contribution obligations.
type obligation interface {
	EnsureObligation(ctx context.Context, obl *model.Obligation) (*model.Obligation, error) // Creates the row for its natural key if absent, returns the current row either way
	GetObligationByID(ctx context.Context, id string) (*model.Obligation, error)
	GetObligationForPeriod(ctx context.Context, groupID, payerID, periodKey string) (*model.Obligation, error)
	HasOverdueObligations(ctx context.Context, userID string, asOf time.Time) (bool, error)
	ConfirmObligationReceipt(ctx context.Context, obligationID, recipientID string, received bool) error
	// SettleObligationManually marks an obligation paid outside auto-pay and
	// closes any open attempt in the same transaction.
	SettleObligationManually(ctx context.Context, obligationID, payerID string) error
	GetObligationsByGroup(ctx context.Context, groupID string, limit, offset int) ([]*model.Obligation, error)
}

// attempt defines methods for the append-only payment attempt ledger.
type attempt interface {
	RecordAttempt(ctx context.Context, att *model.PaymentAttempt) (*model.PaymentAttempt, error)
	GetOpenAttempt(ctx context.Context, obligationID string) (*model.PaymentAttempt, error)
	GetAttemptByID(ctx context.Context, attemptID string) (*model.PaymentAttempt, error)
	MarkAttemptDispatched(ctx context.Context, attemptID, providerTxnID string) error
	SupersedeAttempt(ctx context.Context, attemptID, reason string) error
	GetRetryableAttempts(ctx context.Context, cap int, limit int) ([]*model.PaymentAttempt, error)
}

// reconciliation defines the single-transaction settlement operations driven
// by provider webhooks. Each method is one atomic unit: a crash between any
// two of its steps can never leave a partial credit or a lost marker.
type reconciliation interface {
	// ConfirmContribution records the event marker, marks the attempt
	// successful, marks the obligation paid and credits the recipient's
	// wallet with exactly the contribution amount. It reports false when the
	// event was already processed or the obligation was already settled.
	ConfirmContribution(ctx context.Context, event *model.WebhookEvent, env model.ChargeEnvelope, providerTxnID string) (bool, error)
	// FailContribution records the event marker and applies the retry cap:
	// under the cap the attempt moves to retry, at the cap it moves to
	// failed and the payer's auto-pay preference for the group is cleared.
	// Returns the attempt's resulting status, or empty when deduplicated.
	FailContribution(ctx context.Context, event *model.WebhookEvent, env model.ChargeEnvelope, failureCode, failureCause string, retryCap int) (string, error)
	// RecordAttemptFailure applies the same cap logic for synchronous
	// dispatch failures, where no webhook event marker exists.
	RecordAttemptFailure(ctx context.Context, attemptID, groupID, payerID, errorMessage string, retryCap int) (string, error)
}

// wallet defines methods for wallet balances.
type wallet interface {
	GetWallet(ctx context.Context, userID, currency string) (*model.Wallet, error)
	GetWalletsByUser(ctx context.Context, userID string) ([]*model.Wallet, error)
}

// withdrawal defines methods for withdrawals and payout destinations.
type withdrawal interface {
	// CreateWithdrawal atomically debits the wallet and inserts the pending
	// withdrawal; it fails without side effects when the balance is short.
	CreateWithdrawal(ctx context.Context, wd *model.Withdrawal) (*model.Withdrawal, error)
	GetWithdrawalByID(ctx context.Context, withdrawalID string) (*model.Withdrawal, error)
	GetDueWithdrawals(ctx context.Context, asOf time.Time, limit int) ([]*model.Withdrawal, error)
	// ClaimWithdrawal moves pending to processing; it reports false when
	// another run already claimed the row.
	ClaimWithdrawal(ctx context.Context, withdrawalID string) (bool, error)
	CompleteWithdrawal(ctx context.Context, withdrawalID, providerTransferID string) (bool, error)
	// FailWithdrawal marks a non-terminal withdrawal failed and refunds the
	// escrowed amount to the wallet in the same transaction.
	FailWithdrawal(ctx context.Context, withdrawalID, errorMessage string) (bool, error)
	// CancelWithdrawal refunds a withdrawal still inside its hold window.
	// Only the owner can cancel, and only while the row is pending.
	CancelWithdrawal(ctx context.Context, withdrawalID, userID string) (bool, error)
	CreateBankAccount(ctx context.Context, account *model.BankAccount) (*model.BankAccount, error)
	GetBankAccount(ctx context.Context, userID, currency string) (*model.BankAccount, error)
}

// notification defines methods for the in-app inbox.
type notification interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotificationsByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string) error
}
