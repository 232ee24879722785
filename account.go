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
	"time"

	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
)

// SetPaymentPreference enables or updates a member's auto-pay configuration
// for a group. The instrument must belong to the member and still be
// chargeable; a preference pointing at someone else's card is never stored.
func (k *Kolo) SetPaymentPreference(ctx context.Context, pref *model.PaymentPreference) error {
	if pref.AutoPay {
		if pref.InstrumentID == "" {
			return apierror.NewAPIError(apierror.ErrBadRequest, "Auto-pay requires a payment instrument", nil)
		}
		instrument, err := k.datasource.GetPaymentInstrument(ctx, pref.InstrumentID)
		if err != nil {
			return err
		}
		if instrument.UserID != pref.UserID {
			return apierror.NewAPIError(apierror.ErrBadRequest, "Payment instrument does not belong to this user", nil)
		}
		if !instrument.Usable(time.Now()) {
			return apierror.NewAPIError(apierror.ErrBadRequest, "Payment instrument has expired", nil)
		}
	}
	if pref.Offset == "" {
		pref.Offset = model.OffsetSameDay
	}
	return k.datasource.UpsertPaymentPreference(ctx, pref)
}

// DisableAutoPay turns off automatic contributions for one group.
func (k *Kolo) DisableAutoPay(ctx context.Context, userID, groupID string) error {
	return k.datasource.DisableAutoPay(ctx, userID, groupID)
}

// RemovePaymentInstrument deletes a stored card and disables every auto-pay
// preference that depended on it, then tells the user which groups went
// manual.
func (k *Kolo) RemovePaymentInstrument(ctx context.Context, instrumentID, userID string) error {
	disabled, err := k.datasource.DeletePaymentInstrument(ctx, instrumentID, userID)
	if err != nil {
		return err
	}
	if disabled > 0 {
		k.notifier.Notify(ctx, userID, model.NotifyAutoPayDisabled,
			"Auto-pay disabled",
			"You removed a payment method that was backing auto-pay. Add a new payment method and re-enable auto-pay to keep contributing automatically.")
	}
	return nil
}

// RecordManualPayment marks an obligation settled outside the platform, for
// example cash or a direct transfer. Any in-flight automatic attempt for the
// same period is closed in the same transaction, so the payer cannot end up
// paying twice.
func (k *Kolo) RecordManualPayment(ctx context.Context, obligationID, payerID string) error {
	return k.datasource.SettleObligationManually(ctx, obligationID, payerID)
}

// ConfirmReceipt records the recipient's confirmation or dispute of a paid
// obligation. A dispute moves it to not_received, which makes the payer a
// defaulter once the due date passes.
func (k *Kolo) ConfirmReceipt(ctx context.Context, obligationID, recipientID string, received bool) error {
	return k.datasource.ConfirmObligationReceipt(ctx, obligationID, recipientID, received)
}

// GetWallet returns a user's balance in one currency. Users without a wallet
// row yet get a zero balance, not an error.
func (k *Kolo) GetWallet(ctx context.Context, userID, currency string) (*model.Wallet, error) {
	return k.datasource.GetWallet(ctx, userID, currency)
}

// GetWallets lists all of a user's wallets.
func (k *Kolo) GetWallets(ctx context.Context, userID string) ([]*model.Wallet, error) {
	return k.datasource.GetWalletsByUser(ctx, userID)
}

// GetNotifications pages through a user's inbox, newest first.
func (k *Kolo) GetNotifications(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error) {
	return k.datasource.GetNotificationsByUser(ctx, userID, limit, offset)
}

// MarkNotificationRead marks one inbox entry read.
func (k *Kolo) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	return k.datasource.MarkNotificationRead(ctx, notificationID, userID)
}

// GetWithdrawal returns one withdrawal.
func (k *Kolo) GetWithdrawal(ctx context.Context, withdrawalID string) (*model.Withdrawal, error) {
	return k.datasource.GetWithdrawalByID(ctx, withdrawalID)
}
