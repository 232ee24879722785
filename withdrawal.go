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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
	"github.com/kolofinance/kolo/provider"
)

const withdrawalSweepBatchSize = 100

// RequestWithdrawal debits the wallet immediately and schedules the payout
// after the configured hold window. The hold gives the user a cancellation
// window and gives disputed contributions time to surface.
func (k *Kolo) RequestWithdrawal(ctx context.Context, userID, currency string, amount int64) (*model.Withdrawal, error) {
	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Withdrawal amount must be positive", nil)
	}
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if _, err := k.datasource.GetBankAccount(ctx, userID, currency); err != nil {
		return nil, err
	}

	scheduledAt := time.Now().Add(time.Duration(cnf.Engine.WithdrawalHoldHours) * time.Hour)
	withdrawal, err := k.datasource.CreateWithdrawal(ctx, model.NewWithdrawal(userID, currency, amount, 0, scheduledAt))
	if err != nil {
		return nil, err
	}
	if err := k.queue.queueWithdrawalRelease(withdrawal.WithdrawalID, scheduledAt); err != nil {
		logrus.Errorf("failed to enqueue release for withdrawal %s, sweep will pick it up: %v", withdrawal.WithdrawalID, err)
	}
	return withdrawal, nil
}

// CancelWithdrawal refunds a withdrawal that has not started processing.
func (k *Kolo) CancelWithdrawal(ctx context.Context, withdrawalID, userID string) error {
	cancelled, err := k.datasource.CancelWithdrawal(ctx, withdrawalID, userID)
	if err != nil {
		return err
	}
	if !cancelled {
		return apierror.NewAPIError(apierror.ErrConflict, "Withdrawal is already being processed and can no longer be cancelled", nil)
	}
	return nil
}

// ProcessWithdrawal pushes one due withdrawal to its provider. The claim is
// a conditional pending-to-processing flip, so concurrent release tasks and
// sweeps cannot double-submit the same payout.
func (k *Kolo) ProcessWithdrawal(ctx context.Context, withdrawalID string) error {
	withdrawal, err := k.datasource.GetWithdrawalByID(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if time.Now().Before(withdrawal.ScheduledAt) {
		logrus.Infof("withdrawal %s is still in its hold window", withdrawalID)
		return nil
	}

	claimed, err := k.datasource.ClaimWithdrawal(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if !claimed {
		logrus.Infof("withdrawal %s already claimed", withdrawalID)
		return nil
	}

	account, err := k.datasource.GetBankAccount(ctx, withdrawal.UserID, withdrawal.Currency)
	if err != nil {
		return k.failClaimedWithdrawal(ctx, withdrawal, fmt.Sprintf("no payout destination: %v", err))
	}

	proc := k.providers.ForCurrency(withdrawal.Currency)
	env := model.PayoutEnvelope{
		Kind:         model.EnvelopePayout,
		WithdrawalID: withdrawal.WithdrawalID,
		UserID:       withdrawal.UserID,
		Amount:       withdrawal.NetAmount,
		Currency:     withdrawal.Currency,
	}
	result, err := proc.CreatePayout(ctx, &provider.PayoutRequest{
		RecipientRef: account.RecipientCode,
		Amount:       withdrawal.NetAmount,
		Currency:     withdrawal.Currency,
		Reference:    withdrawal.WithdrawalID,
		Metadata:     env.Encode(),
	})
	if err != nil {
		logrus.Warnf("payout submission for withdrawal %s failed: %v", withdrawalID, err)
		return k.failClaimedWithdrawal(ctx, withdrawal, err.Error())
	}

	if result.Pending {
		// Settlement arrives on the transfer webhook; leave it processing.
		return nil
	}
	completed, err := k.datasource.CompleteWithdrawal(ctx, withdrawal.WithdrawalID, result.TransferID)
	if err != nil {
		return err
	}
	if completed {
		k.notifier.Notify(ctx, withdrawal.UserID, model.NotifyWithdrawalCompleted,
			"Withdrawal completed",
			fmt.Sprintf("Your withdrawal of %s %s has been paid out.", withdrawal.Currency, provider.ToMajorUnits(withdrawal.Amount, withdrawal.Currency)))
	}
	return nil
}

func (k *Kolo) failClaimedWithdrawal(ctx context.Context, withdrawal *model.Withdrawal, reason string) error {
	refunded, err := k.datasource.FailWithdrawal(ctx, withdrawal.WithdrawalID, reason)
	if err != nil {
		return err
	}
	if refunded {
		k.notifier.Notify(ctx, withdrawal.UserID, model.NotifyWithdrawalFailed,
			"Withdrawal failed",
			"Your withdrawal could not be completed and the funds are back in your wallet. Please check your bank details and try again.")
	}
	return nil
}

// SweepWithdrawals is the backstop for release tasks that were lost, for
// example when the queue was unreachable at request time. It submits every
// pending withdrawal whose hold window has elapsed.
func (k *Kolo) SweepWithdrawals(ctx context.Context) (model.SweepSummary, error) {
	var summary model.SweepSummary

	locker, err := k.acquireSweepLock(ctx, "withdrawal")
	if err != nil {
		logrus.Infof("withdrawal sweep already running: %v", err)
		return summary, nil
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Errorf("failed to release withdrawal sweep lock: %v", err)
		}
	}()

	due, err := k.datasource.GetDueWithdrawals(ctx, time.Now(), withdrawalSweepBatchSize)
	if err != nil {
		return summary, err
	}
	for _, w := range due {
		summary.Processed++
		if err := k.ProcessWithdrawal(ctx, w.WithdrawalID); err != nil {
			summary.Failed++
			logrus.Errorf("withdrawal %s sweep submission failed: %v", w.WithdrawalID, err)
			continue
		}
		summary.Succeeded++
	}
	return summary, nil
}
