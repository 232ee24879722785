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

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/model"
	"github.com/kolofinance/kolo/provider"
)

// HandleProviderEvent applies one verified, parsed provider event. The
// envelope kind in the metadata routes it to contribution settlement or
// payout settlement. Redelivered and out-of-order events degrade to no-ops
// through the idempotency marker and the state guards underneath.
func (k *Kolo) HandleProviderEvent(ctx context.Context, evt *model.ProviderEvent) error {
	switch evt.Metadata["kind"] {
	case model.EnvelopeContribution:
		return k.reconcileContribution(ctx, evt)
	case model.EnvelopePayout:
		return k.reconcilePayout(ctx, evt)
	default:
		return errors.Errorf("event %s carries no recognizable envelope", evt.EventID)
	}
}

// reconcileContribution settles a charge outcome. The datasource call is one
// atomic transaction; this function only decides which one to make and who
// to notify afterwards.
func (k *Kolo) reconcileContribution(ctx context.Context, evt *model.ProviderEvent) error {
	env, err := model.ParseChargeEnvelope(evt.Metadata)
	if err != nil {
		return err
	}
	marker := &model.WebhookEvent{EventID: evt.EventID, Provider: evt.Provider}

	if evt.Succeeded {
		applied, err := k.datasource.ConfirmContribution(ctx, marker, env, evt.ChargeRef)
		if err != nil {
			return err
		}
		if !applied {
			logrus.Infof("contribution event %s deduplicated", evt.EventID)
			return nil
		}
		major := provider.ToMajorUnits(env.Amount, env.Currency)
		k.notifier.Notify(ctx, env.PayerID, model.NotifyContributionSent,
			"Contribution sent",
			fmt.Sprintf("Your contribution of %s %s was charged successfully.", env.Currency, major))
		k.notifier.Notify(ctx, env.RecipientID, model.NotifyContributionReceived,
			"Contribution received",
			fmt.Sprintf("You received a contribution of %s %s.", env.Currency, major))
		return nil
	}

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	status, err := k.datasource.FailContribution(ctx, marker, env, evt.FailureCode, evt.FailureCause, cnf.Engine.MaxRetries)
	if err != nil {
		return err
	}
	switch status {
	case "":
		logrus.Infof("contribution failure event %s deduplicated", evt.EventID)
	case model.AttemptFailed:
		k.notifyChargeExhausted(ctx, env.PayerID, env.GroupID, env.RetryCount+1)
	case model.AttemptRetry:
		logrus.Infof("attempt %s scheduled for retry after %s", env.AttemptID, evt.FailureCode)
	}
	return nil
}

// reconcilePayout settles a transfer outcome against its withdrawal. The
// withdrawal's terminal-state guard is the idempotency check here: a
// redelivered failure can never refund twice.
func (k *Kolo) reconcilePayout(ctx context.Context, evt *model.ProviderEvent) error {
	env, err := model.ParsePayoutEnvelope(evt.Metadata)
	if err != nil {
		return err
	}

	if evt.Succeeded {
		applied, err := k.datasource.CompleteWithdrawal(ctx, env.WithdrawalID, evt.TransferRef)
		if err != nil {
			return err
		}
		if applied {
			k.notifier.Notify(ctx, env.UserID, model.NotifyWithdrawalCompleted,
				"Withdrawal completed",
				fmt.Sprintf("Your withdrawal of %s %s has been paid out.", env.Currency, provider.ToMajorUnits(env.Amount, env.Currency)))
		}
		return nil
	}

	applied, err := k.datasource.FailWithdrawal(ctx, env.WithdrawalID, fmt.Sprintf("%s: %s", evt.FailureCode, evt.FailureCause))
	if err != nil {
		return err
	}
	if applied {
		k.notifier.Notify(ctx, env.UserID, model.NotifyWithdrawalFailed,
			"Withdrawal failed",
			"Your withdrawal could not be completed and the funds are back in your wallet. Please check your bank details and try again.")
	}
	return nil
}
