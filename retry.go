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

	"github.com/sirupsen/logrus"

	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/model"
)

const retrySweepBatchSize = 500

// SweepRetries re-dispatches attempts parked in retry. Each retry goes back
// through the same gates as a fresh dispatch: the obligation may have been
// settled manually, the payer may have turned auto-pay off or fallen into
// default, and the instrument may have expired since the first try.
func (k *Kolo) SweepRetries(ctx context.Context) (model.SweepSummary, error) {
	var summary model.SweepSummary

	locker, err := k.acquireSweepLock(ctx, "retry")
	if err != nil {
		logrus.Infof("retry sweep already running: %v", err)
		return summary, nil
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Errorf("failed to release retry sweep lock: %v", err)
		}
	}()

	cnf, err := config.Fetch()
	if err != nil {
		return summary, err
	}

	attempts, err := k.datasource.GetRetryableAttempts(ctx, cnf.Engine.MaxRetries, retrySweepBatchSize)
	if err != nil {
		return summary, err
	}

	for _, att := range attempts {
		summary.Processed++
		outcome, err := k.retryAttempt(ctx, att, cnf)
		if err != nil {
			summary.Failed++
			logrus.Errorf("retry of attempt %s failed: %v", att.AttemptID, err)
			continue
		}
		switch outcome {
		case dispatchAccepted:
			summary.Succeeded++
		case dispatchSkipped:
			summary.Skipped++
		case dispatchFailed:
			summary.Failed++
		}
	}
	return summary, nil
}

func (k *Kolo) retryAttempt(ctx context.Context, att *model.PaymentAttempt, cnf *config.Configuration) (dispatchOutcome, error) {
	obl, err := k.datasource.GetObligationByID(ctx, att.ObligationID)
	if err != nil {
		return dispatchFailed, err
	}
	if obl.Settled() {
		if err := k.datasource.SupersedeAttempt(ctx, att.AttemptID, "superseded: obligation settled"); err != nil {
			return dispatchFailed, err
		}
		return dispatchSkipped, nil
	}

	grp, err := k.datasource.GetGroupByID(ctx, att.GroupID)
	if err != nil {
		return dispatchFailed, err
	}

	skip, err := k.skipDefaultingPayer(ctx, grp, att.PayerID)
	if err != nil {
		return dispatchFailed, err
	}
	if skip {
		return dispatchSkipped, nil
	}

	pref, err := k.datasource.GetPaymentPreference(ctx, att.PayerID, att.GroupID)
	if err != nil {
		return dispatchFailed, err
	}
	if pref == nil || !pref.AutoPay || pref.InstrumentID == "" {
		if err := k.datasource.SupersedeAttempt(ctx, att.AttemptID, "superseded: auto-pay disabled"); err != nil {
			return dispatchFailed, err
		}
		return dispatchSkipped, nil
	}

	payer, err := k.datasource.GetUserByID(ctx, att.PayerID)
	if err != nil {
		return dispatchFailed, err
	}

	instrument, err := k.datasource.GetPaymentInstrument(ctx, pref.InstrumentID)
	if err != nil {
		return dispatchFailed, err
	}
	if !instrument.Usable(time.Now()) {
		status, err := k.datasource.RecordAttemptFailure(ctx, att.AttemptID, att.GroupID, att.PayerID,
			"instrument expired before retry", cnf.Engine.MaxRetries)
		if err != nil {
			return dispatchFailed, err
		}
		if status == model.AttemptFailed {
			k.notifyChargeExhausted(ctx, att.PayerID, att.GroupID, att.RetryCount+1)
		}
		return dispatchFailed, nil
	}

	quote, proc := k.providers.Quote(att.Amount, att.Currency)
	return k.submitCharge(ctx, proc, quote, obl, att, payer, instrument)
}
