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
	"github.com/kolofinance/kolo/model"
	"github.com/kolofinance/kolo/provider"
)

type dispatchOutcome int

const (
	dispatchSkipped dispatchOutcome = iota
	dispatchAccepted
	dispatchFailed
)

// dispatchCharge runs the charge pipeline for one payer and one period:
// ensure the obligation row, apply the duplicate-charge guard, append a
// pending attempt and submit the charge. The wallet is never credited here;
// crediting is the reconciler's alone, so a synchronous accept and a webhook
// confirmation can never double-credit.
func (k *Kolo) dispatchCharge(ctx context.Context, grp *model.Group, payer *model.User, recipientID, periodKey string, dueDate time.Time, instrument *model.PaymentInstrument) (dispatchOutcome, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return dispatchSkipped, err
	}

	obl, err := k.datasource.EnsureObligation(ctx,
		model.NewObligation(grp.GroupID, payer.UserID, recipientID, periodKey, grp.Amount, grp.Currency, dueDate))
	if err != nil {
		return dispatchFailed, err
	}
	if obl.Settled() {
		return dispatchSkipped, nil
	}

	// Duplicate-charge guard: a non-stale open attempt means a charge is
	// already in flight for this obligation.
	open, err := k.datasource.GetOpenAttempt(ctx, obl.ObligationID)
	if err != nil {
		return dispatchFailed, err
	}
	if open != nil {
		staleness := time.Duration(cnf.Engine.AttemptStalenessMinutes) * time.Minute
		if !open.Stale(time.Now(), staleness) {
			return dispatchSkipped, nil
		}
		// An attempt abandoned by a crashed run is closed out and superseded.
		if err := k.datasource.SupersedeAttempt(ctx, open.AttemptID, "superseded: attempt went stale"); err != nil {
			return dispatchFailed, err
		}
	}

	quote, proc := k.providers.Quote(grp.Amount, grp.Currency)
	att, err := k.datasource.RecordAttempt(ctx,
		model.NewPaymentAttempt(obl.ObligationID, payer.UserID, grp.GroupID, grp.Amount, grp.Currency, proc.Name()))
	if err != nil {
		return dispatchFailed, err
	}

	return k.submitCharge(ctx, proc, quote, obl, att, payer, instrument)
}

// submitCharge performs the provider call for an attempt and records the
// outcome. No transaction is held across the network call: the attempt row
// is written first, the charge submitted, and the result applied after.
func (k *Kolo) submitCharge(ctx context.Context, proc provider.Processor, quote provider.Quote, obl *model.Obligation, att *model.PaymentAttempt, payer *model.User, instrument *model.PaymentInstrument) (dispatchOutcome, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return dispatchSkipped, err
	}

	env := model.ChargeEnvelope{
		Kind:         model.EnvelopeContribution,
		AttemptID:    att.AttemptID,
		ObligationID: obl.ObligationID,
		GroupID:      obl.GroupID,
		PayerID:      payer.UserID,
		RecipientID:  obl.RecipientID,
		Amount:       quote.Amount,
		ProcessorFee: quote.ProcessorFee,
		PlatformFee:  quote.PlatformFee,
		Gross:        quote.Gross,
		Currency:     obl.Currency,
		RetryCount:   att.RetryCount,
	}

	// The reference keys provider-side idempotency. Retries are distinct
	// submissions, so each retry gets its own reference.
	reference := att.AttemptID
	if att.RetryCount > 0 {
		reference = fmt.Sprintf("%s-r%d", att.AttemptID, att.RetryCount)
	}

	result, err := proc.Charge(ctx, &provider.ChargeRequest{
		InstrumentToken: instrument.Token,
		CustomerRef:     payer.CustomerRef(proc.Name()),
		Amount:          quote.Gross,
		Currency:        obl.Currency,
		Reference:       reference,
		Metadata:        env.Encode(),
	})
	if err != nil {
		logrus.Warnf("charge submission failed for attempt %s: %v", att.AttemptID, err)
		status, dbErr := k.datasource.RecordAttemptFailure(ctx, att.AttemptID, obl.GroupID, payer.UserID, err.Error(), cnf.Engine.MaxRetries)
		if dbErr != nil {
			return dispatchFailed, dbErr
		}
		if status == model.AttemptFailed {
			k.notifyChargeExhausted(ctx, payer.UserID, obl.GroupID, att.RetryCount+1)
		}
		return dispatchFailed, nil
	}

	if err := k.datasource.MarkAttemptDispatched(ctx, att.AttemptID, result.TransactionID); err != nil {
		return dispatchFailed, err
	}
	return dispatchAccepted, nil
}

// notifyChargeExhausted tells a payer their attempts ran out and auto-pay
// was switched off. The message carries a next action, never raw processor
// internals.
func (k *Kolo) notifyChargeExhausted(ctx context.Context, payerID, groupID string, attempts int) {
	k.notifier.Notify(ctx, payerID, model.NotifyChargeFailed,
		"Your contribution could not be charged",
		fmt.Sprintf("We tried charging your card %d time(s) without success. Automatic contributions for group %s are switched off. Pay manually, or add a new payment method and re-enable auto-pay.", attempts, groupID))
	k.notifier.Notify(ctx, payerID, model.NotifyAutoPayDisabled,
		"Auto-pay disabled",
		fmt.Sprintf("Auto-pay for group %s was disabled after repeated charge failures.", groupID))
}
