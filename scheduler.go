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

	"github.com/kolofinance/kolo/model"
)

// payerCandidate is one auto-pay member whose effective charge date is the
// sweep day.
type payerCandidate struct {
	userID string
	pref   *model.PaymentPreference
}

// SweepAll runs the three scheduling sweeps in sequence and merges their
// summaries. The retry and withdrawal sweeps are triggered independently.
func (k *Kolo) SweepAll(ctx context.Context, today time.Time) (model.SweepSummary, error) {
	var summary model.SweepSummary
	for _, sweep := range []func(context.Context, time.Time) (model.SweepSummary, error){
		k.SweepBirthdays,
		k.SweepSubscriptions,
		k.SweepGeneralGroups,
	} {
		s, err := sweep(ctx, today)
		if err != nil {
			return summary, err
		}
		summary.Merge(s)
	}
	return summary, nil
}

// SweepBirthdays runs the daily scheduling pass over birthday groups. Each
// member is a celebrant on their own anniversary; everyone else in the group
// owes them a contribution for that cycle.
func (k *Kolo) SweepBirthdays(ctx context.Context, today time.Time) (model.SweepSummary, error) {
	var summary model.SweepSummary
	locker, err := k.acquireSweepLock(ctx, "birthday")
	if err != nil {
		logrus.Infof("birthday sweep already running: %v", err)
		return summary, nil
	}
	defer func() {
		_ = locker.Unlock(ctx)
	}()

	today = model.DateOnly(today)
	groups, err := k.datasource.GetGroupsByKind(ctx, model.GroupBirthday)
	if err != nil {
		return summary, err
	}
	for _, grp := range groups {
		members, err := k.datasource.GetGroupMembers(ctx, grp.GroupID)
		if err != nil {
			logrus.Errorf("birthday sweep: failed to load members of %s: %v", grp.GroupID, err)
			continue
		}
		for _, celebrant := range members {
			celebrantUser, err := k.datasource.GetUserByID(ctx, celebrant.UserID)
			if err != nil {
				logrus.Errorf("birthday sweep: failed to load celebrant %s: %v", celebrant.UserID, err)
				continue
			}
			if celebrantUser.DateOfBirth.IsZero() {
				continue
			}
			due := model.NextAnniversary(celebrantUser.DateOfBirth, today)
			periodKey := model.BirthdayPeriodKey(celebrant.UserID, due)
			summary.Merge(k.runGroupCycle(ctx, grp, celebrant.UserID, periodKey, due, today, members))
		}
	}
	return summary, nil
}

// SweepSubscriptions runs the daily scheduling pass over subscription
// groups. Contributions flow to the group admin on the recurring deadline,
// clamped to the last day of short months.
func (k *Kolo) SweepSubscriptions(ctx context.Context, today time.Time) (model.SweepSummary, error) {
	var summary model.SweepSummary
	locker, err := k.acquireSweepLock(ctx, "subscription")
	if err != nil {
		logrus.Infof("subscription sweep already running: %v", err)
		return summary, nil
	}
	defer func() {
		_ = locker.Unlock(ctx)
	}()

	today = model.DateOnly(today)
	groups, err := k.datasource.GetGroupsByKind(ctx, model.GroupSubscription)
	if err != nil {
		return summary, err
	}
	for _, grp := range groups {
		members, err := k.datasource.GetGroupMembers(ctx, grp.GroupID)
		if err != nil {
			logrus.Errorf("subscription sweep: failed to load members of %s: %v", grp.GroupID, err)
			continue
		}
		due := grp.SubscriptionDueDate(today)
		periodKey := model.SubscriptionPeriodKey(grp.Interval, due)
		summary.Merge(k.runGroupCycle(ctx, grp, grp.AdminID, periodKey, due, today, members))
	}
	return summary, nil
}

// SweepGeneralGroups runs the daily scheduling pass over one-time groups.
// The fixed target date makes each group fire at most once: no other day can
// match the charge date.
func (k *Kolo) SweepGeneralGroups(ctx context.Context, today time.Time) (model.SweepSummary, error) {
	var summary model.SweepSummary
	locker, err := k.acquireSweepLock(ctx, "general")
	if err != nil {
		logrus.Infof("general sweep already running: %v", err)
		return summary, nil
	}
	defer func() {
		_ = locker.Unlock(ctx)
	}()

	today = model.DateOnly(today)
	groups, err := k.datasource.GetGroupsByKind(ctx, model.GroupGeneral)
	if err != nil {
		return summary, err
	}
	for _, grp := range groups {
		if grp.TargetDate.IsZero() {
			continue
		}
		members, err := k.datasource.GetGroupMembers(ctx, grp.GroupID)
		if err != nil {
			logrus.Errorf("general sweep: failed to load members of %s: %v", grp.GroupID, err)
			continue
		}
		due := grp.GeneralDueDate()
		periodKey := model.GeneralPeriodKey(due)
		summary.Merge(k.runGroupCycle(ctx, grp, grp.AdminID, periodKey, due, today, members))
	}
	return summary, nil
}

// runGroupCycle processes one recipient's cycle of one group: it selects the
// members whose effective charge date is today, applies the defaulter gates
// and hands the survivors to the dispatcher. Failures are isolated per
// member so one bad charge never aborts the siblings.
func (k *Kolo) runGroupCycle(ctx context.Context, grp *model.Group, recipientID, periodKey string, dueDate, today time.Time, members []*model.Member) model.SweepSummary {
	var summary model.SweepSummary

	var candidates []payerCandidate
	for _, member := range members {
		if member.UserID == recipientID {
			continue
		}
		pref, err := k.datasource.GetPaymentPreference(ctx, member.UserID, grp.GroupID)
		if err != nil || !pref.AutoPay {
			continue
		}
		chargeDate := dueDate.AddDate(0, 0, -pref.Offset.LeadDays())
		if !chargeDate.Equal(today) {
			continue
		}
		candidates = append(candidates, payerCandidate{userID: member.UserID, pref: pref})
	}
	if len(candidates) == 0 {
		return summary
	}

	// Group-level gate: a recipient in arrears suspends the whole cycle.
	suspended, err := k.suspendCycleForDefaultingRecipient(ctx, grp, recipientID, candidates)
	if err != nil {
		logrus.Errorf("defaulter gate failed for group %s: %v", grp.GroupID, err)
		summary.Processed += len(candidates)
		summary.Skipped += len(candidates)
		return summary
	}
	if suspended {
		summary.Processed += len(candidates)
		summary.Skipped += len(candidates)
		return summary
	}

	for _, candidate := range candidates {
		summary.Processed++
		outcome, err := k.chargeCandidate(ctx, grp, candidate, recipientID, periodKey, dueDate)
		if err != nil {
			logrus.Errorf("charge failed for payer %s in group %s: %v", candidate.userID, grp.GroupID, err)
			summary.Failed++
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
	return summary
}

// chargeCandidate applies the payer-level gates and dispatches the charge.
func (k *Kolo) chargeCandidate(ctx context.Context, grp *model.Group, candidate payerCandidate, recipientID, periodKey string, dueDate time.Time) (dispatchOutcome, error) {
	skip, err := k.skipDefaultingPayer(ctx, grp, candidate.userID)
	if err != nil {
		return dispatchSkipped, err
	}
	if skip {
		return dispatchSkipped, nil
	}

	payer, err := k.datasource.GetUserByID(ctx, candidate.userID)
	if err != nil {
		return dispatchSkipped, err
	}
	instrument, err := k.datasource.GetPaymentInstrument(ctx, candidate.pref.InstrumentID)
	if err != nil || !instrument.Usable(time.Now()) {
		logrus.Warnf("payer %s has no usable instrument for group %s, skipping", candidate.userID, grp.GroupID)
		return dispatchSkipped, nil
	}
	return k.dispatchCharge(ctx, grp, payer, recipientID, periodKey, dueDate, instrument)
}
