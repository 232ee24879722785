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

	"github.com/kolofinance/kolo/model"
)

// suspendCycleForDefaultingRecipient checks whether the cycle's recipient
// has overdue obligations anywhere on the platform. If so the whole cycle is
// suspended: the recipient is told to clear their arrears and every would-be
// payer is told why nothing was charged. Auto-pay resumes by itself on the
// next sweep once the recipient is clear; there is no re-enable step.
func (k *Kolo) suspendCycleForDefaultingRecipient(ctx context.Context, grp *model.Group, recipientID string, candidates []payerCandidate) (bool, error) {
	overdue, err := k.datasource.HasOverdueObligations(ctx, recipientID, time.Now())
	if err != nil {
		return false, err
	}
	if !overdue {
		return false, nil
	}

	k.notifier.Notify(ctx, recipientID, model.NotifyPayerDefaulting,
		"Contributions to you are on hold",
		fmt.Sprintf("Automatic contributions in %q are paused because you have unpaid contributions of your own. They resume as soon as you settle them.", grp.Name))
	for _, candidate := range candidates {
		k.notifier.Notify(ctx, candidate.userID, model.NotifyGroupSuspended,
			"Contribution cycle suspended",
			fmt.Sprintf("Your automatic contribution in %q was not charged this cycle because the recipient has unsettled contributions. No action is needed on your part.", grp.Name))
	}
	return true, nil
}

// skipDefaultingPayer checks the payer's own arrears. A delinquent payer is
// skipped for this cycle only, and told to settle manually first.
func (k *Kolo) skipDefaultingPayer(ctx context.Context, grp *model.Group, payerID string) (bool, error) {
	overdue, err := k.datasource.HasOverdueObligations(ctx, payerID, time.Now())
	if err != nil {
		return false, err
	}
	if !overdue {
		return false, nil
	}
	k.notifier.Notify(ctx, payerID, model.NotifyPayerDefaulting,
		"Automatic contribution skipped",
		fmt.Sprintf("Your automatic contribution in %q was skipped because you have overdue contributions. Please pay them manually to resume auto-pay.", grp.Name))
	return true, nil
}
