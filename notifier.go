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

	"github.com/sirupsen/logrus"

	"github.com/kolofinance/kolo/database"
	"github.com/kolofinance/kolo/internal/email"
	"github.com/kolofinance/kolo/internal/notification"
	"github.com/kolofinance/kolo/model"
)

// Notifier delivers user-facing messages. Delivery is best effort: a
// notification that cannot be written or queued is logged and dropped, never
// allowed to fail the settlement that produced it.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, subject, body string)
}

// queueNotifier writes the in-app inbox row synchronously and hands email
// delivery to the worker pool.
type queueNotifier struct {
	datasource database.IDataSource
	queue      *Queue
}

// NewQueueNotifier builds the default notifier.
func NewQueueNotifier(db database.IDataSource, queue *Queue) Notifier {
	return &queueNotifier{datasource: db, queue: queue}
}

func (n *queueNotifier) Notify(ctx context.Context, userID, kind, subject, body string) {
	ntf := model.NewNotification(userID, kind, subject, body)
	if err := n.datasource.CreateNotification(ctx, &ntf); err != nil {
		notification.NotifyError(err)
		logrus.Errorf("failed to write notification %s for %s: %v", kind, userID, err)
		return
	}
	if err := n.queue.queueNotification(ntf); err != nil {
		logrus.Errorf("failed to queue notification %s for %s: %v", kind, userID, err)
	}
}

// DeliverNotificationEmail sends the email leg of a queued notification. The
// worker pool calls this after dequeueing; users without an email address
// only get the inbox row.
func (k *Kolo) DeliverNotificationEmail(ctx context.Context, sender email.Sender, n model.Notification) error {
	usr, err := k.datasource.GetUserByID(ctx, n.UserID)
	if err != nil {
		return err
	}
	if usr.Email == "" {
		return nil
	}
	return sender.Send(ctx, usr.Email, n.Subject, n.Body)
}
