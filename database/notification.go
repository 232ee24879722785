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

	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
)

// CreateNotification writes an inbox row for a user.
func (d Datasource) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO kolo.notifications (notification_id, user_id, kind, subject, body, read)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.NotificationID, n.UserID, n.Kind, n.Subject, n.Body, n.Read)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create notification", err)
	}
	return nil
}

// GetNotificationsByUser lists a user's inbox, newest first.
func (d Datasource) GetNotificationsByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, notification_id, user_id, kind, subject, COALESCE(body, ''), read, created_at
		FROM kolo.notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve notifications", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var notifications []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		if err := rows.Scan(&n.ID, &n.NotificationID, &n.UserID, &n.Kind, &n.Subject, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan notification data", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating notifications", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags one inbox row as read.
func (d Datasource) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE kolo.notifications
		SET read = TRUE
		WHERE notification_id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark notification read", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Notification not found", nil)
	}
	return nil
}
