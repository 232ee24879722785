package model

import "time"

// Notification kinds emitted by the engine.
const (
	NotifyContributionReceived = "contribution.received"
	NotifyContributionSent     = "contribution.sent"
	NotifyChargeFailed         = "charge.failed"
	NotifyAutoPayDisabled      = "autopay.disabled"
	NotifyGroupSuspended       = "group.suspended"
	NotifyPayerDefaulting      = "payer.defaulting"
	NotifyWithdrawalCompleted  = "withdrawal.completed"
	NotifyWithdrawalFailed     = "withdrawal.failed"
)

// Notification is a message to a user, delivered as an in-app inbox row and,
// where the user has an email address, by email.
type Notification struct {
	ID             int64     `json:"-"`
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Kind           string    `json:"kind"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewNotification builds an unread notification.
func NewNotification(userID, kind, subject, body string) Notification {
	return Notification{
		NotificationID: GenerateUUIDWithSuffix("ntf"),
		UserID:         userID,
		Kind:           kind,
		Subject:        subject,
		Body:           body,
		CreatedAt:      time.Now(),
	}
}
