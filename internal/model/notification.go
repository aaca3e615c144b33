package model

import "time"

// Channel names a notification delivery mechanism.
type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelMailbox Channel = "mailbox"
)

// Notification is the audit record of one reminder delivery attempt.
type Notification struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"userId" db:"user_id"`
	TaskID string `json:"taskId" db:"task_id"`
	Title  string `json:"title" db:"title"`
	Body   string `json:"body" db:"body"`

	// Channel is derived from the endpoint the reminder was sent to.
	Channel Channel `json:"channel" db:"channel"`

	// Delivered is false when the delivery collaborator reported a failure.
	Delivered bool   `json:"delivered" db:"delivered"`
	Error     string `json:"error,omitempty" db:"error"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
