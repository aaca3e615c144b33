package model

import "time"

// User owns one task collection and an optional reminder endpoint.
type User struct {
	ID string `json:"id" db:"id"`

	// WebhookURL receives reminders. It may contain {title} and {body}
	// placeholders, or be a mailto: address when the mailbox channel is
	// configured. Empty disables reminders for the user.
	WebhookURL string `json:"webhookUrl" db:"webhook_url"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
