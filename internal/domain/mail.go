package domain

import "time"

// EmailMessage is a rendered notification ready for the delivery channel.
// By the time a message reaches this struct, template rendering is complete.
type EmailMessage struct {
	NotificationID string `json:"notification_id"`
	To             string `json:"to"`
	FromName       string `json:"from_name"`
	FromEmail      string `json:"from_email"`
	Subject        string `json:"subject"`
	HTMLContent    string `json:"html_content"`
	TextContent    string `json:"text_content"`
}

// SendResult is returned by the delivery channel after attempting delivery.
type SendResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
	Error     string    `json:"error,omitempty"`
}
