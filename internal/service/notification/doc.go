// Package notification implements the notification dispatcher: durable
// inbox records plus best-effort email delivery.
//
// Notify always creates a record. Deduplication is the caller's choice:
// NotifyOnce suppresses a notification when one of the same type for the
// same entity was created inside a trailing window, and NotifyProgress only
// fires when a campaign crosses a progress threshold it had not reached
// before. Both run their check and insert in one unit of work.
//
// Delivery failures are logged and never returned.
package notification
