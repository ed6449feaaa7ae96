package notification

import "github.com/ignite/resource-workflow/internal/pkg/apperr"

// Sentinel errors for the notification service layer.
var (
	ErrNotFound          = apperr.New(apperr.KindNotFound, "NOTIFICATION_NOT_FOUND", "notification not found")
	ErrRecipientRequired = apperr.New(apperr.KindValidation, "NOTIFICATION_RECIPIENT_REQUIRED", "recipient user id is required")
	ErrMessageRequired   = apperr.New(apperr.KindValidation, "NOTIFICATION_MESSAGE_REQUIRED", "notification message is required")
	ErrPayloadRequired   = apperr.New(apperr.KindValidation, "NOTIFICATION_PAYLOAD_REQUIRED", "notification payload is required")
	ErrUnknownType       = apperr.New(apperr.KindValidation, "NOTIFICATION_UNKNOWN_TYPE", "unknown notification type")
	ErrDedupKeyMissing   = apperr.New(apperr.KindValidation, "NOTIFICATION_DEDUP_KEY_MISSING", "dedup key not present in payload")
	ErrNotRecipient      = apperr.New(apperr.KindUnauthorized, "NOTIFICATION_NOT_RECIPIENT", "notification belongs to another user")
)
