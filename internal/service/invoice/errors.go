package invoice

import "github.com/ignite/resource-workflow/internal/pkg/apperr"

// Sentinel errors for the invoice service layer.
var (
	ErrNotFound             = apperr.New(apperr.KindNotFound, "INVOICE_NOT_FOUND", "invoice not found")
	ErrInvalidTransition    = apperr.New(apperr.KindStateConflict, "INVOICE_INVALID_TRANSITION", "invoice workflow status does not allow this operation")
	ErrDueDateLocked        = apperr.New(apperr.KindStateConflict, "INVOICE_DUE_DATE_LOCKED", "due date can only change while draft or submitted for validation")
	ErrNoLines              = apperr.New(apperr.KindValidation, "INVOICE_NO_LINES", "invoice has no lines")
	ErrReasonRequired       = apperr.New(apperr.KindValidation, "INVOICE_REASON_REQUIRED", "a reason is required")
	ErrDueDateRequired      = apperr.New(apperr.KindValidation, "INVOICE_DUE_DATE_REQUIRED", "due date is required")
	ErrUnauthorized         = apperr.New(apperr.KindUnauthorized, "INVOICE_UNAUTHORIZED", "user is not allowed to perform this invoice action")
	ErrHasAllocatedPayments = apperr.New(apperr.KindDependency, "INVOICE_HAS_ALLOCATED_PAYMENTS", "invoice has allocated payments")
)
