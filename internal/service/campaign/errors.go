package campaign

import (
	"github.com/ignite/resource-workflow/internal/pkg/apperr"
	"github.com/ignite/resource-workflow/internal/service/validator"
)

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = apperr.New(apperr.KindNotFound, "CAMPAIGN_NOT_FOUND", "campaign not found")
	ErrRequestNotFound   = apperr.New(apperr.KindNotFound, "VALIDATION_REQUEST_NOT_FOUND", "validation request not found")
	ErrLinkNotFound      = apperr.New(apperr.KindNotFound, "CAMPAIGN_COMPANY_NOT_FOUND", "company is not part of this campaign")
	ErrRequesterNotFound = apperr.New(apperr.KindNotFound, "REQUESTER_NOT_FOUND", "no collaborator linked to the requesting user")

	ErrInvalidLevel     = apperr.New(apperr.KindValidation, "INVALID_VALIDATION_LEVEL", "validation level must be BUSINESS_UNIT or DIVISION")
	ErrInvalidDecision  = apperr.New(apperr.KindValidation, "INVALID_DECISION", "decision must be APPROVE or REJECT")
	ErrInvalidVerdict   = apperr.New(apperr.KindValidation, "INVALID_COMPANY_VERDICT", "company verdict must be OK or NOT_OK")
	ErrDuplicateVerdict = apperr.New(apperr.KindValidation, "DUPLICATE_COMPANY_VERDICT", "company judged more than once")
	ErrUnknownCompany   = apperr.New(apperr.KindValidation, "UNKNOWN_CAMPAIGN_COMPANY", "company is not part of this campaign")
	ErrInvalidExecution = apperr.New(apperr.KindValidation, "INVALID_EXECUTION_STATUS", "unknown execution status")

	ErrInvalidState        = apperr.New(apperr.KindStateConflict, "CAMPAIGN_INVALID_STATE", "campaign is already under validation or validated")
	ErrAlreadyResolved     = apperr.New(apperr.KindStateConflict, "VALIDATION_ALREADY_RESOLVED", "validation request already resolved")
	ErrLinkNotApproved     = apperr.New(apperr.KindStateConflict, "COMPANY_NOT_APPROVED", "company has not been approved for execution")
	ErrExecutionTransition = apperr.New(apperr.KindStateConflict, "INVALID_EXECUTION_TRANSITION", "execution status transition not allowed")
	ErrNotExecuted         = apperr.New(apperr.KindStateConflict, "COMPANY_NOT_EXECUTED", "company must be sent or deposed before conversion")
	ErrAlreadyConverted    = apperr.New(apperr.KindStateConflict, "ALREADY_CONVERTED", "company already converted to an opportunity")

	ErrUnauthorized = apperr.New(apperr.KindUnauthorized, "DECIDER_UNAUTHORIZED", "decider is not a known collaborator")
	ErrNotRequester = apperr.New(apperr.KindUnauthorized, "NOT_REQUESTER", "only the requester may cancel a validation request")

	ErrNoValidatorConfigured = validator.ErrNoValidatorConfigured
)
