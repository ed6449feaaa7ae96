package validator

import "github.com/ignite/resource-workflow/internal/pkg/apperr"

// Sentinel errors for validator resolution.
var (
	ErrNoValidatorConfigured = apperr.New(apperr.KindUnauthorized, "NO_VALIDATOR_CONFIGURED", "no responsible party defined for this scope")
	ErrUnknownLevel          = apperr.New(apperr.KindValidation, "UNKNOWN_VALIDATION_LEVEL", "unknown validation level")
	ErrUnitNotFound          = apperr.New(apperr.KindNotFound, "ORG_UNIT_NOT_FOUND", "organisational unit not found")
	ErrMissionNotFound       = apperr.New(apperr.KindNotFound, "MISSION_NOT_FOUND", "mission not found")
)
