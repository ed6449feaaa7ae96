package validator

import (
	"context"

	"github.com/ignite/resource-workflow/internal/domain"
)

// Repository reads validator assignments.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetOrgUnit returns a Business Unit or Division. Returns ErrUnitNotFound
	// if it doesn't exist.
	GetOrgUnit(ctx context.Context, kind domain.UnitKind, id string) (*domain.OrgUnit, error)

	// GetMission returns a mission. Returns ErrMissionNotFound if it doesn't exist.
	GetMission(ctx context.Context, id string) (*domain.Mission, error)
}
