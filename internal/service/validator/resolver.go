package validator

import (
	"context"

	"github.com/ignite/resource-workflow/internal/domain"
)

// Resolver maps organisational scopes to their decision-makers.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveValidators returns the principal then the adjoint of the scope
// selected by level. A scope with no assignment yields an empty slice and a
// nil error; DIVISION without a division id does too.
func (r *Resolver) ResolveValidators(ctx context.Context, businessUnitID, divisionID string, level domain.ValidationLevel) ([]domain.Validator, error) {
	var (
		kind      domain.UnitKind
		unitID    string
		principal domain.ValidatorRole
		adjoint   domain.ValidatorRole
	)
	switch level {
	case domain.LevelDivision:
		kind, unitID = domain.UnitDivision, divisionID
		principal, adjoint = domain.RoleDivisionPrincipal, domain.RoleDivisionAdjoint
	case domain.LevelBusinessUnit:
		kind, unitID = domain.UnitBusinessUnit, businessUnitID
		principal, adjoint = domain.RoleBUPrincipal, domain.RoleBUAdjoint
	default:
		return nil, ErrUnknownLevel.Wrapf("level %q", level)
	}
	if unitID == "" {
		return nil, nil
	}

	unit, err := r.repo.GetOrgUnit(ctx, kind, unitID)
	if err != nil {
		return nil, err
	}

	var out []domain.Validator
	if unit.PrincipalID != nil && *unit.PrincipalID != "" {
		out = append(out, domain.Validator{CollaboratorID: *unit.PrincipalID, Role: principal})
	}
	if unit.AdjointID != nil && *unit.AdjointID != "" {
		// The same person in both seats gets one request, not two.
		if len(out) == 0 || out[0].CollaboratorID != *unit.AdjointID {
			out = append(out, domain.Validator{CollaboratorID: *unit.AdjointID, Role: adjoint})
		}
	}
	return out, nil
}

// ResolveValidator returns the principal, or the adjoint when no principal is
// assigned. Never use it to create approval fan-out.
func (r *Resolver) ResolveValidator(ctx context.Context, businessUnitID, divisionID string, level domain.ValidationLevel) (*domain.Validator, error) {
	all, err := r.ResolveValidators(ctx, businessUnitID, divisionID, level)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoValidatorConfigured
	}
	v := all[0]
	return &v, nil
}

// InvoiceValidators returns the collaborator ids allowed to validate invoices
// of a mission: the mission associate and the principal and adjoint of the
// mission's Business Unit. Unassigned seats and duplicates are dropped.
func (r *Resolver) InvoiceValidators(ctx context.Context, missionID string) ([]string, error) {
	m, err := r.repo.GetMission(ctx, missionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(id *string) {
		if id == nil || *id == "" || seen[*id] {
			return
		}
		seen[*id] = true
		out = append(out, *id)
	}

	add(m.AssociateID)
	if m.BusinessUnitID != nil && *m.BusinessUnitID != "" {
		bu, err := r.repo.GetOrgUnit(ctx, domain.UnitBusinessUnit, *m.BusinessUnitID)
		if err != nil {
			return nil, err
		}
		add(bu.PrincipalID)
		add(bu.AdjointID)
	}
	return out, nil
}
