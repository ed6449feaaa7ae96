package validator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/repository/memory"
	"github.com/ignite/resource-workflow/internal/service/validator"
)

func strPtr(s string) *string { return &s }

func newStore() *memory.Store {
	s := memory.New()
	s.PutOrgUnit(domain.OrgUnit{ID: "bu-1", Kind: domain.UnitBusinessUnit, PrincipalID: strPtr("col-p"), AdjointID: strPtr("col-a")})
	s.PutOrgUnit(domain.OrgUnit{ID: "bu-adj", Kind: domain.UnitBusinessUnit, AdjointID: strPtr("col-a")})
	s.PutOrgUnit(domain.OrgUnit{ID: "bu-same", Kind: domain.UnitBusinessUnit, PrincipalID: strPtr("col-p"), AdjointID: strPtr("col-p")})
	s.PutOrgUnit(domain.OrgUnit{ID: "bu-empty", Kind: domain.UnitBusinessUnit})
	s.PutOrgUnit(domain.OrgUnit{ID: "div-1", Kind: domain.UnitDivision, PrincipalID: strPtr("col-d")})
	s.PutMission(domain.Mission{ID: "m-1", AssociateID: strPtr("col-assoc"), BusinessUnitID: strPtr("bu-1")})
	s.PutMission(domain.Mission{ID: "m-2", AssociateID: strPtr("col-p"), BusinessUnitID: strPtr("bu-1")})
	return s
}

func TestResolveValidators(t *testing.T) {
	r := validator.NewResolver(newStore())
	ctx := context.Background()

	tests := []struct {
		name  string
		bu    string
		div   string
		level domain.ValidationLevel
		want  []domain.Validator
	}{
		{
			name: "business unit principal then adjoint", bu: "bu-1", level: domain.LevelBusinessUnit,
			want: []domain.Validator{
				{CollaboratorID: "col-p", Role: domain.RoleBUPrincipal},
				{CollaboratorID: "col-a", Role: domain.RoleBUAdjoint},
			},
		},
		{
			name: "adjoint only", bu: "bu-adj", level: domain.LevelBusinessUnit,
			want: []domain.Validator{{CollaboratorID: "col-a", Role: domain.RoleBUAdjoint}},
		},
		{
			name: "same person in both seats", bu: "bu-same", level: domain.LevelBusinessUnit,
			want: []domain.Validator{{CollaboratorID: "col-p", Role: domain.RoleBUPrincipal}},
		},
		{
			name: "division level ignores business unit", bu: "bu-1", div: "div-1", level: domain.LevelDivision,
			want: []domain.Validator{{CollaboratorID: "col-d", Role: domain.RoleDivisionPrincipal}},
		},
		{name: "nothing configured", bu: "bu-empty", level: domain.LevelBusinessUnit},
		{name: "division level without division", bu: "bu-1", level: domain.LevelDivision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveValidators(ctx, tt.bu, tt.div, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveValidatorsErrors(t *testing.T) {
	r := validator.NewResolver(newStore())
	ctx := context.Background()

	_, err := r.ResolveValidators(ctx, "bu-1", "", "TEAM")
	assert.True(t, errors.Is(err, validator.ErrUnknownLevel))

	_, err = r.ResolveValidators(ctx, "bu-missing", "", domain.LevelBusinessUnit)
	assert.True(t, errors.Is(err, validator.ErrUnitNotFound))
}

func TestResolveValidatorFallsBackToAdjoint(t *testing.T) {
	r := validator.NewResolver(newStore())
	ctx := context.Background()

	v, err := r.ResolveValidator(ctx, "bu-1", "", domain.LevelBusinessUnit)
	require.NoError(t, err)
	assert.Equal(t, "col-p", v.CollaboratorID)

	v, err = r.ResolveValidator(ctx, "bu-adj", "", domain.LevelBusinessUnit)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBUAdjoint, v.Role)

	_, err = r.ResolveValidator(ctx, "bu-empty", "", domain.LevelBusinessUnit)
	assert.True(t, errors.Is(err, validator.ErrNoValidatorConfigured))
}

func TestInvoiceValidators(t *testing.T) {
	r := validator.NewResolver(newStore())
	ctx := context.Background()

	ids, err := r.InvoiceValidators(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"col-assoc", "col-p", "col-a"}, ids)

	ids, err = r.InvoiceValidators(ctx, "m-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"col-p", "col-a"}, ids)

	_, err = r.InvoiceValidators(ctx, "m-missing")
	assert.True(t, errors.Is(err, validator.ErrMissionNotFound))
}
