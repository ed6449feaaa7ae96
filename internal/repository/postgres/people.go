package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/service/directory"
	"github.com/ignite/resource-workflow/internal/service/validator"
)

// PeopleRepo implements validator.Repository and directory.Reader.
type PeopleRepo struct{ base }

// NewPeopleRepo creates a Postgres-backed organisation and people reader.
func NewPeopleRepo(db *sqlx.DB) *PeopleRepo { return &PeopleRepo{base{db: db}} }

var unitTables = map[domain.UnitKind]string{
	domain.UnitBusinessUnit: "business_units",
	domain.UnitDivision:     "divisions",
}

func (r *PeopleRepo) GetOrgUnit(ctx context.Context, kind domain.UnitKind, id string) (*domain.OrgUnit, error) {
	table, ok := unitTables[kind]
	if !ok {
		return nil, validator.ErrUnitNotFound
	}
	u := &domain.OrgUnit{}
	err := sqlx.GetContext(ctx, r.q(ctx), u, `
		SELECT id, nom, responsable_principal_id, responsable_adjoint_id
		FROM `+table+`
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, validator.ErrUnitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	u.Kind = kind
	return u, nil
}

func (r *PeopleRepo) GetMission(ctx context.Context, id string) (*domain.Mission, error) {
	m := &domain.Mission{}
	err := sqlx.GetContext(ctx, r.q(ctx), m, `
		SELECT id, nom, associe_id, business_unit_id FROM missions WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, validator.ErrMissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	return m, nil
}

const userColumns = `u.id, u.email, COALESCE(u.nom, '') AS nom, u.role`

func (r *PeopleRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	err := sqlx.GetContext(ctx, r.q(ctx), u, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

const collaboratorColumns = `id, user_id, nom, COALESCE(email, '') AS email, business_unit_id`

func (r *PeopleRepo) GetCollaborator(ctx context.Context, id string) (*domain.Collaborator, error) {
	return r.collaborator(ctx, `SELECT `+collaboratorColumns+` FROM collaborateurs WHERE id = $1`, id)
}

func (r *PeopleRepo) CollaboratorByUserID(ctx context.Context, userID string) (*domain.Collaborator, error) {
	return r.collaborator(ctx, `SELECT `+collaboratorColumns+` FROM collaborateurs WHERE user_id = $1 LIMIT 1`, userID)
}

func (r *PeopleRepo) collaborator(ctx context.Context, query, arg string) (*domain.Collaborator, error) {
	c := &domain.Collaborator{}
	err := sqlx.GetContext(ctx, r.q(ctx), c, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrCollaboratorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get collaborator: %w", err)
	}
	return c, nil
}

func (r *PeopleRepo) UsersByRole(ctx context.Context, roles []domain.UserRole) ([]domain.User, error) {
	var users []domain.User
	err := sqlx.SelectContext(ctx, r.q(ctx), &users, `
		SELECT `+userColumns+` FROM users u WHERE u.role = ANY($1) ORDER BY u.id
	`, roleArray(roles))
	if err != nil {
		return nil, fmt.Errorf("users by role: %w", err)
	}
	return users, nil
}

func (r *PeopleRepo) BusinessUnitUsersByRole(ctx context.Context, businessUnitID string, roles []domain.UserRole) ([]domain.User, error) {
	var users []domain.User
	err := sqlx.SelectContext(ctx, r.q(ctx), &users, `
		SELECT DISTINCT `+userColumns+`
		FROM users u
		JOIN collaborateurs c ON c.user_id = u.id
		WHERE c.business_unit_id = $1 AND u.role = ANY($2)
		ORDER BY u.id
	`, businessUnitID, roleArray(roles))
	if err != nil {
		return nil, fmt.Errorf("business unit users by role: %w", err)
	}
	return users, nil
}

func roleArray(roles []domain.UserRole) interface{} {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return pq.Array(out)
}
