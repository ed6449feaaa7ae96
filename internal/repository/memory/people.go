package memory

import (
	"context"
	"sort"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/service/directory"
	"github.com/ignite/resource-workflow/internal/service/validator"
)

func unitKey(kind domain.UnitKind, id string) string { return string(kind) + ":" + id }

// PutOrgUnit inserts or replaces a Business Unit or Division.
func (s *Store) PutOrgUnit(u domain.OrgUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.units[unitKey(u.Kind, u.ID)] = u
}

// PutMission inserts or replaces a mission.
func (s *Store) PutMission(m domain.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.missions[m.ID] = m
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

// PutCollaborator inserts or replaces a collaborator.
func (s *Store) PutCollaborator(c domain.Collaborator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.collaborators[c.ID] = c
}

func (s *Store) GetOrgUnit(ctx context.Context, kind domain.UnitKind, id string) (*domain.OrgUnit, error) {
	var out *domain.OrgUnit
	err := s.view(ctx, func(st *state) error {
		u, ok := st.units[unitKey(kind, id)]
		if !ok {
			return validator.ErrUnitNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (s *Store) GetMission(ctx context.Context, id string) (*domain.Mission, error) {
	var out *domain.Mission
	err := s.view(ctx, func(st *state) error {
		m, ok := st.missions[id]
		if !ok {
			return validator.ErrMissionNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := s.view(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return directory.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (s *Store) GetCollaborator(ctx context.Context, id string) (*domain.Collaborator, error) {
	var out *domain.Collaborator
	err := s.view(ctx, func(st *state) error {
		c, ok := st.collaborators[id]
		if !ok {
			return directory.ErrCollaboratorNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (s *Store) CollaboratorByUserID(ctx context.Context, userID string) (*domain.Collaborator, error) {
	var out *domain.Collaborator
	err := s.view(ctx, func(st *state) error {
		for _, c := range st.collaborators {
			if c.UserID != nil && *c.UserID == userID {
				c := c
				out = &c
				return nil
			}
		}
		return directory.ErrCollaboratorNotFound
	})
	return out, err
}

func (s *Store) UsersByRole(ctx context.Context, roles []domain.UserRole) ([]domain.User, error) {
	var out []domain.User
	err := s.view(ctx, func(st *state) error {
		for _, u := range st.users {
			if hasRole(u.Role, roles) {
				out = append(out, u)
			}
		}
		return nil
	})
	sortUsers(out)
	return out, err
}

func (s *Store) BusinessUnitUsersByRole(ctx context.Context, businessUnitID string, roles []domain.UserRole) ([]domain.User, error) {
	var out []domain.User
	err := s.view(ctx, func(st *state) error {
		for _, c := range st.collaborators {
			if c.UserID == nil || c.BusinessUnitID == nil || *c.BusinessUnitID != businessUnitID {
				continue
			}
			u, ok := st.users[*c.UserID]
			if ok && hasRole(u.Role, roles) {
				out = append(out, u)
			}
		}
		return nil
	})
	sortUsers(out)
	return out, err
}

func hasRole(r domain.UserRole, roles []domain.UserRole) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

func sortUsers(us []domain.User) {
	sort.Slice(us, func(i, j int) bool { return us[i].ID < us[j].ID })
}

// userForCollaborator returns the account linked to a collaborator id.
func (st *state) userForCollaborator(collaboratorID *string) string {
	if collaboratorID == nil {
		return ""
	}
	c, ok := st.collaborators[*collaboratorID]
	if !ok || c.UserID == nil {
		return ""
	}
	return *c.UserID
}
