// Package directory declares the read-only view of users and collaborators
// shared by the workflow services.
//
// Validators and requesters are collaborators; notifications are addressed to
// users. The directory is the only place the two identities are joined.
package directory

import (
	"context"
	"errors"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/apperr"
)

// Sentinel errors returned by Reader implementations.
var (
	ErrUserNotFound         = apperr.New(apperr.KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrCollaboratorNotFound = apperr.New(apperr.KindNotFound, "COLLABORATOR_NOT_FOUND", "collaborator not found")
)

// Reader looks up people.
// Implementations must be safe for concurrent use.
type Reader interface {
	// GetUser returns ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetCollaborator returns ErrCollaboratorNotFound if the collaborator
	// doesn't exist.
	GetCollaborator(ctx context.Context, id string) (*domain.Collaborator, error)

	// CollaboratorByUserID returns the collaborator linked to a user account,
	// or ErrCollaboratorNotFound.
	CollaboratorByUserID(ctx context.Context, userID string) (*domain.Collaborator, error)

	// UsersByRole returns every user holding one of roles.
	UsersByRole(ctx context.Context, roles []domain.UserRole) ([]domain.User, error)

	// BusinessUnitUsersByRole returns users whose collaborator belongs to the
	// Business Unit and who hold one of roles.
	BusinessUnitUsersByRole(ctx context.Context, businessUnitID string, roles []domain.UserRole) ([]domain.User, error)
}

// UserIDFor returns the user account of a collaborator, or "" when the
// collaborator has none or cannot be found.
func UserIDFor(ctx context.Context, r Reader, collaboratorID string) (string, error) {
	if collaboratorID == "" {
		return "", nil
	}
	c, err := r.GetCollaborator(ctx, collaboratorID)
	if err != nil {
		if errors.Is(err, ErrCollaboratorNotFound) {
			return "", nil
		}
		return "", err
	}
	if c.UserID == nil {
		return "", nil
	}
	return *c.UserID, nil
}
