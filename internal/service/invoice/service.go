package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
	"github.com/ignite/resource-workflow/internal/service/directory"
	"github.com/ignite/resource-workflow/internal/service/notification"
)

// ValidatorSource returns the collaborators allowed to validate a mission's
// invoices.
type ValidatorSource interface {
	InvoiceValidators(ctx context.Context, missionID string) ([]string, error)
}

// Notifier creates notifications.
type Notifier interface {
	Notify(ctx context.Context, in notification.Input) (*domain.Notification, error)
}

// Policy names the roles that gate emission and cancellation.
type Policy struct {
	ElevatedRole domain.UserRole
	AdminRoles   []domain.UserRole
}

// DefaultPolicy is the role policy used when none is configured.
var DefaultPolicy = Policy{
	ElevatedRole: domain.UserRoleSeniorPartner,
	AdminRoles:   []domain.UserRole{domain.UserRoleAdmin, domain.UserRoleSuperAdmin},
}

// Service implements the invoice workflow. All public methods are safe for
// concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo       Repository
	people     directory.Reader
	validators ValidatorSource
	notifier   Notifier
	policy     Policy
	clock      func() time.Time
}

// NewService creates an invoice workflow service.
func NewService(repo Repository, people directory.Reader, validators ValidatorSource, notifier Notifier, policy Policy) *Service {
	if policy.ElevatedRole == "" {
		policy.ElevatedRole = DefaultPolicy.ElevatedRole
	}
	if len(policy.AdminRoles) == 0 {
		policy.AdminRoles = DefaultPolicy.AdminRoles
	}
	return &Service{
		repo:       repo,
		people:     people,
		validators: validators,
		notifier:   notifier,
		policy:     policy,
		clock:      time.Now,
	}
}

// SetClock overrides time.Now. Intended for tests.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

// actor is the user acting on an invoice.
type actor struct {
	user           *domain.User
	collaboratorID string
}

// step mutates a locked invoice for one action. It runs after the state
// check and before the write.
type step func(ctx context.Context, inv *domain.Invoice, a *actor, now time.Time) error

// Get returns an invoice.
func (s *Service) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// SubmitForValidation sends a draft with at least one line to its validators.
func (s *Service) SubmitForValidation(ctx context.Context, id, userID string) (*domain.Invoice, error) {
	inv, err := s.transition(ctx, id, userID, domain.ActionSubmitValidation,
		func(ctx context.Context, inv *domain.Invoice, a *actor, now time.Time) error {
			if inv.LineCount == 0 {
				return ErrNoLines
			}
			inv.SubmittedForValidationAt = &now
			inv.SubmittedForValidationBy = &a.user.ID
			return nil
		})
	if err != nil {
		return nil, err
	}

	ids, err := s.validators.InvoiceValidators(ctx, inv.MissionID)
	if err != nil {
		logger.Warn("[invoice.Service] validator lookup failed", "invoice_id", inv.ID, "error", err)
	}
	s.notifyUsers(ctx, inv, domain.NotifInvoiceSubmitted, userID, "",
		fmt.Sprintf("Invoice %s is awaiting your validation", label(inv)), s.collaboratorUsers(ctx, ids)...)
	return inv, nil
}

// Validate approves an invoice and submits it for emission in one step.
// Only the mission associate and the Business Unit principal or adjoint may
// validate.
func (s *Service) Validate(ctx context.Context, id, userID, notes string) (*domain.Invoice, error) {
	inv, err := s.transition(ctx, id, userID, domain.ActionValidate,
		func(ctx context.Context, inv *domain.Invoice, a *actor, now time.Time) error {
			if err := s.requireValidator(ctx, inv, a); err != nil {
				return err
			}
			inv.ValidatedAt = &now
			inv.ValidatedBy = &a.user.ID
			if n := strings.TrimSpace(notes); n != "" {
				inv.ValidationNotes = &n
			}
			inv.SubmittedForEmissionAt = &now
			return nil
		})
	if err != nil {
		return nil, err
	}

	elevated, err := s.people.UsersByRole(ctx, []domain.UserRole{s.policy.ElevatedRole})
	if err != nil {
		logger.Warn("[invoice.Service] elevated users lookup failed", "invoice_id", inv.ID, "error", err)
	}
	recipients := make([]string, 0, len(elevated))
	for _, u := range elevated {
		recipients = append(recipients, u.ID)
	}
	s.notifyUsers(ctx, inv, domain.NotifInvoiceValidated, userID, "",
		fmt.Sprintf("Invoice %s has been validated and is awaiting emission", label(inv)), recipients...)
	return inv, nil
}

// Reject returns a submitted invoice to draft. The validator set may reject
// at the validation step; the elevated role at the emission step.
func (s *Service) Reject(ctx context.Context, id, userID, reason string) (*domain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	inv, err := s.transition(ctx, id, userID, domain.ActionReject,
		func(ctx context.Context, inv *domain.Invoice, a *actor, now time.Time) error {
			switch inv.WorkflowStatus {
			case domain.InvoiceSubmittedValidation:
				if err := s.requireValidator(ctx, inv, a); err != nil {
					return err
				}
			default:
				if err := s.requireRole(a, s.policy.ElevatedRole); err != nil {
					return err
				}
			}
			inv.RejectedAt = &now
			inv.RejectedBy = &a.user.ID
			inv.RejectionReason = &reason
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.notifyUsers(ctx, inv, domain.NotifInvoiceRejected, userID, reason,
		fmt.Sprintf("Invoice %s was rejected: %s", label(inv), reason), deref(inv.SubmittedForValidationBy))
	return inv, nil
}

// ValidateForEmission is the elevated role's approval of a submitted invoice.
func (s *Service) ValidateForEmission(ctx context.Context, id, userID string) (*domain.Invoice, error) {
	return s.transition(ctx, id, userID, domain.ActionValidateEmission,
		func(ctx context.Context, inv *domain.Invoice, a *actor, now time.Time) error {
			if err := s.requireRole(a, s.policy.ElevatedRole); err != nil {
				return err
			}
			inv.EmissionValidatedAt = &now
			inv.EmissionValidatedBy = &a.user.ID
			return nil
		})
}

// Emit marks a validated invoice as issued and mirrors the business status.
func (s *Service) Emit(ctx context.Context, id, userID string) (*domain.Invoice, error) {
	inv, err := s.transition(ctx, id, userID, domain.ActionEmit,
		func(ctx context.Context, inv *domain.Invoice, a *actor, now time.Time) error {
			inv.EmittedAt = &now
			inv.EmittedBy = &a.user.ID
			inv.Status = string(domain.InvoiceEmitted)
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.notifyUsers(ctx, inv, domain.NotifInvoiceEmitted, userID, "",
		fmt.Sprintf("Invoice %s has been issued", label(inv)), deref(inv.SubmittedForValidationBy))
	return inv, nil
}

// Cancel voids a non-terminal invoice. It is refused while any payment
// allocation references the invoice.
func (s *Service) Cancel(ctx context.Context, id, userID, reason string) (*domain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	roles := append([]domain.UserRole{s.policy.ElevatedRole}, s.policy.AdminRoles...)
	return s.transition(ctx, id, userID, domain.ActionCancel,
		func(ctx context.Context, inv *domain.Invoice, a *actor, now time.Time) error {
			if err := s.requireRole(a, roles...); err != nil {
				return err
			}
			allocations, err := s.repo.ListPaymentAllocations(ctx, inv.ID)
			if err != nil {
				return err
			}
			if len(allocations) > 0 {
				return ErrHasAllocatedPayments.WithDetails(map[string]interface{}{
					"count":          len(allocations),
					"allocation_ids": allocations,
				})
			}
			inv.CancelledAt = &now
			inv.CancelledBy = &a.user.ID
			inv.CancellationReason = &reason
			inv.Status = string(domain.InvoiceCancelled)
			return nil
		})
}

// EditDueDate changes the due date while the invoice is still a draft or
// awaiting validation.
func (s *Service) EditDueDate(ctx context.Context, id string, due time.Time) (*domain.Invoice, error) {
	if due.IsZero() {
		return nil, ErrDueDateRequired
	}
	var inv *domain.Invoice
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if !inv.WorkflowStatus.DueDateEditable() {
			return ErrDueDateLocked.Wrapf("invoice %s is %s", inv.ID, inv.WorkflowStatus)
		}
		inv.DueDate = &due
		ok, err := s.repo.UpdateInvoiceWorkflow(ctx, inv, inv.WorkflowStatus)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDueDateLocked
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// transition runs one workflow action atomically: lock, check the edge,
// resolve the actor, apply fn, write. Any failure leaves the invoice as it was.
func (s *Service) transition(ctx context.Context, id, userID string, action domain.InvoiceAction, fn step) (*domain.Invoice, error) {
	var inv *domain.Invoice
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		from := inv.WorkflowStatus
		if !from.Allows(action) {
			return ErrInvalidTransition.Wrapf("%s from %s", action, from)
		}

		a, err := s.resolveActor(ctx, userID)
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		if err := fn(ctx, inv, a, now); err != nil {
			return err
		}
		inv.WorkflowStatus = domain.InvoiceTransitions[action].To
		inv.UpdatedAt = now

		ok, err := s.repo.UpdateInvoiceWorkflow(ctx, inv, from)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition.Wrapf("%s from %s", action, from)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("[invoice.Service] workflow transition",
		"invoice_id", inv.ID, "action", action, "workflow_status", inv.WorkflowStatus, "user_id", userID)
	return inv, nil
}

func (s *Service) resolveActor(ctx context.Context, userID string) (*actor, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}
	u, err := s.people.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	a := &actor{user: u}
	c, err := s.people.CollaboratorByUserID(ctx, userID)
	switch {
	case err == nil:
		a.collaboratorID = c.ID
	case !errors.Is(err, directory.ErrCollaboratorNotFound):
		return nil, err
	}
	return a, nil
}

func (s *Service) requireValidator(ctx context.Context, inv *domain.Invoice, a *actor) error {
	if a.collaboratorID == "" {
		return ErrUnauthorized.Wrapf("user %s has no collaborator record", a.user.ID)
	}
	ids, err := s.validators.InvoiceValidators(ctx, inv.MissionID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == a.collaboratorID {
			return nil
		}
	}
	return ErrUnauthorized.Wrapf("user %s is not a validator of mission %s", a.user.ID, inv.MissionID)
}

func (s *Service) requireRole(a *actor, roles ...domain.UserRole) error {
	for _, r := range roles {
		if a.user.Role == r {
			return nil
		}
	}
	return ErrUnauthorized.Wrapf("role %s", a.user.Role)
}

func (s *Service) collaboratorUsers(ctx context.Context, collaboratorIDs []string) []string {
	var out []string
	for _, id := range collaboratorIDs {
		uid, err := directory.UserIDFor(ctx, s.people, id)
		if err != nil {
			logger.Warn("[invoice.Service] recipient lookup failed", "collaborator_id", id, "error", err)
			continue
		}
		if uid != "" {
			out = append(out, uid)
		}
	}
	return out
}

// notifyUsers sends one notification per distinct user. Failures are
// logged only.
func (s *Service) notifyUsers(ctx context.Context, inv *domain.Invoice, t domain.NotificationType, actorID, reason, message string, userIDs ...string) {
	seen := make(map[string]bool, len(userIDs))
	for _, uid := range userIDs {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		_, err := s.notifier.Notify(ctx, notification.Input{
			RecipientID: uid,
			Title:       "Invoice workflow",
			Message:     message,
			Payload: domain.InvoicePayload{
				Type:           t,
				InvoiceID:      inv.ID,
				InvoiceNumber:  inv.Number,
				WorkflowStatus: inv.WorkflowStatus,
				ActorID:        actorID,
				Reason:         reason,
			},
		})
		if err != nil {
			logger.Warn("[invoice.Service] notification failed", "type", t, "invoice_id", inv.ID, "user_id", uid, "error", err)
		}
	}
}

func label(inv *domain.Invoice) string {
	if inv.Number != "" {
		return inv.Number
	}
	return inv.ID
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
