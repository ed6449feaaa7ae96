package campaign

import (
	"context"
	"time"

	"github.com/ignite/resource-workflow/internal/domain"
)

// Repository defines the data access contract for the approval workflow.
// Implementations must be safe for concurrent use.
//
// Lock* methods read a row and hold it until the surrounding transaction
// ends. Locks are always taken campaign first, then request or link.
type Repository interface {
	// RunInTx runs fn in one atomic unit of work. Repository calls made with
	// the context handed to fn join it; an error from fn rolls back.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	// GetCampaign returns ErrNotFound if the campaign doesn't exist.
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	LockCampaign(ctx context.Context, id string) (*domain.Campaign, error)

	// UpdateCampaignValidation writes the approval state, the matching
	// business status and both timestamps. Nil timestamps are cleared.
	UpdateCampaignValidation(ctx context.Context, id string, u ValidationUpdate) error

	CreateValidationRequests(ctx context.Context, reqs []domain.CampaignValidationRequest) error
	// DeleteValidationRequests removes every request of the campaign and
	// their company decisions.
	DeleteValidationRequests(ctx context.Context, campaignID string) (int, error)
	// GetValidationRequest returns ErrRequestNotFound if it doesn't exist.
	GetValidationRequest(ctx context.Context, id string) (*domain.CampaignValidationRequest, error)
	LockValidationRequest(ctx context.Context, id string) (*domain.CampaignValidationRequest, error)
	ListValidationRequests(ctx context.Context, campaignID string) ([]domain.CampaignValidationRequest, error)

	// ResolveValidationRequest records a decision only if the request is
	// still PENDING. It reports whether the row was updated.
	ResolveValidationRequest(ctx context.Context, id string, r Resolution) (bool, error)

	// ResolvePendingSiblings marks every other PENDING request of the
	// campaign RESOLVED_BY_OTHER and returns how many were marked.
	ResolvePendingSiblings(ctx context.Context, campaignID, exceptID, note string, at time.Time) (int, error)

	ReplaceCompanyDecisions(ctx context.Context, requestID string, ds []domain.CompanyDecision) error
	ListCompanyDecisions(ctx context.Context, requestID string) ([]domain.CompanyDecision, error)

	ListLinks(ctx context.Context, campaignID string) ([]domain.CampaignCompanyLink, error)
	// LockLink returns ErrLinkNotFound if the company isn't linked.
	LockLink(ctx context.Context, campaignID, companyID string) (*domain.CampaignCompanyLink, error)
	SetLinkValidation(ctx context.Context, campaignID, companyID string, status domain.LinkValidationStatus) error

	// UpdateLinkExecution moves execution from -> to only if the link is
	// still in from. It reports whether the row was updated.
	UpdateLinkExecution(ctx context.Context, campaignID, companyID string, from, to domain.ExecutionStatus, at time.Time) (bool, error)
	AppendExecutionEvent(ctx context.Context, e *domain.ExecutionEvent) error
	ListExecutionEvents(ctx context.Context, campaignID, companyID string) ([]domain.ExecutionEvent, error)

	CreateOpportunity(ctx context.Context, o *domain.Opportunity) error
	// MarkLinkConverted sets the conversion markers only if the link was not
	// converted yet. It reports whether the row was updated.
	MarkLinkConverted(ctx context.Context, campaignID, companyID, opportunityID string) (bool, error)
}

// ValidationUpdate is the approval state written by UpdateCampaignValidation.
type ValidationUpdate struct {
	ValidationStatus domain.CampaignValidationStatus
	SubmittedAt      *time.Time
	DecidedAt        *time.Time
}

// Resolution is the outcome written onto a decided request.
type Resolution struct {
	Status    domain.RequestStatus
	Comment   string
	DecidedBy string
	At        time.Time
}
