package domain

import (
	"time"
)

// CampaignStatus is the business-facing status of a prospecting campaign.
type CampaignStatus string

const (
	CampaignDraft             CampaignStatus = "DRAFT"
	CampaignPlanned           CampaignStatus = "PLANNED"
	CampaignPendingValidation CampaignStatus = "PENDING_VALIDATION"
	CampaignValidated         CampaignStatus = "VALIDATED"
	CampaignRejected          CampaignStatus = "REJECTED"
	CampaignSent              CampaignStatus = "SENT"
	CampaignArchived          CampaignStatus = "ARCHIVED"
)

// CampaignValidationStatus mirrors the approval state machine. It is never
// set by callers directly; the workflow keeps it in step with CampaignStatus.
type CampaignValidationStatus string

const (
	ValidationDraft    CampaignValidationStatus = "BROUILLON"
	ValidationPending  CampaignValidationStatus = "EN_VALIDATION"
	ValidationApproved CampaignValidationStatus = "VALIDE"
	ValidationRejected CampaignValidationStatus = "REJETE"
)

// campaignValidationTransitions lists the allowed approval state edges.
var campaignValidationTransitions = map[CampaignValidationStatus][]CampaignValidationStatus{
	ValidationDraft:    {ValidationPending},
	ValidationPending:  {ValidationApproved, ValidationRejected, ValidationDraft},
	ValidationRejected: {ValidationPending},
	ValidationApproved: {},
}

// CanTransition reports whether the approval state machine allows s -> next.
func (s CampaignValidationStatus) CanTransition(next CampaignValidationStatus) bool {
	for _, allowed := range campaignValidationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BusinessStatus returns the coarse status that must accompany s.
func (s CampaignValidationStatus) BusinessStatus() CampaignStatus {
	switch s {
	case ValidationPending:
		return CampaignPendingValidation
	case ValidationApproved:
		return CampaignValidated
	case ValidationRejected:
		return CampaignRejected
	default:
		return CampaignDraft
	}
}

// ValidationLevel is the organisational scope a campaign is submitted to.
type ValidationLevel string

const (
	LevelBusinessUnit ValidationLevel = "BUSINESS_UNIT"
	LevelDivision     ValidationLevel = "DIVISION"
)

// Valid reports whether l is a known level.
func (l ValidationLevel) Valid() bool {
	return l == LevelBusinessUnit || l == LevelDivision
}

// Campaign is an outbound-prospecting campaign.
type Campaign struct {
	ID               string                   `json:"id" db:"id"`
	Name             string                   `json:"name" db:"name"`
	Channel          string                   `json:"channel" db:"channel"`
	BusinessUnitID   *string                  `json:"business_unit_id" db:"business_unit_id"`
	DivisionID       *string                  `json:"division_id" db:"division_id"`
	Status           CampaignStatus           `json:"status" db:"status"`
	ValidationStatus CampaignValidationStatus `json:"validation_statut" db:"validation_statut"`
	ResponsibleID    *string                  `json:"responsible_id" db:"responsible_id"`
	CreatedBy        *string                  `json:"created_by" db:"created_by"`
	ScheduledDate    *time.Time               `json:"scheduled_date" db:"scheduled_date"`
	SubmittedAt      *time.Time               `json:"date_soumission" db:"date_soumission"`
	DecidedAt        *time.Time               `json:"date_validation" db:"date_validation"`
	CreatedAt        time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at" db:"updated_at"`
}

// LinkValidationStatus is the per-company verdict once a decision lands.
type LinkValidationStatus string

const (
	LinkPending  LinkValidationStatus = "PENDING"
	LinkApproved LinkValidationStatus = "APPROVED"
	LinkRejected LinkValidationStatus = "REJECTED"
)

// ExecutionStatus tracks outbound execution of one company in a campaign.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending_execution"
	ExecutionSent    ExecutionStatus = "sent"
	ExecutionDeposed ExecutionStatus = "deposed"
	ExecutionFailed  ExecutionStatus = "failed"
)

var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionPending: {ExecutionSent, ExecutionDeposed, ExecutionFailed},
	ExecutionFailed:  {ExecutionPending, ExecutionSent, ExecutionDeposed},
	ExecutionSent:    {},
	ExecutionDeposed: {},
}

// Valid reports whether s is a known execution status.
func (s ExecutionStatus) Valid() bool {
	_, ok := executionTransitions[s]
	return ok
}

// CanTransition reports whether execution may move from s to next.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	for _, allowed := range executionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Completed reports whether s counts towards campaign progress.
func (s ExecutionStatus) Completed() bool {
	return s == ExecutionSent || s == ExecutionDeposed
}

// CampaignCompanyLink associates a target company with a campaign.
type CampaignCompanyLink struct {
	CampaignID             string               `json:"campaign_id" db:"campaign_id"`
	CompanyID              string               `json:"company_id" db:"company_id"`
	ValidationStatus       LinkValidationStatus `json:"validation_status" db:"validation_status"`
	ExecutionStatus        ExecutionStatus      `json:"execution_status" db:"execution_status"`
	ExecutionDate          *time.Time           `json:"execution_date" db:"execution_date"`
	ConvertedToOpportunity bool                 `json:"converted_to_opportunity" db:"converted_to_opportunity"`
	OpportunityID          *string              `json:"opportunity_id" db:"opportunity_id"`
}

// ExecutionEvent is one append-only row of a link's execution history.
type ExecutionEvent struct {
	ID         string          `json:"id" db:"id"`
	CampaignID string          `json:"campaign_id" db:"campaign_id"`
	CompanyID  string          `json:"company_id" db:"company_id"`
	FromStatus ExecutionStatus `json:"from_status" db:"from_status"`
	ToStatus   ExecutionStatus `json:"to_status" db:"to_status"`
	ActorID    string          `json:"actor_id" db:"actor_id"`
	Note       string          `json:"note" db:"note"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// RequestStatus is the decision state of one validation request.
type RequestStatus string

const (
	RequestPending         RequestStatus = "PENDING"
	RequestApproved        RequestStatus = "APPROVED"
	RequestRejected        RequestStatus = "REJECTED"
	RequestResolvedByOther RequestStatus = "RESOLVED_BY_OTHER"
)

// Decision is a validator's campaign-level verdict.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// RequestStatus returns the request status a decision resolves to.
func (d Decision) RequestStatus() RequestStatus {
	if d == DecisionApprove {
		return RequestApproved
	}
	return RequestRejected
}

// ValidationStatus returns the campaign approval state a decision leads to.
func (d Decision) ValidationStatus() CampaignValidationStatus {
	if d == DecisionApprove {
		return ValidationApproved
	}
	return ValidationRejected
}

// CampaignValidationRequest is one (campaign, validator) pair of a fan-out round.
type CampaignValidationRequest struct {
	ID               string          `json:"id" db:"id"`
	CampaignID       string          `json:"campaign_id" db:"campaign_id"`
	RequesterID      string          `json:"requester_id" db:"requester_id"`
	ValidatorID      string          `json:"validator_id" db:"validator_id"`
	ValidatorRole    ValidatorRole   `json:"validator_role" db:"validator_role"`
	Level            ValidationLevel `json:"level" db:"level"`
	Status           RequestStatus   `json:"status" db:"status"`
	RequesterComment string          `json:"requester_comment" db:"requester_comment"`
	DecisionComment  string          `json:"decision_comment" db:"decision_comment"`
	DecidedBy        *string         `json:"decided_by" db:"decided_by"`
	DecidedAt        *time.Time      `json:"decided_at" db:"decided_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// CompanyVerdict is a validator's per-company judgment.
type CompanyVerdict string

const (
	VerdictOK    CompanyVerdict = "OK"
	VerdictNotOK CompanyVerdict = "NOT_OK"
)

// Valid reports whether v is a known verdict.
func (v CompanyVerdict) Valid() bool {
	return v == VerdictOK || v == VerdictNotOK
}

// LinkStatus translates a verdict into the link's validation status.
func (v CompanyVerdict) LinkStatus() LinkValidationStatus {
	if v == VerdictOK {
		return LinkApproved
	}
	return LinkRejected
}

// CompanyDecision is a per-company verdict attached to one validation request.
type CompanyDecision struct {
	RequestID string         `json:"request_id" db:"request_id"`
	CompanyID string         `json:"company_id" db:"company_id"`
	Verdict   CompanyVerdict `json:"verdict" db:"verdict"`
	Note      string         `json:"note" db:"note"`
}

// Opportunity is the minimal sales opportunity created from a converted link.
type Opportunity struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"nom"`
	CompanyID      string    `json:"company_id" db:"company_id"`
	CollaboratorID *string   `json:"collaborateur_id" db:"collaborateur_id"`
	BusinessUnitID *string   `json:"business_unit_id" db:"business_unit_id"`
	Source         string    `json:"source" db:"source"`
	CampaignID     *string   `json:"campaign_id" db:"campaign_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
