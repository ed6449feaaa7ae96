package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType is the closed vocabulary of conditions the platform
// notifies about.
type NotificationType string

const (
	NotifStageOverdue            NotificationType = "STAGE_OVERDUE"
	NotifOpportunityInactive     NotificationType = "OPPORTUNITY_INACTIVE"
	NotifTimesheetLate           NotificationType = "TIMESHEET_LATE"
	NotifCampaignOverdue         NotificationType = "CAMPAIGN_OVERDUE"
	NotifCampaignProgress        NotificationType = "CAMPAIGN_PROGRESS"
	NotifCampaignSubmitted       NotificationType = "CAMPAIGN_SUBMITTED"
	NotifCampaignDecision        NotificationType = "CAMPAIGN_DECISION"
	NotifCampaignConversion      NotificationType = "CAMPAIGN_CONVERSION"
	NotifCompanyFollowup         NotificationType = "CAMPAIGN_COMPANY_FOLLOWUP"
	NotifCompanyFollowupEscalate NotificationType = "CAMPAIGN_COMPANY_FOLLOWUP_MGMT"
	NotifInvoiceSubmitted        NotificationType = "INVOICE_SUBMITTED"
	NotifInvoiceValidated        NotificationType = "INVOICE_VALIDATED"
	NotifInvoiceRejected         NotificationType = "INVOICE_REJECTED"
	NotifInvoiceEmitted          NotificationType = "INVOICE_EMITTED"
)

// Priority orders notifications in the inbox.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

var defaultPriorities = map[NotificationType]Priority{
	NotifStageOverdue:            PriorityHigh,
	NotifOpportunityInactive:     PriorityNormal,
	NotifTimesheetLate:           PriorityNormal,
	NotifCampaignOverdue:         PriorityHigh,
	NotifCampaignProgress:        PriorityLow,
	NotifCampaignSubmitted:       PriorityNormal,
	NotifCampaignDecision:        PriorityHigh,
	NotifCampaignConversion:      PriorityHigh,
	NotifCompanyFollowup:         PriorityNormal,
	NotifCompanyFollowupEscalate: PriorityHigh,
	NotifInvoiceSubmitted:        PriorityNormal,
	NotifInvoiceValidated:        PriorityNormal,
	NotifInvoiceRejected:         PriorityHigh,
	NotifInvoiceEmitted:          PriorityLow,
}

// Valid reports whether t belongs to the closed vocabulary.
func (t NotificationType) Valid() bool {
	_, ok := defaultPriorities[t]
	return ok
}

// DefaultPriority returns the priority used when the caller gives none.
func (t NotificationType) DefaultPriority() Priority {
	if p, ok := defaultPriorities[t]; ok {
		return p
	}
	return PriorityNormal
}

// Notification is immutable once created except for ReadAt.
// Metadata holds the JSON encoding of the type's payload.
type Notification struct {
	ID          string           `json:"id" db:"id"`
	Type        NotificationType `json:"type" db:"type"`
	RecipientID string           `json:"user_id" db:"user_id"`
	Priority    Priority         `json:"priority" db:"priority"`
	Title       string           `json:"title" db:"title"`
	Message     string           `json:"message" db:"message"`
	Metadata    json.RawMessage  `json:"metadata" db:"metadata"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	ReadAt      *time.Time       `json:"read_at" db:"read_at"`
}

// Payload decodes the notification's metadata into its typed payload.
func (n *Notification) Payload() (NotificationPayload, error) {
	return DecodePayload(n.Type, n.Metadata)
}

// NotificationStats summarises a recipient's inbox.
type NotificationStats struct {
	Total          int `json:"total" db:"total"`
	Unread         int `json:"unread" db:"unread"`
	HighUnread     int `json:"high_priority_unread" db:"high_priority_unread"`
	CampaignUnread int `json:"campaign_unread" db:"campaign_unread"`
}

// NotificationPayload is the structured metadata attached to one
// notification type. Each type has exactly one payload struct.
type NotificationPayload interface {
	NotificationType() NotificationType
}

// StageOverduePayload describes a pipeline stage past its due date.
type StageOverduePayload struct {
	StageID       string    `json:"stage_id"`
	StageName     string    `json:"stage_name"`
	OpportunityID string    `json:"opportunity_id"`
	DueDate       time.Time `json:"due_date"`
	DaysOverdue   int       `json:"days_overdue"`
}

func (StageOverduePayload) NotificationType() NotificationType { return NotifStageOverdue }

// OpportunityInactivePayload describes an open opportunity with no recent activity.
type OpportunityInactivePayload struct {
	OpportunityID   string    `json:"opportunity_id"`
	OpportunityName string    `json:"opportunity_name"`
	LastActivity    time.Time `json:"last_activity"`
	DaysInactive    int       `json:"days_inactive"`
}

func (OpportunityInactivePayload) NotificationType() NotificationType {
	return NotifOpportunityInactive
}

// TimesheetLatePayload describes a time sheet left open past its period.
type TimesheetLatePayload struct {
	TimeSheetID string    `json:"time_sheet_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Status      string    `json:"status"`
}

func (TimesheetLatePayload) NotificationType() NotificationType { return NotifTimesheetLate }

// ProgressSnapshot is the execution progress of a campaign at one instant.
type ProgressSnapshot struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"progress_percentage"`
}

// NewProgressSnapshot computes the rounded completion percentage. An
// unfinished campaign never rounds up to 100.
func NewProgressSnapshot(completed, total int) ProgressSnapshot {
	p := ProgressSnapshot{Completed: completed, Total: total}
	if total > 0 {
		p.Percentage = (completed*100 + total/2) / total
		if p.Percentage == 100 && completed < total {
			p.Percentage = 99
		}
	}
	return p
}

// CampaignOverduePayload describes a validated campaign past its scheduled date.
type CampaignOverduePayload struct {
	CampaignID    string    `json:"campaign_id"`
	CampaignName  string    `json:"campaign_name"`
	ScheduledDate time.Time `json:"scheduled_date"`
	DaysOverdue   int       `json:"days_overdue"`
	ProgressSnapshot
}

func (CampaignOverduePayload) NotificationType() NotificationType { return NotifCampaignOverdue }

// CampaignProgressPayload records a crossed progress threshold.
type CampaignProgressPayload struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Threshold    int    `json:"threshold"`
	ProgressSnapshot
}

func (CampaignProgressPayload) NotificationType() NotificationType { return NotifCampaignProgress }

// CampaignSubmittedPayload is sent to each validator of a fan-out round.
type CampaignSubmittedPayload struct {
	CampaignID   string          `json:"campaign_id"`
	CampaignName string          `json:"campaign_name"`
	RequestID    string          `json:"request_id"`
	Level        ValidationLevel `json:"level"`
	RequesterID  string          `json:"requester_id"`
	Comment      string          `json:"comment,omitempty"`
}

func (CampaignSubmittedPayload) NotificationType() NotificationType { return NotifCampaignSubmitted }

// CampaignDecisionPayload reports the authoritative decision of a round.
type CampaignDecisionPayload struct {
	CampaignID   string   `json:"campaign_id"`
	CampaignName string   `json:"campaign_name"`
	RequestID    string   `json:"request_id"`
	Decision     Decision `json:"decision"`
	DeciderID    string   `json:"decider_id"`
	Comment      string   `json:"comment,omitempty"`
}

func (CampaignDecisionPayload) NotificationType() NotificationType { return NotifCampaignDecision }

// CampaignConversionPayload reports an opportunity created from a campaign.
type CampaignConversionPayload struct {
	CampaignID    string `json:"campaign_id"`
	CampaignName  string `json:"campaign_name"`
	CompanyID     string `json:"company_id"`
	OpportunityID string `json:"opportunity_id"`
}

func (CampaignConversionPayload) NotificationType() NotificationType {
	return NotifCampaignConversion
}

// FollowupDetails identifies an executed company awaiting follow-up.
type FollowupDetails struct {
	CampaignID         string    `json:"campaign_id"`
	CampaignName       string    `json:"campaign_name"`
	CompanyID          string    `json:"company_id"`
	CompanyName        string    `json:"company_name"`
	ExecutionDate      time.Time `json:"execution_date"`
	DaysSinceExecution int       `json:"days_since_execution"`
}

// CompanyFollowupPayload reminds the campaign owner to follow up.
type CompanyFollowupPayload struct {
	FollowupDetails
}

func (CompanyFollowupPayload) NotificationType() NotificationType { return NotifCompanyFollowup }

// CompanyFollowupEscalationPayload escalates a stale follow-up to management.
type CompanyFollowupEscalationPayload struct {
	FollowupDetails
	ResponsibleID string `json:"responsible_id"`
}

func (CompanyFollowupEscalationPayload) NotificationType() NotificationType {
	return NotifCompanyFollowupEscalate
}

// InvoicePayload is shared by the invoice workflow notifications.
type InvoicePayload struct {
	Type           NotificationType      `json:"-"`
	InvoiceID      string                `json:"invoice_id"`
	InvoiceNumber  string                `json:"invoice_number"`
	WorkflowStatus InvoiceWorkflowStatus `json:"workflow_status"`
	ActorID        string                `json:"actor_id"`
	Reason         string                `json:"reason,omitempty"`
}

func (p InvoicePayload) NotificationType() NotificationType { return p.Type }

// EncodePayload serialises p for storage in Notification.Metadata.
func EncodePayload(p NotificationPayload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.NotificationType(), err)
	}
	return b, nil
}

// DecodePayload turns stored metadata back into the payload struct of t.
func DecodePayload(t NotificationType, raw json.RawMessage) (NotificationPayload, error) {
	var p NotificationPayload
	switch t {
	case NotifStageOverdue:
		p = &StageOverduePayload{}
	case NotifOpportunityInactive:
		p = &OpportunityInactivePayload{}
	case NotifTimesheetLate:
		p = &TimesheetLatePayload{}
	case NotifCampaignOverdue:
		p = &CampaignOverduePayload{}
	case NotifCampaignProgress:
		p = &CampaignProgressPayload{}
	case NotifCampaignSubmitted:
		p = &CampaignSubmittedPayload{}
	case NotifCampaignDecision:
		p = &CampaignDecisionPayload{}
	case NotifCampaignConversion:
		p = &CampaignConversionPayload{}
	case NotifCompanyFollowup:
		p = &CompanyFollowupPayload{}
	case NotifCompanyFollowupEscalate:
		p = &CompanyFollowupEscalationPayload{}
	case NotifInvoiceSubmitted, NotifInvoiceValidated, NotifInvoiceRejected, NotifInvoiceEmitted:
		p = &InvoicePayload{Type: t}
	default:
		return nil, fmt.Errorf("unknown notification type %q", t)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}
	return p, nil
}
