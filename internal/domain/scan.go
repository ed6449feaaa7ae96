package domain

import "time"

// Rows returned by the detector scans. They are read models assembled from
// several tables, not entities owned by this engine.

// OverdueStage is a pipeline stage whose due date has passed.
type OverdueStage struct {
	StageID         string    `db:"stage_id"`
	StageName       string    `db:"stage_name"`
	OpportunityID   string    `db:"opportunity_id"`
	OpportunityName string    `db:"opportunity_name"`
	DueDate         time.Time `db:"due_date"`
	RecipientID     string    `db:"user_id"`
}

// InactiveOpportunity is an open opportunity with stale activity.
type InactiveOpportunity struct {
	OpportunityID   string    `db:"opportunity_id"`
	OpportunityName string    `db:"opportunity_name"`
	LastActivity    time.Time `db:"last_activity"`
	RecipientID     string    `db:"user_id"`
}

// LateTimeSheet is a draft time sheet whose period has ended.
type LateTimeSheet struct {
	TimeSheetID string    `db:"time_sheet_id"`
	PeriodStart time.Time `db:"period_start"`
	PeriodEnd   time.Time `db:"period_end"`
	Status      string    `db:"status"`
	RecipientID string    `db:"user_id"`
}

// OverdueCampaign is a validated campaign past its scheduled date together
// with its execution counters.
type OverdueCampaign struct {
	CampaignID    string    `db:"campaign_id"`
	CampaignName  string    `db:"campaign_name"`
	ScheduledDate time.Time `db:"scheduled_date"`
	RecipientID   string    `db:"user_id"`
	Completed     int       `db:"completed"`
	Total         int       `db:"total"`
}

// FollowupCandidate is an executed company link that has not been converted.
type FollowupCandidate struct {
	CampaignID     string    `db:"campaign_id"`
	CampaignName   string    `db:"campaign_name"`
	CompanyID      string    `db:"company_id"`
	CompanyName    string    `db:"company_name"`
	ExecutionDate  time.Time `db:"execution_date"`
	RecipientID    string    `db:"user_id"`
	ResponsibleID  string    `db:"responsible_id"`
	BusinessUnitID *string   `db:"business_unit_id"`
}
