package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
	"github.com/ignite/resource-workflow/internal/service/notification"
)

// Task names.
const (
	TaskOverdueStages         = "overdue_stages"
	TaskInactiveOpportunities = "inactive_opportunities"
	TaskTimeSheets            = "time_sheets"
	TaskOverdueCampaigns      = "overdue_campaigns"
	TaskCompanyFollowups      = "company_followups"
	TaskNotificationRetention = "notification_retention"
)

// DefaultSpecs are the cron specs used when configuration leaves one empty.
var DefaultSpecs = map[string]string{
	TaskOverdueStages:         "0 9 * * *",
	TaskInactiveOpportunities: "0 10 * * *",
	TaskTimeSheets:            "0 8 * * 1",
	TaskOverdueCampaigns:      "0 9 * * *",
	TaskCompanyFollowups:      "0 9 * * *",
	TaskNotificationRetention: "0 2 * * 0",
}

const day = 24 * time.Hour

// ScanRepository reads the conditions the detectors look for.
type ScanRepository interface {
	ScanOverdueStages(ctx context.Context, now time.Time) ([]domain.OverdueStage, error)
	// ScanInactiveOpportunities returns open opportunities whose last
	// activity is strictly between notBefore and inactiveSince.
	ScanInactiveOpportunities(ctx context.Context, inactiveSince, notBefore time.Time) ([]domain.InactiveOpportunity, error)
	ScanLateTimeSheets(ctx context.Context, now time.Time) ([]domain.LateTimeSheet, error)
	ScanOverdueCampaigns(ctx context.Context, scheduledBefore time.Time) ([]domain.OverdueCampaign, error)
	ScanFollowupCandidates(ctx context.Context, lastContactBefore time.Time) ([]domain.FollowupCandidate, error)
}

// Notifier is the part of the notification dispatcher the detectors use.
type Notifier interface {
	Notify(ctx context.Context, in notification.Input) (*domain.Notification, error)
	NotifyOnce(ctx context.Context, in notification.Input, dd notification.Dedup) (*domain.Notification, error)
	Purge(ctx context.Context, readAge, unreadAge time.Duration) (int64, error)
}

// Managers finds the management of a Business Unit for escalations.
type Managers interface {
	BusinessUnitUsersByRole(ctx context.Context, businessUnitID string, roles []domain.UserRole) ([]domain.User, error)
}

// AlertConfig holds the detector thresholds.
type AlertConfig struct {
	OverdueCampaignAfter time.Duration
	OverdueCampaignDedup time.Duration
	InactiveMin          time.Duration
	InactiveMax          time.Duration
	// FollowupAfter is the owner reminder delay; zero disables follow-ups.
	FollowupAfter time.Duration
	// EscalateAfter is the management escalation delay; zero disables it.
	EscalateAfter   time.Duration
	EscalationRoles []domain.UserRole
	ReadRetention   time.Duration
	UnreadRetention time.Duration
}

// DefaultAlertConfig returns the production thresholds.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		OverdueCampaignAfter: 7 * day,
		OverdueCampaignDedup: 3 * day,
		InactiveMin:          7 * day,
		InactiveMax:          30 * day,
		FollowupAfter:        7 * day,
		EscalateAfter:        14 * day,
		EscalationRoles:      []domain.UserRole{domain.UserRoleDirector, domain.UserRolePartner, domain.UserRoleSeniorPartner},
		ReadRetention:        30 * day,
		UnreadRetention:      90 * day,
	}
}

// Detectors scans domain state and raises notifications. Each run is
// self-contained; nothing is carried between runs.
type Detectors struct {
	scans    ScanRepository
	notifier Notifier
	managers Managers
	cfg      AlertConfig
	clock    func() time.Time
	log      *logger.Logger
}

// NewDetectors creates the detector set. managers may be nil, which
// disables follow-up escalation.
func NewDetectors(scans ScanRepository, notifier Notifier, managers Managers, cfg AlertConfig) *Detectors {
	return &Detectors{
		scans:    scans,
		notifier: notifier,
		managers: managers,
		cfg:      cfg,
		clock:    time.Now,
		log:      logger.Component("detector"),
	}
}

// SetClock overrides time.Now.
func (d *Detectors) SetClock(clock func() time.Time) { d.clock = clock }

// TaskConfig enables a task and optionally overrides its spec.
type TaskConfig struct {
	Enabled bool
	Spec    string
}

// Tasks returns the enabled tasks. A task missing from cfg is enabled with
// its default spec.
func (d *Detectors) Tasks(cfg map[string]TaskConfig) []Task {
	runs := []struct {
		name string
		run  func(context.Context) error
	}{
		{TaskOverdueStages, d.OverdueStages},
		{TaskInactiveOpportunities, d.InactiveOpportunities},
		{TaskTimeSheets, d.LateTimeSheets},
		{TaskOverdueCampaigns, d.OverdueCampaigns},
		{TaskCompanyFollowups, d.CompanyFollowups},
		{TaskNotificationRetention, d.Retention},
	}
	var tasks []Task
	for _, r := range runs {
		tc, ok := cfg[r.name]
		if ok && !tc.Enabled {
			continue
		}
		spec := tc.Spec
		if spec == "" {
			spec = DefaultSpecs[r.name]
		}
		tasks = append(tasks, Task{Name: r.name, Spec: spec, Run: r.run})
	}
	return tasks
}

// daysSince counts whole days elapsed from t to now.
func daysSince(now, t time.Time) int {
	return int(now.Sub(t) / day)
}

// tally counts per-item failures so one bad row never stops a scan.
type tally struct {
	task           string
	sent, failures int
}

func (t *tally) record(n *domain.Notification, err error, log *logger.Logger, fields ...interface{}) {
	if err != nil {
		t.failures++
		log.Warn("notification failed", append([]interface{}{"task", t.task, "error", err.Error()}, fields...)...)
		return
	}
	if n != nil {
		t.sent++
	}
}

func (t *tally) result(log *logger.Logger, scanned int) error {
	log.Info("scan complete", "task", t.task, "matched", scanned, "notified", t.sent, "failed", t.failures)
	if t.failures > 0 {
		return fmt.Errorf("%s: %d of %d notifications failed", t.task, t.failures, scanned)
	}
	return nil
}

// OverdueStages notifies the owner of every open stage past its due date.
// A stage stays overdue until resolved, so it is notified again each run.
func (d *Detectors) OverdueStages(ctx context.Context) error {
	now := d.clock()
	rows, err := d.scans.ScanOverdueStages(ctx, now)
	if err != nil {
		return fmt.Errorf("scan overdue stages: %w", err)
	}
	t := tally{task: TaskOverdueStages}
	for _, r := range rows {
		days := daysSince(now, r.DueDate)
		n, err := d.notifier.Notify(ctx, notification.Input{
			RecipientID: r.RecipientID,
			Title:       "Stage overdue",
			Message:     fmt.Sprintf("Stage %q of opportunity %q is %d day(s) overdue", r.StageName, r.OpportunityName, days),
			Priority:    domain.PriorityHigh,
			Payload: domain.StageOverduePayload{
				StageID:       r.StageID,
				StageName:     r.StageName,
				OpportunityID: r.OpportunityID,
				DueDate:       r.DueDate,
				DaysOverdue:   days,
			},
		})
		t.record(n, err, d.log, "stage_id", r.StageID)
	}
	return t.result(d.log, len(rows))
}

// InactiveOpportunities notifies owners of open opportunities idle for
// longer than InactiveMin but not yet InactiveMax.
func (d *Detectors) InactiveOpportunities(ctx context.Context) error {
	now := d.clock()
	rows, err := d.scans.ScanInactiveOpportunities(ctx, now.Add(-d.cfg.InactiveMin), now.Add(-d.cfg.InactiveMax))
	if err != nil {
		return fmt.Errorf("scan inactive opportunities: %w", err)
	}
	t := tally{task: TaskInactiveOpportunities}
	for _, r := range rows {
		days := daysSince(now, r.LastActivity)
		n, err := d.notifier.Notify(ctx, notification.Input{
			RecipientID: r.RecipientID,
			Title:       "Inactive opportunity",
			Message:     fmt.Sprintf("Opportunity %q has had no activity for %d days", r.OpportunityName, days),
			Payload: domain.OpportunityInactivePayload{
				OpportunityID:   r.OpportunityID,
				OpportunityName: r.OpportunityName,
				LastActivity:    r.LastActivity,
				DaysInactive:    days,
			},
		})
		t.record(n, err, d.log, "opportunity_id", r.OpportunityID)
	}
	return t.result(d.log, len(rows))
}

// LateTimeSheets records a lateness notice for every draft or in-progress
// time sheet whose period has ended.
func (d *Detectors) LateTimeSheets(ctx context.Context) error {
	now := d.clock()
	rows, err := d.scans.ScanLateTimeSheets(ctx, now)
	if err != nil {
		return fmt.Errorf("scan time sheets: %w", err)
	}
	t := tally{task: TaskTimeSheets}
	for _, r := range rows {
		n, err := d.notifier.Notify(ctx, notification.Input{
			RecipientID: r.RecipientID,
			Title:       "Time sheet late",
			Message: fmt.Sprintf("Your time sheet for %s to %s has not been submitted",
				r.PeriodStart.Format("2006-01-02"), r.PeriodEnd.Format("2006-01-02")),
			Payload: domain.TimesheetLatePayload{
				TimeSheetID: r.TimeSheetID,
				PeriodStart: r.PeriodStart,
				PeriodEnd:   r.PeriodEnd,
				Status:      r.Status,
			},
		})
		t.record(n, err, d.log, "time_sheet_id", r.TimeSheetID)
	}
	return t.result(d.log, len(rows))
}

// OverdueCampaigns notifies the owner of every validated campaign scheduled
// more than OverdueCampaignAfter ago, at most once per campaign within
// OverdueCampaignDedup.
func (d *Detectors) OverdueCampaigns(ctx context.Context) error {
	now := d.clock()
	rows, err := d.scans.ScanOverdueCampaigns(ctx, now.Add(-d.cfg.OverdueCampaignAfter))
	if err != nil {
		return fmt.Errorf("scan overdue campaigns: %w", err)
	}
	t := tally{task: TaskOverdueCampaigns}
	for _, r := range rows {
		days := daysSince(now, r.ScheduledDate)
		snap := domain.NewProgressSnapshot(r.Completed, r.Total)
		n, err := d.notifier.NotifyOnce(ctx, notification.Input{
			RecipientID: r.RecipientID,
			Title:       "Campaign overdue",
			Message: fmt.Sprintf("Campaign %q is %d days past its scheduled date (%d%% executed)",
				r.CampaignName, days, snap.Percentage),
			Priority: domain.PriorityHigh,
			Payload: domain.CampaignOverduePayload{
				CampaignID:       r.CampaignID,
				CampaignName:     r.CampaignName,
				ScheduledDate:    r.ScheduledDate,
				DaysOverdue:      days,
				ProgressSnapshot: snap,
			},
		}, notification.Dedup{Window: d.cfg.OverdueCampaignDedup, Keys: []string{"campaign_id"}})
		t.record(n, err, d.log, "campaign_id", r.CampaignID)
	}
	return t.result(d.log, len(rows))
}

// CompanyFollowups reminds campaign owners of executed companies with no
// follow-up after FollowupAfter, and escalates to the Business Unit's
// management once EscalateAfter has passed.
func (d *Detectors) CompanyFollowups(ctx context.Context) error {
	if d.cfg.FollowupAfter <= 0 {
		return nil
	}
	now := d.clock()
	rows, err := d.scans.ScanFollowupCandidates(ctx, now.Add(-d.cfg.FollowupAfter))
	if err != nil {
		return fmt.Errorf("scan follow-up candidates: %w", err)
	}
	keys := []string{"campaign_id", "company_id"}
	t := tally{task: TaskCompanyFollowups}
	for _, r := range rows {
		details := domain.FollowupDetails{
			CampaignID:         r.CampaignID,
			CampaignName:       r.CampaignName,
			CompanyID:          r.CompanyID,
			CompanyName:        r.CompanyName,
			ExecutionDate:      r.ExecutionDate,
			DaysSinceExecution: daysSince(now, r.ExecutionDate),
		}
		n, err := d.notifier.NotifyOnce(ctx, notification.Input{
			RecipientID: r.RecipientID,
			Title:       "Company follow-up",
			Message: fmt.Sprintf("%s was contacted %d days ago in campaign %q with no follow-up yet",
				r.CompanyName, details.DaysSinceExecution, r.CampaignName),
			Payload: domain.CompanyFollowupPayload{FollowupDetails: details},
		}, notification.Dedup{Window: d.cfg.FollowupAfter, Keys: keys})
		t.record(n, err, d.log, "campaign_id", r.CampaignID, "company_id", r.CompanyID)

		if !d.shouldEscalate(now, r) {
			continue
		}
		managers, err := d.managers.BusinessUnitUsersByRole(ctx, *r.BusinessUnitID, d.cfg.EscalationRoles)
		if err != nil {
			t.failures++
			d.log.Warn("load business unit management failed", "business_unit_id", *r.BusinessUnitID, "error", err.Error())
			continue
		}
		for _, m := range managers {
			if m.ID == r.RecipientID {
				continue
			}
			n, err := d.notifier.NotifyOnce(ctx, notification.Input{
				RecipientID: m.ID,
				Title:       "Company follow-up overdue",
				Message: fmt.Sprintf("%s has had no follow-up for %d days in campaign %q",
					r.CompanyName, details.DaysSinceExecution, r.CampaignName),
				Priority: domain.PriorityHigh,
				Payload: domain.CompanyFollowupEscalationPayload{
					FollowupDetails: details,
					ResponsibleID:   r.ResponsibleID,
				},
			}, notification.Dedup{Window: d.cfg.EscalateAfter, Keys: keys, PerRecipient: true})
			t.record(n, err, d.log, "campaign_id", r.CampaignID, "company_id", r.CompanyID, "manager_id", m.ID)
		}
	}
	return t.result(d.log, len(rows))
}

func (d *Detectors) shouldEscalate(now time.Time, r domain.FollowupCandidate) bool {
	if d.managers == nil || d.cfg.EscalateAfter <= 0 || r.BusinessUnitID == nil {
		return false
	}
	return !r.ExecutionDate.After(now.Add(-d.cfg.EscalateAfter))
}

// Retention deletes old notifications.
func (d *Detectors) Retention(ctx context.Context) error {
	n, err := d.notifier.Purge(ctx, d.cfg.ReadRetention, d.cfg.UnreadRetention)
	if err != nil {
		return fmt.Errorf("purge notifications: %w", err)
	}
	d.log.Info("retention sweep complete", "deleted", n)
	return nil
}
