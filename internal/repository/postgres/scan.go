package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignite/resource-workflow/internal/domain"
)

// ScanRepo runs the read-only detector scans.
type ScanRepo struct{ base }

// NewScanRepo creates a Postgres-backed scan repository.
func NewScanRepo(db *sqlx.DB) *ScanRepo { return &ScanRepo{base{db: db}} }

func (r *ScanRepo) ScanOverdueStages(ctx context.Context, now time.Time) ([]domain.OverdueStage, error) {
	var out []domain.OverdueStage
	err := sqlx.SelectContext(ctx, r.q(ctx), &out, `
		SELECT s.id AS stage_id, s.stage_name, o.id AS opportunity_id, o.nom AS opportunity_name,
		       s.due_date, c.user_id
		FROM opportunity_stages s
		JOIN opportunities o ON o.id = s.opportunity_id
		JOIN collaborateurs c ON c.id = o.collaborateur_id
		WHERE s.status IN ('PENDING', 'IN_PROGRESS')
		  AND s.due_date < $1
		  AND o.statut = 'EN_COURS'
		  AND c.user_id IS NOT NULL
		ORDER BY s.due_date, s.id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("scan overdue stages: %w", err)
	}
	return out, nil
}

func (r *ScanRepo) ScanInactiveOpportunities(ctx context.Context, inactiveSince, notBefore time.Time) ([]domain.InactiveOpportunity, error) {
	var out []domain.InactiveOpportunity
	err := sqlx.SelectContext(ctx, r.q(ctx), &out, `
		SELECT o.id AS opportunity_id, o.nom AS opportunity_name, o.last_activity, c.user_id
		FROM opportunities o
		JOIN collaborateurs c ON c.id = o.collaborateur_id
		WHERE o.statut = 'EN_COURS'
		  AND o.last_activity < $1
		  AND o.last_activity > $2
		  AND c.user_id IS NOT NULL
		ORDER BY o.id
	`, inactiveSince, notBefore)
	if err != nil {
		return nil, fmt.Errorf("scan inactive opportunities: %w", err)
	}
	return out, nil
}

func (r *ScanRepo) ScanLateTimeSheets(ctx context.Context, now time.Time) ([]domain.LateTimeSheet, error) {
	var out []domain.LateTimeSheet
	err := sqlx.SelectContext(ctx, r.q(ctx), &out, `
		SELECT t.id AS time_sheet_id, t.week_start AS period_start, t.week_end AS period_end,
		       t.statut AS status, t.user_id
		FROM time_sheets t
		WHERE t.statut IN ('BROUILLON', 'EN_COURS')
		  AND t.week_end < $1
		ORDER BY t.week_end, t.id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("scan late time sheets: %w", err)
	}
	return out, nil
}

func (r *ScanRepo) ScanOverdueCampaigns(ctx context.Context, scheduledBefore time.Time) ([]domain.OverdueCampaign, error) {
	var out []domain.OverdueCampaign
	err := sqlx.SelectContext(ctx, r.q(ctx), &out, `
		SELECT pc.id AS campaign_id, pc.name AS campaign_name, pc.scheduled_date,
		       COALESCE(rc.user_id, pc.created_by) AS user_id,
		       COUNT(l.company_id) FILTER (WHERE l.execution_status IN ('sent', 'deposed')) AS completed,
		       COUNT(l.company_id) AS total
		FROM prospecting_campaigns pc
		LEFT JOIN collaborateurs rc ON rc.id = pc.responsible_id
		LEFT JOIN prospecting_campaign_companies l ON l.campaign_id = pc.id
		WHERE pc.status = 'VALIDATED'
		  AND pc.scheduled_date < $1
		  AND COALESCE(rc.user_id, pc.created_by) IS NOT NULL
		GROUP BY pc.id, pc.name, pc.scheduled_date, rc.user_id, pc.created_by
		ORDER BY pc.id
	`, scheduledBefore)
	if err != nil {
		return nil, fmt.Errorf("scan overdue campaigns: %w", err)
	}
	return out, nil
}

func (r *ScanRepo) ScanFollowupCandidates(ctx context.Context, lastContactBefore time.Time) ([]domain.FollowupCandidate, error) {
	var out []domain.FollowupCandidate
	err := sqlx.SelectContext(ctx, r.q(ctx), &out, `
		SELECT pc.id AS campaign_id, pc.name AS campaign_name,
		       l.company_id, COALESCE(co.name, '') AS company_name,
		       COALESCE(l.execution_date, pc.scheduled_date, pc.created_at) AS execution_date,
		       COALESCE(rc.user_id, pc.created_by) AS user_id,
		       COALESCE(pc.responsible_id, '') AS responsible_id,
		       pc.business_unit_id
		FROM prospecting_campaign_companies l
		JOIN prospecting_campaigns pc ON pc.id = l.campaign_id
		LEFT JOIN companies co ON co.id = l.company_id
		LEFT JOIN collaborateurs rc ON rc.id = pc.responsible_id
		WHERE pc.status IN ('VALIDATED', 'SENT')
		  AND NOT l.converted_to_opportunity
		  AND l.validation_status <> 'REJECTED'
		  AND COALESCE(l.execution_date, pc.scheduled_date, pc.created_at) < $1
		  AND COALESCE(rc.user_id, pc.created_by) IS NOT NULL
		ORDER BY pc.id, l.company_id
	`, lastContactBefore)
	if err != nil {
		return nil, fmt.Errorf("scan follow-up candidates: %w", err)
	}
	return out, nil
}
