package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ base }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sqlx.DB) *CampaignRepo { return &CampaignRepo{base{db: db}} }

const campaignColumns = `
	id, name, COALESCE(channel, '') AS channel, business_unit_id, division_id,
	status, validation_statut, responsible_id, created_by, scheduled_date,
	date_soumission, date_validation, created_at, updated_at`

func (r *CampaignRepo) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return r.campaign(ctx, `SELECT `+campaignColumns+` FROM prospecting_campaigns WHERE id = $1`, id)
}

func (r *CampaignRepo) LockCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return r.campaign(ctx, `SELECT `+campaignColumns+` FROM prospecting_campaigns WHERE id = $1 FOR UPDATE`, id)
}

func (r *CampaignRepo) campaign(ctx context.Context, query, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := sqlx.GetContext(ctx, r.q(ctx), c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) UpdateCampaignValidation(ctx context.Context, id string, u campaign.ValidationUpdate) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE prospecting_campaigns
		SET validation_statut = $2, status = $3, date_soumission = $4,
		    date_validation = $5, updated_at = NOW()
		WHERE id = $1
	`, id, u.ValidationStatus, u.ValidationStatus.BusinessStatus(), u.SubmittedAt, u.DecidedAt)
	if err != nil {
		return fmt.Errorf("update campaign validation: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) CreateValidationRequests(ctx context.Context, reqs []domain.CampaignValidationRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, r.q(ctx), `
		INSERT INTO prospecting_campaign_validations
			(id, campaign_id, requester_id, validator_id, validator_role, level,
			 status, requester_comment, decision_comment, decided_by, decided_at, created_at)
		VALUES
			(:id, :campaign_id, :requester_id, :validator_id, :validator_role, :level,
			 :status, :requester_comment, :decision_comment, :decided_by, :decided_at, :created_at)
	`, reqs)
	if err != nil {
		return fmt.Errorf("create validation requests: %w", err)
	}
	return nil
}

func (r *CampaignRepo) DeleteValidationRequests(ctx context.Context, campaignID string) (int, error) {
	q := r.q(ctx)
	if _, err := q.ExecContext(ctx, `
		DELETE FROM prospecting_campaign_validation_companies
		WHERE request_id IN (SELECT id FROM prospecting_campaign_validations WHERE campaign_id = $1)
	`, campaignID); err != nil {
		return 0, fmt.Errorf("delete company decisions: %w", err)
	}
	res, err := q.ExecContext(ctx, `DELETE FROM prospecting_campaign_validations WHERE campaign_id = $1`, campaignID)
	if err != nil {
		return 0, fmt.Errorf("delete validation requests: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const requestColumns = `
	id, campaign_id, requester_id, validator_id, validator_role, level, status,
	COALESCE(requester_comment, '') AS requester_comment,
	COALESCE(decision_comment, '') AS decision_comment,
	decided_by, decided_at, created_at`

func (r *CampaignRepo) GetValidationRequest(ctx context.Context, id string) (*domain.CampaignValidationRequest, error) {
	return r.request(ctx, `SELECT `+requestColumns+` FROM prospecting_campaign_validations WHERE id = $1`, id)
}

func (r *CampaignRepo) LockValidationRequest(ctx context.Context, id string) (*domain.CampaignValidationRequest, error) {
	return r.request(ctx, `SELECT `+requestColumns+` FROM prospecting_campaign_validations WHERE id = $1 FOR UPDATE`, id)
}

func (r *CampaignRepo) request(ctx context.Context, query, id string) (*domain.CampaignValidationRequest, error) {
	req := &domain.CampaignValidationRequest{}
	err := sqlx.GetContext(ctx, r.q(ctx), req, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get validation request: %w", err)
	}
	return req, nil
}

func (r *CampaignRepo) ListValidationRequests(ctx context.Context, campaignID string) ([]domain.CampaignValidationRequest, error) {
	var out []domain.CampaignValidationRequest
	err := sqlx.SelectContext(ctx, r.q(ctx), &out, `
		SELECT `+requestColumns+`
		FROM prospecting_campaign_validations
		WHERE campaign_id = $1
		ORDER BY created_at, id
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list validation requests: %w", err)
	}
	return out, nil
}

func (r *CampaignRepo) ResolveValidationRequest(ctx context.Context, id string, res campaign.Resolution) (bool, error) {
	result, err := r.q(ctx).ExecContext(ctx, `
		UPDATE prospecting_campaign_validations
		SET status = $2, decision_comment = $3, decided_by = $4, decided_at = $5
		WHERE id = $1 AND status = 'PENDING'
	`, id, res.Status, res.Comment, res.DecidedBy, res.At)
	if err != nil {
		return false, fmt.Errorf("resolve validation request: %w", err)
	}
	ok, err := affected(result)
	if err != nil || ok {
		return ok, err
	}
	return false, r.mustExist(ctx, campaign.ErrRequestNotFound,
		`SELECT EXISTS(SELECT 1 FROM prospecting_campaign_validations WHERE id = $1)`, id)
}

func (r *CampaignRepo) ResolvePendingSiblings(ctx context.Context, campaignID, exceptID, note string, at time.Time) (int, error) {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE prospecting_campaign_validations
		SET status = 'RESOLVED_BY_OTHER', decision_comment = $3, decided_at = $4
		WHERE campaign_id = $1 AND id <> $2 AND status = 'PENDING'
	`, campaignID, exceptID, note, at)
	if err != nil {
		return 0, fmt.Errorf("resolve sibling requests: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *CampaignRepo) ReplaceCompanyDecisions(ctx context.Context, requestID string, ds []domain.CompanyDecision) error {
	q := r.q(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM prospecting_campaign_validation_companies WHERE request_id = $1`, requestID); err != nil {
		return fmt.Errorf("clear company decisions: %w", err)
	}
	if len(ds) == 0 {
		return nil
	}
	rows := make([]domain.CompanyDecision, len(ds))
	for i, d := range ds {
		d.RequestID = requestID
		rows[i] = d
	}
	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO prospecting_campaign_validation_companies (request_id, company_id, verdict, note)
		VALUES (:request_id, :company_id, :verdict, :note)
	`, rows)
	if err != nil {
		return fmt.Errorf("insert company decisions: %w", err)
	}
	return nil
}

func (r *CampaignRepo) ListCompanyDecisions(ctx context.Context, requestID string) ([]domain.CompanyDecision, error) {
	var out []domain.CompanyDecision
	err := sqlx.SelectContext(ctx, r.q(ctx), &out, `
		SELECT request_id, company_id, verdict, COALESCE(note, '') AS note
		FROM prospecting_campaign_validation_companies
		WHERE request_id = $1
		ORDER BY company_id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list company decisions: %w", err)
	}
	return out, nil
}

const linkColumns = `
	campaign_id, company_id, validation_status, execution_status, execution_date,
	converted_to_opportunity, opportunity_id`

func (r *CampaignRepo) ListLinks(ctx context.Context, campaignID string) ([]domain.CampaignCompanyLink, error) {
	var out []domain.CampaignCompanyLink
	err := sqlx.SelectContext(ctx, r.q(ctx), &out, `
		SELECT `+linkColumns+`
		FROM prospecting_campaign_companies
		WHERE campaign_id = $1
		ORDER BY created_at, company_id
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list campaign companies: %w", err)
	}
	return out, nil
}

func (r *CampaignRepo) LockLink(ctx context.Context, campaignID, companyID string) (*domain.CampaignCompanyLink, error) {
	l := &domain.CampaignCompanyLink{}
	err := sqlx.GetContext(ctx, r.q(ctx), l, `
		SELECT `+linkColumns+`
		FROM prospecting_campaign_companies
		WHERE campaign_id = $1 AND company_id = $2
		FOR UPDATE
	`, campaignID, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock campaign company: %w", err)
	}
	return l, nil
}

func (r *CampaignRepo) SetLinkValidation(ctx context.Context, campaignID, companyID string, status domain.LinkValidationStatus) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE prospecting_campaign_companies SET validation_status = $3
		WHERE campaign_id = $1 AND company_id = $2
	`, campaignID, companyID, status)
	if err != nil {
		return fmt.Errorf("set company validation: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return campaign.ErrLinkNotFound
	}
	return nil
}

func (r *CampaignRepo) UpdateLinkExecution(ctx context.Context, campaignID, companyID string, from, to domain.ExecutionStatus, at time.Time) (bool, error) {
	var date *time.Time
	if to != domain.ExecutionPending {
		date = &at
	}
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE prospecting_campaign_companies
		SET execution_status = $4, execution_date = COALESCE($5, execution_date)
		WHERE campaign_id = $1 AND company_id = $2 AND execution_status = $3
	`, campaignID, companyID, from, to, date)
	if err != nil {
		return false, fmt.Errorf("update company execution: %w", err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return ok, err
	}
	return false, r.linkExists(ctx, campaignID, companyID)
}

func (r *CampaignRepo) AppendExecutionEvent(ctx context.Context, e *domain.ExecutionEvent) error {
	_, err := sqlx.NamedExecContext(ctx, r.q(ctx), `
		INSERT INTO prospecting_execution_events
			(id, campaign_id, company_id, from_status, to_status, actor_id, note, created_at)
		VALUES (:id, :campaign_id, :company_id, :from_status, :to_status, :actor_id, :note, :created_at)
	`, e)
	if err != nil {
		return fmt.Errorf("append execution event: %w", err)
	}
	return nil
}

func (r *CampaignRepo) ListExecutionEvents(ctx context.Context, campaignID, companyID string) ([]domain.ExecutionEvent, error) {
	var out []domain.ExecutionEvent
	err := sqlx.SelectContext(ctx, r.q(ctx), &out, `
		SELECT id, campaign_id, company_id, from_status, to_status, actor_id,
		       COALESCE(note, '') AS note, created_at
		FROM prospecting_execution_events
		WHERE campaign_id = $1 AND company_id = $2
		ORDER BY created_at, id
	`, campaignID, companyID)
	if err != nil {
		return nil, fmt.Errorf("list execution events: %w", err)
	}
	return out, nil
}

func (r *CampaignRepo) CreateOpportunity(ctx context.Context, o *domain.Opportunity) error {
	_, err := sqlx.NamedExecContext(ctx, r.q(ctx), `
		INSERT INTO opportunities
			(id, nom, company_id, collaborateur_id, business_unit_id, source,
			 campaign_id, statut, last_activity, created_at, updated_at)
		VALUES
			(:id, :nom, :company_id, :collaborateur_id, :business_unit_id, :source,
			 :campaign_id, 'EN_COURS', :created_at, :created_at, :created_at)
	`, o)
	if err != nil {
		return fmt.Errorf("create opportunity: %w", err)
	}
	return nil
}

func (r *CampaignRepo) MarkLinkConverted(ctx context.Context, campaignID, companyID, opportunityID string) (bool, error) {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE prospecting_campaign_companies
		SET converted_to_opportunity = TRUE, opportunity_id = $3
		WHERE campaign_id = $1 AND company_id = $2
		  AND NOT converted_to_opportunity AND opportunity_id IS NULL
	`, campaignID, companyID, opportunityID)
	if err != nil {
		return false, fmt.Errorf("mark company converted: %w", err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return ok, err
	}
	return false, r.linkExists(ctx, campaignID, companyID)
}

func (r *CampaignRepo) linkExists(ctx context.Context, campaignID, companyID string) error {
	return r.mustExist(ctx, campaign.ErrLinkNotFound, `
		SELECT EXISTS(
			SELECT 1 FROM prospecting_campaign_companies WHERE campaign_id = $1 AND company_id = $2
		)`, campaignID, companyID)
}

// mustExist runs an EXISTS query and returns notFound when it is false.
func (r *CampaignRepo) mustExist(ctx context.Context, notFound error, query string, args ...interface{}) error {
	var ok bool
	if err := sqlx.GetContext(ctx, r.q(ctx), &ok, query, args...); err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	if !ok {
		return notFound
	}
	return nil
}
