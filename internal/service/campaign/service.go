package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
	"github.com/ignite/resource-workflow/internal/service/directory"
	"github.com/ignite/resource-workflow/internal/service/notification"
)

// OpportunitySource tags opportunities created from a campaign.
const OpportunitySource = "PROSPECTING_CAMPAIGN"

// ValidatorResolver returns the full validator set of a scope.
type ValidatorResolver interface {
	ResolveValidators(ctx context.Context, businessUnitID, divisionID string, level domain.ValidationLevel) ([]domain.Validator, error)
}

// Notifier is the part of the notification dispatcher the workflow uses.
type Notifier interface {
	Notify(ctx context.Context, in notification.Input) (*domain.Notification, error)
	NotifyProgress(ctx context.Context, in notification.ProgressInput) (*domain.Notification, error)
}

// Service implements the campaign approval workflow. All public methods are
// safe for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo     Repository
	people   directory.Reader
	resolver ValidatorResolver
	notifier Notifier
	clock    func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a campaign workflow service.
func NewService(repo Repository, people directory.Reader, resolver ValidatorResolver, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		people:   people,
		resolver: resolver,
		notifier: notifier,
		clock:    time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput is the payload of Submit.
type SubmitInput struct {
	CampaignID      string
	RequesterUserID string
	Level           domain.ValidationLevel
	Comment         string
}

// Submit fans the campaign out to every validator of the requested level.
// Resubmitting a rejected campaign starts from a clean slate.
func (s *Service) Submit(ctx context.Context, in SubmitInput) ([]domain.CampaignValidationRequest, error) {
	if !in.Level.Valid() {
		return nil, ErrInvalidLevel
	}

	var (
		c    *domain.Campaign
		reqs []domain.CampaignValidationRequest
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.LockCampaign(ctx, in.CampaignID)
		if err != nil {
			return err
		}
		current := validationStatus(c)
		if !current.CanTransition(domain.ValidationPending) {
			return ErrInvalidState.Wrapf("campaign %s is %s", c.ID, current)
		}

		requester, err := s.people.CollaboratorByUserID(ctx, in.RequesterUserID)
		if err != nil {
			if errors.Is(err, directory.ErrCollaboratorNotFound) {
				return ErrRequesterNotFound
			}
			return err
		}

		validators, err := s.resolver.ResolveValidators(ctx, deref(c.BusinessUnitID), deref(c.DivisionID), in.Level)
		if err != nil {
			return err
		}
		if len(validators) == 0 {
			return ErrNoValidatorConfigured.Wrapf("level %s", in.Level)
		}

		if current == domain.ValidationRejected {
			if _, err := s.repo.DeleteValidationRequests(ctx, c.ID); err != nil {
				return err
			}
		}

		now := s.clock().UTC()
		reqs = make([]domain.CampaignValidationRequest, 0, len(validators))
		for _, v := range validators {
			reqs = append(reqs, domain.CampaignValidationRequest{
				ID:               s.newID(),
				CampaignID:       c.ID,
				RequesterID:      requester.ID,
				ValidatorID:      v.CollaboratorID,
				ValidatorRole:    v.Role,
				Level:            in.Level,
				Status:           domain.RequestPending,
				RequesterComment: in.Comment,
				CreatedAt:        now,
			})
		}
		if err := s.repo.CreateValidationRequests(ctx, reqs); err != nil {
			return err
		}

		c.ValidationStatus = domain.ValidationPending
		c.Status = domain.ValidationPending.BusinessStatus()
		c.SubmittedAt, c.DecidedAt = &now, nil
		return s.repo.UpdateCampaignValidation(ctx, c.ID, ValidationUpdate{
			ValidationStatus: domain.ValidationPending,
			SubmittedAt:      &now,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[campaign.Service] submitted for validation", "campaign_id", c.ID, "validation_level", in.Level, "validators", len(reqs))
	for _, r := range reqs {
		s.notifyCollaborators(ctx, notification.Input{
			Title:   "Campaign awaiting validation",
			Message: fmt.Sprintf("Campaign %q has been submitted for your validation", c.Name),
			Payload: domain.CampaignSubmittedPayload{
				CampaignID:   c.ID,
				CampaignName: c.Name,
				RequestID:    r.ID,
				Level:        r.Level,
				RequesterID:  r.RequesterID,
				Comment:      r.RequesterComment,
			},
		}, r.ValidatorID)
	}
	return reqs, nil
}

// CompanyVerdictInput is one per-company judgment of a decision.
type CompanyVerdictInput struct {
	CompanyID string
	Verdict   domain.CompanyVerdict
	Note      string
}

// DecideInput is the payload of Decide.
type DecideInput struct {
	RequestID     string
	DeciderUserID string
	Decision      domain.Decision
	Comment       string
	Companies     []CompanyVerdictInput
}

// DecideResult describes the authoritative decision of a round.
type DecideResult struct {
	Request         domain.CampaignValidationRequest
	Campaign        domain.Campaign
	ResolvedByOther int
}

// Decide records the first decision of a fan-out round. Any later decision
// on the same round fails with ErrAlreadyResolved and writes nothing.
func (s *Service) Decide(ctx context.Context, in DecideInput) (*DecideResult, error) {
	if !in.Decision.Valid() {
		return nil, ErrInvalidDecision
	}
	seen := make(map[string]bool, len(in.Companies))
	for _, cv := range in.Companies {
		if !cv.Verdict.Valid() {
			return nil, ErrInvalidVerdict.Wrapf("company %s", cv.CompanyID)
		}
		if seen[cv.CompanyID] {
			return nil, ErrDuplicateVerdict.Wrapf("company %s", cv.CompanyID)
		}
		seen[cv.CompanyID] = true
	}

	var res DecideResult
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		peek, err := s.repo.GetValidationRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if peek.Status != domain.RequestPending {
			return ErrAlreadyResolved
		}
		c, err := s.repo.LockCampaign(ctx, peek.CampaignID)
		if err != nil {
			return err
		}
		req, err := s.repo.LockValidationRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		// Re-read under lock: a concurrent decider may have won meanwhile.
		if req.Status != domain.RequestPending || validationStatus(c) != domain.ValidationPending {
			return ErrAlreadyResolved
		}

		decider, err := s.people.CollaboratorByUserID(ctx, in.DeciderUserID)
		if err != nil {
			if errors.Is(err, directory.ErrCollaboratorNotFound) {
				return ErrUnauthorized
			}
			return err
		}

		links, err := s.repo.ListLinks(ctx, c.ID)
		if err != nil {
			return err
		}
		linked := make(map[string]bool, len(links))
		for _, l := range links {
			linked[l.CompanyID] = true
		}
		decisions := make([]domain.CompanyDecision, 0, len(in.Companies))
		for _, cv := range in.Companies {
			if !linked[cv.CompanyID] {
				return ErrUnknownCompany.Wrapf("company %s", cv.CompanyID)
			}
			decisions = append(decisions, domain.CompanyDecision{
				RequestID: req.ID,
				CompanyID: cv.CompanyID,
				Verdict:   cv.Verdict,
				Note:      cv.Note,
			})
		}

		now := s.clock().UTC()
		ok, err := s.repo.ResolveValidationRequest(ctx, req.ID, Resolution{
			Status:    in.Decision.RequestStatus(),
			Comment:   in.Comment,
			DecidedBy: decider.ID,
			At:        now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyResolved
		}
		if err := s.repo.ReplaceCompanyDecisions(ctx, req.ID, decisions); err != nil {
			return err
		}

		next := in.Decision.ValidationStatus()
		if err := s.repo.UpdateCampaignValidation(ctx, c.ID, ValidationUpdate{
			ValidationStatus: next,
			SubmittedAt:      c.SubmittedAt,
			DecidedAt:        &now,
		}); err != nil {
			return err
		}

		note := fmt.Sprintf("resolved by %s (%s)", decider.ID, in.Decision)
		n, err := s.repo.ResolvePendingSiblings(ctx, c.ID, req.ID, note, now)
		if err != nil {
			return err
		}

		for _, d := range decisions {
			if err := s.repo.SetLinkValidation(ctx, c.ID, d.CompanyID, d.Verdict.LinkStatus()); err != nil {
				return err
			}
		}

		req.Status = in.Decision.RequestStatus()
		req.DecisionComment = in.Comment
		req.DecidedBy = &decider.ID
		req.DecidedAt = &now
		c.ValidationStatus = next
		c.Status = next.BusinessStatus()
		c.DecidedAt = &now
		res = DecideResult{Request: *req, Campaign: *c, ResolvedByOther: n}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[campaign.Service] validation decided",
		"campaign_id", res.Campaign.ID, "request_id", res.Request.ID,
		"decision", in.Decision, "resolved_by_other", res.ResolvedByOther)

	verb := "approved"
	if in.Decision == domain.DecisionReject {
		verb = "rejected"
	}
	s.notifyCollaborators(ctx, notification.Input{
		Title:   "Campaign validation decided",
		Message: fmt.Sprintf("Campaign %q has been %s", res.Campaign.Name, verb),
		Payload: domain.CampaignDecisionPayload{
			CampaignID:   res.Campaign.ID,
			CampaignName: res.Campaign.Name,
			RequestID:    res.Request.ID,
			Decision:     in.Decision,
			DeciderID:    deref(res.Request.DecidedBy),
			Comment:      in.Comment,
		},
	}, res.Request.RequesterID, deref(res.Campaign.ResponsibleID))
	return &res, nil
}

// Cancel withdraws a pending round. Only the original requester may cancel;
// the campaign returns to draft.
func (s *Service) Cancel(ctx context.Context, requestID, requesterUserID string) error {
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		peek, err := s.repo.GetValidationRequest(ctx, requestID)
		if err != nil {
			return err
		}
		c, err := s.repo.LockCampaign(ctx, peek.CampaignID)
		if err != nil {
			return err
		}
		req, err := s.repo.LockValidationRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestPending {
			return ErrAlreadyResolved
		}
		if validationStatus(c) != domain.ValidationPending {
			return ErrInvalidState.Wrapf("campaign %s is %s", c.ID, validationStatus(c))
		}

		caller, err := s.people.CollaboratorByUserID(ctx, requesterUserID)
		if err != nil {
			if errors.Is(err, directory.ErrCollaboratorNotFound) {
				return ErrNotRequester
			}
			return err
		}
		if caller.ID != req.RequesterID {
			return ErrNotRequester
		}

		if _, err := s.repo.DeleteValidationRequests(ctx, c.ID); err != nil {
			return err
		}
		return s.repo.UpdateCampaignValidation(ctx, c.ID, ValidationUpdate{ValidationStatus: domain.ValidationDraft})
	})
	if err != nil {
		return err
	}
	logger.Info("[campaign.Service] validation cancelled", "request_id", requestID)
	return nil
}

// ExecutionInput is the payload of RecordExecution.
type ExecutionInput struct {
	CampaignID  string
	CompanyID   string
	ActorUserID string
	Status      domain.ExecutionStatus
	Note        string
}

// RecordExecution moves an approved company along its execution states and
// appends the move to the history. Landing on sent or deposed re-evaluates
// campaign progress.
func (s *Service) RecordExecution(ctx context.Context, in ExecutionInput) (*domain.CampaignCompanyLink, error) {
	if !in.Status.Valid() {
		return nil, ErrInvalidExecution.Wrapf("status %q", in.Status)
	}

	var (
		link     *domain.CampaignCompanyLink
		c        *domain.Campaign
		progress *notification.ProgressInput
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.LockCampaign(ctx, in.CampaignID)
		if err != nil {
			return err
		}
		link, err = s.repo.LockLink(ctx, in.CampaignID, in.CompanyID)
		if err != nil {
			return err
		}
		if link.ValidationStatus != domain.LinkApproved {
			return ErrLinkNotApproved
		}
		from := link.ExecutionStatus
		if from == "" {
			from = domain.ExecutionPending
		}
		if !from.CanTransition(in.Status) {
			return ErrExecutionTransition.Wrapf("%s -> %s", from, in.Status)
		}

		now := s.clock().UTC()
		ok, err := s.repo.UpdateLinkExecution(ctx, in.CampaignID, in.CompanyID, from, in.Status, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrExecutionTransition.Wrapf("%s -> %s", from, in.Status)
		}
		if err := s.repo.AppendExecutionEvent(ctx, &domain.ExecutionEvent{
			ID:         s.newID(),
			CampaignID: in.CampaignID,
			CompanyID:  in.CompanyID,
			FromStatus: from,
			ToStatus:   in.Status,
			ActorID:    in.ActorUserID,
			Note:       in.Note,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		link.ExecutionStatus = in.Status
		if in.Status != domain.ExecutionPending {
			link.ExecutionDate = &now
		}

		if in.Status.Completed() {
			links, err := s.repo.ListLinks(ctx, in.CampaignID)
			if err != nil {
				return err
			}
			completed, total := Progress(links)
			progress = &notification.ProgressInput{
				CampaignID:   c.ID,
				CampaignName: c.Name,
				Completed:    completed,
				Total:        total,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if progress != nil {
		recipient := s.ownerUserID(ctx, c)
		if recipient != "" {
			progress.RecipientID = recipient
			if _, err := s.notifier.NotifyProgress(ctx, *progress); err != nil {
				logger.Warn("[campaign.Service] progress notification failed", "campaign_id", c.ID, "error", err)
			}
		}
	}
	return link, nil
}

// Progress counts completed links over every company linked to the
// campaign. Rejected companies stay in the total.
func Progress(links []domain.CampaignCompanyLink) (completed, total int) {
	for _, l := range links {
		if l.ExecutionStatus.Completed() {
			completed++
		}
	}
	return completed, len(links)
}

// ConvertInput is the payload of ConvertToOpportunity.
type ConvertInput struct {
	CampaignID  string
	CompanyID   string
	ActorUserID string
	Name        string
}

// ConvertToOpportunity creates a sales opportunity from an executed company.
// A link converts at most once; a second attempt fails with
// ErrAlreadyConverted and creates nothing.
func (s *Service) ConvertToOpportunity(ctx context.Context, in ConvertInput) (*domain.Opportunity, error) {
	var (
		c   *domain.Campaign
		opp *domain.Opportunity
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.LockCampaign(ctx, in.CampaignID)
		if err != nil {
			return err
		}
		link, err := s.repo.LockLink(ctx, in.CampaignID, in.CompanyID)
		if err != nil {
			return err
		}
		if link.ConvertedToOpportunity || link.OpportunityID != nil {
			return ErrAlreadyConverted
		}
		if !link.ExecutionStatus.Completed() {
			return ErrNotExecuted
		}

		owner := c.ResponsibleID
		if actor, err := s.people.CollaboratorByUserID(ctx, in.ActorUserID); err == nil {
			owner = &actor.ID
		} else if !errors.Is(err, directory.ErrCollaboratorNotFound) {
			return err
		}

		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = fmt.Sprintf("%s - %s", c.Name, in.CompanyID)
		}
		campaignID := c.ID
		opp = &domain.Opportunity{
			ID:             s.newID(),
			Name:           name,
			CompanyID:      in.CompanyID,
			CollaboratorID: owner,
			BusinessUnitID: c.BusinessUnitID,
			Source:         OpportunitySource,
			CampaignID:     &campaignID,
			CreatedAt:      s.clock().UTC(),
		}
		if err := s.repo.CreateOpportunity(ctx, opp); err != nil {
			return err
		}
		ok, err := s.repo.MarkLinkConverted(ctx, in.CampaignID, in.CompanyID, opp.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyConverted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[campaign.Service] company converted", "campaign_id", c.ID, "company_id", in.CompanyID, "opportunity_id", opp.ID)
	conv := notification.Input{
		Title:   "Campaign conversion",
		Message: fmt.Sprintf("A company from campaign %q has been converted into opportunity %q", c.Name, opp.Name),
		Payload: domain.CampaignConversionPayload{
			CampaignID:    c.ID,
			CampaignName:  c.Name,
			CompanyID:     in.CompanyID,
			OpportunityID: opp.ID,
		},
	}
	recipients := s.userIDs(ctx, deref(c.ResponsibleID))
	if c.CreatedBy != nil && *c.CreatedBy != "" {
		recipients = appendUnique(recipients, *c.CreatedBy)
	}
	s.notifyUsers(ctx, conv, recipients...)
	return opp, nil
}

// History returns the execution history of one company, oldest first.
func (s *Service) History(ctx context.Context, campaignID, companyID string) ([]domain.ExecutionEvent, error) {
	return s.repo.ListExecutionEvents(ctx, campaignID, companyID)
}

// Requests returns every validation request of the campaign's current round.
func (s *Service) Requests(ctx context.Context, campaignID string) ([]domain.CampaignValidationRequest, error) {
	if _, err := s.repo.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.repo.ListValidationRequests(ctx, campaignID)
}

// ownerUserID is the user who follows the campaign: the responsible
// collaborator's account, else the creator.
func (s *Service) ownerUserID(ctx context.Context, c *domain.Campaign) string {
	if ids := s.userIDs(ctx, deref(c.ResponsibleID)); len(ids) > 0 {
		return ids[0]
	}
	return deref(c.CreatedBy)
}

// userIDs maps collaborators to their accounts, dropping unknown ones and
// duplicates.
func (s *Service) userIDs(ctx context.Context, collaboratorIDs ...string) []string {
	var out []string
	for _, id := range collaboratorIDs {
		uid, err := directory.UserIDFor(ctx, s.people, id)
		if err != nil {
			logger.Warn("[campaign.Service] recipient lookup failed", "collaborator_id", id, "error", err)
			continue
		}
		if uid != "" {
			out = appendUnique(out, uid)
		}
	}
	return out
}

func (s *Service) notifyCollaborators(ctx context.Context, in notification.Input, collaboratorIDs ...string) {
	s.notifyUsers(ctx, in, s.userIDs(ctx, collaboratorIDs...)...)
}

// notifyUsers sends one notification per user. Failures are logged only.
func (s *Service) notifyUsers(ctx context.Context, in notification.Input, userIDs ...string) {
	for _, uid := range userIDs {
		in.RecipientID = uid
		if _, err := s.notifier.Notify(ctx, in); err != nil {
			logger.Warn("[campaign.Service] notification failed",
				"type", in.Payload.NotificationType(), "user_id", uid, "error", err)
		}
	}
}

func validationStatus(c *domain.Campaign) domain.CampaignValidationStatus {
	if c.ValidationStatus == "" {
		return domain.ValidationDraft
	}
	return c.ValidationStatus
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
