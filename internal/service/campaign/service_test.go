package campaign_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
	"github.com/ignite/resource-workflow/internal/repository/memory"
	"github.com/ignite/resource-workflow/internal/service/campaign"
	"github.com/ignite/resource-workflow/internal/service/notification"
	"github.com/ignite/resource-workflow/internal/service/validator"
)

func strPtr(s string) *string { return &s }

var testNow = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	svc   *campaign.Service
}

// newFixture seeds one business unit with a principal and an adjoint, a
// requester and campaign c1 targeting four companies.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()

	for _, p := range []struct{ user, collab string }{
		{"u-principal", "col-principal"},
		{"u-adjoint", "col-adjoint"},
		{"u-requester", "col-requester"},
		{"u-outsider", "col-outsider"},
	} {
		store.PutUser(domain.User{ID: p.user, Email: p.user + "@example.com", Role: domain.UserRoleManager})
		store.PutCollaborator(domain.Collaborator{ID: p.collab, UserID: strPtr(p.user), BusinessUnitID: strPtr("bu-1")})
	}
	store.PutOrgUnit(domain.OrgUnit{ID: "bu-1", Kind: domain.UnitBusinessUnit, PrincipalID: strPtr("col-principal"), AdjointID: strPtr("col-adjoint")})
	store.PutOrgUnit(domain.OrgUnit{ID: "bu-empty", Kind: domain.UnitBusinessUnit})

	store.PutCampaign(domain.Campaign{
		ID:               "c1",
		Name:             "Spring outreach",
		BusinessUnitID:   strPtr("bu-1"),
		Status:           domain.CampaignDraft,
		ValidationStatus: domain.ValidationDraft,
		ResponsibleID:    strPtr("col-requester"),
		CreatedAt:        testNow.AddDate(0, 0, -10),
	})
	for _, co := range []string{"co1", "co2", "co3", "co4"} {
		store.PutLink(domain.CampaignCompanyLink{CampaignID: "c1", CompanyID: co})
	}

	clock := func() time.Time { return testNow }
	dispatcher := notification.NewDispatcher(store, notification.WithClock(clock))
	svc := campaign.NewService(store, store, validator.NewResolver(store), dispatcher, campaign.WithClock(clock))
	return &fixture{store: store, svc: svc}
}

func (f *fixture) submit(t *testing.T) []domain.CampaignValidationRequest {
	t.Helper()
	reqs, err := f.svc.Submit(context.Background(), campaign.SubmitInput{
		CampaignID: "c1", RequesterUserID: "u-requester", Level: domain.LevelBusinessUnit, Comment: "please",
	})
	require.NoError(t, err)
	return reqs
}

func (f *fixture) campaign(t *testing.T) *domain.Campaign {
	t.Helper()
	c, err := f.store.GetCampaign(context.Background(), "c1")
	require.NoError(t, err)
	return c
}

func (f *fixture) link(t *testing.T, companyID string) *domain.CampaignCompanyLink {
	t.Helper()
	l, err := f.store.LockLink(context.Background(), "c1", companyID)
	require.NoError(t, err)
	return l
}

func requestFor(reqs []domain.CampaignValidationRequest, collaboratorID string) domain.CampaignValidationRequest {
	for _, r := range reqs {
		if r.ValidatorID == collaboratorID {
			return r
		}
	}
	return domain.CampaignValidationRequest{}
}

func TestSubmit_FansOutToEveryValidator(t *testing.T) {
	f := newFixture(t)
	reqs := f.submit(t)

	require.Len(t, reqs, 2)
	assert.Equal(t, domain.RoleBUPrincipal, reqs[0].ValidatorRole)
	assert.Equal(t, domain.RoleBUAdjoint, reqs[1].ValidatorRole)
	for _, r := range reqs {
		assert.Equal(t, domain.RequestPending, r.Status)
		assert.Equal(t, "col-requester", r.RequesterID)
		assert.Equal(t, "please", r.RequesterComment)
	}

	c := f.campaign(t)
	assert.Equal(t, domain.ValidationPending, c.ValidationStatus)
	assert.Equal(t, domain.CampaignPendingValidation, c.Status)
	require.NotNil(t, c.SubmittedAt)
	assert.Nil(t, c.DecidedAt)

	submitted := f.store.NotificationsOfType(domain.NotifCampaignSubmitted)
	require.Len(t, submitted, 2)
	assert.ElementsMatch(t, []string{"u-principal", "u-adjoint"}, []string{submitted[0].RecipientID, submitted[1].RecipientID})
}

func TestSubmit_LogsValidationLevel(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	f := newFixture(t)
	f.submit(t)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "submitted for validation") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Contains(t, line, `"level":"INFO"`)
	assert.Contains(t, line, `"validation_level":"BUSINESS_UNIT"`)
}

func TestSubmit_Refusals(t *testing.T) {
	ctx := context.Background()

	t.Run("already pending", func(t *testing.T) {
		f := newFixture(t)
		f.submit(t)
		_, err := f.svc.Submit(ctx, campaign.SubmitInput{CampaignID: "c1", RequesterUserID: "u-requester", Level: domain.LevelBusinessUnit})
		assert.ErrorIs(t, err, campaign.ErrInvalidState)
	})

	t.Run("no validator configured", func(t *testing.T) {
		f := newFixture(t)
		c := f.campaign(t)
		c.BusinessUnitID = strPtr("bu-empty")
		f.store.PutCampaign(*c)

		_, err := f.svc.Submit(ctx, campaign.SubmitInput{CampaignID: "c1", RequesterUserID: "u-requester", Level: domain.LevelBusinessUnit})
		assert.ErrorIs(t, err, campaign.ErrNoValidatorConfigured)
		assert.Equal(t, domain.ValidationDraft, f.campaign(t).ValidationStatus)
		reqs, err := f.svc.Requests(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, reqs)
	})

	t.Run("unknown level", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Submit(ctx, campaign.SubmitInput{CampaignID: "c1", RequesterUserID: "u-requester", Level: "REGION"})
		assert.ErrorIs(t, err, campaign.ErrInvalidLevel)
	})

	t.Run("requester without collaborator", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Submit(ctx, campaign.SubmitInput{CampaignID: "c1", RequesterUserID: "ghost", Level: domain.LevelBusinessUnit})
		assert.ErrorIs(t, err, campaign.ErrRequesterNotFound)
	})

	t.Run("missing campaign", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Submit(ctx, campaign.SubmitInput{CampaignID: "nope", RequesterUserID: "u-requester", Level: domain.LevelBusinessUnit})
		assert.ErrorIs(t, err, campaign.ErrNotFound)
	})
}

func TestDecide_FirstDecisionWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.submit(t)
	adjointReq := requestFor(reqs, "col-adjoint")
	principalReq := requestFor(reqs, "col-principal")

	res, err := f.svc.Decide(ctx, campaign.DecideInput{
		RequestID:     adjointReq.ID,
		DeciderUserID: "u-adjoint",
		Decision:      domain.DecisionApprove,
		Comment:       "go",
		Companies: []campaign.CompanyVerdictInput{
			{CompanyID: "co1", Verdict: domain.VerdictOK},
			{CompanyID: "co2", Verdict: domain.VerdictOK},
			{CompanyID: "co3", Verdict: domain.VerdictNotOK, Note: "existing client"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ResolvedByOther)
	assert.Equal(t, domain.RequestApproved, res.Request.Status)
	assert.Equal(t, domain.ValidationApproved, res.Campaign.ValidationStatus)

	c := f.campaign(t)
	assert.Equal(t, domain.ValidationApproved, c.ValidationStatus)
	assert.Equal(t, domain.CampaignValidated, c.Status)
	require.NotNil(t, c.DecidedAt)
	assert.True(t, c.DecidedAt.Equal(testNow))

	all, err := f.svc.Requests(ctx, "c1")
	require.NoError(t, err)
	for _, r := range all {
		switch r.ID {
		case adjointReq.ID:
			assert.Equal(t, domain.RequestApproved, r.Status)
			require.NotNil(t, r.DecidedBy)
			assert.Equal(t, "col-adjoint", *r.DecidedBy)
		case principalReq.ID:
			assert.Equal(t, domain.RequestResolvedByOther, r.Status)
			assert.Contains(t, r.DecisionComment, "col-adjoint")
		}
	}

	assert.Equal(t, domain.LinkApproved, f.link(t, "co1").ValidationStatus)
	assert.Equal(t, domain.LinkApproved, f.link(t, "co2").ValidationStatus)
	assert.Equal(t, domain.LinkRejected, f.link(t, "co3").ValidationStatus)
	assert.Equal(t, domain.LinkPending, f.link(t, "co4").ValidationStatus)

	decisions, err := f.store.ListCompanyDecisions(ctx, adjointReq.ID)
	require.NoError(t, err)
	assert.Len(t, decisions, 3)

	_, err = f.svc.Decide(ctx, campaign.DecideInput{RequestID: principalReq.ID, DeciderUserID: "u-principal", Decision: domain.DecisionReject})
	assert.ErrorIs(t, err, campaign.ErrAlreadyResolved)
	_, err = f.svc.Decide(ctx, campaign.DecideInput{RequestID: adjointReq.ID, DeciderUserID: "u-adjoint", Decision: domain.DecisionReject})
	assert.ErrorIs(t, err, campaign.ErrAlreadyResolved)
	assert.Equal(t, domain.ValidationApproved, f.campaign(t).ValidationStatus)

	decided := f.store.NotificationsOfType(domain.NotifCampaignDecision)
	require.Len(t, decided, 1)
	assert.Equal(t, "u-requester", decided[0].RecipientID)
}

func TestDecide_ConcurrentDecidersYieldOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.submit(t)

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		refused int
	)
	for i := 0; i < attempts; i++ {
		r := reqs[i%len(reqs)]
		decider := "u-principal"
		if r.ValidatorID == "col-adjoint" {
			decider = "u-adjoint"
		}
		decision := domain.DecisionApprove
		if i%3 == 0 {
			decision = domain.DecisionReject
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Decide(ctx, campaign.DecideInput{RequestID: r.ID, DeciderUserID: decider, Decision: decision})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, campaign.ErrAlreadyResolved):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, refused)

	all, err := f.svc.Requests(ctx, "c1")
	require.NoError(t, err)
	var decided, byOther int
	for _, r := range all {
		switch r.Status {
		case domain.RequestApproved, domain.RequestRejected:
			decided++
		case domain.RequestResolvedByOther:
			byOther++
		}
	}
	assert.Equal(t, 1, decided)
	assert.Equal(t, 1, byOther)
	assert.Len(t, f.store.NotificationsOfType(domain.NotifCampaignDecision), 1)
}

func TestDecide_RejectsBadInputWithoutWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.submit(t)

	_, err := f.svc.Decide(ctx, campaign.DecideInput{
		RequestID: reqs[0].ID, DeciderUserID: "u-principal", Decision: domain.DecisionApprove,
		Companies: []campaign.CompanyVerdictInput{{CompanyID: "co9", Verdict: domain.VerdictOK}},
	})
	assert.ErrorIs(t, err, campaign.ErrUnknownCompany)

	_, err = f.svc.Decide(ctx, campaign.DecideInput{
		RequestID: reqs[0].ID, DeciderUserID: "u-principal", Decision: domain.DecisionApprove,
		Companies: []campaign.CompanyVerdictInput{{CompanyID: "co1", Verdict: domain.VerdictOK}, {CompanyID: "co1", Verdict: domain.VerdictNotOK}},
	})
	assert.ErrorIs(t, err, campaign.ErrDuplicateVerdict)

	_, err = f.svc.Decide(ctx, campaign.DecideInput{RequestID: reqs[0].ID, DeciderUserID: "u-principal", Decision: "MAYBE"})
	assert.ErrorIs(t, err, campaign.ErrInvalidDecision)

	_, err = f.svc.Decide(ctx, campaign.DecideInput{RequestID: reqs[0].ID, DeciderUserID: "ghost", Decision: domain.DecisionApprove})
	assert.ErrorIs(t, err, campaign.ErrUnauthorized)

	_, err = f.svc.Decide(ctx, campaign.DecideInput{RequestID: "missing", DeciderUserID: "u-principal", Decision: domain.DecisionApprove})
	assert.ErrorIs(t, err, campaign.ErrRequestNotFound)

	all, err := f.svc.Requests(ctx, "c1")
	require.NoError(t, err)
	for _, r := range all {
		assert.Equal(t, domain.RequestPending, r.Status)
	}
	assert.Equal(t, domain.ValidationPending, f.campaign(t).ValidationStatus)
	assert.Equal(t, domain.LinkPending, f.link(t, "co1").ValidationStatus)
}

func TestResubmitAfterRejection_StartsFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.submit(t)

	_, err := f.svc.Decide(ctx, campaign.DecideInput{RequestID: first[0].ID, DeciderUserID: "u-principal", Decision: domain.DecisionReject, Comment: "too broad"})
	require.NoError(t, err)
	c := f.campaign(t)
	assert.Equal(t, domain.ValidationRejected, c.ValidationStatus)
	assert.Equal(t, domain.CampaignRejected, c.Status)

	second := f.submit(t)
	require.Len(t, second, 2)

	all, err := f.svc.Requests(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, r := range all {
		assert.Equal(t, domain.RequestPending, r.Status)
		assert.NotEqual(t, first[0].ID, r.ID)
	}
	decisions, err := f.store.ListCompanyDecisions(ctx, first[0].ID)
	require.NoError(t, err)
	assert.Empty(t, decisions)

	c = f.campaign(t)
	assert.Equal(t, domain.ValidationPending, c.ValidationStatus)
	assert.Nil(t, c.DecidedAt)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.submit(t)

	err := f.svc.Cancel(ctx, reqs[0].ID, "u-outsider")
	assert.ErrorIs(t, err, campaign.ErrNotRequester)

	require.NoError(t, f.svc.Cancel(ctx, reqs[0].ID, "u-requester"))

	all, err := f.svc.Requests(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, all)
	c := f.campaign(t)
	assert.Equal(t, domain.ValidationDraft, c.ValidationStatus)
	assert.Equal(t, domain.CampaignDraft, c.Status)
	assert.Nil(t, c.SubmittedAt)

	err = f.svc.Cancel(ctx, reqs[0].ID, "u-requester")
	assert.ErrorIs(t, err, campaign.ErrRequestNotFound)
}

// approve runs a full round approving co1, co2 and rejecting co3.
func (f *fixture) approve(t *testing.T) {
	t.Helper()
	reqs := f.submit(t)
	_, err := f.svc.Decide(context.Background(), campaign.DecideInput{
		RequestID: reqs[0].ID, DeciderUserID: "u-principal", Decision: domain.DecisionApprove,
		Companies: []campaign.CompanyVerdictInput{
			{CompanyID: "co1", Verdict: domain.VerdictOK},
			{CompanyID: "co2", Verdict: domain.VerdictOK},
			{CompanyID: "co3", Verdict: domain.VerdictNotOK},
		},
	})
	require.NoError(t, err)
}

func TestRecordExecution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approve(t)

	record := func(company string, status domain.ExecutionStatus) error {
		_, err := f.svc.RecordExecution(ctx, campaign.ExecutionInput{
			CampaignID: "c1", CompanyID: company, ActorUserID: "u-requester", Status: status,
		})
		return err
	}

	assert.ErrorIs(t, record("co3", domain.ExecutionSent), campaign.ErrLinkNotApproved)
	assert.ErrorIs(t, record("co4", domain.ExecutionSent), campaign.ErrLinkNotApproved)
	assert.ErrorIs(t, record("co1", "bounced"), campaign.ErrInvalidExecution)
	assert.ErrorIs(t, record("co9", domain.ExecutionSent), campaign.ErrLinkNotFound)

	require.NoError(t, record("co1", domain.ExecutionSent))
	assert.ErrorIs(t, record("co1", domain.ExecutionFailed), campaign.ErrExecutionTransition)

	require.NoError(t, record("co2", domain.ExecutionFailed))
	require.NoError(t, record("co2", domain.ExecutionDeposed))

	l := f.link(t, "co2")
	assert.Equal(t, domain.ExecutionDeposed, l.ExecutionStatus)
	require.NotNil(t, l.ExecutionDate)

	history, err := f.svc.History(ctx, "c1", "co2")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ExecutionPending, history[0].FromStatus)
	assert.Equal(t, domain.ExecutionFailed, history[0].ToStatus)
	assert.Equal(t, domain.ExecutionFailed, history[1].FromStatus)
	assert.Equal(t, domain.ExecutionDeposed, history[1].ToStatus)
	assert.Equal(t, "u-requester", history[1].ActorID)

	// co1 sent: 1 of 4 linked companies (25%). co2 deposed: 2 of 4 (50%).
	progress := f.store.NotificationsOfType(domain.NotifCampaignProgress)
	require.Len(t, progress, 2)
	var thresholds []int
	for _, n := range progress {
		assert.Equal(t, "u-requester", n.RecipientID)
		p, err := n.Payload()
		require.NoError(t, err)
		thresholds = append(thresholds, p.(*domain.CampaignProgressPayload).Threshold)
	}
	assert.Equal(t, []int{25, 50}, thresholds)
}

func TestProgress_CountsEveryLink(t *testing.T) {
	completed, total := campaign.Progress([]domain.CampaignCompanyLink{
		{ValidationStatus: domain.LinkApproved, ExecutionStatus: domain.ExecutionSent},
		{ValidationStatus: domain.LinkApproved, ExecutionStatus: domain.ExecutionDeposed},
		{ValidationStatus: domain.LinkApproved, ExecutionStatus: domain.ExecutionFailed},
		{ValidationStatus: domain.LinkPending, ExecutionStatus: domain.ExecutionPending},
		{ValidationStatus: domain.LinkRejected, ExecutionStatus: domain.ExecutionPending},
	})
	assert.Equal(t, 2, completed)
	assert.Equal(t, 5, total)
}

func TestRecordExecution_RejectedCompanyKeepsCampaignBelowComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := f.submit(t)
	_, err := f.svc.Decide(ctx, campaign.DecideInput{
		RequestID: reqs[0].ID, DeciderUserID: "u-principal", Decision: domain.DecisionApprove,
		Companies: []campaign.CompanyVerdictInput{
			{CompanyID: "co1", Verdict: domain.VerdictOK},
			{CompanyID: "co2", Verdict: domain.VerdictOK},
			{CompanyID: "co3", Verdict: domain.VerdictOK},
			{CompanyID: "co4", Verdict: domain.VerdictNotOK},
		},
	})
	require.NoError(t, err)

	for _, co := range []string{"co1", "co2", "co3"} {
		_, err := f.svc.RecordExecution(ctx, campaign.ExecutionInput{
			CampaignID: "c1", CompanyID: co, ActorUserID: "u-requester", Status: domain.ExecutionSent,
		})
		require.NoError(t, err)
	}

	var thresholds []int
	var last *domain.CampaignProgressPayload
	for _, n := range f.store.NotificationsOfType(domain.NotifCampaignProgress) {
		p, err := n.Payload()
		require.NoError(t, err)
		last = p.(*domain.CampaignProgressPayload)
		thresholds = append(thresholds, last.Threshold)
	}
	assert.Equal(t, []int{25, 50, 75}, thresholds)
	require.NotNil(t, last)
	assert.Equal(t, 3, last.Completed)
	assert.Equal(t, 4, last.Total)
	assert.Equal(t, 75, last.Percentage)
}

func TestConvertToOpportunity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approve(t)

	_, err := f.svc.ConvertToOpportunity(ctx, campaign.ConvertInput{CampaignID: "c1", CompanyID: "co1", ActorUserID: "u-requester"})
	assert.ErrorIs(t, err, campaign.ErrNotExecuted)

	_, err = f.svc.RecordExecution(ctx, campaign.ExecutionInput{CampaignID: "c1", CompanyID: "co1", ActorUserID: "u-requester", Status: domain.ExecutionSent})
	require.NoError(t, err)

	opp, err := f.svc.ConvertToOpportunity(ctx, campaign.ConvertInput{CampaignID: "c1", CompanyID: "co1", ActorUserID: "u-requester", Name: "Acme deal"})
	require.NoError(t, err)
	assert.Equal(t, "Acme deal", opp.Name)
	assert.Equal(t, campaign.OpportunitySource, opp.Source)
	require.NotNil(t, opp.CollaboratorID)
	assert.Equal(t, "col-requester", *opp.CollaboratorID)
	require.NotNil(t, opp.CampaignID)
	assert.Equal(t, "c1", *opp.CampaignID)

	l := f.link(t, "co1")
	assert.True(t, l.ConvertedToOpportunity)
	require.NotNil(t, l.OpportunityID)
	assert.Equal(t, opp.ID, *l.OpportunityID)

	_, err = f.svc.ConvertToOpportunity(ctx, campaign.ConvertInput{CampaignID: "c1", CompanyID: "co1", ActorUserID: "u-requester"})
	assert.ErrorIs(t, err, campaign.ErrAlreadyConverted)
	assert.Len(t, f.store.Opportunities(), 1)
	assert.Len(t, f.store.NotificationsOfType(domain.NotifCampaignConversion), 1)
}
