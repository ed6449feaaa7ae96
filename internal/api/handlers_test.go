package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/distlock"
	"github.com/ignite/resource-workflow/internal/pkg/httputil"
	"github.com/ignite/resource-workflow/internal/repository/memory"
	"github.com/ignite/resource-workflow/internal/service/campaign"
	"github.com/ignite/resource-workflow/internal/service/invoice"
	"github.com/ignite/resource-workflow/internal/service/notification"
)

type mockCampaigns struct {
	submitted campaign.SubmitInput
	decided   campaign.DecideInput
	cancelled [2]string
	executed  campaign.ExecutionInput
	err       error
}

func (m *mockCampaigns) Submit(ctx context.Context, in campaign.SubmitInput) ([]domain.CampaignValidationRequest, error) {
	m.submitted = in
	if m.err != nil {
		return nil, m.err
	}
	return []domain.CampaignValidationRequest{{ID: "r1", CampaignID: in.CampaignID, Status: domain.RequestPending}}, nil
}

func (m *mockCampaigns) Decide(ctx context.Context, in campaign.DecideInput) (*campaign.DecideResult, error) {
	m.decided = in
	if m.err != nil {
		return nil, m.err
	}
	return &campaign.DecideResult{
		Request:         domain.CampaignValidationRequest{ID: in.RequestID, Status: in.Decision.RequestStatus()},
		Campaign:        domain.Campaign{ID: "c1", ValidationStatus: in.Decision.ValidationStatus()},
		ResolvedByOther: 1,
	}, nil
}

func (m *mockCampaigns) Cancel(ctx context.Context, requestID, requesterUserID string) error {
	m.cancelled = [2]string{requestID, requesterUserID}
	return m.err
}

func (m *mockCampaigns) RecordExecution(ctx context.Context, in campaign.ExecutionInput) (*domain.CampaignCompanyLink, error) {
	m.executed = in
	if m.err != nil {
		return nil, m.err
	}
	return &domain.CampaignCompanyLink{CampaignID: in.CampaignID, CompanyID: in.CompanyID, ExecutionStatus: in.Status}, nil
}

func (m *mockCampaigns) ConvertToOpportunity(ctx context.Context, in campaign.ConvertInput) (*domain.Opportunity, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Opportunity{ID: "o1", Name: in.Name, CompanyID: in.CompanyID}, nil
}

func (m *mockCampaigns) History(ctx context.Context, campaignID, companyID string) ([]domain.ExecutionEvent, error) {
	return []domain.ExecutionEvent{{CampaignID: campaignID, CompanyID: companyID, ToStatus: domain.ExecutionSent}}, m.err
}

func (m *mockCampaigns) Requests(ctx context.Context, campaignID string) ([]domain.CampaignValidationRequest, error) {
	return nil, m.err
}

type mockInvoices struct {
	calls  []string
	reason string
	due    time.Time
	err    error
}

func (m *mockInvoices) record(call, id string) (*domain.Invoice, error) {
	m.calls = append(m.calls, call)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Invoice{ID: id}, nil
}

func (m *mockInvoices) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	return m.record("get", id)
}
func (m *mockInvoices) SubmitForValidation(ctx context.Context, id, userID string) (*domain.Invoice, error) {
	return m.record("submit", id)
}
func (m *mockInvoices) Validate(ctx context.Context, id, userID, notes string) (*domain.Invoice, error) {
	m.reason = notes
	return m.record("validate", id)
}
func (m *mockInvoices) Reject(ctx context.Context, id, userID, reason string) (*domain.Invoice, error) {
	m.reason = reason
	return m.record("reject", id)
}
func (m *mockInvoices) ValidateForEmission(ctx context.Context, id, userID string) (*domain.Invoice, error) {
	return m.record("validate-emission", id)
}
func (m *mockInvoices) Emit(ctx context.Context, id, userID string) (*domain.Invoice, error) {
	return m.record("emit", id)
}
func (m *mockInvoices) Cancel(ctx context.Context, id, userID, reason string) (*domain.Invoice, error) {
	m.reason = reason
	return m.record("cancel", id)
}
func (m *mockInvoices) EditDueDate(ctx context.Context, id string, due time.Time) (*domain.Invoice, error) {
	m.due = due
	return m.record("due-date", id)
}

type mockTasks struct {
	ran []string
	err error
}

func (m *mockTasks) Tasks() []string { return []string{"overdue_stages"} }

func (m *mockTasks) RunNow(ctx context.Context, name string) error {
	m.ran = append(m.ran, name)
	return m.err
}

type testServer struct {
	handler   http.Handler
	campaigns *mockCampaigns
	invoices  *mockInvoices
	tasks     *mockTasks
	store     *memory.Store
	inbox     *notification.Dispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	ts := &testServer{
		campaigns: &mockCampaigns{},
		invoices:  &mockInvoices{},
		tasks:     &mockTasks{},
		store:     store,
		inbox:     notification.NewDispatcher(store),
	}
	ts.handler = SetupRoutes(NewHandlers(ts.campaigns, ts.invoices, ts.inbox, ts.tasks), nil)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, actor, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRequiresActor(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/campaigns/c1/submit", "", `{"level":"BUSINESS_UNIT"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ts.campaigns.submitted.CampaignID)
}

func TestSubmitCampaign(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/campaigns/c1/submit", "u-req", `{"level":"BUSINESS_UNIT","comment":"please"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, campaign.SubmitInput{CampaignID: "c1", RequesterUserID: "u-req", Level: domain.LevelBusinessUnit, Comment: "please"}, ts.campaigns.submitted)
	var body struct {
		Requests []domain.CampaignValidationRequest `json:"requests"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Requests, 1)
	assert.Equal(t, "r1", body.Requests[0].ID)
}

func TestSubmitCampaign_BadJSON(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/campaigns/c1/submit", "u-req", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecideValidation(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/validation-requests/r1/decide", "u-val",
		`{"decision":"APPROVE","comment":"ok","companies":[{"company_id":"co1","verdict":"NOT_OK","note":"dup"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	in := ts.campaigns.decided
	assert.Equal(t, "r1", in.RequestID)
	assert.Equal(t, "u-val", in.DeciderUserID)
	assert.Equal(t, domain.DecisionApprove, in.Decision)
	require.Len(t, in.Companies, 1)
	assert.Equal(t, campaign.CompanyVerdictInput{CompanyID: "co1", Verdict: domain.VerdictNotOK, Note: "dup"}, in.Companies[0])

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.EqualValues(t, 1, body["resolved_by_other"])
}

func TestWorkflowErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"already resolved", campaign.ErrAlreadyResolved, http.StatusConflict, "VALIDATION_ALREADY_RESOLVED"},
		{"not found", campaign.ErrRequestNotFound, http.StatusNotFound, "VALIDATION_REQUEST_NOT_FOUND"},
		{"invalid decision", campaign.ErrInvalidDecision, http.StatusBadRequest, "INVALID_DECISION"},
		{"unauthorized", campaign.ErrUnauthorized, http.StatusForbidden, "DECIDER_UNAUTHORIZED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.campaigns.err = tt.err
			rec := ts.do(t, http.MethodPost, "/api/validation-requests/r1/decide", "u-val", `{"decision":"REJECT"}`)
			assert.Equal(t, tt.status, rec.Code)
			var body httputil.ErrorResponse
			decodeBody(t, rec, &body)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestCancelValidation(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/validation-requests/r1/cancel", "u-req", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]string{"r1", "u-req"}, ts.campaigns.cancelled)

	ts.campaigns.err = campaign.ErrNotRequester
	rec = ts.do(t, http.MethodPost, "/api/validation-requests/r1/cancel", "u-other", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExecutionRoutes(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/campaigns/c1/companies/co1/execution", "u-exec", `{"status":"sent","note":"mailed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, campaign.ExecutionInput{CampaignID: "c1", CompanyID: "co1", ActorUserID: "u-exec", Status: domain.ExecutionSent, Note: "mailed"}, ts.campaigns.executed)

	rec = ts.do(t, http.MethodGet, "/api/campaigns/c1/companies/co1/history", "u-exec", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"to_status":"sent"`)

	rec = ts.do(t, http.MethodPost, "/api/campaigns/c1/companies/co1/convert", "u-exec", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"company_id":"co1"`)
}

func TestInvoiceRoutes(t *testing.T) {
	ts := newTestServer(t)
	steps := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/invoices/inv-1", ""},
		{http.MethodPost, "/api/invoices/inv-1/submit-validation", ""},
		{http.MethodPost, "/api/invoices/inv-1/validate", `{"notes":"fine"}`},
		{http.MethodPost, "/api/invoices/inv-1/validate-emission", ""},
		{http.MethodPost, "/api/invoices/inv-1/emit", ""},
	}
	for _, s := range steps {
		rec := ts.do(t, s.method, s.path, "u-1", s.body)
		require.Equal(t, http.StatusOK, rec.Code, s.path)
	}
	assert.Equal(t, []string{"get", "submit", "validate", "validate-emission", "emit"}, ts.invoices.calls)
	assert.Equal(t, "fine", ts.invoices.reason)
}

func TestInvoiceCancel_DependencyDetails(t *testing.T) {
	ts := newTestServer(t)
	ts.invoices.err = invoice.ErrHasAllocatedPayments.WithDetails(map[string]interface{}{"count": 1, "allocation_ids": []string{"a1"}})

	rec := ts.do(t, http.MethodPost, "/api/invoices/inv-1/cancel", "u-admin", `{"reason":"duplicate"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate", ts.invoices.reason)
	assert.Contains(t, rec.Body.String(), `"allocation_ids":["a1"]`)
}

func TestEditInvoiceDueDate(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPut, "/api/invoices/inv-1/due-date", "u-1", `{"due_date":"2024-07-31"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.invoices.due.Equal(time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)))

	rec = ts.do(t, http.MethodPut, "/api/invoices/inv-1/due-date", "u-1", `{"due_date":"31/07/2024"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationInbox(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	n, err := ts.inbox.Notify(ctx, notification.Input{
		RecipientID: "u-1",
		Title:       "Campaign overdue",
		Message:     "Spring is late",
		Payload:     domain.CampaignOverduePayload{CampaignID: "c1", CampaignName: "Spring"},
	})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/api/notifications?unread=true", "u-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, n.ID, list.Notifications[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/notifications", "u-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"notifications":[]`)

	rec = ts.do(t, http.MethodPost, "/api/notifications/"+n.ID+"/read", "u-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/notifications/"+n.ID+"/read", "u-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/notifications/stats", "u-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.NotificationStats
	decodeBody(t, rec, &stats)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.Unread)

	rec = ts.do(t, http.MethodGet, "/api/notifications?limit=-1", "u-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunTask(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/tasks", "u-admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "overdue_stages")

	rec = ts.do(t, http.MethodPost, "/api/tasks/overdue_stages/run", "u-admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"overdue_stages"}, ts.tasks.ran)

	rec = ts.do(t, http.MethodPost, "/api/tasks/nope/run", "u-admin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.tasks.err = distlock.ErrNotAcquired
	rec = ts.do(t, http.MethodPost, "/api/tasks/overdue_stages/run", "u-admin", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTaskRoutesAbsentWithoutRunner(t *testing.T) {
	h := NewHandlers(&mockCampaigns{}, &mockInvoices{}, notification.NewDispatcher(memory.New()), nil)
	router := SetupRoutes(h, []string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set(ActorHeader, "u-admin")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
