// Package api exposes the workflow operations over HTTP. It is a transport
// adapter only: authentication happens upstream and the caller's user id
// arrives in the X-User-ID header.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/httputil"
	"github.com/ignite/resource-workflow/internal/service/campaign"
	"github.com/ignite/resource-workflow/internal/service/notification"
)

// ActorHeader carries the authenticated user id.
const ActorHeader = "X-User-ID"

// CampaignWorkflow is the campaign approval surface.
type CampaignWorkflow interface {
	Submit(ctx context.Context, in campaign.SubmitInput) ([]domain.CampaignValidationRequest, error)
	Decide(ctx context.Context, in campaign.DecideInput) (*campaign.DecideResult, error)
	Cancel(ctx context.Context, requestID, requesterUserID string) error
	RecordExecution(ctx context.Context, in campaign.ExecutionInput) (*domain.CampaignCompanyLink, error)
	ConvertToOpportunity(ctx context.Context, in campaign.ConvertInput) (*domain.Opportunity, error)
	History(ctx context.Context, campaignID, companyID string) ([]domain.ExecutionEvent, error)
	Requests(ctx context.Context, campaignID string) ([]domain.CampaignValidationRequest, error)
}

// InvoiceWorkflow is the invoice approval surface.
type InvoiceWorkflow interface {
	Get(ctx context.Context, id string) (*domain.Invoice, error)
	SubmitForValidation(ctx context.Context, id, userID string) (*domain.Invoice, error)
	Validate(ctx context.Context, id, userID, notes string) (*domain.Invoice, error)
	Reject(ctx context.Context, id, userID, reason string) (*domain.Invoice, error)
	ValidateForEmission(ctx context.Context, id, userID string) (*domain.Invoice, error)
	Emit(ctx context.Context, id, userID string) (*domain.Invoice, error)
	Cancel(ctx context.Context, id, userID, reason string) (*domain.Invoice, error)
	EditDueDate(ctx context.Context, id string, due time.Time) (*domain.Invoice, error)
}

// Inbox is the recipient side of notifications.
type Inbox interface {
	ListForRecipient(ctx context.Context, recipientID string, f notification.ListFilter) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (*domain.Notification, error)
	Stats(ctx context.Context, recipientID string) (domain.NotificationStats, error)
}

// TaskRunner triggers scheduled detectors on demand.
type TaskRunner interface {
	Tasks() []string
	RunNow(ctx context.Context, name string) error
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	campaigns CampaignWorkflow
	invoices  InvoiceWorkflow
	inbox     Inbox
	tasks     TaskRunner
	started   time.Time
}

// NewHandlers creates the handler set. tasks may be nil, which leaves the
// task routes unregistered.
func NewHandlers(campaigns CampaignWorkflow, invoices InvoiceWorkflow, inbox Inbox, tasks TaskRunner) *Handlers {
	return &Handlers{
		campaigns: campaigns,
		invoices:  invoices,
		inbox:     inbox,
		tasks:     tasks,
		started:   time.Now(),
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

type actorKey struct{}

// requireActor rejects requests without an actor and stores it in the
// request context.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ActorHeader))
		if id == "" {
			httputil.Error(w, http.StatusUnauthorized, "missing "+ActorHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, id)))
	})
}

func actorID(r *http.Request) string {
	id, _ := r.Context().Value(actorKey{}).(string)
	return id
}
