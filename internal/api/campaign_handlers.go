package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/httputil"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
	"github.com/ignite/resource-workflow/internal/service/campaign"
)

type submitCampaignRequest struct {
	Level   domain.ValidationLevel `json:"level"`
	Comment string                 `json:"comment"`
}

// SubmitCampaign handles POST /api/campaigns/{campaignID}/submit.
func (h *Handlers) SubmitCampaign(w http.ResponseWriter, r *http.Request) {
	var req submitCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	requests, err := h.campaigns.Submit(r.Context(), campaign.SubmitInput{
		CampaignID:      chi.URLParam(r, "campaignID"),
		RequesterUserID: actorID(r),
		Level:           req.Level,
		Comment:         req.Comment,
	})
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.Created(w, map[string]interface{}{"requests": requests})
}

// ListValidationRequests handles GET /api/campaigns/{campaignID}/requests.
func (h *Handlers) ListValidationRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.campaigns.Requests(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"requests": requests})
}

type companyVerdict struct {
	CompanyID string                `json:"company_id"`
	Verdict   domain.CompanyVerdict `json:"verdict"`
	Note      string                `json:"note"`
}

type decideRequest struct {
	Decision  domain.Decision  `json:"decision"`
	Comment   string           `json:"comment"`
	Companies []companyVerdict `json:"companies"`
}

// DecideValidation handles POST /api/validation-requests/{requestID}/decide.
func (h *Handlers) DecideValidation(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	in := campaign.DecideInput{
		RequestID:     chi.URLParam(r, "requestID"),
		DeciderUserID: actorID(r),
		Decision:      req.Decision,
		Comment:       req.Comment,
	}
	for _, c := range req.Companies {
		in.Companies = append(in.Companies, campaign.CompanyVerdictInput{CompanyID: c.CompanyID, Verdict: c.Verdict, Note: c.Note})
	}
	res, err := h.campaigns.Decide(r.Context(), in)
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	logger.Info("[api] validation decided", "request_id", in.RequestID, "campaign_id", res.Campaign.ID, "decision", string(in.Decision))
	httputil.OK(w, map[string]interface{}{
		"request":           res.Request,
		"campaign":          res.Campaign,
		"resolved_by_other": res.ResolvedByOther,
	})
}

// CancelValidation handles POST /api/validation-requests/{requestID}/cancel.
func (h *Handlers) CancelValidation(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Cancel(r.Context(), chi.URLParam(r, "requestID"), actorID(r)); err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.NoContent(w)
}

type executionRequest struct {
	Status domain.ExecutionStatus `json:"status"`
	Note   string                 `json:"note"`
}

// RecordExecution handles POST /api/campaigns/{campaignID}/companies/{companyID}/execution.
func (h *Handlers) RecordExecution(w http.ResponseWriter, r *http.Request) {
	var req executionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	link, err := h.campaigns.RecordExecution(r.Context(), campaign.ExecutionInput{
		CampaignID:  chi.URLParam(r, "campaignID"),
		CompanyID:   chi.URLParam(r, "companyID"),
		ActorUserID: actorID(r),
		Status:      req.Status,
		Note:        req.Note,
	})
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.OK(w, link)
}

// ExecutionHistory handles GET /api/campaigns/{campaignID}/companies/{companyID}/history.
func (h *Handlers) ExecutionHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.campaigns.History(r.Context(), chi.URLParam(r, "campaignID"), chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"events": events})
}

type convertRequest struct {
	Name string `json:"name"`
}

// ConvertToOpportunity handles POST /api/campaigns/{campaignID}/companies/{companyID}/convert.
func (h *Handlers) ConvertToOpportunity(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if r.ContentLength != 0 && !httputil.Decode(w, r, &req) {
		return
	}
	opp, err := h.campaigns.ConvertToOpportunity(r.Context(), campaign.ConvertInput{
		CampaignID:  chi.URLParam(r, "campaignID"),
		CompanyID:   chi.URLParam(r, "companyID"),
		ActorUserID: actorID(r),
		Name:        req.Name,
	})
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.Created(w, opp)
}
