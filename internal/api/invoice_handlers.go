package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/httputil"
)

type invoiceNoteRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

type dueDateRequest struct {
	DueDate string `json:"due_date"`
}

// invoiceAction adapts a workflow step that needs only the invoice and actor.
func (h *Handlers) invoiceAction(step func(r *http.Request, id, userID string) (*domain.Invoice, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := step(r, chi.URLParam(r, "invoiceID"), actorID(r))
		if err != nil {
			httputil.AppError(w, err)
			return
		}
		httputil.OK(w, inv)
	}
}

// GetInvoice handles GET /api/invoices/{invoiceID}.
func (h *Handlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.Get(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.OK(w, inv)
}

// SubmitInvoice handles POST /api/invoices/{invoiceID}/submit-validation.
func (h *Handlers) SubmitInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(func(r *http.Request, id, userID string) (*domain.Invoice, error) {
		return h.invoices.SubmitForValidation(r.Context(), id, userID)
	})(w, r)
}

// ValidateInvoice handles POST /api/invoices/{invoiceID}/validate.
func (h *Handlers) ValidateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceNoteRequest
	if r.ContentLength != 0 && !httputil.Decode(w, r, &req) {
		return
	}
	h.invoiceAction(func(r *http.Request, id, userID string) (*domain.Invoice, error) {
		return h.invoices.Validate(r.Context(), id, userID, req.Notes)
	})(w, r)
}

// RejectInvoice handles POST /api/invoices/{invoiceID}/reject.
func (h *Handlers) RejectInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceNoteRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.invoiceAction(func(r *http.Request, id, userID string) (*domain.Invoice, error) {
		return h.invoices.Reject(r.Context(), id, userID, req.Reason)
	})(w, r)
}

// ValidateInvoiceForEmission handles POST /api/invoices/{invoiceID}/validate-emission.
func (h *Handlers) ValidateInvoiceForEmission(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(func(r *http.Request, id, userID string) (*domain.Invoice, error) {
		return h.invoices.ValidateForEmission(r.Context(), id, userID)
	})(w, r)
}

// EmitInvoice handles POST /api/invoices/{invoiceID}/emit.
func (h *Handlers) EmitInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(func(r *http.Request, id, userID string) (*domain.Invoice, error) {
		return h.invoices.Emit(r.Context(), id, userID)
	})(w, r)
}

// CancelInvoice handles POST /api/invoices/{invoiceID}/cancel.
func (h *Handlers) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceNoteRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.invoiceAction(func(r *http.Request, id, userID string) (*domain.Invoice, error) {
		return h.invoices.Cancel(r.Context(), id, userID, req.Reason)
	})(w, r)
}

// EditInvoiceDueDate handles PUT /api/invoices/{invoiceID}/due-date. The
// date is either YYYY-MM-DD or RFC 3339.
func (h *Handlers) EditInvoiceDueDate(w http.ResponseWriter, r *http.Request) {
	var req dueDateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		httputil.BadRequest(w, "due_date must be YYYY-MM-DD or RFC 3339")
		return
	}
	inv, err := h.invoices.EditDueDate(r.Context(), chi.URLParam(r, "invoiceID"), due)
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.OK(w, inv)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
