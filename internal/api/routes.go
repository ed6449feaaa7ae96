package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes. Every route under /api requires
// the actor header.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireActor)

		r.Route("/campaigns/{campaignID}", func(r chi.Router) {
			r.Post("/submit", h.SubmitCampaign)
			r.Get("/requests", h.ListValidationRequests)

			r.Route("/companies/{companyID}", func(r chi.Router) {
				r.Post("/execution", h.RecordExecution)
				r.Get("/history", h.ExecutionHistory)
				r.Post("/convert", h.ConvertToOpportunity)
			})
		})

		r.Route("/validation-requests/{requestID}", func(r chi.Router) {
			r.Post("/decide", h.DecideValidation)
			r.Post("/cancel", h.CancelValidation)
		})

		r.Route("/invoices/{invoiceID}", func(r chi.Router) {
			r.Get("/", h.GetInvoice)
			r.Post("/submit-validation", h.SubmitInvoice)
			r.Post("/validate", h.ValidateInvoice)
			r.Post("/reject", h.RejectInvoice)
			r.Post("/validate-emission", h.ValidateInvoiceForEmission)
			r.Post("/emit", h.EmitInvoice)
			r.Post("/cancel", h.CancelInvoice)
			r.Put("/due-date", h.EditInvoiceDueDate)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/stats", h.NotificationStats)
			r.Post("/{notificationID}/read", h.MarkNotificationRead)
		})

		if h.tasks != nil {
			r.Get("/tasks", h.ListTasks)
			r.Post("/tasks/{task}/run", h.RunTask)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})

	return r
}
