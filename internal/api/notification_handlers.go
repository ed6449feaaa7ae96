package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/distlock"
	"github.com/ignite/resource-workflow/internal/pkg/httputil"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
	"github.com/ignite/resource-workflow/internal/service/notification"
)

// ListNotifications handles GET /api/notifications. Query parameters:
// unread=true, type, limit, offset.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := notification.ListFilter{
		UnreadOnly: q.Get("unread") == "true",
		Type:       domain.NotificationType(q.Get("type")),
	}
	var err error
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			httputil.BadRequest(w, "offset must be a non-negative integer")
			return
		}
	}
	items, err := h.inbox.ListForRecipient(r.Context(), actorID(r), f)
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	httputil.OK(w, map[string]interface{}{"notifications": items})
}

// NotificationStats handles GET /api/notifications/stats.
func (h *Handlers) NotificationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.inbox.Stats(r.Context(), actorID(r))
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// MarkNotificationRead handles POST /api/notifications/{notificationID}/read.
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.inbox.MarkRead(r.Context(), chi.URLParam(r, "notificationID"), actorID(r))
	if err != nil {
		httputil.AppError(w, err)
		return
	}
	httputil.OK(w, n)
}

// ListTasks handles GET /api/tasks.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{"tasks": h.tasks.Tasks()})
}

// RunTask handles POST /api/tasks/{task}/run. The run is synchronous.
func (h *Handlers) RunTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "task")
	if !h.hasTask(name) {
		httputil.Error(w, http.StatusNotFound, "unknown task "+name)
		return
	}
	logger.Info("[api] manual task run", "task", name, "actor", actorID(r))
	err := h.tasks.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, distlock.ErrNotAcquired):
		httputil.Error(w, http.StatusConflict, "task "+name+" is already running")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, map[string]string{"task": name, "status": "completed"})
	}
}

func (h *Handlers) hasTask(name string) bool {
	for _, t := range h.tasks.Tasks() {
		if t == name {
			return true
		}
	}
	return false
}
