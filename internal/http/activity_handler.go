package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/persistence"
)

type activityLister interface {
	List(ctx context.Context, filter persistence.ActivityFilter) ([]domain.ActivityEntry, error)
}

// ActivityHandler serves the audit feed.
type ActivityHandler struct {
	log       activityLister
	location  *time.Location
	responder responder
}

func NewActivityHandler(log activityLister, location *time.Location, logger *slog.Logger) *ActivityHandler {
	if location == nil {
		location = time.UTC
	}
	return &ActivityHandler{log: log, location: location, responder: newResponder(logger)}
}

// List answers entries newest first. from and to are calendar dates in the
// institution's zone; to includes the whole day.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.log == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return
	}

	q := r.URL.Query()
	var qErr queryErrors
	filter := persistence.ActivityFilter{
		From:       qErr.date(q, "from", h.location),
		ActionType: domain.ActionType(strings.TrimSpace(q.Get("action"))),
		Limit:      qErr.limit(q),
	}
	if to := qErr.date(q, "to", h.location); !to.IsZero() {
		filter.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if filter.Limit < 0 {
		qErr.add("limit", "limit must not be negative")
	}
	if err := qErr.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	ctx := r.Context()
	entries, err := h.log.List(ctx, filter)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toActivityResponses(entries))
}
