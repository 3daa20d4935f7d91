package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/catalog"
)

type availabilityService interface {
	CheckAvailability(ctx context.Context, labs []string, date, excludeRecordID string) ([]string, error)
	DaySchedule(ctx context.Context, labs []string, date string) (application.DaySchedule, error)
}

// ScheduleHandler serves the catalog and read-only occupancy views.
type ScheduleHandler struct {
	catalog      *catalog.Catalog
	availability availabilityService
	logger       *slog.Logger
	responder    responder
}

func NewScheduleHandler(cat *catalog.Catalog, availability availabilityService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{catalog: cat, availability: availability, logger: logger, responder: newResponder(logger)}
}

func (h *ScheduleHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toCatalogResponse(h.catalog))
}

func (h *ScheduleHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h.availability == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return
	}

	q := r.URL.Query()
	labs := queryList(q, "labs")
	date := strings.TrimSpace(q.Get("date"))
	ctx := r.Context()
	logger := handlerLogger(ctx, h.logger, "ScheduleHandler", "Availability", "date", date)

	occupied, err := h.availability.CheckAvailability(ctx, labs, date, strings.TrimSpace(q.Get("exclude")))
	if err != nil {
		logger.WarnContext(ctx, "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, availabilityResponse{Date: date, Labs: nonNil(labs), Occupied: nonNil(occupied)})
}

func (h *ScheduleHandler) Day(w http.ResponseWriter, r *http.Request) {
	if h.availability == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return
	}

	q := r.URL.Query()
	ctx := r.Context()
	day, err := h.availability.DaySchedule(ctx, queryList(q, "labs"), strings.TrimSpace(q.Get("date")))
	if err != nil {
		handlerLogger(ctx, h.logger, "ScheduleHandler", "Day").WarnContext(ctx, "day schedule failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toDayScheduleResponse(day))
}
