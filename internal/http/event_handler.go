package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/domain"
)

type eventService interface {
	CreateEvents(ctx context.Context, params application.CreateEventsParams) (application.EventsResult, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.EventsResult, error)
	DeleteEvent(ctx context.Context, actor domain.Actor, id string) (application.EventsResult, error)
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]domain.Event, error)
}

// EventHandler manages administrative events.
type EventHandler struct {
	service   eventService
	location  *time.Location
	logger    *slog.Logger
	responder responder
}

func NewEventHandler(service eventService, location *time.Location, logger *slog.Logger) *EventHandler {
	if location == nil {
		location = time.UTC
	}
	return &EventHandler{service: service, location: location, logger: logger, responder: newResponder(logger)}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return
	}

	q := r.URL.Query()
	var qErr queryErrors
	params := application.ListEventsParams{
		Labs:            queryList(q, "labs"),
		DateFrom:        strings.TrimSpace(q.Get("from")),
		DateTo:          strings.TrimSpace(q.Get("to")),
		Period:          application.ListPeriod(strings.TrimSpace(q.Get("period"))),
		PeriodReference: qErr.date(q, "reference", h.location),
		Limit:           qErr.limit(q),
	}
	if err := qErr.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	ctx := r.Context()
	events, err := h.service.ListEvents(ctx, params)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toEventResponses(events))
}

// Create writes one event per lab × block × date and returns the bookings
// they now shadow as warnings.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return
	}
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingToken)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, fieldErrors := req.toApplication()
	if fieldErrors != nil {
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   localizedStatusMessage(http.StatusUnprocessableEntity),
			Errors:    fieldErrors,
		})
		return
	}

	ctx := r.Context()
	result, err := h.service.CreateEvents(ctx, application.CreateEventsParams{Actor: actor, Input: input})
	if err != nil {
		handlerLogger(ctx, h.logger, "EventHandler", "Create").
			InfoContext(ctx, "events not created", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusCreated, toEventsResultResponse(result))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	event, err := h.service.GetEvent(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toEventResponse(event))
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingToken)
		return
	}

	var req eventChangesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	ctx := r.Context()
	result, err := h.service.UpdateEvent(ctx, application.UpdateEventParams{Actor: actor, EventID: id, Changes: req.toApplication()})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toEventsResultResponse(result))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingToken)
		return
	}

	ctx := r.Context()
	if _, err := h.service.DeleteEvent(ctx, actor, id); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

func (h *EventHandler) eventID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.service == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return "", false
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRecordID)
		return "", false
	}
	return id, true
}
