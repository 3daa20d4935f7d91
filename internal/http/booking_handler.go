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

type bookingService interface {
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]domain.Booking, error)
	Approve(ctx context.Context, actor domain.Actor, id string) (application.BookingResult, error)
	Reject(ctx context.Context, actor domain.Actor, id string) (application.BookingResult, error)
	EditBooking(ctx context.Context, params application.EditBookingParams) (application.BookingResult, error)
	DeleteBooking(ctx context.Context, actor domain.Actor, id string) (application.BookingResult, error)
}

// BookingHandler exposes booking queries, edits and approval decisions.
type BookingHandler struct {
	service   bookingService
	location  *time.Location
	logger    *slog.Logger
	responder responder
}

func NewBookingHandler(service bookingService, location *time.Location, logger *slog.Logger) *BookingHandler {
	if location == nil {
		location = time.UTC
	}
	return &BookingHandler{service: service, location: location, logger: logger, responder: newResponder(logger)}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return
	}

	q := r.URL.Query()
	var qErr queryErrors
	params := application.ListBookingsParams{
		Labs:            queryList(q, "labs"),
		DateFrom:        strings.TrimSpace(q.Get("from")),
		DateTo:          strings.TrimSpace(q.Get("to")),
		ProposedBy:      strings.TrimSpace(q.Get("proposedBy")),
		Period:          application.ListPeriod(strings.TrimSpace(q.Get("period"))),
		PeriodReference: qErr.date(q, "reference", h.location),
		Limit:           qErr.limit(q),
	}
	for _, st := range queryList(q, "status") {
		params.Statuses = append(params.Statuses, domain.Status(st))
	}
	if err := qErr.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	ctx := r.Context()
	bookings, err := h.service.ListBookings(ctx, params)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toBookingResponses(bookings))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	booking, err := h.service.GetBooking(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toBookingResponse(booking))
}

// Update edits a booking. "approve": true approves it in the same write.
func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req bookingChangesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	ctx := r.Context()
	result, err := h.service.EditBooking(ctx, application.EditBookingParams{
		Actor:     actor,
		BookingID: id,
		Changes:   req.toApplication(),
		Approve:   req.Approve,
	})
	if err != nil {
		handlerLogger(ctx, h.logger, "BookingHandler", "Update", "booking_id", id).
			InfoContext(ctx, "booking not updated", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toBookingResultResponse(result))
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if _, err := h.service.DeleteBooking(ctx, actor, id); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "Approve")
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "Reject")
}

func (h *BookingHandler) decide(w http.ResponseWriter, r *http.Request, operation string) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	decide := h.service.Approve
	if operation == "Reject" {
		decide = h.service.Reject
	}

	ctx := r.Context()
	result, err := decide(ctx, actor, id)
	if err != nil {
		handlerLogger(ctx, h.logger, "BookingHandler", operation, "booking_id", id).
			InfoContext(ctx, "decision refused", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toBookingResultResponse(result))
}

func (h *BookingHandler) bookingID(w http.ResponseWriter, r *http.Request) (string, bool) {
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

func (h *BookingHandler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingToken)
	}
	return actor, ok
}
