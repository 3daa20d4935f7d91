package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/lab-scheduler/internal/application"
)

type proposalService interface {
	ResolveProposal(ctx context.Context, req application.ProposalRequest) (application.Resolution, error)
	SubmitProposal(ctx context.Context, req application.SubmitRequest) (application.SubmitResult, error)
}

// ProposalHandler checks and submits booking proposals.
type ProposalHandler struct {
	service   proposalService
	logger    *slog.Logger
	responder responder
}

func NewProposalHandler(service proposalService, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{service: service, logger: logger, responder: newResponder(logger)}
}

// Check resolves a proposal without writing anything.
func (h *ProposalHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return
	}

	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	ctx := r.Context()
	res, err := h.service.ResolveProposal(ctx, req.toApplication())
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toResolutionResponse(res))
}

// Submit persists a proposal. Without a policy any conflict answers 409 with
// the reports and nothing is written.
func (h *ProposalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errServiceUnwired)
		return
	}

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingToken)
		return
	}

	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	ctx := r.Context()
	logger := handlerLogger(ctx, h.logger, "ProposalHandler", "Submit", "policy", req.Policy)
	result, err := h.service.SubmitProposal(ctx, application.SubmitRequest{
		Actor:    actor,
		Proposal: req.toApplication(),
		Policy:   application.Policy(req.Policy),
	})
	if err != nil {
		logger.InfoContext(ctx, "proposal not submitted", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if len(result.Created) == 0 {
		status = http.StatusOK
	}
	h.responder.writeJSON(ctx, w, status, toSubmitResponse(result))
}
