package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/lab-scheduler/internal/application"
)

var (
	errBadRequestBody  = errors.New("Formato de requisição inválido.")
	errMissingToken    = errors.New("Informe o token de acesso.")
	errInvalidToken    = errors.New("Sessão inválida. Faça login novamente.")
	errServiceUnwired  = errors.New("Serviço indisponível.")
	errInvalidRecordID = errors.New("Identificador inválido.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr *application.ValidationError
		cErr *application.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "Há erros nos dados informados.",
			Errors:    localizeValidationErrors(vErr),
		})
	case errors.As(err, &cErr):
		resp := errorResponse{
			ErrorCode: "SLOT_CONFLICT",
			Message:   "O horário solicitado conflita com reservas ou eventos existentes.",
			Conflicts: conflictsFromReports(cErr.Reports),
		}
		if len(cErr.Reports) == 0 {
			resp.ErrorCode = "SLOT_TAKEN"
			resp.Message = "O horário foi ocupado por outra solicitação. Verifique a disponibilidade novamente."
		}
		r.writeJSON(ctx, w, http.StatusConflict, resp)
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "Você não tem permissão para executar esta operação.",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "O registro solicitado não foi encontrado."})
	case errors.Is(err, application.ErrInvalidTransition):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "INVALID_TRANSITION",
			Message:   "O status atual da reserva não permite esta operação.",
		})
	case errors.Is(err, application.ErrStorageUnavailable):
		r.loggerFor(ctx).ErrorContext(ctx, "storage unavailable", "error", err)
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "STORAGE_UNAVAILABLE",
			Message:   "O armazenamento está indisponível. Tente novamente em instantes.",
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "Ocorreu um erro interno no servidor."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "A requisição está incorreta."
	case http.StatusUnauthorized:
		return "Autenticação necessária."
	case http.StatusForbidden:
		return "Você não tem permissão para executar esta operação."
	case http.StatusNotFound:
		return "O registro solicitado não foi encontrado."
	case http.StatusMethodNotAllowed:
		return "Método não permitido para este recurso."
	case http.StatusConflict:
		return "A requisição conflita com o estado atual do registro."
	case http.StatusUnprocessableEntity:
		return "Há erros nos dados informados."
	case http.StatusServiceUnavailable:
		return "Serviço indisponível."
	default:
		return "Ocorreu um erro interno no servidor."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "actionType must be add or delete":
		return "O tipo de ação deve ser add ou delete."
	case "activityType must be class or review":
		return "O tipo de atividade deve ser aula ou revisão."
	case "date is required":
		return "A data é obrigatória."
	case "date must be YYYY-MM-DD":
		return "A data deve estar no formato AAAA-MM-DD."
	case "from must be YYYY-MM-DD":
		return "A data inicial deve estar no formato AAAA-MM-DD."
	case "to must be YYYY-MM-DD":
		return "A data final deve estar no formato AAAA-MM-DD."
	case "to must not be before from":
		return "A data final não pode ser anterior à data inicial."
	case "lab is required":
		return "O laboratório é obrigatório."
	case "at least one lab is required":
		return "Selecione ao menos um laboratório."
	case `"All" cannot be combined with specific labs`:
		return "\"Todos\" não pode ser combinado com laboratórios específicos."
	case `"All" is only valid for events`:
		return "\"Todos\" só é válido para eventos."
	case "limit must be a number":
		return "O limite deve ser um número."
	case "reference must be YYYY-MM-DD":
		return "A data de referência deve estar no formato AAAA-MM-DD."
	case "limit must not be negative":
		return "O limite não pode ser negativo."
	case "period must be day, week or month":
		return "O período deve ser dia, semana ou mês."
	case "policy must be ignore or replace":
		return "A política deve ser ignore ou replace."
	case "subject is required":
		return "A disciplina é obrigatória."
	case "title is required":
		return "O título é obrigatório."
	case "at least one time block is required":
		return "Selecione ao menos um horário."
	case "time block is required":
		return "O horário é obrigatório."
	case "type must be maintenance, holiday, institutional or other":
		return "O tipo deve ser manutenção, feriado, institucional ou outro."
	case "repeat selects no dates":
		return "A repetição não seleciona nenhuma data."
	}

	switch {
	case strings.HasPrefix(message, "unknown lab "):
		return "Laboratório desconhecido: " + strings.TrimPrefix(message, "unknown lab ")
	case strings.HasPrefix(message, "unknown time block "):
		return "Horário desconhecido: " + strings.TrimPrefix(message, "unknown time block ")
	case strings.HasPrefix(message, "unknown course "):
		return "Curso desconhecido: " + strings.TrimPrefix(message, "unknown course ")
	case strings.HasPrefix(message, "unknown status "):
		return "Status desconhecido: " + strings.TrimPrefix(message, "unknown status ")
	case strings.HasPrefix(message, "group ") && strings.Contains(message, " is not of type "):
		return "Laboratório fora do tipo selecionado (" + message + ")."
	case strings.HasPrefix(message, "recurrence:"):
		return "Repetição inválida: " + strings.TrimSpace(strings.TrimPrefix(message, "recurrence:"))
	}
	return message
}

type errorResponse struct {
	ErrorCode string             `json:"error_code,omitempty"`
	Message   string             `json:"message"`
	Errors    map[string]string  `json:"errors,omitempty"`
	Conflicts []conflictResponse `json:"conflicts,omitempty"`
}
