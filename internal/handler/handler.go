// Package handler exposes the tutoring session API over HTTP. All
// endpoints speak JSON; errors carry a stable machine-readable code
// alongside the human-readable message.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edaccel/tutor/internal/model"
	"github.com/edaccel/tutor/internal/orchestrator"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	orch    *orchestrator.Orchestrator
	version string
}

// New creates a new Handler.
func New(orch *orchestrator.Orchestrator, version string) *Handler {
	return &Handler{orch: orch, version: version}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/start", h.handleStart)
	r.Post("/chat", h.handleChat)
	r.Post("/session/{sessionID}/quiz/submit", h.handleSubmitQuiz)
	r.Get("/session/{sessionID}/status", h.handleStatus)
	r.Get("/passage", h.handlePassage)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	resp, err := h.orch.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}
	if req.SessionID == "" {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	resp, err := h.orch.Chat(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	answers, err := decodeAnswers(r)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.orch.SubmitQuiz(r.Context(), sessionID, answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeAnswers accepts either a bare answer array or an object wrapping
// it under "answers".
func decodeAnswers(r *http.Request) ([]model.QuizAnswer, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, errors.New("request body is not valid JSON")
	}

	var list []model.QuizAnswer
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped model.SubmitRequest
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Answers, nil
	}
	return nil, errors.New("answers must be a list of {question_id, answer}")
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.orch.Status(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePassage(w http.ResponseWriter, r *http.Request) {
	p := h.orch.Passage()
	writeJSON(w, http.StatusOK, model.PassageResponse{
		Title:      p.Title,
		Content:    p.Content,
		Difficulty: p.Difficulty,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{Status: "ok", Version: h.version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP status codes and stable error codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		writeErrorCode(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, model.ErrEmptyMessage):
		writeErrorCode(w, http.StatusBadRequest, "empty_message", err.Error())
	case errors.Is(err, model.ErrQuizNotReady):
		writeErrorCode(w, http.StatusConflict, "quiz_not_ready", err.Error())
	case errors.Is(err, model.ErrUnknownQuestion):
		writeErrorCode(w, http.StatusBadRequest, "unknown_question", err.Error())
	case errors.Is(err, model.ErrDuplicateAnswer):
		writeErrorCode(w, http.StatusBadRequest, "duplicate_answer", err.Error())
	case errors.Is(err, model.ErrIncompleteAnswers):
		writeErrorCode(w, http.StatusBadRequest, "incomplete_answers", err.Error())
	case errors.Is(err, model.ErrWrongPhase):
		writeErrorCode(w, http.StatusConflict, "wrong_phase", err.Error())
	default:
		slog.Error("internal error", "error", err)
		writeErrorCode(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}
