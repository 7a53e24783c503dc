package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"calmap/internal/query"
)

// QueryHandler serves the natural-language filter interpreter.
type QueryHandler struct {
	interpreter *query.Interpreter
	logger      *slog.Logger
}

func NewQueryHandler(interpreter *query.Interpreter, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{interpreter: interpreter, logger: logger}
}

type interpretRequest struct {
	Query string `json:"query"`
}

func (h *QueryHandler) Interpret(w http.ResponseWriter, r *http.Request) {
	var req interpretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.interpreter.Interpret(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuery) {
			respondError(w, http.StatusBadRequest, "query cannot be empty")
			return
		}
		h.logger.Error("interpret failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to interpret query")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *QueryHandler) AvailableFilters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.interpreter.AvailableFilters())
}
