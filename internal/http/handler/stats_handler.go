package handler

import (
	"net/http"

	"go-verification-gateway/internal/http/response"
	"go-verification-gateway/internal/observability"
)

type StatsHandler struct{}

func NewStatsHandler() *StatsHandler {
	return &StatsHandler{}
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]any{"counters": observability.Snapshot()})
}
