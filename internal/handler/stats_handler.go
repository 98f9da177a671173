package handler

import (
	"net/http"

	"ventas-sync/internal/service"
	"ventas-sync/pkg/response"
)

type StatsHandler struct {
	stats *service.StatsService
}

func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) General(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.stats.General())
}
