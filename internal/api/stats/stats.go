package stats

import (
	"crash_backend/internal/converter"
	"crash_backend/internal/repository"
	"crash_backend/internal/service"
	"crash_backend/pkg/resp"
	"net/http"
)

type HandlerDeps struct {
	Stats repository.StatsRepository
	Game  service.GameService
}

type Handler struct {
	stats repository.StatsRepository
	game  service.GameService
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{stats: deps.Stats, game: deps.Game}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	resp.WriteJSONResponse(w, r, http.StatusOK, converter.ToStatsResponse(h.stats.HouseState(), h.game.Residents()))
}
