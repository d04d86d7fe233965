package wallet

import (
	"crash_backend/internal/converter"
	"crash_backend/internal/middleware"
	"crash_backend/internal/model"
	"crash_backend/internal/service"
	"crash_backend/pkg/resp"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

type HandlerDeps struct {
	Serv service.LedgerService
}

type Handler struct {
	serv service.LedgerService
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{serv: deps.Serv}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		resp.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	wallet, err := h.serv.Wallet(r.Context(), participantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp.WriteJSONResponse(w, r, http.StatusOK, converter.ToWalletResponse(wallet))
}

func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		resp.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	report, err := h.serv.LedgerReport(r.Context(), participantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp.WriteJSONResponse(w, r, http.StatusOK, converter.ToLedgerResponse(report))
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, model.ErrWalletNotFound) {
		resp.WriteError(w, r, http.StatusNotFound, model.ErrorKind(err))
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Msg("wallet request failed")
	resp.WriteError(w, r, http.StatusInternalServerError, "Internal")
}
