package ws

import (
	"bytes"
	"context"
	dto "crash_backend/internal/api/dto/crash"
	"crash_backend/internal/converter"
	"crash_backend/internal/middleware"
	"crash_backend/internal/model"
	"crash_backend/internal/service"
	"crash_backend/pkg/req"
	"crash_backend/pkg/resp"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	eventJoin       = "join"
	eventPlaceStake = "place_stake"
	eventCashOut    = "cash_out"
)

type HandlerDeps struct {
	Serv service.GameService
}

type Handler struct {
	serv     service.GameService
	upgrader websocket.Upgrader
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		serv: deps.Serv,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin ограничивает CORS на уровне роутера, токен проверен до апгрейда
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve Websocket участника: join, place_stake, cash_out
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		resp.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newConnection(ws, participantID, *log.Ctx(ctx))
	go c.writePump()

	defer func() {
		h.serv.Leave(participantID, c)
		c.close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("connection closed unexpectedly")
			}
			return
		}

		var msg dto.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.write(converter.ToBadRequest(converter.EventError))
			continue
		}

		h.dispatch(ctx, c, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *connection, msg dto.Message) {
	switch msg.Event {
	case eventJoin:
		if err := h.serv.Join(ctx, c.participantID, c); err != nil {
			c.log.Error().Err(err).Msg("join failed")
			c.write(converter.ToRejected(converter.EventError, err))
		}

	case eventPlaceStake:
		payload, err := req.Decode[dto.PlaceStakeRequest](bytes.NewReader(msg.Data))
		if err != nil {
			c.write(converter.ToBadRequest(converter.EventStakeRejected))
			return
		}
		accepted, err := h.serv.PlaceStake(ctx, c.participantID, payload.Amount, model.StakeKind(payload.Kind), payload.Protected)
		if err != nil {
			if !model.IsValidation(err) {
				c.log.Error().Err(err).Msg("place stake failed")
			}
			c.write(converter.ToRejected(converter.EventStakeRejected, err))
			return
		}
		c.write(converter.ToStakeAccepted(accepted))

	case eventCashOut:
		res, err := h.serv.CashOut(ctx, c.participantID)
		if err != nil {
			c.write(converter.ToRejected(converter.EventCashOutRejected, err))
			return
		}
		c.write(converter.ToCashedOut(res))

	default:
		c.write(converter.ToBadRequest(converter.EventError))
	}
}
