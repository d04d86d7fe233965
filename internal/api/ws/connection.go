package ws

import (
	dto "crash_backend/internal/api/dto/crash"
	"crash_backend/internal/converter"
	"crash_backend/internal/model"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// connection Соединение участника. Все записи в сокет идут через writePump,
// Publish можно вызывать из любой горутины
type connection struct {
	ws            *websocket.Conn
	participantID int64
	log           zerolog.Logger

	out       chan []byte
	quit      chan struct{}
	closeOnce sync.Once
}

func newConnection(ws *websocket.Conn, participantID int64, logger zerolog.Logger) *connection {
	return &connection{
		ws:            ws,
		participantID: participantID,
		log:           logger,
		out:           make(chan []byte, sendBuffer),
		quit:          make(chan struct{}),
	}
}

func (c *connection) Publish(e model.Event) {
	c.write(converter.ToEventMessage(e))
}

func (c *connection) write(msg dto.OutMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Str("event", msg.Event).Msg("failed to marshal message")
		return
	}

	select {
	case <-c.quit:
		return
	default:
	}

	select {
	case c.out <- data:
	case <-c.quit:
	default:
		// Медленный клиент не должен тормозить раунд
		c.log.Warn().Str("event", msg.Event).Msg("send buffer full, dropping message")
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("failed to write message")
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.quit:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
}
