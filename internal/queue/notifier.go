package queue

import (
	"context"
	"crash_backend/internal/config"
	"crash_backend/internal/model"
	"crash_backend/internal/observability/metrics"
	"crash_backend/internal/service"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	publishAttempts = 3
	publishDelay    = 100 * time.Millisecond
)

// amqpNotifier Публикует расчёты ставок в topic exchange.
// Ключ маршрутизации - итог ставки (won / lost)
type amqpNotifier struct {
	url      string
	exchange string

	mtx  sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewNotifier Без AMQP_URL уведомления отключены
func NewNotifier(cfg config.QueueConfig) (service.Notifier, error) {
	if !cfg.Enabled() {
		return noopNotifier{}, nil
	}

	n := &amqpNotifier{url: cfg.URL(), exchange: cfg.Exchange()}
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *amqpNotifier) connect() error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(n.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp exchange declare: %w", err)
	}

	n.conn = conn
	n.ch = ch
	return nil
}

func (n *amqpNotifier) Notify(ctx context.Context, e model.SettlementEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			n.mtx.Lock()
			defer n.mtx.Unlock()

			if n.conn == nil || n.conn.IsClosed() {
				if err := n.connect(); err != nil {
					return err
				}
			}
			return n.ch.PublishWithContext(ctx, n.exchange, string(e.Outcome), false, false, amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    e.SettledAt,
				Body:         body,
			})
		},
		retry.Context(ctx),
		retry.Attempts(publishAttempts),
		retry.Delay(publishDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			log.Ctx(ctx).Debug().Err(err).Uint("attempt", attempt+1).Msg("retrying settlement notification")
		}),
	)
	if err != nil {
		metrics.RecordQueueSendError()
		return err
	}
	return nil
}

func (n *amqpNotifier) Close() error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, model.SettlementEvent) error { return nil }
