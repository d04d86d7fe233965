package env

import (
	"crash_backend/internal/config"
	"os"
)

const (
	amqpURLEnvName      = "AMQP_URL"
	amqpExchangeEnvName = "AMQP_EXCHANGE"
	defaultExchange     = "crash.settlements"
)

type queueConfig struct {
	url      string
	exchange string
}

// NewQueueConfig Очередь уведомлений опциональна: без AMQP_URL уведомления не отправляются
func NewQueueConfig() config.QueueConfig {
	exchange := os.Getenv(amqpExchangeEnvName)
	if len(exchange) == 0 {
		exchange = defaultExchange
	}

	return &queueConfig{
		url:      os.Getenv(amqpURLEnvName),
		exchange: exchange,
	}
}

func (cfg *queueConfig) URL() string {
	return cfg.url
}

func (cfg *queueConfig) Exchange() string {
	return cfg.exchange
}

func (cfg *queueConfig) Enabled() bool {
	return len(cfg.url) > 0
}
