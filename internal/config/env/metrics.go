package env

import (
	"crash_backend/internal/config"
	"fmt"
	"os"
	"strconv"
)

const (
	metricsPortEnvName = "METRICS_PORT"
	defaultMetricsPort = 2112
)

type metricsConfig struct {
	port int
}

// NewMetricsConfig Порт сервера метрик. Если переменная не задана - порт по умолчанию
func NewMetricsConfig() (config.MetricsConfig, error) {
	raw := os.Getenv(metricsPortEnvName)
	if len(raw) == 0 {
		return &metricsConfig{port: defaultMetricsPort}, nil
	}

	port, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid metrics port: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("metrics port out of range: %d", port)
	}

	return &metricsConfig{port: port}, nil
}

func (cfg *metricsConfig) Port() int {
	return cfg.port
}
