package config

import (
	"time"

	"github.com/joho/godotenv"
)

func Load(path string) error {
	err := godotenv.Load(path)
	if err != nil {
		return err
	}
	return nil
}

// RoundConfig параметры игрового раунда и жизненного цикла участников
type RoundConfig interface {
	PreparingDuration() time.Duration
	CooldownDuration() time.Duration
	TickInterval() time.Duration
	GrowthPerSecond() float64
	RestrictedStakeRate() float64
	DailyEntitlements() int

	IdleTimeout() time.Duration
	SweepInterval() time.Duration
	SoftCeiling() int

	SettleAttempts() uint
	SettleRetryDelay() time.Duration
	Workers() int
	ReconcileInterval() time.Duration
}

type HTTPConfig interface {
	Address() string
}

type PGConfig interface {
	DSN() string
}

type JWTConfig interface {
	AccessTokenSecretKey() []byte
}

type MetricsConfig interface {
	Port() int
}

type QueueConfig interface {
	URL() string
	Exchange() string
	Enabled() bool
}
