package env

import (
	"crash_backend/internal/config"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPreparing       = 8 * time.Second
	defaultCooldown        = 3 * time.Second
	defaultTick            = 50 * time.Millisecond
	defaultGrowth          = 0.05
	defaultRestrictedRate  = 0.01
	defaultEntitlements    = 1
	defaultIdleTimeout     = 10 * time.Minute
	defaultSweepInterval   = 5 * time.Minute
	defaultSoftCeiling     = 10000
	defaultSettleAttempts  = 5
	defaultSettleDelay     = 200 * time.Millisecond
	defaultWorkers         = 8
	defaultReconcilePeriod = time.Minute
)

// roundYAML Структура секции round в config.yaml
type roundYAML struct {
	Round struct {
		Preparing           time.Duration `yaml:"preparing"`
		Cooldown            time.Duration `yaml:"cooldown"`
		Tick                time.Duration `yaml:"tick"`
		GrowthPerSecond     float64       `yaml:"growth_per_second"`
		RestrictedStakeRate float64       `yaml:"restricted_stake_rate"`
		DailyEntitlements   int           `yaml:"daily_entitlements"`
	} `yaml:"round"`
	Registry struct {
		IdleTimeout   time.Duration `yaml:"idle_timeout"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
		SoftCeiling   int           `yaml:"soft_ceiling"`
	} `yaml:"registry"`
	Settlement struct {
		Attempts          uint          `yaml:"attempts"`
		RetryDelay        time.Duration `yaml:"retry_delay"`
		Workers           int           `yaml:"workers"`
		ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	} `yaml:"settlement"`
}

type roundConfig struct {
	preparing         time.Duration
	cooldown          time.Duration
	tick              time.Duration
	growth            float64
	restrictedRate    float64
	entitlements      int
	idleTimeout       time.Duration
	sweepInterval     time.Duration
	softCeiling       int
	settleAttempts    uint
	settleDelay       time.Duration
	workers           int
	reconcileInterval time.Duration
}

// NewRoundConfigFromYAML Читает параметры раунда из yaml файла.
// Незаданные поля получают значения по умолчанию
func NewRoundConfigFromYAML(path string) (config.RoundConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRoundConfig(roundYAML{})
		}
		return nil, fmt.Errorf("read round config: %w", err)
	}

	var raw roundYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse round config: %w", err)
	}

	return NewRoundConfig(raw)
}

// NewRoundConfig Собирает конфиг, подставляя значения по умолчанию и проверяя ограничения
func NewRoundConfig(raw roundYAML) (config.RoundConfig, error) {
	cfg := &roundConfig{
		preparing:         orDuration(raw.Round.Preparing, defaultPreparing),
		cooldown:          orDuration(raw.Round.Cooldown, defaultCooldown),
		tick:              orDuration(raw.Round.Tick, defaultTick),
		growth:            orFloat(raw.Round.GrowthPerSecond, defaultGrowth),
		restrictedRate:    orFloat(raw.Round.RestrictedStakeRate, defaultRestrictedRate),
		entitlements:      orInt(raw.Round.DailyEntitlements, defaultEntitlements),
		idleTimeout:       orDuration(raw.Registry.IdleTimeout, defaultIdleTimeout),
		sweepInterval:     orDuration(raw.Registry.SweepInterval, defaultSweepInterval),
		softCeiling:       orInt(raw.Registry.SoftCeiling, defaultSoftCeiling),
		settleAttempts:    raw.Settlement.Attempts,
		settleDelay:       orDuration(raw.Settlement.RetryDelay, defaultSettleDelay),
		workers:           orInt(raw.Settlement.Workers, defaultWorkers),
		reconcileInterval: orDuration(raw.Settlement.ReconcileInterval, defaultReconcilePeriod),
	}
	if cfg.settleAttempts == 0 {
		cfg.settleAttempts = defaultSettleAttempts
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *roundConfig) Validate() error {
	if c.tick >= c.preparing {
		return errors.New("tick must be shorter than preparing window")
	}
	if c.restrictedRate >= 1 {
		return errors.New("restricted_stake_rate must be below 1")
	}
	if c.sweepInterval > c.idleTimeout {
		return errors.New("sweep_interval must not exceed idle_timeout")
	}
	return nil
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (c *roundConfig) PreparingDuration() time.Duration { return c.preparing }
func (c *roundConfig) CooldownDuration() time.Duration  { return c.cooldown }
func (c *roundConfig) TickInterval() time.Duration      { return c.tick }
func (c *roundConfig) GrowthPerSecond() float64         { return c.growth }
func (c *roundConfig) RestrictedStakeRate() float64     { return c.restrictedRate }
func (c *roundConfig) DailyEntitlements() int           { return c.entitlements }
func (c *roundConfig) IdleTimeout() time.Duration       { return c.idleTimeout }
func (c *roundConfig) SweepInterval() time.Duration     { return c.sweepInterval }
func (c *roundConfig) SoftCeiling() int                 { return c.softCeiling }
func (c *roundConfig) SettleAttempts() uint             { return c.settleAttempts }
func (c *roundConfig) SettleRetryDelay() time.Duration  { return c.settleDelay }
func (c *roundConfig) Workers() int                     { return c.workers }
func (c *roundConfig) ReconcileInterval() time.Duration { return c.reconcileInterval }
