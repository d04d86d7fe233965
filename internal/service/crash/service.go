package crash

import (
	"crash_backend/internal/config"
	"crash_backend/internal/repository"
	"crash_backend/internal/service"
	"crash_backend/internal/worker"
	"time"
)

type serv struct {
	cfg       config.RoundConfig
	ledger    service.LedgerService
	roundRepo repository.RoundRepository
	notifier  service.Notifier
	pool      *worker.Pool
	registry  *registry

	random     func() float64
	crashPoint func(hasOpenStake bool, r float64) float64
	now        func() time.Time
}

// NewGameService Движок краш-раундов. Каждый участник обслуживается своей горутиной
func NewGameService(
	cfg config.RoundConfig,
	ledger service.LedgerService,
	roundRepo repository.RoundRepository,
	notifier service.Notifier,
	pool *worker.Pool,
) service.GameService {
	s := &serv{
		cfg:        cfg,
		ledger:     ledger,
		roundRepo:  roundRepo,
		notifier:   notifier,
		pool:       pool,
		random:     secureFloat64,
		crashPoint: CrashPoint,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.registry = newRegistry(cfg.IdleTimeout())
	return s
}

func (s *serv) Residents() int {
	return s.registry.count()
}
