package app

import (
	statsAPI "crash_backend/internal/api/stats"
	walletAPI "crash_backend/internal/api/wallet"
	wsAPI "crash_backend/internal/api/ws"
	"crash_backend/internal/config"
	"crash_backend/internal/config/env"
	"crash_backend/internal/middleware"
	"crash_backend/internal/queue"
	"crash_backend/internal/repository"
	"crash_backend/internal/repository/ledger_repo"
	"crash_backend/internal/repository/memory_repo"
	"crash_backend/internal/repository/round_repo"
	"crash_backend/internal/repository/stake_repo"
	"crash_backend/internal/repository/stats_repo"
	"crash_backend/internal/repository/wallet_repo"
	"crash_backend/internal/service"
	"crash_backend/internal/service/crash"
	"crash_backend/internal/service/ledger"
	"crash_backend/internal/worker"
	"context"
	"os"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	gameConfigEnv     = "GAME_CONFIG"
	defaultGameConfig = "config.yaml"
	statsWindowSize   = 1000
	poolBuffer        = 1024
)

// Баланс нового кошелька при запуске без БД
var memoryStartingBalance = decimal.NewFromInt(1000)

type ServiceProvider struct {
	//TXManager
	txManager trm.Manager

	// Database. Без PG_DSN всё хранится в памяти процесса
	pgConfig    config.PGConfig
	pgResolved  bool
	dbClient    *pgxpool.Pool
	memoryStore *memory_repo.Store

	// Repositories
	walletRepo repository.WalletRepository
	stakeRepo  repository.StakeRepository
	ledgerRepo repository.LedgerRepository
	roundRepo  repository.RoundRepository
	statsRepo  *stats_repo.StatsRepo

	// Game bits
	roundCfg   config.RoundConfig
	pool       *worker.Pool
	notifier   service.Notifier
	ledgerServ service.LedgerService
	gameServ   service.GameService

	// Handlers
	wsHand     *wsAPI.Handler
	walletHand *walletAPI.Handler
	statsHand  *statsAPI.Handler

	// Router, HTTP, auth and metrics config
	jwtCfg     config.JWTConfig
	metricsCfg config.MetricsConfig
	queueCfg   config.QueueConfig
	httpCfg    config.HTTPConfig
	router     chi.Router
}

func newServiceProvider() *ServiceProvider {
	return &ServiceProvider{}
}

// PgConfig nil, если PG_DSN не задан
func (sp *ServiceProvider) PgConfig() config.PGConfig {
	if !sp.pgResolved {
		cfg, err := env.NewPGConfig()
		if err != nil {
			log.Warn().Err(err).Msg("postgres is not configured, using in-memory storage")
		}
		sp.pgConfig = cfg
		sp.pgResolved = true
	}
	return sp.pgConfig
}

func (sp *ServiceProvider) usePostgres() bool {
	return sp.PgConfig() != nil
}

func (sp *ServiceProvider) DBClient(ctx context.Context) *pgxpool.Pool {
	if sp.dbClient == nil {
		dbc, err := pgxpool.New(ctx, sp.PgConfig().DSN())
		if err != nil {
			panic("failed to create db pool: " + err.Error())
		}
		err = dbc.Ping(ctx)
		if err != nil {
			panic("failed to ping db: " + err.Error())
		}
		sp.dbClient = dbc
	}
	return sp.dbClient
}

func (sp *ServiceProvider) MemoryStore() *memory_repo.Store {
	if sp.memoryStore == nil {
		sp.memoryStore = memory_repo.NewStore(
			memory_repo.WithStartingBalance(memoryStartingBalance, memoryStartingBalance),
		)
	}
	return sp.memoryStore
}

func (sp *ServiceProvider) TXManager(ctx context.Context) trm.Manager {
	if sp.txManager == nil {
		if !sp.usePostgres() {
			sp.txManager = sp.MemoryStore().TxManager()
			return sp.txManager
		}

		m, err := manager.New(trmpgx.NewDefaultFactory(sp.DBClient(ctx)))
		if err != nil {
			panic("failed to create tx manager: " + err.Error())
		}
		sp.txManager = m
	}

	return sp.txManager
}

func (sp *ServiceProvider) WalletRepo(ctx context.Context) repository.WalletRepository {
	if sp.walletRepo == nil {
		if sp.usePostgres() {
			sp.walletRepo = wallet_repo.NewWalletRepository(sp.DBClient(ctx))
		} else {
			sp.walletRepo = sp.MemoryStore()
		}
	}
	return sp.walletRepo
}

func (sp *ServiceProvider) StakeRepo(ctx context.Context) repository.StakeRepository {
	if sp.stakeRepo == nil {
		if sp.usePostgres() {
			sp.stakeRepo = stake_repo.NewStakeRepository(sp.DBClient(ctx))
		} else {
			sp.stakeRepo = sp.MemoryStore()
		}
	}
	return sp.stakeRepo
}

func (sp *ServiceProvider) LedgerRepo(ctx context.Context) repository.LedgerRepository {
	if sp.ledgerRepo == nil {
		if sp.usePostgres() {
			sp.ledgerRepo = ledger_repo.NewLedgerRepository(sp.DBClient(ctx))
		} else {
			sp.ledgerRepo = sp.MemoryStore()
		}
	}
	return sp.ledgerRepo
}

func (sp *ServiceProvider) RoundRepo(ctx context.Context) repository.RoundRepository {
	if sp.roundRepo == nil {
		if sp.usePostgres() {
			sp.roundRepo = round_repo.NewRoundRepository(sp.DBClient(ctx))
		} else {
			sp.roundRepo = sp.MemoryStore()
		}
	}
	return sp.roundRepo
}

func (sp *ServiceProvider) StatsRepo() *stats_repo.StatsRepo {
	if sp.statsRepo == nil {
		sp.statsRepo = stats_repo.NewStatsRepository(statsWindowSize)
	}
	return sp.statsRepo
}

func (sp *ServiceProvider) RoundCfg() config.RoundConfig {
	if sp.roundCfg == nil {
		path := os.Getenv(gameConfigEnv)
		if path == "" {
			path = defaultGameConfig
		}
		cfg, err := env.NewRoundConfigFromYAML(path)
		if err != nil {
			panic("failed to get round config: " + err.Error())
		}
		sp.roundCfg = cfg
	}
	return sp.roundCfg
}

// WorkerPool Пул для фоновых записей расчётов и снимков. Запускается при первом обращении
func (sp *ServiceProvider) WorkerPool() *worker.Pool {
	if sp.pool == nil {
		sp.pool = worker.NewPool(sp.RoundCfg().Workers(), poolBuffer)
		sp.pool.Start()
	}
	return sp.pool
}

func (sp *ServiceProvider) QueueCfg() config.QueueConfig {
	if sp.queueCfg == nil {
		sp.queueCfg = env.NewQueueConfig()
	}
	return sp.queueCfg
}

func (sp *ServiceProvider) Notifier() service.Notifier {
	if sp.notifier == nil {
		n, err := queue.NewNotifier(sp.QueueCfg())
		if err != nil {
			panic("failed to create notifier: " + err.Error())
		}
		sp.notifier = n
	}
	return sp.notifier
}

func (sp *ServiceProvider) LedgerService(ctx context.Context) service.LedgerService {
	if sp.ledgerServ == nil {
		sp.ledgerServ = ledger.NewLedgerService(
			sp.RoundCfg(),
			sp.WalletRepo(ctx),
			sp.StakeRepo(ctx),
			sp.LedgerRepo(ctx),
			sp.RoundRepo(ctx),
			sp.StatsRepo(),
			sp.TXManager(ctx),
		)
	}
	return sp.ledgerServ
}

func (sp *ServiceProvider) GameService(ctx context.Context) service.GameService {
	if sp.gameServ == nil {
		sp.gameServ = crash.NewGameService(
			sp.RoundCfg(),
			sp.LedgerService(ctx),
			sp.RoundRepo(ctx),
			sp.Notifier(),
			sp.WorkerPool(),
		)
	}
	return sp.gameServ
}

func (sp *ServiceProvider) WSHandler(ctx context.Context) *wsAPI.Handler {
	if sp.wsHand == nil {
		sp.wsHand = wsAPI.NewHandler(wsAPI.HandlerDeps{Serv: sp.GameService(ctx)})
	}
	return sp.wsHand
}

func (sp *ServiceProvider) WalletHandler(ctx context.Context) *walletAPI.Handler {
	if sp.walletHand == nil {
		sp.walletHand = walletAPI.NewHandler(walletAPI.HandlerDeps{Serv: sp.LedgerService(ctx)})
	}
	return sp.walletHand
}

func (sp *ServiceProvider) StatsHandler(ctx context.Context) *statsAPI.Handler {
	if sp.statsHand == nil {
		sp.statsHand = statsAPI.NewHandler(statsAPI.HandlerDeps{
			Stats: sp.StatsRepo(),
			Game:  sp.GameService(ctx),
		})
	}
	return sp.statsHand
}

func (sp *ServiceProvider) JWTCfg() config.JWTConfig {
	if sp.jwtCfg == nil {
		cfg, err := env.NewJWTConfig()
		if err != nil {
			panic("failed to get jwt config: " + err.Error())
		}
		sp.jwtCfg = cfg
	}
	return sp.jwtCfg
}

func (sp *ServiceProvider) MetricsCfg() config.MetricsConfig {
	if sp.metricsCfg == nil {
		cfg, err := env.NewMetricsConfig()
		if err != nil {
			panic("failed to get metrics config: " + err.Error())
		}
		sp.metricsCfg = cfg
	}
	return sp.metricsCfg
}

func (sp *ServiceProvider) HTTPCfg() config.HTTPConfig {
	if sp.httpCfg == nil {
		cfg, err := env.NewHTTPConfig()
		if err != nil {
			panic("failed to get http config: " + err.Error())
		}
		sp.httpCfg = cfg
	}

	return sp.httpCfg
}

func (sp *ServiceProvider) Router(ctx context.Context) chi.Router {
	if sp.router == nil {
		r := chi.NewRouter()

		// CORS middleware
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           60 * 15,
		}))

		r.Get("/stats", sp.StatsHandler(ctx).Get)

		// Всё остальное только с токеном участника
		r.Group(func(rr chi.Router) {
			rr.Use(middleware.Auth(sp.JWTCfg()))

			rr.Get("/ws", sp.WSHandler(ctx).Serve)

			walletHandler := sp.WalletHandler(ctx)
			rr.Route("/wallet", func(wr chi.Router) {
				wr.Get("/", walletHandler.Get)
				wr.Get("/ledger", walletHandler.Ledger)
			})
		})

		sp.router = r
	}

	return sp.router
}
