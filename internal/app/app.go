package app

import (
	"context"
	"crash_backend/internal/config"
	"crash_backend/internal/observability/metrics"
	"crash_backend/internal/utils/poller"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	logLevelEnv       = "LOG_LEVEL"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
	statsInterval     = 15 * time.Second
)

type App struct {
	ServiceProvider *ServiceProvider
	pollers         []*poller.Poller
}

func NewApp() *App {
	return &App{}
}

func (s *App) initServiceProvider() {
	s.ServiceProvider = newServiceProvider()
}

func (s *App) initLogger() {
	level, err := zerolog.ParseLevel(os.Getenv(logLevelEnv))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	// log.Ctx без логгера в контексте (фоновые задачи) пишет в глобальный
	zerolog.DefaultContextLogger = &log.Logger
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Run Поднимает сервер и работает до отмены ctx
func (s *App) Run(ctx context.Context) error {
	err := config.Load(".env")
	if err != nil {
		log.Warn().Err(err).Msg("error loading .env file")
	}
	s.initLogger()
	s.initServiceProvider()

	sp := s.ServiceProvider
	metrics.Init(sp.MetricsCfg().Port())

	r := sp.Router(ctx)
	s.startPollers(ctx)

	srv := &http.Server{
		Addr:              sp.HTTPCfg().Address(),
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", srv.Addr).Msg("starting server")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	}

	s.shutdown(srv)
	return err
}

func (s *App) startPollers(ctx context.Context) {
	sp := s.ServiceProvider
	roundCfg := sp.RoundCfg()
	game := sp.GameService(ctx)
	ledger := sp.LedgerService(ctx)
	stats := sp.StatsRepo()

	s.pollers = []*poller.Poller{
		poller.NewPoller("sweep", roundCfg.SweepInterval(),
			metrics.RecordPollerDuration("sweep", func(context.Context) error {
				game.Sweep()
				return nil
			})),
		poller.NewPoller("reconcile", roundCfg.ReconcileInterval(),
			metrics.RecordPollerDuration("reconcile", func(ctx context.Context) error {
				n, err := ledger.Reconcile(ctx)
				if n > 0 {
					log.Warn().Int("stakes", n).Msg("reconciled unsettled stakes")
				}
				return err
			})),
		poller.NewPoller("house_stats", statsInterval,
			metrics.RecordPollerDuration("house_stats", func(context.Context) error {
				st := stats.HouseState()
				metrics.RecordHouseRTP(st.CurrentRTP, st.WindowRTP)
				return nil
			})),
	}

	for _, p := range s.pollers {
		go p.Start(ctx)
	}
}

func (s *App) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, p := range s.pollers {
		p.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}

	sp := s.ServiceProvider
	sp.GameService(ctx).Shutdown(ctx)

	if c, ok := sp.Notifier().(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close notifier")
		}
	}
	if sp.dbClient != nil {
		sp.dbClient.Close()
	}
	log.Info().Msg("server stopped")
}
