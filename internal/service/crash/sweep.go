package crash

import (
	"context"
	"crash_backend/internal/observability/metrics"

	"github.com/rs/zerolog/log"
)

const pressureRatio = 0.9

// Sweep Выгружает участников без обращений дольше IdleTimeout
// и предупреждает о приближении к мягкому лимиту
func (s *serv) Sweep() {
	before := s.registry.count()
	residents := s.registry.evictIdle()
	metrics.RecordResidents(residents)

	if evicted := before - residents; evicted > 0 {
		log.Info().Int("evicted", evicted).Int("residents", residents).Msg("idle participants evicted")
	}

	ceiling := s.cfg.SoftCeiling()
	if ceiling > 0 && float64(residents) >= float64(ceiling)*pressureRatio {
		log.Warn().
			Int("residents", residents).
			Int("soft_ceiling", ceiling).
			Msg("resident rounds approaching soft ceiling")
	}
}

// Shutdown Останавливает всех участников как при отключении и дожидается фоновых записей
func (s *serv) Shutdown(ctx context.Context) {
	s.registry.clear()
	metrics.RecordResidents(0)

	done := make(chan struct{})
	go func() {
		s.pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("game engine stopped")
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("game engine stopped before background writes finished")
	}
}
