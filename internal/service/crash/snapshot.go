package crash

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/observability/metrics"
	"crash_backend/internal/worker"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

const (
	snapshotAttempts = 3
	snapshotDelay    = 100 * time.Millisecond
)

// snapshot Слепок уходящего раунда. Копия снимается сразу, запись идёт в фоне;
// ошибка записи не влияет на игру
func (s *serv) snapshot(round *model.Round) {
	snap := round.Snapshot(s.now())

	s.pool.Dispatch(worker.JobFunc(func() {
		ctx := context.Background()
		err := retry.Do(
			func() error {
				return s.roundRepo.SaveSnapshot(ctx, snap)
			},
			retry.Context(ctx),
			retry.Attempts(snapshotAttempts),
			retry.Delay(snapshotDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			metrics.IncSnapshotErrors()
			log.Error().Err(err).
				Int64("participant_id", snap.ParticipantID).
				Str("round_id", snap.RoundID.String()).
				Msg("failed to save round snapshot")
		}
	}))
}
