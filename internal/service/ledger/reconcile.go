package ledger

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Reconcile Досчитывает ставки, итог которых известен из слепка раунда,
// но запись в БД не прошла (повторы исчерпаны или процесс упал)
func (s *serv) Reconcile(ctx context.Context) (int, error) {
	stakes, err := s.stakeRepo.ListUnsettled(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, u := range stakes {
		logger := log.Ctx(ctx).With().
			Int64("participant_id", u.ParticipantID).
			Str("round_id", u.RoundID.String()).
			Str("stake_id", u.StakeID.String()).
			Logger()

		res, err := s.Settle(logger.WithContext(ctx), u.Restore())
		if err != nil {
			logger.Error().Err(err).Msg("reconcile: failed to settle stake")
			continue
		}
		if res.Applied {
			settled++
		}
	}

	if settled > 0 {
		log.Ctx(ctx).Warn().Int("settled", settled).Msg("reconcile: settled stakes left open in storage")
	}

	return settled, nil
}
