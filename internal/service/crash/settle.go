package crash

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/observability/metrics"
	"crash_backend/internal/worker"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
)

// dispatchSettlement Запись итога ставки после CAS. Выполняется в пуле,
// ответ участнику к этому моменту уже отправлен
func (s *serv) dispatchSettlement(p *player, st *model.Stake) {
	metrics.IncSettlement(string(st.Outcome()))

	p.pending.add()
	s.pool.Dispatch(worker.JobFunc(func() {
		defer p.pending.done()
		s.settle(p, st)
	}))
}

func (s *serv) settle(p *player, st *model.Stake) {
	logger := p.log.With().
		Str("round_id", st.RoundID.String()).
		Str("stake_id", st.ID.String()).
		Logger()
	ctx := logger.WithContext(context.Background())

	start := time.Now()
	res, err := retry.DoWithData(
		func() (*model.SettleResult, error) {
			return s.ledger.Settle(ctx, st)
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.SettleAttempts()),
		retry.Delay(s.cfg.SettleRetryDelay()),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !model.IsValidation(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().Err(err).Uint("attempt", n+1).Msg("retrying stake settlement")
		}),
	)
	metrics.RecordSettleDuration(time.Since(start), err != nil)
	if err != nil {
		// Итог уже сообщён участнику, деньги досчитает сверка по слепку раунда
		logger.WithLevel(zerolog.FatalLevel).Err(err).
			Str("outcome", string(st.Outcome())).
			Msg("stake settlement retries exhausted")
		return
	}
	if !res.Applied {
		return
	}

	if res.Wallet != nil {
		p.publish(model.Event{Type: model.EventWalletUpdated, Wallet: res.Wallet})
	}

	settlement := st.Settlement()
	evt := model.SettlementEvent{
		ParticipantID: st.ParticipantID,
		StakeID:       st.ID,
		RoundID:       st.RoundID,
		Kind:          st.Kind,
		Outcome:       settlement.Outcome,
		Amount:        st.Amount,
		Payout:        res.Payout,
		Multiplier:    settlement.Multiplier,
		SettledAt:     s.now(),
	}
	if err := s.notifier.Notify(ctx, evt); err != nil {
		logger.Warn().Err(err).Msg("failed to publish settlement notification")
	}
}

// waitPending Дожидается записи прошлых расчётов участника
func (p *player) waitPending(ctx context.Context) error {
	select {
	case <-p.pending.wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
