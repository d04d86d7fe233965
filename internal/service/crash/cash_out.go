package crash

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/observability/metrics"
)

type cashOutResult struct {
	result *model.CashOutResult
	err    error
}

// CashOut Закрывает ставку по текущему множителю. Ответ отдаётся сразу после CAS,
// запись выплаты в БД идёт в фоне
func (s *serv) CashOut(ctx context.Context, participantID int64) (*model.CashOutResult, error) {
	p := s.registry.lookup(participantID)
	if p == nil {
		return nil, model.ErrNoActiveRound
	}

	reply := make(chan cashOutResult, 1)
	err := p.do(ctx, func() {
		res, err := p.cashOut()
		reply <- cashOutResult{result: res, err: err}
	})
	if err != nil {
		return nil, err
	}

	res := <-reply
	if res.err != nil {
		metrics.IncRejected("cash_out", model.ErrorKind(res.err))
	}
	return res.result, res.err
}

func (p *player) cashOut() (*model.CashOutResult, error) {
	r := p.round
	if r == nil {
		return nil, model.ErrNoActiveRound
	}
	if r.Status != model.RoundFlying {
		return nil, model.ErrWrongPhase
	}
	st := r.Stake
	if st == nil {
		return nil, model.ErrNoOpenStake
	}
	if st.Outcome() != model.OutcomeOpen {
		return nil, model.ErrAlreadySettled
	}

	now := p.s.now()
	m := r.MultiplierAt(now, p.s.cfg.GrowthPerSecond())
	// Тик краша ещё не пришёл, но время уже вышло: сначала краш
	if r.ReachedCrash(m) {
		p.crash(now)
		return nil, model.ErrWrongPhase
	}

	cur := r.Advance(m)
	if !st.Close(model.OutcomeWon, cur) {
		return nil, model.ErrAlreadySettled
	}
	p.s.dispatchSettlement(p, st)

	p.log.Debug().
		Str("round_id", r.ID.String()).
		Str("stake_id", st.ID.String()).
		Float64("multiplier", cur).
		Msg("stake cashed out")

	return &model.CashOutResult{
		StakeID:    st.ID,
		Payout:     st.Payout(cur),
		Multiplier: cur,
	}, nil
}
