package crash

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/observability/metrics"

	"github.com/shopspring/decimal"
)

type placeResult struct {
	accepted *model.StakeAccepted
	err      error
}

// PlaceStake Ставка в текущий раунд. Раунд в памяти получает ставку только после коммита
func (s *serv) PlaceStake(ctx context.Context, participantID int64, amount decimal.Decimal, kind model.StakeKind, protected bool) (*model.StakeAccepted, error) {
	p := s.registry.lookup(participantID)
	if p == nil {
		return nil, model.ErrNoActiveRound
	}

	reply := make(chan placeResult, 1)
	err := p.do(ctx, func() {
		accepted, err := p.placeStake(ctx, amount, kind, protected)
		reply <- placeResult{accepted: accepted, err: err}
	})
	if err != nil {
		return nil, err
	}

	res := <-reply
	if res.err != nil {
		metrics.IncRejected("place_stake", model.ErrorKind(res.err))
		return nil, res.err
	}
	metrics.IncStakePlaced(string(kind))
	return res.accepted, nil
}

func (p *player) placeStake(ctx context.Context, amount decimal.Decimal, kind model.StakeKind, protected bool) (*model.StakeAccepted, error) {
	r := p.round
	if r == nil {
		return nil, model.ErrNoActiveRound
	}
	if r.Status != model.RoundPreparing {
		return nil, model.ErrWrongPhase
	}
	if r.Stake != nil {
		return nil, model.ErrDuplicateStake
	}

	// Выигрыш прошлого раунда должен попасть в кошелёк до нового списания
	if err := p.waitPending(ctx); err != nil {
		return nil, err
	}

	stake, wallet, err := p.s.ledger.PlaceStake(ctx, model.StakeRequest{
		ParticipantID: p.id,
		RoundID:       r.ID,
		CrashPoint:    r.CrashPoint,
		RoundStarted:  r.StartedAt,
		Amount:        amount,
		Kind:          kind,
		Protected:     protected,
	})
	if err != nil {
		return nil, err
	}

	r.Stake = stake
	p.publish(model.Event{Type: model.EventWalletUpdated, RoundID: r.ID, Wallet: wallet})

	return &model.StakeAccepted{
		StakeID: stake.ID,
		Amount:  stake.Amount,
		Wallet:  wallet,
	}, nil
}
