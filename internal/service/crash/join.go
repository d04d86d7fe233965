package crash

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/observability/metrics"
)

// Join Подключает соединение к раунду участника. Если участника нет в памяти,
// создаётся его горутина и первый раунд. Новое соединение заменяет прежнее
func (s *serv) Join(ctx context.Context, participantID int64, sink model.EventSink) error {
	if err := s.ledger.EnsureWallet(ctx, participantID); err != nil {
		return err
	}

	p, created := s.registry.acquire(participantID, func() *player {
		p := newPlayer(s, participantID)
		p.setSink(sink)
		p.start()
		return p
	})
	if created {
		metrics.RecordResidents(s.registry.count())
		return nil
	}

	reply := make(chan struct{}, 1)
	err := p.do(ctx, func() {
		p.setSink(sink)
		p.publishState()
		reply <- struct{}{}
	})
	if err != nil {
		return err
	}
	<-reply
	return nil
}

// publishState Текущая фаза раунда для только что подключённого соединения
func (p *player) publishState() {
	r := p.round
	if r == nil {
		return
	}

	switch r.Status {
	case model.RoundPreparing:
		p.publish(model.Event{Type: model.EventRoundStarted, RoundID: r.ID})
	case model.RoundFlying:
		p.publish(model.Event{Type: model.EventRoundFlying, RoundID: r.ID, Multiplier: r.Multiplier})
	case model.RoundCrashed:
		p.publish(model.Event{Type: model.EventRoundCrashed, RoundID: r.ID, CrashPoint: r.CrashPoint})
	}
}
