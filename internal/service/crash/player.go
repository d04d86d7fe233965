package crash

import (
	"context"
	"crash_backend/internal/model"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// player Горутина участника. Только она меняет раунд и таймеры,
// все команды извне приходят через cmds и выполняются по очереди
type player struct {
	id  int64
	s   *serv
	log zerolog.Logger

	cmds chan func()
	quit chan struct{}
	done chan struct{}

	stopOnce sync.Once

	round      *model.Round
	phaseTimer *time.Timer
	ticker     *time.Ticker

	sinkMtx sync.RWMutex
	sink    model.EventSink

	// Расчёты ставок этого участника, ещё не записанные в БД
	pending *inflight
}

func newPlayer(s *serv, participantID int64) *player {
	return &player{
		id:      participantID,
		s:       s,
		log:     log.With().Int64("participant_id", participantID).Logger(),
		cmds:    make(chan func()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		pending: newInflight(),
	}
}

func (p *player) start() {
	go p.run()
}

func (p *player) run() {
	defer close(p.done)

	p.startRound(false)

	for {
		var phaseC, tickC <-chan time.Time
		if p.phaseTimer != nil {
			phaseC = p.phaseTimer.C
		}
		if p.ticker != nil {
			tickC = p.ticker.C
		}

		select {
		case fn := <-p.cmds:
			fn()
		case <-phaseC:
			p.phaseTimer = nil
			p.onPhaseElapsed()
		case <-tickC:
			p.onTick()
		case <-p.quit:
			p.disconnect()
			return
		}
	}
}

// do Выполняет fn в горутине участника. fn гарантированно выполнится, если вернулся nil
func (p *player) do(ctx context.Context, fn func()) error {
	select {
	case p.cmds <- fn:
		return nil
	case <-p.done:
		return model.ErrNoActiveRound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop Останавливает горутину и ждёт её завершения
func (p *player) stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	<-p.done
}

func (p *player) alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *player) setSink(sink model.EventSink) {
	p.sinkMtx.Lock()
	defer p.sinkMtx.Unlock()
	p.sink = sink
}

func (p *player) attached() bool {
	p.sinkMtx.RLock()
	defer p.sinkMtx.RUnlock()
	return p.sink != nil
}

func (p *player) hasSink(sink model.EventSink) bool {
	p.sinkMtx.RLock()
	defer p.sinkMtx.RUnlock()
	return p.sink == sink
}

// publish Вызывается и из горутины участника, и из воркеров расчёта
func (p *player) publish(e model.Event) {
	p.sinkMtx.RLock()
	sink := p.sink
	p.sinkMtx.RUnlock()

	if sink != nil {
		sink.Publish(e)
	}
}

func (p *player) startRound(hadStake bool) {
	p.round = model.NewRound(p.id, p.s.nextCrashPoint(hadStake), p.s.now())
	p.phaseTimer = time.NewTimer(p.s.cfg.PreparingDuration())

	p.log.Debug().
		Str("round_id", p.round.ID.String()).
		Float64("crash_point", p.round.CrashPoint).
		Msg("round started")

	p.publish(model.Event{Type: model.EventRoundStarted, RoundID: p.round.ID})

	// Подключённый участник не простаивает, даже если только смотрит раунды
	if p.attached() {
		p.s.registry.touch(p)
	}
}

func (p *player) onPhaseElapsed() {
	switch p.round.Status {
	case model.RoundPreparing:
		p.fly()
	case model.RoundCrashed:
		prev := p.round
		p.s.snapshot(prev)
		p.startRound(prev.Stake != nil)
	}
}

func (p *player) fly() {
	p.round.Fly(p.s.now())
	p.ticker = time.NewTicker(p.s.cfg.TickInterval())

	p.publish(model.Event{Type: model.EventRoundFlying, RoundID: p.round.ID, Multiplier: 1.0})

	// Защищённая ставка закрывается в момент взлёта, дальше тикер только для отображения
	if st := p.round.Stake; st != nil && st.Protected {
		if st.Close(model.OutcomeWon, 1.0) {
			p.s.dispatchSettlement(p, st)
		}
	}
}

func (p *player) onTick() {
	if p.round.Status != model.RoundFlying {
		return
	}

	now := p.s.now()
	m := p.round.MultiplierAt(now, p.s.cfg.GrowthPerSecond())
	// Проверка краша до публикации множителя
	if p.round.ReachedCrash(m) {
		p.crash(now)
		return
	}

	cur := p.round.Advance(m)
	p.publish(model.Event{Type: model.EventMultiplierTick, RoundID: p.round.ID, Multiplier: cur})
}

func (p *player) crash(now time.Time) {
	p.stopTicker()
	p.round.Crash(now)
	p.resolveOpenStake()

	p.log.Debug().
		Str("round_id", p.round.ID.String()).
		Float64("crash_point", p.round.CrashPoint).
		Msg("round crashed")

	p.publish(model.Event{Type: model.EventRoundCrashed, RoundID: p.round.ID, CrashPoint: p.round.CrashPoint})
	p.phaseTimer = time.NewTimer(p.s.cfg.CooldownDuration())
}

// resolveOpenStake Открытая ставка при краше: защищённая выплачивается по 1.0, иначе проигрыш
func (p *player) resolveOpenStake() {
	st := p.round.Stake
	if st == nil {
		return
	}

	outcome, m := model.OutcomeLost, p.round.Multiplier
	if st.Protected {
		outcome, m = model.OutcomeWon, 1.0
	}
	if st.Close(outcome, m) {
		p.s.dispatchSettlement(p, st)
	}
}

// returnUnflownStake Ставка раунда, который не взлетел. Прямая и защищённая
// закрываются кэшаутом по 1.0 (деньги возвращаются), незащищённая restricted
// проигрывается: баланс она не списывала, сгорает только право на ставку
func (p *player) returnUnflownStake() {
	st := p.round.Stake
	outcome := model.OutcomeWon
	if st.Kind == model.StakeRestricted && !st.Protected {
		outcome = model.OutcomeLost
	}
	if st.Close(outcome, 1.0) {
		p.s.dispatchSettlement(p, st)
	}
}

// disconnect Остановка участника в любой фазе: таймеры, ставка, слепок
func (p *player) disconnect() {
	p.stopTicker()
	p.stopPhaseTimer()

	if p.round != nil {
		if p.round.HasOpenStake() {
			switch p.round.Status {
			case model.RoundPreparing:
				p.round.Abort(p.s.now())
				p.returnUnflownStake()
			case model.RoundFlying:
				p.round.Abort(p.s.now())
				p.resolveOpenStake()
			default:
				p.resolveOpenStake()
			}
		}
		p.s.snapshot(p.round)
	}

	p.log.Debug().Msg("participant evicted")
}

func (p *player) stopTicker() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
}

func (p *player) stopPhaseTimer() {
	if p.phaseTimer != nil {
		p.phaseTimer.Stop()
		p.phaseTimer = nil
	}
}

// inflight Счётчик фоновых задач, которого можно ждать с отменой по контексту
type inflight struct {
	mtx  sync.Mutex
	n    int
	idle chan struct{}
}

func newInflight() *inflight {
	idle := make(chan struct{})
	close(idle)
	return &inflight{idle: idle}
}

func (f *inflight) add() {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
}

func (f *inflight) done() {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
}

// wait Канал закрывается, когда задач не останется
func (f *inflight) wait() <-chan struct{} {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.idle
}
