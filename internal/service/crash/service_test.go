package crash

import (
	"bytes"
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/repository/memory_repo"
	"crash_backend/internal/repository/stats_repo"
	"crash_backend/internal/service"
	"crash_backend/internal/service/ledger"
	"crash_backend/internal/worker"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	participant int64 = 42
	waitFor           = 2 * time.Second
	pollEvery         = 2 * time.Millisecond
)

type testConfig struct {
	preparing time.Duration
	cooldown  time.Duration
	tick      time.Duration
	idle      time.Duration
	ceiling   int
}

func defaultTestConfig() testConfig {
	return testConfig{
		preparing: 150 * time.Millisecond,
		cooldown:  50 * time.Millisecond,
		tick:      5 * time.Millisecond,
		idle:      time.Minute,
		ceiling:   100,
	}
}

func (c testConfig) PreparingDuration() time.Duration { return c.preparing }
func (c testConfig) CooldownDuration() time.Duration  { return c.cooldown }
func (c testConfig) TickInterval() time.Duration      { return c.tick }
func (c testConfig) GrowthPerSecond() float64         { return 0.05 }
func (c testConfig) RestrictedStakeRate() float64     { return 0.01 }
func (c testConfig) DailyEntitlements() int           { return 1 }
func (c testConfig) IdleTimeout() time.Duration       { return c.idle }
func (c testConfig) SweepInterval() time.Duration     { return c.idle }
func (c testConfig) SoftCeiling() int                 { return c.ceiling }
func (c testConfig) SettleAttempts() uint             { return 3 }
func (c testConfig) SettleRetryDelay() time.Duration  { return time.Millisecond }
func (c testConfig) Workers() int                     { return 2 }
func (c testConfig) ReconcileInterval() time.Duration { return time.Minute }

// clock Время движка. Таймеры фаз настоящие, множитель считается от этого времени
type clock struct {
	mtx sync.Mutex
	t   time.Time
}

func (c *clock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mtx    sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(e model.Event) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []model.Event {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (r *recorder) last(typ model.EventType) (model.Event, bool) {
	events := r.all()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == typ {
			return events[i], true
		}
	}
	return model.Event{}, false
}

func (r *recorder) count(typ model.EventType) int {
	n := 0
	for _, e := range r.all() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) await(t *testing.T, typ model.EventType) model.Event {
	t.Helper()
	var found model.Event
	require.Eventually(t, func() bool {
		e, ok := r.last(typ)
		found = e
		return ok
	}, waitFor, pollEvery, "no %s event", typ)
	return found
}

type notifications struct {
	mtx    sync.Mutex
	events []model.SettlementEvent
}

func (n *notifications) Notify(_ context.Context, e model.SettlementEvent) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *notifications) all() []model.SettlementEvent {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return append([]model.SettlementEvent(nil), n.events...)
}

type engine struct {
	*serv
	store  *memory_repo.Store
	clock  *clock
	notify *notifications
}

func newEngine(t *testing.T, cfg testConfig, w model.Wallet, r float64) *engine {
	t.Helper()
	return newEngineWithLedger(t, cfg, w, r, nil)
}

// newEngineWithLedger Движок, у которого сервис кошелька обёрнут wrap
func newEngineWithLedger(t *testing.T, cfg testConfig, w model.Wallet, r float64, wrap func(service.LedgerService) service.LedgerService) *engine {
	t.Helper()

	store := memory_repo.NewStore()
	w.ParticipantID = participant
	store.PutWallet(w)

	stats := stats_repo.NewStatsRepository(10)
	ledgerSvc := ledger.NewLedgerService(cfg, store, store, store, store, stats, store.TxManager())
	if wrap != nil {
		ledgerSvc = wrap(ledgerSvc)
	}

	pool := worker.NewPool(2, 16)
	pool.Start()

	notify := &notifications{}
	g := NewGameService(cfg, ledgerSvc, store, notify, pool).(*serv)

	clk := &clock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	g.now = clk.Now
	g.random = func() float64 { return r }

	t.Cleanup(func() {
		g.Shutdown(context.Background())
	})

	return &engine{serv: g, store: store, clock: clk, notify: notify}
}

// round Копия текущего раунда участника, снятая в его горутине
func (e *engine) round(t *testing.T) model.Round {
	t.Helper()
	p := e.registry.lookup(participant)
	require.NotNil(t, p)

	reply := make(chan model.Round, 1)
	require.NoError(t, p.do(context.Background(), func() {
		reply <- *p.round
	}))
	return <-reply
}

func (e *engine) awaitCash(t *testing.T, want string) *model.Wallet {
	t.Helper()
	var w *model.Wallet
	require.Eventually(t, func() bool {
		var err error
		w, err = e.store.GetWallet(context.Background(), participant)
		return err == nil && w.CashBalance.Equal(decimal.RequireFromString(want))
	}, waitFor, pollEvery, "cash balance never reached %s", want)
	return w
}

func (e *engine) awaitOutcome(t *testing.T, stake *model.StakeAccepted, want model.Outcome) float64 {
	t.Helper()
	var settledAt *float64
	require.Eventually(t, func() bool {
		outcome, at, ok := e.store.StakeOutcome(stake.StakeID)
		settledAt = at
		return ok && outcome == want
	}, waitFor, pollEvery, "stake never became %s", want)
	require.NotNil(t, settledAt)
	return *settledAt
}

func cash(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// flakyLedger Расчёт ставки падает failures раз (-1 - всегда), остальное без изменений
type flakyLedger struct {
	service.LedgerService

	mtx      sync.Mutex
	failures int
	calls    int
}

func (f *flakyLedger) Settle(ctx context.Context, st *model.Stake) (*model.SettleResult, error) {
	f.mtx.Lock()
	f.calls++
	fail := f.failures != 0
	if f.failures > 0 {
		f.failures--
	}
	f.mtx.Unlock()

	if fail {
		return nil, errors.New("connection reset by peer")
	}
	return f.LedgerService.Settle(ctx, st)
}

func (f *flakyLedger) settleCalls() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.calls
}

// gatedLedger Размещение ставки участника participant ждёт release
type gatedLedger struct {
	service.LedgerService

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedLedger) PlaceStake(ctx context.Context, req model.StakeRequest) (*model.Stake, *model.Wallet, error) {
	if req.ParticipantID == participant {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.LedgerService.PlaceStake(ctx, req)
}

type logBuffer struct {
	mtx sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.buf.String()
}

// captureLog Подменяет глобальный логгер. Вызывать до Join: логгер участника берётся при создании
func captureLog(t *testing.T) *logBuffer {
	t.Helper()
	buf := &logBuffer{}
	prev := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = prev })
	return buf
}

// cashOutAt Ставка 10 из 100 и кэшаут на 2.5
func cashOutAt(t *testing.T, e *engine, sink *recorder) *model.StakeAccepted {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.Join(ctx, participant, sink))
	accepted, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
	require.NoError(t, err)
	sink.await(t, model.EventRoundFlying)

	e.clock.Advance(30 * time.Second)
	res, err := e.CashOut(ctx, participant)
	require.NoError(t, err)
	require.Equal(t, 2.5, res.Multiplier)
	return accepted
}

func TestScenarioDirectCashOut(t *testing.T) {
	ctx := context.Background()
	// Без ставки в прошлом раунде: r=0.999 даёт точку краша около 10.36
	e := newEngine(t, defaultTestConfig(), model.Wallet{CashBalance: cash("100")}, 0.999)
	sink := &recorder{}

	require.NoError(t, e.Join(ctx, participant, sink))
	started := sink.await(t, model.EventRoundStarted)

	accepted, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
	require.NoError(t, err)
	assert.True(t, cash("10").Equal(accepted.Amount))
	assert.True(t, cash("90").Equal(accepted.Wallet.CashBalance))

	flying := sink.await(t, model.EventRoundFlying)
	assert.Equal(t, started.RoundID, flying.RoundID)

	e.clock.Advance(30 * time.Second)
	res, err := e.CashOut(ctx, participant)
	require.NoError(t, err)
	assert.Equal(t, 2.5, res.Multiplier)
	assert.True(t, cash("25").Equal(res.Payout), res.Payout.String())

	_, err = e.CashOut(ctx, participant)
	require.ErrorIs(t, err, model.ErrAlreadySettled)

	e.awaitCash(t, "115")
	assert.Equal(t, 2.5, e.awaitOutcome(t, accepted, model.OutcomeWon))

	// Кэшаут не меняет фазу раунда
	assert.Equal(t, model.RoundFlying, e.round(t).Status)

	require.Eventually(t, func() bool { return len(e.notify.all()) == 1 }, waitFor, pollEvery)
	n := e.notify.all()[0]
	assert.Equal(t, model.OutcomeWon, n.Outcome)
	assert.True(t, cash("25").Equal(n.Payout))

	wallet := sink.await(t, model.EventWalletUpdated)
	require.NotNil(t, wallet.Wallet)
}

func TestScenarioProtectedRestricted(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, defaultTestConfig(), model.Wallet{RestrictedBalance: cash("500")}, 0.999)
	sink := &recorder{}

	require.NoError(t, e.Join(ctx, participant, sink))
	sink.await(t, model.EventRoundStarted)

	accepted, err := e.PlaceStake(ctx, participant, decimal.Zero, model.StakeRestricted, true)
	require.NoError(t, err)
	assert.True(t, cash("5").Equal(accepted.Amount))
	assert.Equal(t, 0, accepted.Wallet.DailyEntitlements)

	sink.await(t, model.EventRoundFlying)

	w := e.awaitCash(t, "5")
	assert.True(t, cash("5").Equal(w.TotalRestrictedProfit))
	assert.Equal(t, 1.0, e.awaitOutcome(t, accepted, model.OutcomeWon))

	// Ставка уже закрыта при взлёте
	_, err = e.CashOut(ctx, participant)
	require.ErrorIs(t, err, model.ErrAlreadySettled)
}

func TestScenarioLossOnCrash(t *testing.T) {
	ctx := context.Background()
	// r подобран под точку краша 1.32
	e := newEngine(t, defaultTestConfig(), model.Wallet{CashBalance: cash("100")}, 0.31/0.735)
	sink := &recorder{}

	require.NoError(t, e.Join(ctx, participant, sink))
	sink.await(t, model.EventRoundStarted)

	accepted, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
	require.NoError(t, err)

	sink.await(t, model.EventRoundFlying)
	e.clock.Advance(7 * time.Second)

	crashed := sink.await(t, model.EventRoundCrashed)
	assert.InDelta(t, 1.32, crashed.CrashPoint, 1e-9)

	assert.InDelta(t, 1.32, e.awaitOutcome(t, accepted, model.OutcomeLost), 1e-9)
	e.awaitCash(t, "90")

	entries, err := e.store.ListEntries(ctx, participant)
	require.NoError(t, err)
	assert.True(t, cash("-10").Equal(model.StakeLedgerSum(entries, accepted.StakeID)))
	require.NoError(t, model.VerifyLedgerChain(entries, cash("90")))

	_, err = e.CashOut(ctx, participant)
	require.Error(t, err)

	// После паузы новый раунд, точка краша считается с учётом ставки в прошлом раунде
	require.Eventually(t, func() bool { return sink.count(model.EventRoundStarted) >= 2 }, waitFor, pollEvery)
	next := e.round(t)
	assert.NotEqual(t, crashed.RoundID, next.ID)
	assert.InDelta(t, CrashPoint(true, 0.31/0.735), next.CrashPoint, 1e-9)

	// Слепок завершённого раунда
	require.Eventually(t, func() bool {
		snap, ok := e.store.Snapshot(crashed.RoundID)
		return ok && snap.Status == model.RoundCrashed && !snap.SnapshotAt.IsZero()
	}, waitFor, pollEvery)
}

func TestScenarioDuplicateStake(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, defaultTestConfig(), model.Wallet{CashBalance: cash("100")}, 0.999)
	sink := &recorder{}

	require.NoError(t, e.Join(ctx, participant, sink))

	_, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
	require.NoError(t, err)

	_, err = e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
	require.ErrorIs(t, err, model.ErrDuplicateStake)

	w, err := e.store.GetWallet(ctx, participant)
	require.NoError(t, err)
	assert.True(t, cash("90").Equal(w.CashBalance))
}

func TestScenarioCashOutWhilePreparing(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, defaultTestConfig(), model.Wallet{CashBalance: cash("100")}, 0.999)
	sink := &recorder{}

	require.NoError(t, e.Join(ctx, participant, sink))
	before := e.round(t)

	_, err := e.CashOut(ctx, participant)
	require.ErrorIs(t, err, model.ErrWrongPhase)

	after := e.round(t)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, model.RoundPreparing, after.Status)
	assert.Nil(t, after.Stake)
}

func TestScenarioDisconnectMidFlight(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, defaultTestConfig(), model.Wallet{CashBalance: cash("100")}, 0.999)
	sink := &recorder{}

	require.NoError(t, e.Join(ctx, participant, sink))
	started := sink.await(t, model.EventRoundStarted)

	accepted, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
	require.NoError(t, err)
	sink.await(t, model.EventRoundFlying)
	e.clock.Advance(2 * time.Second)

	e.Leave(participant, sink)
	assert.Equal(t, 0, e.Residents())

	e.awaitOutcome(t, accepted, model.OutcomeLost)
	e.awaitCash(t, "90")

	require.Eventually(t, func() bool {
		snap, ok := e.store.Snapshot(started.RoundID)
		return ok && snap.Status == model.RoundCrashed && snap.StakeOutcome != nil && *snap.StakeOutcome == model.OutcomeLost
	}, waitFor, pollEvery)

	_, err = e.CashOut(ctx, participant)
	require.ErrorIs(t, err, model.ErrNoActiveRound)
}

func TestCashOut(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown participant has no round", func(t *testing.T) {
		e := newEngine(t, defaultTestConfig(), model.Wallet{}, 0.999)

		_, err := e.CashOut(ctx, participant)
		require.ErrorIs(t, err, model.ErrNoActiveRound)
		_, err = e.PlaceStake(ctx, participant, cash("1"), model.StakeDirect, false)
		require.ErrorIs(t, err, model.ErrNoActiveRound)
	})

	t.Run("flying without stake", func(t *testing.T) {
		e := newEngine(t, defaultTestConfig(), model.Wallet{}, 0.999)
		sink := &recorder{}

		require.NoError(t, e.Join(ctx, participant, sink))
		sink.await(t, model.EventRoundFlying)

		_, err := e.CashOut(ctx, participant)
		require.ErrorIs(t, err, model.ErrNoOpenStake)
	})

	t.Run("crash time passed before the tick loses the race to crash", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.tick = time.Hour
		e := newEngine(t, cfg, model.Wallet{CashBalance: cash("100")}, 0.31/0.735)
		sink := &recorder{}

		require.NoError(t, e.Join(ctx, participant, sink))
		accepted, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
		require.NoError(t, err)
		sink.await(t, model.EventRoundFlying)

		e.clock.Advance(10 * time.Second)
		_, err = e.CashOut(ctx, participant)
		require.ErrorIs(t, err, model.ErrWrongPhase)

		crashed := sink.await(t, model.EventRoundCrashed)
		assert.InDelta(t, 1.32, crashed.CrashPoint, 1e-9)
		e.awaitOutcome(t, accepted, model.OutcomeLost)
	})

	t.Run("stake after flying begins is rejected", func(t *testing.T) {
		e := newEngine(t, defaultTestConfig(), model.Wallet{CashBalance: cash("100")}, 0.999)
		sink := &recorder{}

		require.NoError(t, e.Join(ctx, participant, sink))
		sink.await(t, model.EventRoundFlying)

		_, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
		require.ErrorIs(t, err, model.ErrWrongPhase)
	})
}

func TestMultiplierTicks(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, defaultTestConfig(), model.Wallet{}, 0.999)
	sink := &recorder{}

	require.NoError(t, e.Join(ctx, participant, sink))
	sink.await(t, model.EventRoundFlying)

	for i := 0; i < 20; i++ {
		e.clock.Advance(500 * time.Millisecond)
		time.Sleep(3 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return sink.count(model.EventMultiplierTick) >= 5 }, waitFor, pollEvery)

	prev := 1.0
	for _, ev := range sink.all() {
		if ev.Type != model.EventMultiplierTick {
			continue
		}
		assert.GreaterOrEqual(t, ev.Multiplier, prev)
		prev = ev.Multiplier
	}
}

func TestJoinAndLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("rejoin replaces the connection", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.preparing = 5 * time.Second
		e := newEngine(t, cfg, model.Wallet{}, 0.999)
		first, second := &recorder{}, &recorder{}

		require.NoError(t, e.Join(ctx, participant, first))
		roundID := e.round(t).ID
		require.NoError(t, e.Join(ctx, participant, second))

		// Текущее состояние сразу уходит новому соединению
		ev := second.await(t, model.EventRoundStarted)
		assert.Equal(t, roundID, ev.RoundID)

		// Отключение старого соединения не выгружает участника
		e.Leave(participant, first)
		assert.Equal(t, 1, e.Residents())
		assert.Equal(t, roundID, e.round(t).ID)

		e.Leave(participant, second)
		assert.Equal(t, 0, e.Residents())
	})

	t.Run("join creates wallet for a new participant", func(t *testing.T) {
		e := newEngine(t, defaultTestConfig(), model.Wallet{}, 0.999)
		const newcomer int64 = 1001

		require.NoError(t, e.Join(ctx, newcomer, &recorder{}))
		w, err := e.store.GetWallet(ctx, newcomer)
		require.NoError(t, err)
		assert.True(t, w.CashBalance.IsZero())
	})
}

func TestSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("evicts idle participants", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.idle = 30 * time.Millisecond
		e := newEngine(t, cfg, model.Wallet{CashBalance: cash("100")}, 0.999)
		sink := &recorder{}

		require.NoError(t, e.Join(ctx, participant, sink))
		started := sink.await(t, model.EventRoundStarted)

		time.Sleep(50 * time.Millisecond)
		e.Sweep()
		assert.Equal(t, 0, e.Residents())

		require.Eventually(t, func() bool {
			_, ok := e.store.Snapshot(started.RoundID)
			return ok
		}, waitFor, pollEvery)
	})

	t.Run("keeps active participants", func(t *testing.T) {
		e := newEngine(t, defaultTestConfig(), model.Wallet{}, 0.999)

		require.NoError(t, e.Join(ctx, participant, &recorder{}))
		e.Sweep()
		assert.Equal(t, 1, e.Residents())
	})

	t.Run("connected participant watching rounds is not idle", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.preparing = 10 * time.Millisecond
		cfg.cooldown = 10 * time.Millisecond
		cfg.idle = 80 * time.Millisecond
		// Точка краша 1.01: раунды идут один за другим
		e := newEngine(t, cfg, model.Wallet{CashBalance: cash("100")}, 0)
		sink := &recorder{}

		require.NoError(t, e.Join(ctx, participant, sink))

		stop := make(chan struct{})
		defer close(stop)
		go func() {
			ticker := time.NewTicker(2 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					e.clock.Advance(100 * time.Millisecond)
				}
			}
		}()

		time.Sleep(200 * time.Millisecond)
		e.Sweep()

		assert.Equal(t, 1, e.Residents())
		assert.GreaterOrEqual(t, sink.count(model.EventRoundStarted), 3)
		_, err := e.PlaceStake(ctx, participant, cash("1"), model.StakeDirect, false)
		assert.NotErrorIs(t, err, model.ErrNoActiveRound)
	})

	t.Run("expired participant rejoins with a fresh round", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.idle = 20 * time.Millisecond
		e := newEngine(t, cfg, model.Wallet{}, 0.999)
		sink := &recorder{}

		require.NoError(t, e.Join(ctx, participant, sink))
		first := sink.await(t, model.EventRoundStarted)

		time.Sleep(40 * time.Millisecond)
		require.NoError(t, e.Join(ctx, participant, sink))
		assert.NotEqual(t, first.RoundID, e.round(t).ID)
		assert.Equal(t, 1, e.Residents())
	})
}

func TestSettlementRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("transient failures are retried until the payout lands", func(t *testing.T) {
		flaky := &flakyLedger{failures: 2}
		e := newEngineWithLedger(t, defaultTestConfig(), model.Wallet{CashBalance: cash("100")}, 0.999,
			func(l service.LedgerService) service.LedgerService {
				flaky.LedgerService = l
				return flaky
			})
		sink := &recorder{}

		accepted := cashOutAt(t, e, sink)

		e.awaitCash(t, "115")
		assert.Equal(t, 3, flaky.settleCalls())
		assert.Equal(t, 2.5, e.awaitOutcome(t, accepted, model.OutcomeWon))
		assert.Equal(t, model.OutcomeWon, e.round(t).Stake.Outcome())
	})

	t.Run("exhausted retries keep the flip and leave the stake to reconcile", func(t *testing.T) {
		logs := captureLog(t)
		flaky := &flakyLedger{failures: -1}
		e := newEngineWithLedger(t, defaultTestConfig(), model.Wallet{CashBalance: cash("100")}, 0.999,
			func(l service.LedgerService) service.LedgerService {
				flaky.LedgerService = l
				return flaky
			})
		sink := &recorder{}

		accepted := cashOutAt(t, e, sink)

		require.Eventually(t, func() bool {
			return strings.Contains(logs.String(), "stake settlement retries exhausted")
		}, waitFor, pollEvery)
		assert.Equal(t, 3, flaky.settleCalls())
		assert.Contains(t, logs.String(), `"level":"fatal"`)

		// Итог в памяти не откатывается, в хранилище ставка ещё открыта
		current := e.round(t)
		require.NotNil(t, current.Stake)
		assert.Equal(t, model.OutcomeWon, current.Stake.Outcome())
		outcome, _, ok := e.store.StakeOutcome(accepted.StakeID)
		require.True(t, ok)
		assert.Equal(t, model.OutcomeOpen, outcome)
		e.awaitCash(t, "90")

		// Слепок раунда позволяет досчитать выплату
		e.Leave(participant, sink)
		require.Eventually(t, func() bool {
			snap, ok := e.store.Snapshot(current.ID)
			return ok && snap.StakeOutcome != nil && *snap.StakeOutcome == model.OutcomeWon
		}, waitFor, pollEvery)

		settled, err := e.ledger.Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, settled)
		e.awaitCash(t, "115")
		assert.Equal(t, 3, flaky.settleCalls())
	})
}

func TestCrashPointBias(t *testing.T) {
	ctx := context.Background()
	// r подобран под точку краша 1.32 при любом смещении
	e := newEngine(t, defaultTestConfig(), model.Wallet{CashBalance: cash("100")}, 0.31/0.735)

	var (
		mtx     sync.Mutex
		history []bool
	)
	e.crashPoint = func(hasOpenStake bool, r float64) float64 {
		mtx.Lock()
		history = append(history, hasOpenStake)
		mtx.Unlock()
		return CrashPoint(hasOpenStake, r)
	}
	generated := func() []bool {
		mtx.Lock()
		defer mtx.Unlock()
		return append([]bool(nil), history...)
	}

	sink := &recorder{}
	require.NoError(t, e.Join(ctx, participant, sink))
	_, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
	require.NoError(t, err)

	// Раунд со ставкой
	sink.await(t, model.EventRoundFlying)
	e.clock.Advance(7 * time.Second)
	require.Eventually(t, func() bool { return sink.count(model.EventRoundCrashed) == 1 }, waitFor, pollEvery)

	// Следующий раунд без ставки
	require.Eventually(t, func() bool { return sink.count(model.EventRoundFlying) == 2 }, waitFor, pollEvery)
	e.clock.Advance(7 * time.Second)
	require.Eventually(t, func() bool { return sink.count(model.EventRoundStarted) >= 3 }, waitFor, pollEvery)

	got := generated()
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, []bool{false, true, false}, got[:3])
}

func TestParticipantsAreIsolated(t *testing.T) {
	ctx := context.Background()
	const neighbour int64 = 7

	gate := &gatedLedger{entered: make(chan struct{}), release: make(chan struct{})}
	cfg := defaultTestConfig()
	cfg.preparing = 5 * time.Second
	e := newEngineWithLedger(t, cfg, model.Wallet{CashBalance: cash("100")}, 0.999,
		func(l service.LedgerService) service.LedgerService {
			gate.LedgerService = l
			return gate
		})

	busySink := &recorder{}
	require.NoError(t, e.Join(ctx, participant, busySink))
	require.NoError(t, e.Join(ctx, neighbour, &recorder{}))

	placed := make(chan error, 1)
	go func() {
		_, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
		placed <- err
	}()
	<-gate.entered

	left := make(chan struct{})
	go func() {
		e.Leave(participant, busySink)
		close(left)
	}()
	require.Eventually(t, func() bool { return e.Residents() == 1 }, waitFor, pollEvery)

	answered := make(chan error, 1)
	go func() {
		_, err := e.CashOut(ctx, neighbour)
		answered <- err
	}()
	select {
	case err := <-answered:
		require.ErrorIs(t, err, model.ErrWrongPhase)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("neighbour waited for another participant's storage call")
	}

	close(gate.release)
	require.NoError(t, <-placed)
	<-left

	// Ставка не взлетела: деньги вернулись
	e.awaitCash(t, "100")
}

func TestDisconnectWhilePreparing(t *testing.T) {
	ctx := context.Background()
	cfg := defaultTestConfig()
	cfg.preparing = 5 * time.Second

	t.Run("direct stake is returned", func(t *testing.T) {
		e := newEngine(t, cfg, model.Wallet{CashBalance: cash("100")}, 0.999)
		sink := &recorder{}

		require.NoError(t, e.Join(ctx, participant, sink))
		started := sink.await(t, model.EventRoundStarted)
		accepted, err := e.PlaceStake(ctx, participant, cash("10"), model.StakeDirect, false)
		require.NoError(t, err)

		e.Leave(participant, sink)

		assert.Equal(t, 1.0, e.awaitOutcome(t, accepted, model.OutcomeWon))
		e.awaitCash(t, "100")

		entries, err := e.store.ListEntries(ctx, participant)
		require.NoError(t, err)
		assert.True(t, model.StakeLedgerSum(entries, accepted.StakeID).IsZero())
		require.NoError(t, model.VerifyLedgerChain(entries, cash("100")))

		require.Eventually(t, func() bool {
			snap, ok := e.store.Snapshot(started.RoundID)
			return ok && snap.Status == model.RoundCrashed && snap.FlyingAt == nil
		}, waitFor, pollEvery)
	})

	t.Run("unprotected restricted stake only burns the entitlement", func(t *testing.T) {
		e := newEngine(t, cfg, model.Wallet{RestrictedBalance: cash("500")}, 0.999)
		sink := &recorder{}

		require.NoError(t, e.Join(ctx, participant, sink))
		accepted, err := e.PlaceStake(ctx, participant, decimal.Zero, model.StakeRestricted, false)
		require.NoError(t, err)

		e.Leave(participant, sink)

		e.awaitOutcome(t, accepted, model.OutcomeLost)
		w, err := e.store.GetWallet(ctx, participant)
		require.NoError(t, err)
		assert.True(t, w.CashBalance.IsZero())
		assert.True(t, cash("500").Equal(w.RestrictedBalance))
		assert.Equal(t, 0, w.DailyEntitlements)
	})

	t.Run("protected restricted stake pays at 1.0", func(t *testing.T) {
		e := newEngine(t, cfg, model.Wallet{RestrictedBalance: cash("500")}, 0.999)
		sink := &recorder{}

		require.NoError(t, e.Join(ctx, participant, sink))
		accepted, err := e.PlaceStake(ctx, participant, decimal.Zero, model.StakeRestricted, true)
		require.NoError(t, err)

		e.Leave(participant, sink)

		assert.Equal(t, 1.0, e.awaitOutcome(t, accepted, model.OutcomeWon))
		e.awaitCash(t, "5")
	})
}
