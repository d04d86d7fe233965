package stats_repo

import (
	repoModel "crash_backend/internal/repository/stats_repo/model"
	"sync"

	"github.com/shopspring/decimal"
)

const defaultWindowSize = 500

// StatsRepo Хранилище статистики казино в памяти
type StatsRepo struct {
	mtx   sync.RWMutex
	state repoModel.HouseState
}

// NewStatsRepository Конструктор с пустым начальным состоянием
func NewStatsRepository(windowSize int) *StatsRepo {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &StatsRepo{
		state: repoModel.HouseState{
			Window:     make([]repoModel.SettlementResult, 0, windowSize),
			WindowSize: windowSize,
		},
	}
}

// HouseState Копия текущего состояния
func (r *StatsRepo) HouseState() repoModel.HouseState {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	st := r.state
	st.Window = append([]repoModel.SettlementResult(nil), r.state.Window...)
	return st
}

// RecordStake Учитывает принятую ставку (ещё без итога)
func (r *StatsRepo) RecordStake(amount decimal.Decimal) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.state.OpenStakes++
	r.state.OpenAmount += amount.InexactFloat64()
}

// RecordSettlement Обновление статистики после расчёта ставки
func (r *StatsRepo) RecordSettlement(amount, payout decimal.Decimal) {
	bet := amount.InexactFloat64()
	win := payout.InexactFloat64()

	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.state.OpenStakes > 0 {
		r.state.OpenStakes--
		r.state.OpenAmount -= bet
	}
	r.state.TotalStakes++
	r.state.TotalBet += bet
	r.state.TotalPayout += win
	if r.state.TotalBet > 0 {
		r.state.CurrentRTP = r.state.TotalPayout / r.state.TotalBet * 100
	}

	// Добавляем расчёт в окно и поддерживаем его размер
	r.state.Window = append(r.state.Window, repoModel.SettlementResult{Bet: bet, Payout: win})
	if len(r.state.Window) > r.state.WindowSize {
		r.state.Window = r.state.Window[1:]
	}

	var windowBet, windowPayout float64
	for _, s := range r.state.Window {
		windowBet += s.Bet
		windowPayout += s.Payout
	}
	if windowBet > 0 {
		r.state.WindowRTP = windowPayout / windowBet * 100
	} else {
		r.state.WindowRTP = 0
	}
}
