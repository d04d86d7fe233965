package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type RoundStatus string

const (
	RoundPreparing RoundStatus = "preparing"
	RoundFlying    RoundStatus = "flying"
	RoundCrashed   RoundStatus = "crashed"
)

// Round Раунд одного участника. Принадлежит горутине участника,
// поэтому поля меняются без блокировок
type Round struct {
	ID            uuid.UUID
	ParticipantID int64
	Status        RoundStatus
	Multiplier    float64
	CrashPoint    float64
	StartedAt     time.Time
	FlyingAt      *time.Time
	CrashedAt     *time.Time
	Stake         *Stake
}

func NewRound(participantID int64, crashPoint float64, now time.Time) *Round {
	return &Round{
		ID:            uuid.New(),
		ParticipantID: participantID,
		Status:        RoundPreparing,
		Multiplier:    1.0,
		CrashPoint:    crashPoint,
		StartedAt:     now,
	}
}

// Fly Переход preparing -> flying
func (r *Round) Fly(now time.Time) {
	r.Status = RoundFlying
	r.Multiplier = 1.0
	r.FlyingAt = &now
}

// MultiplierAt Множитель как функция времени полёта: 1 + growth*t
func (r *Round) MultiplierAt(now time.Time, growthPerSecond float64) float64 {
	if r.FlyingAt == nil {
		return 1.0
	}
	elapsed := now.Sub(*r.FlyingAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return 1.0 + growthPerSecond*elapsed
}

// Advance Продвигает множитель до m (округление вниз до сотых).
// Множитель никогда не уменьшается. Возвращает текущее значение
func (r *Round) Advance(m float64) float64 {
	if r.Status != RoundFlying {
		return r.Multiplier
	}
	m = math.Floor(m*100) / 100
	if m > r.Multiplier {
		r.Multiplier = m
	}
	return r.Multiplier
}

// ReachedCrash Достигнута ли точка краша
func (r *Round) ReachedCrash(m float64) bool {
	return m >= r.CrashPoint
}

// Crash Переход в crashed. Итоговый множитель - точка краша, а не последний замер
func (r *Round) Crash(now time.Time) {
	r.Status = RoundCrashed
	r.Multiplier = r.CrashPoint
	r.CrashedAt = &now
}

// Abort Досрочное завершение (отключение участника). Множитель остаётся последним опубликованным
func (r *Round) Abort(now time.Time) {
	r.Status = RoundCrashed
	r.CrashedAt = &now
}

// HasOpenStake Есть ли в раунде незакрытая ставка
func (r *Round) HasOpenStake() bool {
	return r.Stake != nil && r.Stake.Outcome() == OutcomeOpen
}

// RoundSnapshot Слепок раунда для долговременного хранения
type RoundSnapshot struct {
	RoundID        uuid.UUID
	ParticipantID  int64
	Status         RoundStatus
	Multiplier     float64
	CrashPoint     float64
	StartedAt      time.Time
	FlyingAt       *time.Time
	CrashedAt      *time.Time
	StakeID        *uuid.UUID
	StakeOutcome   *Outcome
	StakeSettledAt *float64
	SnapshotAt     time.Time
}

// Snapshot Снимает копию раунда вместе с итогом ставки в памяти
func (r *Round) Snapshot(now time.Time) *RoundSnapshot {
	snap := &RoundSnapshot{
		RoundID:       r.ID,
		ParticipantID: r.ParticipantID,
		Status:        r.Status,
		Multiplier:    r.Multiplier,
		CrashPoint:    r.CrashPoint,
		StartedAt:     r.StartedAt,
		FlyingAt:      r.FlyingAt,
		CrashedAt:     r.CrashedAt,
		SnapshotAt:    now,
	}
	if r.Stake != nil {
		id := r.Stake.ID
		outcome := r.Stake.Outcome()
		snap.StakeID = &id
		snap.StakeOutcome = &outcome
		if s := r.Stake.Settlement(); s != nil {
			m := s.Multiplier
			snap.StakeSettledAt = &m
		}
	}
	return snap
}
