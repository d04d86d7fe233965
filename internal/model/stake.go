package model

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StakeKind string

const (
	StakeDirect     StakeKind = "direct"
	StakeRestricted StakeKind = "restricted"
)

func (k StakeKind) Valid() bool {
	return k == StakeDirect || k == StakeRestricted
}

type Outcome string

const (
	OutcomeOpen Outcome = "open"
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
)

// Settlement Итог ставки, зафиксированный в памяти до записи в БД
type Settlement struct {
	Outcome    Outcome
	Multiplier float64
}

// Stake Ставка в раунде. Поле settlement меняется только через CAS:
// кто первым закрыл ставку (кэшаут или краш), тот и победил
type Stake struct {
	ID            uuid.UUID
	ParticipantID int64
	RoundID       uuid.UUID
	Amount        decimal.Decimal
	Kind          StakeKind
	Protected     bool
	CreatedAt     time.Time

	settlement atomic.Pointer[Settlement]
}

// Close Переводит ставку open -> closing(outcome, m). false если ставка уже закрыта
func (s *Stake) Close(outcome Outcome, m float64) bool {
	return s.settlement.CompareAndSwap(nil, &Settlement{Outcome: outcome, Multiplier: m})
}

func (s *Stake) Settlement() *Settlement {
	return s.settlement.Load()
}

func (s *Stake) Outcome() Outcome {
	if st := s.settlement.Load(); st != nil {
		return st.Outcome
	}
	return OutcomeOpen
}

// Payout Выплата при закрытии на множителе m, округлённая до центов
func (s *Stake) Payout(m float64) decimal.Decimal {
	return PayoutFor(s.Amount, m)
}

func PayoutFor(amount decimal.Decimal, m float64) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(m)).Round(2)
}

// StakeRequest Запрос участника на ставку
type StakeRequest struct {
	ParticipantID int64
	RoundID       uuid.UUID
	CrashPoint    float64
	RoundStarted  time.Time
	Amount        decimal.Decimal
	Kind          StakeKind
	Protected     bool
}

// UnsettledStake Ставка, открытая в БД, но закрытая в памяти (по слепку раунда)
type UnsettledStake struct {
	StakeID       uuid.UUID
	ParticipantID int64
	RoundID       uuid.UUID
	Amount        decimal.Decimal
	Kind          StakeKind
	Protected     bool
	Outcome       Outcome
	Multiplier    float64
}

// Restore Восстанавливает ставку с уже закрытым итогом для повторного расчёта
func (u UnsettledStake) Restore() *Stake {
	s := &Stake{
		ID:            u.StakeID,
		ParticipantID: u.ParticipantID,
		RoundID:       u.RoundID,
		Amount:        u.Amount,
		Kind:          u.Kind,
		Protected:     u.Protected,
	}
	s.Close(u.Outcome, u.Multiplier)
	return s
}
