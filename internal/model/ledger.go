package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerKind string

const (
	LedgerStakePlaced LedgerKind = "stake_placed"
	LedgerCashOut     LedgerKind = "cash_out"
	LedgerStakeLost   LedgerKind = "stake_lost"
)

// LedgerEntry Неизменяемая запись журнала. Amount - изменение денежного баланса со знаком,
// Forfeited - сумма проигранной ставки (только для stake_lost, баланс она не меняет)
type LedgerEntry struct {
	ID            uuid.UUID
	ParticipantID int64
	StakeID       uuid.UUID
	RoundID       uuid.UUID
	Kind          LedgerKind
	Amount        decimal.Decimal
	Forfeited     decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	CreatedAt     time.Time
}

// NewLedgerEntry Запись журнала, применяющая delta к балансу before
func NewLedgerEntry(stake *Stake, kind LedgerKind, before, delta decimal.Decimal, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:            uuid.New(),
		ParticipantID: stake.ParticipantID,
		StakeID:       stake.ID,
		RoundID:       stake.RoundID,
		Kind:          kind,
		Amount:        delta,
		Forfeited:     decimal.Zero,
		BalanceBefore: before,
		BalanceAfter:  before.Add(delta),
		CreatedAt:     now,
	}
}

// VerifyLedgerChain Проверяет что журнал воспроизводит баланс:
// каждая запись продолжает предыдущую и последняя совпадает с текущим балансом
func VerifyLedgerChain(entries []LedgerEntry, cash decimal.Decimal) error {
	if len(entries) == 0 {
		return nil
	}
	for i, e := range entries {
		if !e.BalanceBefore.Add(e.Amount).Equal(e.BalanceAfter) {
			return fmt.Errorf("entry %s: %s + %s != %s", e.ID, e.BalanceBefore, e.Amount, e.BalanceAfter)
		}
		if i > 0 && !entries[i-1].BalanceAfter.Equal(e.BalanceBefore) {
			return fmt.Errorf("entry %s: chain broken, previous balance %s, got %s",
				e.ID, entries[i-1].BalanceAfter, e.BalanceBefore)
		}
	}
	last := entries[len(entries)-1]
	if !last.BalanceAfter.Equal(cash) {
		return fmt.Errorf("ledger ends at %s, wallet holds %s", last.BalanceAfter, cash)
	}
	return nil
}

// StakeLedgerSum Сумма изменений баланса по одной ставке
func StakeLedgerSum(entries []LedgerEntry, stakeID uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		if e.StakeID == stakeID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}
