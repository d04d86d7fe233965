package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventRoundStarted   EventType = "round_started"
	EventRoundFlying    EventType = "round_flying"
	EventMultiplierTick EventType = "multiplier_tick"
	EventRoundCrashed   EventType = "round_crashed"
	EventWalletUpdated  EventType = "wallet_updated"
)

// Event Исходящее событие для соединения участника
type Event struct {
	Type       EventType
	RoundID    uuid.UUID
	Multiplier float64
	CrashPoint float64
	Wallet     *Wallet
}

// EventSink Получатель событий участника (соединение). Должен быть потокобезопасным
type EventSink interface {
	Publish(e Event)
}

// SettlementEvent Событие для внешних подписчиков (уведомления)
type SettlementEvent struct {
	ParticipantID int64           `json:"participant_id"`
	StakeID       uuid.UUID       `json:"stake_id"`
	RoundID       uuid.UUID       `json:"round_id"`
	Kind          StakeKind       `json:"kind"`
	Outcome       Outcome         `json:"outcome"`
	Amount        decimal.Decimal `json:"amount"`
	Payout        decimal.Decimal `json:"payout"`
	Multiplier    float64         `json:"multiplier"`
	SettledAt     time.Time       `json:"settled_at"`
}

// CashOutResult Ответ на кэшаут, отдаётся сразу после CAS
type CashOutResult struct {
	StakeID    uuid.UUID
	Payout     decimal.Decimal
	Multiplier float64
}

// StakeAccepted Ответ на принятую ставку
type StakeAccepted struct {
	StakeID uuid.UUID
	Amount  decimal.Decimal
	Wallet  *Wallet
}

// SettleResult Итог записи расчёта ставки в БД.
// Applied=false - ставка уже была рассчитана ранее (повтор)
type SettleResult struct {
	Applied bool
	Payout  decimal.Decimal
	Wallet  *Wallet
}

// LedgerReport Журнал участника и результат его сверки с балансом
type LedgerReport struct {
	Wallet     *Wallet
	Entries    []LedgerEntry
	Consistent bool
	Problem    string
}
