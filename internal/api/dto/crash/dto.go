package crash

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Message Конверт websocket сообщения в обе стороны
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutMessage Исходящее сообщение
type OutMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type PlaceStakeRequest struct {
	Amount    decimal.Decimal `json:"amount"`                                           // Сумма прямой ставки, для restricted игнорируется
	Kind      string          `json:"kind" validate:"required,oneof=direct restricted"` // direct | restricted
	Protected bool            `json:"protected"`                                        // Только для restricted
}

type RoundStarted struct {
	RoundID string `json:"round_id"`
}

type RoundFlying struct {
	RoundID string `json:"round_id"`
}

type MultiplierTick struct {
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
}

type RoundCrashed struct {
	RoundID    string  `json:"round_id"`
	CrashPoint float64 `json:"crash_point"`
}

type WalletUpdated struct {
	CashBalance       string `json:"cash_balance"`
	RestrictedBalance string `json:"restricted_balance"`
	DailyEntitlements int    `json:"daily_entitlements"`
}

type StakeAccepted struct {
	StakeID string `json:"stake_id"`
	Amount  string `json:"amount"`
}

type CashedOut struct {
	StakeID    string  `json:"stake_id"`
	Payout     string  `json:"payout"`
	Multiplier float64 `json:"multiplier"`
}

type Rejected struct {
	Error string `json:"error"`
}

type WalletResponse struct {
	ParticipantID         int64  `json:"participant_id"`
	CashBalance           string `json:"cash_balance"`
	RestrictedBalance     string `json:"restricted_balance"`
	DailyEntitlements     int    `json:"daily_entitlements"`
	TotalRestrictedProfit string `json:"total_restricted_profit"`
}

type LedgerEntry struct {
	EntryID       string `json:"entry_id"`
	StakeID       string `json:"stake_id"`
	RoundID       string `json:"round_id"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	Forfeited     string `json:"forfeited"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	CreatedAt     string `json:"created_at"`
}

type LedgerResponse struct {
	Wallet     WalletResponse `json:"wallet"`
	Entries    []LedgerEntry  `json:"entries"`
	Consistent bool           `json:"consistent"`        // Журнал воспроизводит баланс
	Problem    string         `json:"problem,omitempty"` // Первое найденное расхождение
}

type StatsResponse struct {
	TotalStakes int     `json:"total_stakes"`
	TotalBet    float64 `json:"total_bet"`
	TotalPayout float64 `json:"total_payout"`
	CurrentRTP  float64 `json:"current_rtp"`
	WindowRTP   float64 `json:"window_rtp"`
	WindowSize  int     `json:"window_size"`
	OpenStakes  int     `json:"open_stakes"`
	OpenAmount  float64 `json:"open_amount"`
	Residents   int     `json:"residents"`
}
