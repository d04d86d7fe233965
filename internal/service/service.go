package service

import (
	"context"
	"crash_backend/internal/model"

	"github.com/shopspring/decimal"
)

// LedgerService Кошелёк и журнал: все изменения баланса проходят через него в транзакции
type LedgerService interface {
	EnsureWallet(ctx context.Context, participantID int64) error
	Wallet(ctx context.Context, participantID int64) (*model.Wallet, error)
	LedgerReport(ctx context.Context, participantID int64) (*model.LedgerReport, error)

	PlaceStake(ctx context.Context, req model.StakeRequest) (*model.Stake, *model.Wallet, error)
	// Settle Записывает итог ставки, уже закрытой в памяти. Повторный вызов безопасен
	Settle(ctx context.Context, stake *model.Stake) (*model.SettleResult, error)
	Reconcile(ctx context.Context) (int, error)
}

// GameService Движок раундов: по одному актору на участника
type GameService interface {
	Join(ctx context.Context, participantID int64, sink model.EventSink) error
	Leave(participantID int64, sink model.EventSink)
	PlaceStake(ctx context.Context, participantID int64, amount decimal.Decimal, kind model.StakeKind, protected bool) (*model.StakeAccepted, error)
	CashOut(ctx context.Context, participantID int64) (*model.CashOutResult, error)
	Residents() int
	Sweep()
	Shutdown(ctx context.Context)
}

// Notifier Внешний подписчик на расчёты ставок. Не влияет на корректность
type Notifier interface {
	Notify(ctx context.Context, e model.SettlementEvent) error
}
