package repository

import (
	"context"
	"crash_backend/internal/model"
	statsModel "crash_backend/internal/repository/stats_repo/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	EnsureWallet(ctx context.Context, participantID int64) error
	GetWallet(ctx context.Context, participantID int64) (*model.Wallet, error)
	GetWalletForUpdate(ctx context.Context, participantID int64) (*model.Wallet, error)
	UpdateWallet(ctx context.Context, wallet *model.Wallet) error
}

type StakeRepository interface {
	CreateStake(ctx context.Context, stake *model.Stake) error
	// CloseStake Закрывает ставку, если она ещё открыта. false - ставка уже закрыта ранее
	CloseStake(ctx context.Context, stakeID uuid.UUID, outcome model.Outcome, settledAt float64) (bool, error)
	ListUnsettled(ctx context.Context, limit uint64) ([]model.UnsettledStake, error)
}

type LedgerRepository interface {
	AppendEntry(ctx context.Context, entry *model.LedgerEntry) error
	ListEntries(ctx context.Context, participantID int64) ([]model.LedgerEntry, error)
}

type RoundRepository interface {
	// BindRound Создаёт запись раунда со ставкой при её размещении
	BindRound(ctx context.Context, round *model.Round, stakeID uuid.UUID) error
	SaveSnapshot(ctx context.Context, snap *model.RoundSnapshot) error
}

type StatsRepository interface {
	HouseState() statsModel.HouseState
	RecordStake(amount decimal.Decimal)
	RecordSettlement(amount, payout decimal.Decimal)
}
