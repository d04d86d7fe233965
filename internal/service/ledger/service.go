package ledger

import (
	"crash_backend/internal/config"
	"crash_backend/internal/repository"
	"crash_backend/internal/service"
	"time"

	"github.com/avito-tech/go-transaction-manager/trm/v2"
)

const reconcileBatch = 100

type serv struct {
	cfg        config.RoundConfig
	walletRepo repository.WalletRepository
	stakeRepo  repository.StakeRepository
	ledgerRepo repository.LedgerRepository
	roundRepo  repository.RoundRepository
	statsRepo  repository.StatsRepository
	txManager  trm.Manager
	now        func() time.Time
}

// NewLedgerService Кошелёк участника и журнал операций
func NewLedgerService(
	cfg config.RoundConfig,
	walletRepo repository.WalletRepository,
	stakeRepo repository.StakeRepository,
	ledgerRepo repository.LedgerRepository,
	roundRepo repository.RoundRepository,
	statsRepo repository.StatsRepository,
	txManager trm.Manager,
) service.LedgerService {
	return &serv{
		cfg:        cfg,
		walletRepo: walletRepo,
		stakeRepo:  stakeRepo,
		ledgerRepo: ledgerRepo,
		roundRepo:  roundRepo,
		statsRepo:  statsRepo,
		txManager:  txManager,
		now:        func() time.Time { return time.Now().UTC() },
	}
}
