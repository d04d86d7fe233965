package ledger

import (
	"context"
	"crash_backend/internal/model"
)

// EnsureWallet Кошелёк создаётся при первом подключении участника
func (s *serv) EnsureWallet(ctx context.Context, participantID int64) error {
	return s.walletRepo.EnsureWallet(ctx, participantID)
}

func (s *serv) Wallet(ctx context.Context, participantID int64) (*model.Wallet, error) {
	return s.walletRepo.GetWallet(ctx, participantID)
}

// LedgerReport Журнал участника со сверкой: журнал должен воспроизводить денежный баланс
func (s *serv) LedgerReport(ctx context.Context, participantID int64) (*model.LedgerReport, error) {
	report := &model.LedgerReport{}

	// Одна транзакция, чтобы журнал и баланс были согласованы между собой
	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		w, err := s.walletRepo.GetWalletForUpdate(txCtx, participantID)
		if err != nil {
			return err
		}
		entries, err := s.ledgerRepo.ListEntries(txCtx, participantID)
		if err != nil {
			return err
		}
		report.Wallet = w
		report.Entries = entries
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Consistent = true
	if err := model.VerifyLedgerChain(report.Entries, report.Wallet.CashBalance); err != nil {
		report.Consistent = false
		report.Problem = err.Error()
	}

	return report, nil
}
