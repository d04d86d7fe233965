package ledger

import (
	"context"
	"crash_backend/internal/model"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Settle Записывает итог, зафиксированный CAS в памяти.
// Идемпотентность по stakeID: закрытие ставки в БД идёт с условием outcome = 'open'
func (s *serv) Settle(ctx context.Context, stake *model.Stake) (*model.SettleResult, error) {
	st := stake.Settlement()
	if st == nil {
		return nil, fmt.Errorf("stake %s: %w", stake.ID, model.ErrNoOpenStake)
	}

	var (
		res *model.SettleResult
		err error
	)
	switch st.Outcome {
	case model.OutcomeWon:
		res, err = s.settleCashOut(ctx, stake, st.Multiplier)
	case model.OutcomeLost:
		res, err = s.settleLoss(ctx, stake, st.Multiplier)
	default:
		return nil, fmt.Errorf("stake %s: unexpected outcome %q", stake.ID, st.Outcome)
	}
	if err != nil {
		return nil, err
	}

	if res.Applied {
		s.statsRepo.RecordSettlement(stake.Amount, res.Payout)
		// stake_id уже в логгере контекста
		log.Ctx(ctx).Debug().
			Str("outcome", string(st.Outcome)).
			Float64("multiplier", st.Multiplier).
			Str("payout", res.Payout.StringFixed(2)).
			Msg("stake settled")
	}

	return res, nil
}

// settleCashOut Начисление выигрыша amount*m и запись cash_out
func (s *serv) settleCashOut(ctx context.Context, stake *model.Stake, m float64) (*model.SettleResult, error) {
	res := &model.SettleResult{}
	now := s.now()

	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		closed, err := s.stakeRepo.CloseStake(txCtx, stake.ID, model.OutcomeWon, m)
		if err != nil {
			return err
		}
		if !closed {
			// Уже рассчитана предыдущей попыткой
			return nil
		}

		w, err := s.walletRepo.GetWalletForUpdate(txCtx, stake.ParticipantID)
		if err != nil {
			return err
		}

		payout := stake.Payout(m)
		entry := model.NewLedgerEntry(stake, model.LedgerCashOut, w.CashBalance, payout, now)
		w.CashBalance = entry.BalanceAfter
		if stake.Kind == model.StakeRestricted {
			// Для ограниченной ставки деньги не списывались, вся выплата - прибыль
			w.TotalRestrictedProfit = w.TotalRestrictedProfit.Add(payout)
		}

		if err := s.ledgerRepo.AppendEntry(txCtx, entry); err != nil {
			return err
		}
		if err := s.walletRepo.UpdateWallet(txCtx, w); err != nil {
			return err
		}

		res.Applied = true
		res.Payout = payout
		res.Wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// settleLoss Проигрыш. Деньги по прямой ставке списаны при размещении,
// поэтому stake_lost не меняет баланс и хранит сумму в forfeited
func (s *serv) settleLoss(ctx context.Context, stake *model.Stake, m float64) (*model.SettleResult, error) {
	res := &model.SettleResult{Payout: decimal.Zero}
	now := s.now()

	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		closed, err := s.stakeRepo.CloseStake(txCtx, stake.ID, model.OutcomeLost, m)
		if err != nil {
			return err
		}
		if !closed {
			return nil
		}

		if stake.Kind == model.StakeDirect {
			w, err := s.walletRepo.GetWalletForUpdate(txCtx, stake.ParticipantID)
			if err != nil {
				return err
			}
			entry := model.NewLedgerEntry(stake, model.LedgerStakeLost, w.CashBalance, decimal.Zero, now)
			entry.Forfeited = stake.Amount
			if err := s.ledgerRepo.AppendEntry(txCtx, entry); err != nil {
				return err
			}
		}

		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}
