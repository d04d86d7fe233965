package ledger

import (
	"context"
	"crash_backend/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PlaceStake Списание и запись ставки одной транзакцией.
// Раунд в памяти обновляет вызывающий, и только после успешного коммита
func (s *serv) PlaceStake(ctx context.Context, req model.StakeRequest) (*model.Stake, *model.Wallet, error) {
	if !req.Kind.Valid() {
		return nil, nil, model.ErrInvalidKind
	}
	if req.Kind == model.StakeDirect {
		req.Amount = req.Amount.Round(2)
		if !req.Amount.IsPositive() {
			return nil, nil, model.ErrInvalidAmount
		}
	}

	now := s.now()
	stake := &model.Stake{
		ID:            uuid.New(),
		ParticipantID: req.ParticipantID,
		RoundID:       req.RoundID,
		Kind:          req.Kind,
		CreatedAt:     now,
	}

	var wallet *model.Wallet

	// Начало транзакции: кошелёк блокируется до коммита
	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		w, err := s.walletRepo.GetWalletForUpdate(txCtx, req.ParticipantID)
		if err != nil {
			return err
		}

		// Дневной лимит обновляется лениво, при первой ставке нового дня
		w.RenewEntitlements(now, s.cfg.DailyEntitlements())

		var entry *model.LedgerEntry

		switch req.Kind {
		case model.StakeDirect:
			if w.CashBalance.LessThan(req.Amount) {
				return model.ErrInsufficientFunds
			}
			stake.Amount = req.Amount
			entry = model.NewLedgerEntry(stake, model.LedgerStakePlaced, w.CashBalance, req.Amount.Neg(), now)
			w.CashBalance = entry.BalanceAfter
		case model.StakeRestricted:
			// Сумма считается сервером, переданная клиентом игнорируется
			if w.DailyEntitlements <= 0 {
				return model.ErrNoEntitlementsAvailable
			}
			amount := w.RestrictedBalance.Mul(decimal.NewFromFloat(s.cfg.RestrictedStakeRate())).Truncate(2)
			if !amount.IsPositive() {
				return model.ErrInvalidComputedAmount
			}
			w.DailyEntitlements--
			stake.Amount = amount
			stake.Protected = req.Protected
		}

		round := &model.Round{
			ID:            req.RoundID,
			ParticipantID: req.ParticipantID,
			Status:        model.RoundPreparing,
			Multiplier:    1.0,
			CrashPoint:    req.CrashPoint,
			StartedAt:     req.RoundStarted,
		}
		if err := s.roundRepo.BindRound(txCtx, round, stake.ID); err != nil {
			return err
		}
		if err := s.stakeRepo.CreateStake(txCtx, stake); err != nil {
			return err
		}
		if entry != nil {
			if err := s.ledgerRepo.AppendEntry(txCtx, entry); err != nil {
				return err
			}
		}
		if err := s.walletRepo.UpdateWallet(txCtx, w); err != nil {
			return err
		}

		wallet = w
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.statsRepo.RecordStake(stake.Amount)

	// participant_id уже в логгере контекста
	log.Ctx(ctx).Debug().
		Str("round_id", req.RoundID.String()).
		Str("stake_id", stake.ID.String()).
		Str("kind", string(stake.Kind)).
		Str("amount", stake.Amount.StringFixed(2)).
		Msg("stake placed")

	return stake, wallet, nil
}
