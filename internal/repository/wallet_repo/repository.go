package wallet_repo

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/repository"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	table                    = "wallets"
	colParticipantID         = "participant_id"
	colCashBalance           = "cash_balance"
	colRestrictedBalance     = "restricted_balance"
	colDailyEntitlements     = "daily_entitlements"
	colEntitlementsResetAt   = "entitlements_reset_at"
	colTotalRestrictedProfit = "total_restricted_profit"
)

var columns = []string{
	colParticipantID,
	colCashBalance,
	colRestrictedBalance,
	colDailyEntitlements,
	colEntitlementsResetAt,
	colTotalRestrictedProfit,
}

type repo struct {
	dbc    *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func NewWalletRepository(dbc *pgxpool.Pool) repository.WalletRepository {
	return &repo{
		dbc:    dbc,
		getter: trmpgx.DefaultCtxGetter,
	}
}

// EnsureWallet - создаёт пустой кошелёк участника, если его ещё нет
func (r *repo) EnsureWallet(ctx context.Context, participantID int64) error {
	query := sq.Insert(table).
		Columns(colParticipantID).
		Values(participantID).
		Suffix("ON CONFLICT (" + colParticipantID + ") DO NOTHING").
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.getter.DefaultTrOrDB(ctx, r.dbc).Exec(ctx, sqlStr, args...)
	return err
}

// GetWallet - кошелёк участника без блокировки строки
func (r *repo) GetWallet(ctx context.Context, participantID int64) (*model.Wallet, error) {
	return r.get(ctx, participantID, false)
}

// GetWalletForUpdate - кошелёк участника с блокировкой строки до конца транзакции.
// Вызывать только внутри txManager.Do
func (r *repo) GetWalletForUpdate(ctx context.Context, participantID int64) (*model.Wallet, error) {
	return r.get(ctx, participantID, true)
}

func (r *repo) get(ctx context.Context, participantID int64, forUpdate bool) (*model.Wallet, error) {
	query := sq.Select(columns...).
		From(table).
		Where(sq.Eq{colParticipantID: participantID}).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var w model.Wallet
	err = r.getter.DefaultTrOrDB(ctx, r.dbc).QueryRow(ctx, sqlStr, args...).Scan(
		&w.ParticipantID,
		&w.CashBalance,
		&w.RestrictedBalance,
		&w.DailyEntitlements,
		&w.EntitlementsResetAt,
		&w.TotalRestrictedProfit,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("participant %d: %w", participantID, model.ErrWalletNotFound)
		}
		return nil, err
	}

	return &w, nil
}

// UpdateWallet - сохраняет все изменяемые поля кошелька
func (r *repo) UpdateWallet(ctx context.Context, w *model.Wallet) error {
	query := sq.Update(table).
		Set(colCashBalance, w.CashBalance).
		Set(colRestrictedBalance, w.RestrictedBalance).
		Set(colDailyEntitlements, w.DailyEntitlements).
		Set(colEntitlementsResetAt, w.EntitlementsResetAt).
		Set(colTotalRestrictedProfit, w.TotalRestrictedProfit).
		Where(sq.Eq{colParticipantID: w.ParticipantID}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	res, err := r.getter.DefaultTrOrDB(ctx, r.dbc).Exec(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("participant %d: %w", w.ParticipantID, model.ErrWalletNotFound)
	}

	return nil
}
