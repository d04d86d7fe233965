package ledger_repo

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	table            = "ledger_entries"
	colID            = "id"
	colParticipantID = "participant_id"
	colStakeID       = "stake_id"
	colRoundID       = "round_id"
	colKind          = "kind"
	colAmount        = "amount"
	colForfeited     = "forfeited"
	colBalanceBefore = "balance_before"
	colBalanceAfter  = "balance_after"
	colCreatedAt     = "created_at"
	colSeq           = "seq"
)

type repo struct {
	dbc    *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func NewLedgerRepository(dbc *pgxpool.Pool) repository.LedgerRepository {
	return &repo{
		dbc:    dbc,
		getter: trmpgx.DefaultCtxGetter,
	}
}

// AppendEntry - добавляет запись в журнал. Записи никогда не изменяются и не удаляются
func (r *repo) AppendEntry(ctx context.Context, e *model.LedgerEntry) error {
	query := sq.Insert(table).
		Columns(colID, colParticipantID, colStakeID, colRoundID, colKind, colAmount, colForfeited, colBalanceBefore, colBalanceAfter, colCreatedAt).
		Values(e.ID, e.ParticipantID, e.StakeID, e.RoundID, string(e.Kind), e.Amount, e.Forfeited, e.BalanceBefore, e.BalanceAfter, e.CreatedAt).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.getter.DefaultTrOrDB(ctx, r.dbc).Exec(ctx, sqlStr, args...)
	return err
}

// ListEntries - журнал участника в порядке добавления
func (r *repo) ListEntries(ctx context.Context, participantID int64) ([]model.LedgerEntry, error) {
	query := sq.Select(colID, colParticipantID, colStakeID, colRoundID, colKind, colAmount, colForfeited, colBalanceBefore, colBalanceAfter, colCreatedAt).
		From(table).
		Where(sq.Eq{colParticipantID: participantID}).
		OrderBy(colSeq).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.getter.DefaultTrOrDB(ctx, r.dbc).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var (
			e    model.LedgerEntry
			kind string
		)
		err := rows.Scan(&e.ID, &e.ParticipantID, &e.StakeID, &e.RoundID, &kind, &e.Amount, &e.Forfeited, &e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.Kind = model.LedgerKind(kind)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
