package stake_repo

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/repository"
	"time"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	table            = "stakes"
	colID            = "id"
	colParticipantID = "participant_id"
	colRoundID       = "round_id"
	colAmount        = "amount"
	colKind          = "kind"
	colProtected     = "protected"
	colOutcome       = "outcome"
	colSettledAt     = "settled_at"
	colCreatedAt     = "created_at"
	colUpdatedAt     = "updated_at"

	roundsTable       = "rounds"
	colRoundStakeOut  = "stake_outcome"
	colRoundStakeAt   = "stake_settled_at"
	colRoundSnapshot  = "snapshot_at"
	colRoundPrimaryID = "id"
)

type repo struct {
	dbc    *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func NewStakeRepository(dbc *pgxpool.Pool) repository.StakeRepository {
	return &repo{
		dbc:    dbc,
		getter: trmpgx.DefaultCtxGetter,
	}
}

// CreateStake - сохраняет новую ставку со статусом open
func (r *repo) CreateStake(ctx context.Context, s *model.Stake) error {
	query := sq.Insert(table).
		Columns(colID, colParticipantID, colRoundID, colAmount, colKind, colProtected, colOutcome, colCreatedAt, colUpdatedAt).
		Values(s.ID, s.ParticipantID, s.RoundID, s.Amount, string(s.Kind), s.Protected, string(model.OutcomeOpen), s.CreatedAt, s.CreatedAt).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.getter.DefaultTrOrDB(ctx, r.dbc).Exec(ctx, sqlStr, args...)
	return err
}

// CloseStake - переводит ставку из open в итоговый статус.
// Условие outcome = 'open' делает повторный расчёт той же ставки безопасным
func (r *repo) CloseStake(ctx context.Context, stakeID uuid.UUID, outcome model.Outcome, settledAt float64) (bool, error) {
	query := sq.Update(table).
		Set(colOutcome, string(outcome)).
		Set(colSettledAt, settledAt).
		Set(colUpdatedAt, time.Now().UTC()).
		Where(sq.Eq{colID: stakeID, colOutcome: string(model.OutcomeOpen)}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	res, err := r.getter.DefaultTrOrDB(ctx, r.dbc).Exec(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() == 1, nil
}

// ListUnsettled - ставки, открытые в БД, у которых слепок раунда уже содержит итог.
// Используется сверкой после исчерпанных повторов
func (r *repo) ListUnsettled(ctx context.Context, limit uint64) ([]model.UnsettledStake, error) {
	query := sq.Select(
		"s."+colID, "s."+colParticipantID, "s."+colRoundID, "s."+colAmount,
		"s."+colKind, "s."+colProtected, "r."+colRoundStakeOut, "r."+colRoundStakeAt,
	).
		From(table + " s").
		Join(roundsTable + " r ON r." + colRoundPrimaryID + " = s." + colRoundID).
		Where(sq.Eq{"s." + colOutcome: string(model.OutcomeOpen)}).
		Where(sq.NotEq{"r." + colRoundSnapshot: nil}).
		Where(sq.Eq{"r." + colRoundStakeOut: []string{string(model.OutcomeWon), string(model.OutcomeLost)}}).
		OrderBy("s." + colCreatedAt).
		Limit(limit).
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

	var res []model.UnsettledStake
	for rows.Next() {
		var (
			u       model.UnsettledStake
			kind    string
			outcome string
			at      *float64
		)
		if err := rows.Scan(&u.StakeID, &u.ParticipantID, &u.RoundID, &u.Amount, &kind, &u.Protected, &outcome, &at); err != nil {
			return nil, err
		}
		u.Kind = model.StakeKind(kind)
		u.Outcome = model.Outcome(outcome)
		if at != nil {
			u.Multiplier = *at
		}
		res = append(res, u)
	}

	return res, rows.Err()
}
