package round_repo

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	table            = "rounds"
	colID            = "id"
	colParticipantID = "participant_id"
	colStatus        = "status"
	colMultiplier    = "multiplier"
	colCrashPoint    = "crash_point"
	colStartedAt     = "started_at"
	colFlyingAt      = "flying_at"
	colCrashedAt     = "crashed_at"
	colStakeID       = "stake_id"
	colStakeOutcome  = "stake_outcome"
	colStakeSettled  = "stake_settled_at"
	colSnapshotAt    = "snapshot_at"
)

type repo struct {
	dbc    *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func NewRoundRepository(dbc *pgxpool.Pool) repository.RoundRepository {
	return &repo{
		dbc:    dbc,
		getter: trmpgx.DefaultCtxGetter,
	}
}

// BindRound - создаёт запись раунда и привязывает к ней ставку.
// Выполняется в транзакции размещения ставки
func (r *repo) BindRound(ctx context.Context, round *model.Round, stakeID uuid.UUID) error {
	query := sq.Insert(table).
		Columns(colID, colParticipantID, colStatus, colMultiplier, colCrashPoint, colStartedAt, colStakeID, colStakeOutcome).
		Values(round.ID, round.ParticipantID, string(round.Status), round.Multiplier, round.CrashPoint, round.StartedAt, stakeID, string(model.OutcomeOpen)).
		Suffix("ON CONFLICT (" + colID + ") DO UPDATE SET " + colStakeID + " = EXCLUDED." + colStakeID +
			", " + colStakeOutcome + " = EXCLUDED." + colStakeOutcome).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.getter.DefaultTrOrDB(ctx, r.dbc).Exec(ctx, sqlStr, args...)
	return err
}

// SaveSnapshot - сохраняет слепок раунда. Повторная запись того же раунда перезаписывает слепок
func (r *repo) SaveSnapshot(ctx context.Context, snap *model.RoundSnapshot) error {
	var outcome *string
	if snap.StakeOutcome != nil {
		o := string(*snap.StakeOutcome)
		outcome = &o
	}

	query := sq.Insert(table).
		Columns(colID, colParticipantID, colStatus, colMultiplier, colCrashPoint, colStartedAt, colFlyingAt, colCrashedAt,
			colStakeID, colStakeOutcome, colStakeSettled, colSnapshotAt).
		Values(snap.RoundID, snap.ParticipantID, string(snap.Status), snap.Multiplier, snap.CrashPoint, snap.StartedAt,
			snap.FlyingAt, snap.CrashedAt, snap.StakeID, outcome, snap.StakeSettledAt, snap.SnapshotAt).
		Suffix(upsertSnapshot).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.getter.DefaultTrOrDB(ctx, r.dbc).Exec(ctx, sqlStr, args...)
	return err
}

const upsertSnapshot = "ON CONFLICT (" + colID + ") DO UPDATE SET " +
	colStatus + " = EXCLUDED." + colStatus + ", " +
	colMultiplier + " = EXCLUDED." + colMultiplier + ", " +
	colFlyingAt + " = EXCLUDED." + colFlyingAt + ", " +
	colCrashedAt + " = EXCLUDED." + colCrashedAt + ", " +
	colStakeID + " = COALESCE(EXCLUDED." + colStakeID + ", " + table + "." + colStakeID + "), " +
	colStakeOutcome + " = COALESCE(EXCLUDED." + colStakeOutcome + ", " + table + "." + colStakeOutcome + "), " +
	colStakeSettled + " = EXCLUDED." + colStakeSettled + ", " +
	colSnapshotAt + " = EXCLUDED." + colSnapshotAt
