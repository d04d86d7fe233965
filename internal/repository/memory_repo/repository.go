package memory_repo

import (
	"context"
	"crash_backend/internal/model"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EnsureWallet - кошелёк со стартовым балансом, если его ещё нет
func (s *Store) EnsureWallet(ctx context.Context, participantID int64) error {
	return s.write(ctx, func() error {
		if _, ok := s.wallets[participantID]; ok {
			return nil
		}
		s.wallets[participantID] = model.Wallet{
			ParticipantID:         participantID,
			CashBalance:           s.startCash,
			RestrictedBalance:     s.startRestricted,
			TotalRestrictedProfit: decimal.Zero,
		}
		return nil
	})
}

// PutWallet - записывает кошелёк целиком
func (s *Store) PutWallet(w model.Wallet) {
	_ = s.write(context.Background(), func() error {
		s.wallets[w.ParticipantID] = w
		return nil
	})
}

func (s *Store) GetWallet(_ context.Context, participantID int64) (*model.Wallet, error) {
	var (
		w  model.Wallet
		ok bool
	)
	s.read(func() {
		w, ok = s.wallets[participantID]
	})
	if !ok {
		return nil, fmt.Errorf("participant %d: %w", participantID, model.ErrWalletNotFound)
	}
	return &w, nil
}

// GetWalletForUpdate - транзакции и так сериализованы, блокировка строки не нужна
func (s *Store) GetWalletForUpdate(ctx context.Context, participantID int64) (*model.Wallet, error) {
	return s.GetWallet(ctx, participantID)
}

func (s *Store) UpdateWallet(ctx context.Context, w *model.Wallet) error {
	return s.write(ctx, func() error {
		if _, ok := s.wallets[w.ParticipantID]; !ok {
			return fmt.Errorf("participant %d: %w", w.ParticipantID, model.ErrWalletNotFound)
		}
		s.wallets[w.ParticipantID] = *w
		return nil
	})
}

func (s *Store) CreateStake(ctx context.Context, st *model.Stake) error {
	return s.write(ctx, func() error {
		if _, ok := s.wallets[st.ParticipantID]; !ok {
			return fmt.Errorf("participant %d: %w", st.ParticipantID, model.ErrWalletNotFound)
		}
		if _, ok := s.rounds[st.RoundID]; !ok {
			return fmt.Errorf("stake %s: round %s is not bound", st.ID, st.RoundID)
		}
		for _, row := range s.stakes {
			if row.roundID == st.RoundID {
				return fmt.Errorf("round %s: %w", st.RoundID, model.ErrDuplicateStake)
			}
		}
		s.stakes[st.ID] = stakeRow{
			id:            st.ID,
			participantID: st.ParticipantID,
			roundID:       st.RoundID,
			amount:        st.Amount,
			kind:          st.Kind,
			protected:     st.Protected,
			outcome:       model.OutcomeOpen,
			createdAt:     st.CreatedAt,
		}
		return nil
	})
}

func (s *Store) CloseStake(ctx context.Context, stakeID uuid.UUID, outcome model.Outcome, settledAt float64) (bool, error) {
	closed := false
	err := s.write(ctx, func() error {
		row, ok := s.stakes[stakeID]
		if !ok {
			return fmt.Errorf("stake %s: %w", stakeID, model.ErrNoOpenStake)
		}
		if row.outcome != model.OutcomeOpen {
			return nil
		}
		row.outcome = outcome
		row.settledAt = &settledAt
		s.stakes[stakeID] = row
		closed = true
		return nil
	})
	return closed, err
}

// ListUnsettled - открытые ставки, итог которых уже записан в слепке раунда
func (s *Store) ListUnsettled(_ context.Context, limit uint64) ([]model.UnsettledStake, error) {
	var rows []stakeRow
	res := make([]model.UnsettledStake, 0)

	s.read(func() {
		for _, row := range s.stakes {
			if row.outcome != model.OutcomeOpen {
				continue
			}
			snap, ok := s.rounds[row.roundID]
			if !ok || snap.SnapshotAt.IsZero() || snap.StakeOutcome == nil || *snap.StakeOutcome == model.OutcomeOpen {
				continue
			}
			rows = append(rows, row)
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].createdAt.Before(rows[j].createdAt)
		})
		for _, row := range rows {
			if uint64(len(res)) >= limit {
				break
			}
			snap := s.rounds[row.roundID]
			m := 1.0
			if snap.StakeSettledAt != nil {
				m = *snap.StakeSettledAt
			}
			res = append(res, model.UnsettledStake{
				StakeID:       row.id,
				ParticipantID: row.participantID,
				RoundID:       row.roundID,
				Amount:        row.amount,
				Kind:          row.kind,
				Protected:     row.protected,
				Outcome:       *snap.StakeOutcome,
				Multiplier:    m,
			})
		}
	})

	return res, nil
}

// StakeOutcome - записанный итог ставки
func (s *Store) StakeOutcome(stakeID uuid.UUID) (model.Outcome, *float64, bool) {
	var (
		row stakeRow
		ok  bool
	)
	s.read(func() {
		row, ok = s.stakes[stakeID]
	})
	return row.outcome, row.settledAt, ok
}

func (s *Store) AppendEntry(ctx context.Context, e *model.LedgerEntry) error {
	return s.write(ctx, func() error {
		if _, ok := s.stakes[e.StakeID]; !ok {
			return fmt.Errorf("ledger entry %s: unknown stake %s", e.ID, e.StakeID)
		}
		for _, existing := range s.ledger {
			if existing.StakeID == e.StakeID && existing.Kind == e.Kind {
				return fmt.Errorf("ledger entry %s: duplicate %s for stake %s", e.ID, e.Kind, e.StakeID)
			}
		}
		s.ledger = append(s.ledger, *e)
		return nil
	})
}

func (s *Store) ListEntries(_ context.Context, participantID int64) ([]model.LedgerEntry, error) {
	res := make([]model.LedgerEntry, 0)
	s.read(func() {
		for _, e := range s.ledger {
			if e.ParticipantID == participantID {
				res = append(res, e)
			}
		}
	})
	return res, nil
}

func (s *Store) BindRound(ctx context.Context, round *model.Round, stakeID uuid.UUID) error {
	return s.write(ctx, func() error {
		open := model.OutcomeOpen
		id := stakeID
		snap, ok := s.rounds[round.ID]
		if !ok {
			snap = model.RoundSnapshot{
				RoundID:       round.ID,
				ParticipantID: round.ParticipantID,
				Status:        round.Status,
				Multiplier:    round.Multiplier,
				CrashPoint:    round.CrashPoint,
				StartedAt:     round.StartedAt,
			}
		}
		snap.StakeID = &id
		snap.StakeOutcome = &open
		s.rounds[round.ID] = snap
		return nil
	})
}

func (s *Store) SaveSnapshot(ctx context.Context, snap *model.RoundSnapshot) error {
	return s.write(ctx, func() error {
		next := *snap
		if prev, ok := s.rounds[snap.RoundID]; ok {
			if next.StakeID == nil {
				next.StakeID = prev.StakeID
			}
			if next.StakeOutcome == nil {
				next.StakeOutcome = prev.StakeOutcome
			}
		}
		s.rounds[snap.RoundID] = next
		return nil
	})
}

// Snapshot - последний сохранённый слепок раунда
func (s *Store) Snapshot(roundID uuid.UUID) (model.RoundSnapshot, bool) {
	var (
		snap model.RoundSnapshot
		ok   bool
	)
	s.read(func() {
		snap, ok = s.rounds[roundID]
	})
	return snap, ok
}
