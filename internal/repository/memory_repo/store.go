package memory_repo

import (
	"context"
	"crash_backend/internal/model"
	"crash_backend/internal/repository"
	"sync"
	"time"

	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store Хранилище в памяти с теми же контрактами, что и у Postgres репозиториев.
// Используется для локального запуска без БД и в тестах сервисов.
// Транзакции сериализуются, при ошибке состояние откатывается к копии
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	wallets map[int64]model.Wallet
	stakes  map[uuid.UUID]stakeRow
	rounds  map[uuid.UUID]model.RoundSnapshot
	ledger  []model.LedgerEntry

	startCash       decimal.Decimal
	startRestricted decimal.Decimal
}

var (
	_ repository.WalletRepository = (*Store)(nil)
	_ repository.StakeRepository  = (*Store)(nil)
	_ repository.LedgerRepository = (*Store)(nil)
	_ repository.RoundRepository  = (*Store)(nil)
)

type stakeRow struct {
	id            uuid.UUID
	participantID int64
	roundID       uuid.UUID
	amount        decimal.Decimal
	kind          model.StakeKind
	protected     bool
	outcome       model.Outcome
	settledAt     *float64
	createdAt     time.Time
}

type Option func(*Store)

// WithStartingBalance Баланс нового кошелька
func WithStartingBalance(cash, restricted decimal.Decimal) Option {
	return func(s *Store) {
		s.startCash = cash
		s.startRestricted = restricted
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		wallets:         make(map[int64]model.Wallet),
		stakes:          make(map[uuid.UUID]stakeRow),
		rounds:          make(map[uuid.UUID]model.RoundSnapshot),
		startCash:       decimal.Zero,
		startRestricted: decimal.Zero,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type txKey struct{}

type txManager struct {
	s *Store
}

// TxManager Менеджер транзакций поверх хранилища
func (s *Store) TxManager() trm.Manager {
	return &txManager{s: s}
}

func (m *txManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.DoWithSettings(ctx, nil, fn)
}

func (m *txManager) DoWithSettings(ctx context.Context, _ trm.Settings, fn func(ctx context.Context) error) error {
	// Вложенный вызов выполняется в уже открытой транзакции
	if inTx(ctx) {
		return fn(ctx)
	}

	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	backup := m.s.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.s.restore(backup)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// write Изменение вне транзакции не должно пересекаться с откатом чужой транзакции
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) read(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

type state struct {
	wallets map[int64]model.Wallet
	stakes  map[uuid.UUID]stakeRow
	rounds  map[uuid.UUID]model.RoundSnapshot
	ledger  []model.LedgerEntry
}

func (s *Store) clone() state {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := state{
		wallets: make(map[int64]model.Wallet, len(s.wallets)),
		stakes:  make(map[uuid.UUID]stakeRow, len(s.stakes)),
		rounds:  make(map[uuid.UUID]model.RoundSnapshot, len(s.rounds)),
		ledger:  make([]model.LedgerEntry, len(s.ledger)),
	}
	for k, v := range s.wallets {
		st.wallets[k] = v
	}
	for k, v := range s.stakes {
		st.stakes[k] = v
	}
	for k, v := range s.rounds {
		st.rounds[k] = v
	}
	copy(st.ledger, s.ledger)
	return st
}

func (s *Store) restore(st state) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallets = st.wallets
	s.stakes = st.stakes
	s.rounds = st.rounds
	s.ledger = st.ledger
}
