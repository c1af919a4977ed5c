// Package memory is a transactional in-process store implementing the
// repository ports. It backs the "memory" database driver and the service tests.
//
// Transactions are serialized: Begin waits for the previous transaction to
// finish, works on a private copy of the committed state, and Commit publishes
// that copy. Reads outside a transaction only ever observe committed state.
// A goroutine holding a transaction must not call a non-transactional write
// on the same Store.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"internet-banking-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	errSQLUnsupported = errors.New("memory: raw SQL is not supported")
	errNested         = errors.New("memory: nested transactions are not supported")
	errForeignTx      = errors.New("memory: transaction does not belong to this store")
)

type state struct {
	accounts       map[uuid.UUID]domain.Account
	accountNumbers map[string]uuid.UUID
	tokens         map[string]domain.AuthToken
	transactions   map[uuid.UUID]domain.Transaction
	txOrder        []uuid.UUID
	invoices       map[uuid.UUID]domain.Invoice
	settlements    map[string]domain.Settlement
	recipients     map[uuid.UUID]domain.Recipient
	audit          []domain.AuditLog
}

func newState() *state {
	return &state{
		accounts:       make(map[uuid.UUID]domain.Account),
		accountNumbers: make(map[string]uuid.UUID),
		tokens:         make(map[string]domain.AuthToken),
		transactions:   make(map[uuid.UUID]domain.Transaction),
		invoices:       make(map[uuid.UUID]domain.Invoice),
		settlements:    make(map[string]domain.Settlement),
		recipients:     make(map[uuid.UUID]domain.Recipient),
	}
}

// clone copies the maps. Records are stored by value and never mutated in
// place, so a shallow copy is enough.
func (st *state) clone() *state {
	return &state{
		accounts:       maps.Clone(st.accounts),
		accountNumbers: maps.Clone(st.accountNumbers),
		tokens:         maps.Clone(st.tokens),
		transactions:   maps.Clone(st.transactions),
		txOrder:        slices.Clone(st.txOrder),
		invoices:       maps.Clone(st.invoices),
		settlements:    maps.Clone(st.settlements),
		recipients:     maps.Clone(st.recipients),
		audit:          slices.Clone(st.audit),
	}
}

// Store holds the committed state. It implements ports.DBTransactor.
type Store struct {
	writer    chan struct{} // held by the active transaction or autocommit write
	mu        sync.RWMutex
	committed *state
}

func NewStore() *Store {
	return &Store{
		writer:    make(chan struct{}, 1),
		committed: newState(),
	}
}

// Begin opens a transaction, waiting for any active one to finish.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()
	return &memTx{store: s, work: work}, nil
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.writer }

// read runs fn against the transaction's working copy, or against committed
// state when tx is nil.
func (s *Store) read(tx pgx.Tx, fn func(st *state)) error {
	if tx == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		fn(s.committed)
		return nil
	}
	mt, err := s.own(tx)
	if err != nil {
		return err
	}
	fn(mt.work)
	return nil
}

// write runs fn inside tx, or as a single autocommitted step when tx is nil.
// fn must validate before it mutates.
func (s *Store) write(ctx context.Context, tx pgx.Tx, fn func(st *state) error) error {
	if tx != nil {
		mt, err := s.own(tx)
		if err != nil {
			return err
		}
		return fn(mt.work)
	}

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.committed)
}

func (s *Store) own(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// HealthCheck implements ports.HealthChecker.
type HealthCheck struct{}

func (HealthCheck) Ping(context.Context) error { return nil }
func (HealthCheck) Name() string               { return "memory" }

// memTx implements pgx.Tx over a working copy of the store state.
type memTx struct {
	store *Store
	work  *state
	done  bool
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errNested }

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	t.store.committed = t.work
	t.store.mu.Unlock()
	t.store.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.work = nil
	t.store.release()
	return nil
}

func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errSQLUnsupported
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errSQLUnsupported
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errSQLUnsupported
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errSQLUnsupported
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}
func (t *memTx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errSQLUnsupported }

func paginate(n, page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return 0, 0
	}
	start := (page - 1) * pageSize
	if start > n {
		start = n
	}
	end := start + pageSize
	if end > n {
		end = n
	}
	return start, end
}
