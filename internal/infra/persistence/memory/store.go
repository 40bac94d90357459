package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tissuecore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Persister durably writes a candidate state before it becomes visible. A
// persister error aborts the commit and the in-memory state is left unchanged.
type Persister func(ctx context.Context, snapshot *Snapshot) error

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithPersister installs a durable write hook run inside the commit.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persist = p }
}

// WithIDGenerator overrides record id generation. Tests use it for stable ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.idFn = gen
		}
	}
}

// Store is an in-memory implementation of the persistence interfaces. Each
// transaction works on a copy of the state that replaces the live state only
// once rules pass and the persister (if any) succeeds. Transactions are
// serialised by the store mutex.
type Store struct {
	mu      sync.RWMutex
	state   Snapshot
	engine  *domain.RulesEngine
	nowFn   func() time.Time
	idFn    func() string
	persist Persister
}

// NewStore constructs an empty store.
func NewStore(engine *domain.RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newSnapshot(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) newID() string { return s.idFn() }

// RulesEngine exposes the engine evaluated at commit time.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.engine }

// NowFunc exposes the store clock.
func (s *Store) NowFunc() func() time.Time { return s.nowFn }

// ExportState returns a deep copy of the live state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// ImportState replaces the live state with a deep copy of snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = snapshot.clone()
}

// RunInTransaction executes fn against a copy of the state. When fn returns
// an error, a rule blocks, or the persister fails, nothing fn did is kept.
// Non-blocking violations are returned in the result of a successful commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	tx := &transaction{
		reader: reader{state: &working},
		store:  s,
		now:    s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}
	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, transactionView{reader{state: &working}}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}
	if s.persist != nil {
		if err := s.persist(ctx, &working); err != nil {
			return domain.Result{}, err
		}
	}
	s.state = working
	return result, nil
}

// View executes fn against a read-only copy of the live state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(transactionView{reader{state: &snapshot}})
}
