package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"tissuecore/pkg/domain"
)

// stateConn is a database/sql driver connection that understands only the
// statements the store issues against the state table.
type stateConn struct {
	mu       sync.Mutex
	buckets  map[string][]byte
	execs    []string
	failPing bool
	failExec bool
}

var stubSeq atomic.Int64

func newStubDB(conn *stateConn) *sql.DB {
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stateDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db
}

type stateDriver struct{ conn *stateConn }

func (d *stateDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stateConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stateConn) Close() error                        { return nil }
func (c *stateConn) Begin() (driver.Tx, error)           { return stateTx{}, nil }

func (c *stateConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stateTx{}, nil
}

func (c *stateConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stateConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	if c.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	if strings.HasPrefix(strings.TrimSpace(query), "INSERT INTO state") {
		if c.buckets == nil {
			c.buckets = make(map[string][]byte)
		}
		c.buckets[args[0].Value.(string)] = args[1].Value.([]byte)
	}
	return driver.RowsAffected(1), nil
}

func (c *stateConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.buckets))
	for name := range c.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := &stateRows{}
	for _, name := range names {
		rows.rows = append(rows.rows, []driver.Value{name, c.buckets[name]})
	}
	return rows, nil
}

type stateTx struct{}

func (stateTx) Commit() error   { return nil }
func (stateTx) Rollback() error { return nil }

type stateRows struct {
	rows [][]driver.Value
	idx  int
}

func (r *stateRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stateRows) Close() error      { return nil }

func (r *stateRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func openStub(t *testing.T, conn *stateConn) *Store {
	t.Helper()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Errorf("driver = %q, want pgx", driverName)
		}
		return newStubDB(conn), nil
	})
	defer restore()
	store, err := NewStore(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func wantErrContaining(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil || !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error containing %q, got %v", want, err)
	}
}

func TestNewStoreCreatesStateTable(t *testing.T) {
	conn := &stateConn{}
	openStub(t, conn)
	if len(conn.execs) == 0 || !strings.Contains(conn.execs[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("state table not created: %q", conn.execs)
	}
}

func TestCommittedStateReloads(t *testing.T) {
	conn := &stateConn{}
	store := openStub(t, conn)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateWork(domain.Work{WorkNumber: "SGP1"})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if _, ok := conn.buckets["works"]; !ok {
		t.Fatalf("works bucket not written")
	}

	reopened := openStub(t, conn)
	err = reopened.View(context.Background(), func(v domain.TransactionView) error {
		w, ok := v.FindWork("sgp1")
		if !ok {
			t.Fatalf("work not reloaded")
		}
		if w.Status != domain.WorkActive {
			t.Fatalf("status = %s", w.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestPersistFailureKeepsPreviousState(t *testing.T) {
	conn := &stateConn{}
	store := openStub(t, conn)
	conn.failExec = true
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateWork(domain.Work{WorkNumber: "SGP2"})
		return err
	})
	wantErrContaining(t, err, "upsert")
	if works := store.ExportState().Works; len(works) != 0 {
		t.Fatalf("memory kept works after failed persist: %+v", works)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	conn := &stateConn{failPing: true}
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return newStubDB(conn), nil })
	defer restore()
	_, err := NewStore(context.Background(), "postgres://x", nil)
	wantErrContaining(t, err, "ping postgres")
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, fmt.Errorf("no driver") })
	defer restore()
	_, err := NewStore(context.Background(), "", nil)
	wantErrContaining(t, err, "open postgres")
}
