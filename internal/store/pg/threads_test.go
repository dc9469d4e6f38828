package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hivemindhq/hivebot/internal/store"
)

// recordingConn captures every statement the store executes so the SQL
// can be asserted without a live database.
type recordingConn struct {
	mu      sync.Mutex
	queries []string
	args    [][]driver.NamedValue
}

func (c *recordingConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("unsupported") }
func (c *recordingConn) Close() error                        { return nil }
func (c *recordingConn) Begin() (driver.Tx, error)           { return nil, errors.New("unsupported") }

func (c *recordingConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	c.args = append(c.args, args)
	return driver.RowsAffected(1), nil
}

type recordingConnector struct{ conn *recordingConn }

func (c *recordingConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c *recordingConnector) Driver() driver.Driver                        { return nil }

// The degraded (no database) mode must behave as "no persistent context
// available": reads miss, writes report not-persisted, nothing errors.
func TestThreadStoreDegraded(t *testing.T) {
	s := NewThreadStore(nil)

	m, err := s.Get(context.Background(), "C1", "123.456")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m != nil {
		t.Errorf("Get = %+v, want nil", m)
	}

	if ok := s.Put(context.Background(), store.ThreadMapping{ChannelID: "C1", ThreadTS: "123.456"}); ok {
		t.Error("Put = true on degraded store, want false")
	}
}

func TestThreadStoreNilReceiver(t *testing.T) {
	var s *ThreadStore
	if m, err := s.Get(context.Background(), "C1", "1"); err != nil || m != nil {
		t.Errorf("Get on nil store = (%v, %v), want (nil, nil)", m, err)
	}
	if s.Put(context.Background(), store.ThreadMapping{}) {
		t.Error("Put on nil store = true, want false")
	}
}

// A second Put on the same (channel, thread) key must overwrite the
// workspace and knowledge-thread id, never insert a second row or merge.
func TestPutUpsertsOnThreadKey(t *testing.T) {
	conn := &recordingConn{}
	db := sql.OpenDB(&recordingConnector{conn: conn})
	defer db.Close()
	s := NewThreadStore(db)

	first := store.ThreadMapping{
		ChannelID: "C1", ThreadTS: "1000.100",
		Workspace: "billing", KnowledgeThreadID: "kt-1",
	}
	second := first
	second.Workspace = "platform"
	second.KnowledgeThreadID = "kt-2"

	if !s.Put(context.Background(), first) || !s.Put(context.Background(), second) {
		t.Fatal("Put reported not-persisted")
	}

	if len(conn.queries) != 2 {
		t.Fatalf("statements executed = %d, want 2", len(conn.queries))
	}
	q := conn.queries[1]
	if !strings.Contains(q, "ON CONFLICT (channel_id, thread_ts)") {
		t.Errorf("statement has no conflict clause on the thread key:\n%s", q)
	}
	for _, col := range []string{"EXCLUDED.workspace", "EXCLUDED.knowledge_thread_id", "EXCLUDED.accessed_at"} {
		if !strings.Contains(q, col) {
			t.Errorf("conflict update does not take %s:\n%s", col, q)
		}
	}
	if strings.Contains(q, "EXCLUDED.created_at") {
		t.Errorf("conflict update must keep the original created_at:\n%s", q)
	}

	args := conn.args[1]
	if len(args) != 5 {
		t.Fatalf("args = %d, want 5", len(args))
	}
	if args[2].Value != "platform" || args[3].Value != "kt-2" {
		t.Errorf("second Put bound (%v, %v), want the overwriting values", args[2].Value, args[3].Value)
	}
}

func TestFeedbackStoreDegraded(t *testing.T) {
	s := NewFeedbackStore(nil)
	if err := s.Add(context.Background(), store.Feedback{Reaction: "thumbsup"}); err != nil {
		t.Errorf("Add on degraded store: %v", err)
	}
}
