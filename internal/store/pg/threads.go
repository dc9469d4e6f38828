package pg

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/hivemindhq/hivebot/internal/store"
)

// ThreadStore implements store.Threads on Postgres. A ThreadStore built
// over a nil db is the degraded mode: every Get misses and every Put
// reports not-persisted.
type ThreadStore struct {
	db *sql.DB
}

// NewThreadStore creates a ThreadStore. db may be nil.
func NewThreadStore(db *sql.DB) *ThreadStore {
	return &ThreadStore{db: db}
}

// Get returns the mapping for (channelID, threadTS), refreshing its
// access time in the background. Touch failures are logged, not
// propagated.
func (s *ThreadStore) Get(ctx context.Context, channelID, threadTS string) (*store.ThreadMapping, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	var m store.ThreadMapping
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id, thread_ts, workspace, knowledge_thread_id, created_at, accessed_at
		 FROM thread_mappings WHERE channel_id = $1 AND thread_ts = $2`,
		channelID, threadTS,
	).Scan(&m.ChannelID, &m.ThreadTS, &m.Workspace, &m.KnowledgeThreadID, &m.CreatedAt, &m.AccessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	go s.touch(channelID, threadTS)
	return &m, nil
}

// Put upserts the mapping. A second Put on the same key overwrites the
// workspace and knowledge-thread id, which is how a mid-thread workspace
// override lands.
func (s *ThreadStore) Put(ctx context.Context, m store.ThreadMapping) bool {
	if s == nil || s.db == nil {
		return false
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thread_mappings (channel_id, thread_ts, workspace, knowledge_thread_id, created_at, accessed_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (channel_id, thread_ts)
		 DO UPDATE SET workspace = EXCLUDED.workspace,
		               knowledge_thread_id = EXCLUDED.knowledge_thread_id,
		               accessed_at = EXCLUDED.accessed_at`,
		m.ChannelID, m.ThreadTS, m.Workspace, m.KnowledgeThreadID, now,
	)
	if err != nil {
		slog.Error("thread mapping upsert failed",
			"channel", m.ChannelID, "thread_ts", m.ThreadTS, "error", err)
		return false
	}
	return true
}

func (s *ThreadStore) touch(channelID, threadTS string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`UPDATE thread_mappings SET accessed_at = NOW() WHERE channel_id = $1 AND thread_ts = $2`,
		channelID, threadTS)
	if err != nil {
		slog.Warn("thread mapping access-time refresh failed",
			"channel", channelID, "thread_ts", threadTS, "error", err)
	}
}
