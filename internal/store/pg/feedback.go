package pg

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/hivemindhq/hivebot/internal/store"
)

// FeedbackStore implements store.FeedbackLog on Postgres, append-only.
type FeedbackStore struct {
	db *sql.DB
}

// NewFeedbackStore creates a FeedbackStore. db may be nil, in which case
// records are dropped.
func NewFeedbackStore(db *sql.DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

// Add appends one feedback record.
func (s *FeedbackStore) Add(ctx context.Context, f store.Feedback) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, channel_id, user_id, message_ts, reaction, removed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		uuid.Must(uuid.NewV7()), f.ChannelID, f.UserID, f.MessageTS, f.Reaction, f.Removed,
	)
	return err
}
