// Package store defines the persistent-state contracts for thread
// context and feedback records.
package store

import (
	"context"
	"time"
)

// ThreadMapping links one Slack thread to its knowledge-backend context.
// Keyed by (ChannelID, ThreadTS); one row per thread for its lifetime
// unless overwritten by a workspace-override directive.
type ThreadMapping struct {
	ChannelID         string
	ThreadTS          string
	Workspace         string
	KnowledgeThreadID string
	CreatedAt         time.Time
	AccessedAt        time.Time
}

// Feedback is one emoji reaction on a bot message, appended as-is.
type Feedback struct {
	ChannelID string
	UserID    string
	MessageTS string
	Reaction  string
	Removed   bool
	CreatedAt time.Time
}

// Threads persists thread mappings. Implementations degrade when the
// backing store is unconfigured: Get returns (nil, nil) and Put returns
// false, which callers treat as "no persistent context available".
type Threads interface {
	// Get returns the mapping for (channelID, threadTS) or nil when none
	// exists. Reads refresh the access time best-effort.
	Get(ctx context.Context, channelID, threadTS string) (*ThreadMapping, error)
	// Put upserts the mapping and reports whether it was persisted.
	Put(ctx context.Context, m ThreadMapping) bool
}

// FeedbackLog appends feedback records.
type FeedbackLog interface {
	Add(ctx context.Context, f Feedback) error
}
