package workspace

import (
	"context"
	"log/slog"
)

// Resolver picks the workspace for a message from four candidate sources
// in precedence order: a suggestion carried by the message (classifier
// output or an explicit directive), the per-user mapping, the per-channel
// mapping, then the configured fallback. Every candidate is checked
// against the directory; an invalid candidate is logged and skipped.
type Resolver struct {
	dir      *Directory
	users    map[string]string
	channels map[string]string
	fallback string
}

// NewResolver creates a Resolver over the given directory and static maps.
func NewResolver(dir *Directory, users, channels map[string]string, fallback string) *Resolver {
	return &Resolver{dir: dir, users: users, channels: channels, fallback: fallback}
}

// Fallback returns the configured fallback slug without validation.
func (r *Resolver) Fallback() string { return r.fallback }

// Resolve returns the workspace slug for the message, or "" when even the
// fallback is invalid. An invalid fallback is a configuration error, not a
// user error, so it is logged loudly and the caller surfaces a setup
// problem instead of querying a nonexistent workspace.
func (r *Resolver) Resolve(ctx context.Context, suggested, userID, channelID string) string {
	if suggested != "" {
		if r.dir.Valid(ctx, suggested) {
			return suggested
		}
		slog.Warn("suggested workspace is not valid, falling through",
			"workspace", suggested, "user", userID, "channel", channelID)
	}

	if ws, ok := r.users[userID]; ok {
		if r.dir.Valid(ctx, ws) {
			return ws
		}
		slog.Warn("user-mapped workspace is not valid, falling through",
			"workspace", ws, "user", userID)
	}

	if ws, ok := r.channels[channelID]; ok {
		if r.dir.Valid(ctx, ws) {
			return ws
		}
		slog.Warn("channel-mapped workspace is not valid, falling through",
			"workspace", ws, "channel", channelID)
	}

	if r.dir.Valid(ctx, r.fallback) {
		return r.fallback
	}
	slog.Error("fallback workspace is not valid, check configuration",
		"workspace", r.fallback)
	return ""
}
