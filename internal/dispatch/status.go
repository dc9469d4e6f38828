package dispatch

import (
	"context"
	"log/slog"
)

const statusText = ":hourglass_flowing_sand: working on it..."

// statusMessage is the transient "working on it" indicator, posted
// optimistically before branching. Every exit path ends in exactly one
// terminal update or delete; when the post itself failed the handle is
// null and all later operations are silently skipped.
type statusMessage struct {
	msg     Messenger
	channel string
	ts      string // "" when the post failed
	done    bool
}

func (d *Dispatcher) postStatus(ctx context.Context, channel, threadTS string) *statusMessage {
	ts, err := d.msg.PostMessage(ctx, channel, statusText, threadTS)
	if err != nil {
		slog.Warn("status message post failed", "channel", channel, "error", err)
		ts = ""
	}
	return &statusMessage{msg: d.msg, channel: channel, ts: ts}
}

// update replaces the status text as the terminal state.
func (s *statusMessage) update(ctx context.Context, text string) {
	if s.ts == "" || s.done {
		s.done = true
		return
	}
	s.done = true
	if err := s.msg.UpdateMessage(ctx, s.channel, s.ts, text); err != nil {
		slog.Warn("status message update failed", "channel", s.channel, "error", err)
	}
}

// delete removes the indicator as the terminal state.
func (s *statusMessage) delete(ctx context.Context) {
	if s.ts == "" || s.done {
		s.done = true
		return
	}
	s.done = true
	if err := s.msg.DeleteMessage(ctx, s.channel, s.ts); err != nil {
		slog.Warn("status message delete failed", "channel", s.channel, "error", err)
	}
}

// resolve guarantees a terminal state on paths that forgot one.
func (s *statusMessage) resolve(ctx context.Context) {
	if !s.done {
		s.delete(ctx)
	}
}
