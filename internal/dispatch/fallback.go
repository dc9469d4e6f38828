package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hivemindhq/hivebot/internal/bus"
	"github.com/hivemindhq/hivebot/internal/command"
	"github.com/hivemindhq/hivebot/internal/intent"
	"github.com/hivemindhq/hivebot/internal/knowledge"
	"github.com/hivemindhq/hivebot/internal/store"
)

const (
	setupFailedMsg = "I could not set up a knowledge context for this thread. Please try again."
	chatFailedMsg  = "The knowledge base did not answer. Please try again."
)

// structuredConfidence is the minimum classifier confidence for routing
// free text into a structured GitHub handler.
const structuredConfidence = 0.6

// runFallback handles free text: reuse or create the thread's knowledge
// context, then send the query to the knowledge backend. When the
// classifier confidently names a GitHub intent and the fields extract
// cleanly, the structured handler runs instead.
func (d *Dispatcher) runFallback(ctx context.Context, ev bus.InboundEvent, text, threadTS string, status *statusMessage) {
	if text == "" {
		status.delete(ctx)
		return
	}

	override := intent.HashTagToken(text)

	mapping, err := d.threads.Get(ctx, ev.ChannelID, threadTS)
	if err != nil {
		slog.Warn("thread mapping read failed", "channel", ev.ChannelID, "thread_ts", threadTS, "error", err)
		status.update(ctx, setupFailedMsg)
		return
	}

	if mapping != nil {
		// An explicit override directive re-homes the thread, but only
		// into a workspace the directory confirms exists.
		if override != "" && override != mapping.Workspace && d.directory.Valid(ctx, override) {
			ws, threadID, ok := d.createContext(ctx, ev, override, threadTS, status)
			if !ok {
				return
			}
			d.chat(ctx, ev, ws, threadID, text, status)
			return
		}
		d.chatMapped(ctx, ev, mapping, threadTS, text, status)
		return
	}

	// First contact for this thread: classify, maybe route structured,
	// else resolve a workspace and create a context.
	slugs, err := d.directory.Slugs(ctx)
	if err != nil {
		slog.Warn("workspace directory fetch failed during classification", "error", err)
	}
	res := d.classifier.Classify(ctx, text, d.intents, slugs)

	if d.gh != nil && isGitHubIntent(res.PrimaryIntent) && res.Confidence >= structuredConfidence {
		if m, ok := d.router.FromIntent(res.PrimaryIntent, text); ok {
			slog.Debug("free text routed to structured handler",
				"intent", res.PrimaryIntent, "confidence", res.Confidence)
			d.runStructured(ctx, ev, m, status)
			return
		}
	}

	suggested := override
	if suggested == "" {
		suggested = res.PrimaryWorkspace
	}
	resolved := d.resolver.Resolve(ctx, suggested, ev.UserID, ev.ChannelID)
	if resolved == "" {
		status.update(ctx, "No valid workspace is configured. Please check the bot setup.")
		return
	}

	ws, threadID, ok := d.createContext(ctx, ev, resolved, threadTS, status)
	if !ok {
		return
	}

	// First bot contact inside an existing Slack thread: seed the fresh
	// knowledge thread with the conversation so far.
	if ev.ThreadTS != "" {
		if preamble := d.threadPreamble(ctx, ev); preamble != "" {
			text = preamble + "\n\n" + text
		}
	}
	d.chat(ctx, ev, ws, threadID, text, status)
}

// threadPreamble renders the prior thread messages as context for the
// first knowledge query. History fetch failures just skip the preamble.
func (d *Dispatcher) threadPreamble(ctx context.Context, ev bus.InboundEvent) string {
	history, err := d.msg.FetchHistory(ctx, ev.ChannelID, ev.ThreadTS)
	if err != nil {
		slog.Warn("thread history fetch failed", "channel", ev.ChannelID, "thread_ts", ev.ThreadTS, "error", err)
		return ""
	}

	var b strings.Builder
	for _, m := range history {
		if m.TS == ev.TS || m.BotID != "" || strings.TrimSpace(m.Text) == "" {
			continue
		}
		fmt.Fprintf(&b, "<%s> %s\n", m.UserID, m.Text)
	}
	if b.Len() == 0 {
		return ""
	}
	return "Earlier in this conversation:\n" + strings.TrimSpace(b.String())
}

func (d *Dispatcher) chat(ctx context.Context, ev bus.InboundEvent, ws, threadID, text string, status *statusMessage) {
	answer, err := d.kb.Chat(ctx, ws, threadID, text)
	if err != nil {
		slog.Warn("knowledge chat failed", "workspace", ws, "thread", threadID, "error", err)
		status.update(ctx, chatFailedMsg)
		return
	}
	d.respond(ctx, ev, answer, status)
}

// chatMapped sends text into an existing mapping's knowledge thread.
// When the backend reports the thread gone, a fresh thread is created,
// the mapping is re-persisted via the upsert, and the chat retries once.
func (d *Dispatcher) chatMapped(ctx context.Context, ev bus.InboundEvent, mapping *store.ThreadMapping, threadTS, text string, status *statusMessage) {
	answer, err := d.kb.Chat(ctx, mapping.Workspace, mapping.KnowledgeThreadID, text)
	if threadLost(err) {
		slog.Warn("knowledge thread lost, recreating",
			"workspace", mapping.Workspace, "thread", mapping.KnowledgeThreadID)
		ws, threadID, ok := d.createContext(ctx, ev, mapping.Workspace, threadTS, status)
		if !ok {
			return
		}
		d.chat(ctx, ev, ws, threadID, text, status)
		return
	}
	if err != nil {
		slog.Warn("knowledge chat failed",
			"workspace", mapping.Workspace, "thread", mapping.KnowledgeThreadID, "error", err)
		status.update(ctx, chatFailedMsg)
		return
	}
	d.respond(ctx, ev, answer, status)
}

// threadLost reports whether err is the backend saying the chat thread
// no longer exists.
func threadLost(err error) bool {
	var he *knowledge.HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// createContext makes a new knowledge thread in ws and persists the
// mapping. When persistence is unavailable the context is ephemeral for
// this invocation only.
func (d *Dispatcher) createContext(ctx context.Context, ev bus.InboundEvent, ws, threadTS string, status *statusMessage) (string, string, bool) {
	id, err := d.kb.CreateThread(ctx, ws)
	if err != nil {
		slog.Warn("knowledge thread create failed", "workspace", ws, "error", err)
		status.update(ctx, setupFailedMsg)
		return "", "", false
	}

	if !d.threads.Put(ctx, store.ThreadMapping{
		ChannelID:         ev.ChannelID,
		ThreadTS:          threadTS,
		Workspace:         ws,
		KnowledgeThreadID: id,
	}) {
		slog.Debug("thread mapping not persisted, context is ephemeral",
			"channel", ev.ChannelID, "thread_ts", threadTS)
	}
	return ws, id, true
}

func isGitHubIntent(name string) bool {
	switch name {
	case command.IntentReleaseInfo, command.IntentPRReview, command.IntentIssueAnalysis, command.IntentGitHubAPI:
		return true
	}
	return false
}
