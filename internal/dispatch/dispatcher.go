// Package dispatch runs the per-event pipeline: dedupe, filter,
// structured-command attempt, and the knowledge-base fallback path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hivemindhq/hivebot/internal/bus"
	"github.com/hivemindhq/hivebot/internal/command"
	"github.com/hivemindhq/hivebot/internal/config"
	"github.com/hivemindhq/hivebot/internal/github"
	"github.com/hivemindhq/hivebot/internal/intent"
	"github.com/hivemindhq/hivebot/internal/slackio"
	"github.com/hivemindhq/hivebot/internal/store"
	"github.com/hivemindhq/hivebot/internal/workspace"
)

var tracer = otel.Tracer("github.com/hivemindhq/hivebot/internal/dispatch")

// Messenger is the outbound Slack surface the pipeline needs.
type Messenger interface {
	PostMessage(ctx context.Context, channel, text, threadTS string) (string, error)
	UpdateMessage(ctx context.Context, channel, ts, text string) error
	DeleteMessage(ctx context.Context, channel, ts string) error
	PostChunked(ctx context.Context, channel, threadTS, text string) error
	LastBotMessageTS(ctx context.Context, channel, botUserID string) (string, error)
	FetchHistory(ctx context.Context, channel, threadTS string) ([]slackio.HistoryMessage, error)
}

// Deduper is the set-if-not-exists dedupe contract.
type Deduper interface {
	SetIfNotExists(ctx context.Context, key string, ttl time.Duration) bool
}

// GitHub is the structured-command client contract. A nil GitHub means
// the integration is unconfigured.
type GitHub interface {
	GetLatestRelease(ctx context.Context, owner, repo string) (*github.Release, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error)
	GetPullRequestForReview(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	CallGenericAPI(ctx context.Context, method, endpoint string, params map[string]string) (string, error)
}

// Knowledge is the knowledge-backend contract for the fallback path.
type Knowledge interface {
	CreateThread(ctx context.Context, workspace string) (string, error)
	Chat(ctx context.Context, workspace, threadID, text string) (string, error)
}

// Dispatcher wires the pipeline's collaborators together.
type Dispatcher struct {
	router     *command.Router
	classifier intent.Classifier
	resolver   *workspace.Resolver
	directory  *workspace.Directory
	threads    store.Threads
	feedback   store.FeedbackLog
	dedupe     Deduper
	gh         GitHub
	kb         Knowledge
	msg        Messenger

	intents   []string
	dedupeTTL time.Duration
	botUserID func() string
}

// Options carries the Dispatcher's collaborators.
type Options struct {
	Router     *command.Router
	Classifier intent.Classifier
	Resolver   *workspace.Resolver
	Directory  *workspace.Directory
	Threads    store.Threads
	Feedback   store.FeedbackLog
	Dedupe     Deduper
	GitHub     GitHub
	Knowledge  Knowledge
	Messenger  Messenger

	Classifiers config.ClassifierConfig
	DedupeTTL   time.Duration
	BotUserID   func() string
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	intents := make([]string, 0, len(opts.Classifiers.Intents))
	for _, spec := range opts.Classifiers.Intents {
		intents = append(intents, spec.Name)
	}
	botUserID := opts.BotUserID
	if botUserID == nil {
		botUserID = func() string { return "" }
	}
	return &Dispatcher{
		router:     opts.Router,
		classifier: opts.Classifier,
		resolver:   opts.Resolver,
		directory:  opts.Directory,
		threads:    opts.Threads,
		feedback:   opts.Feedback,
		dedupe:     opts.Dedupe,
		gh:         opts.GitHub,
		kb:         opts.Knowledge,
		msg:        opts.Messenger,
		intents:    intents,
		dedupeTTL:  opts.DedupeTTL,
		botUserID:  botUserID,
	}
}

// Run consumes events from the bus until ctx is done. Each event is
// dispatched on its own goroutine; events for the same thread may run
// concurrently, converging only at the thread-mapping upsert.
func (d *Dispatcher) Run(ctx context.Context, b *bus.EventBus) {
	go func() {
		for {
			ev, ok := b.ConsumeFeedback(ctx)
			if !ok {
				return
			}
			d.HandleFeedback(ctx, ev)
		}
	}()

	for {
		ev, ok := b.ConsumeEvent(ctx)
		if !ok {
			return
		}
		go d.HandleEvent(ctx, ev)
	}
}

// HandleEvent runs the full pipeline for one inbound event. It never
// returns an error: every failure becomes a user-visible message, and a
// panic in a handler is caught so one bad event cannot take the process
// down.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev bus.InboundEvent) {
	ctx, span := tracer.Start(ctx, "dispatch.handle_event",
		trace.WithAttributes(
			attribute.String("slack.event_kind", string(ev.Kind)),
			attribute.String("slack.channel_id", ev.ChannelID),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch panic", "panic", r, "channel", ev.ChannelID, "ts", ev.TS)
			span.RecordError(fmt.Errorf("panic: %v", r))
			span.SetStatus(codes.Error, "dispatch panic")
		}
	}()

	if !d.dedupe.SetIfNotExists(ctx, dedupeKey(ev), d.dedupeTTL) {
		slog.Debug("duplicate event dropped", "kind", ev.Kind, "channel", ev.ChannelID, "ts", ev.TS)
		return
	}

	if d.shouldDrop(ev) {
		return
	}

	text := cleanText(ev)
	threadTS := threadRoot(ev)

	status := d.postStatus(ctx, ev.ChannelID, threadTS)
	defer status.resolve(ctx)

	match, err := d.matchCommand(ev, text)
	var usage *command.UsageError
	if errors.As(err, &usage) {
		status.update(ctx, usage.Error())
		return
	}

	if match != nil {
		d.runStructured(ctx, ev, match, status)
		return
	}

	d.runFallback(ctx, ev, text, threadTS, status)
}

// HandleFeedback appends a reaction on a bot message to the feedback log.
func (d *Dispatcher) HandleFeedback(ctx context.Context, ev bus.FeedbackEvent) {
	if d.feedback == nil {
		return
	}
	err := d.feedback.Add(ctx, store.Feedback{
		ChannelID: ev.ChannelID,
		UserID:    ev.UserID,
		MessageTS: ev.MessageTS,
		Reaction:  ev.Reaction,
		Removed:   ev.Removed,
	})
	if err != nil {
		slog.Warn("feedback record write failed", "channel", ev.ChannelID, "error", err)
	}
}

func (d *Dispatcher) matchCommand(ev bus.InboundEvent, text string) (command.Match, error) {
	if ev.Kind == bus.KindSlash {
		return d.router.MatchSlash(ev.Command, ev.Text)
	}
	return d.router.MatchMessage(text)
}

// shouldDrop filters out the bot's own messages and unsupported
// subtypes. A message that mentions the bot also arrives as a separate
// app_mention event, so the message-kind copy is dropped to keep the
// answer single.
func (d *Dispatcher) shouldDrop(ev bus.InboundEvent) bool {
	if ev.BotID != "" {
		return true
	}
	id := d.botUserID()
	if id != "" && ev.UserID == id {
		return true
	}
	if ev.Kind == bus.KindMessage && id != "" && strings.Contains(ev.Text, "<@"+id+">") {
		slog.Debug("mention-bearing message dropped, app_mention copy handles it",
			"channel", ev.ChannelID, "ts", ev.TS)
		return true
	}
	if ev.Subtype != "" && ev.Subtype != "thread_broadcast" {
		slog.Debug("unsupported message subtype dropped", "subtype", ev.Subtype)
		return true
	}
	return false
}

// dedupeKey prefers the provider-supplied event id and falls back to a
// timestamp-based identity.
func dedupeKey(ev bus.InboundEvent) string {
	if ev.EventID != "" {
		return "hivebot:dedupe:" + ev.EventID
	}
	return "hivebot:dedupe:" + string(ev.Kind) + ":" + ev.ChannelID + ":" + ev.TS
}

// threadRoot returns the thread the reply should land in. A top-level
// message starts its own thread.
func threadRoot(ev bus.InboundEvent) string {
	if ev.ThreadTS != "" {
		return ev.ThreadTS
	}
	return ev.TS
}

// cleanText strips the leading @-mention from app-mention events so the
// command grammar sees the bare text.
func cleanText(ev bus.InboundEvent) string {
	text := ev.Text
	if ev.Kind == bus.KindAppMention {
		if strings.HasPrefix(text, "<@") {
			if i := strings.Index(text, ">"); i > 0 {
				text = text[i+1:]
			}
		}
	}
	return strings.TrimSpace(text)
}
