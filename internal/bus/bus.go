package bus

import "context"

// EventKind discriminates the inbound unit of work.
type EventKind string

const (
	KindMessage    EventKind = "message"
	KindAppMention EventKind = "app_mention"
	KindSlash      EventKind = "slash"
)

// InboundEvent represents one unit of work received from Slack.
type InboundEvent struct {
	Kind      EventKind `json:"kind"`
	EventID   string    `json:"event_id,omitempty"` // provider-supplied id, may be empty
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	TS        string    `json:"ts"`                  // message timestamp
	ThreadTS  string    `json:"thread_ts,omitempty"` // thread root, empty for top-level messages
	BotID     string    `json:"bot_id,omitempty"`
	Subtype   string    `json:"subtype,omitempty"`

	// Slash-command fields (Kind == KindSlash).
	Command string `json:"command,omitempty"`
}

// FeedbackEvent is an emoji reaction on one of the bot's messages.
type FeedbackEvent struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	MessageTS string `json:"message_ts"`
	Reaction  string `json:"reaction"`
	Removed   bool   `json:"removed,omitempty"`
}

// EventBus routes inbound Slack events from the channel to the dispatcher.
// Buffered so a slow dispatch does not block the socket read loop.
type EventBus struct {
	events   chan InboundEvent
	feedback chan FeedbackEvent
}

// New creates an EventBus with default buffer sizes.
func New() *EventBus {
	return &EventBus{
		events:   make(chan InboundEvent, 256),
		feedback: make(chan FeedbackEvent, 64),
	}
}

// PublishEvent enqueues an inbound event. Drops the event when the buffer
// is full rather than blocking the socket loop; the caller logs the drop.
func (b *EventBus) PublishEvent(ev InboundEvent) bool {
	select {
	case b.events <- ev:
		return true
	default:
		return false
	}
}

// ConsumeEvent blocks until an event is available or ctx is done.
func (b *EventBus) ConsumeEvent(ctx context.Context) (InboundEvent, bool) {
	select {
	case <-ctx.Done():
		return InboundEvent{}, false
	case ev := <-b.events:
		return ev, true
	}
}

// PublishFeedback enqueues a reaction event, dropping on a full buffer.
func (b *EventBus) PublishFeedback(ev FeedbackEvent) bool {
	select {
	case b.feedback <- ev:
		return true
	default:
		return false
	}
}

// ConsumeFeedback blocks until a feedback event is available or ctx is done.
func (b *EventBus) ConsumeFeedback(ctx context.Context) (FeedbackEvent, bool) {
	select {
	case <-ctx.Done():
		return FeedbackEvent{}, false
	case ev := <-b.feedback:
		return ev, true
	}
}
