package slackio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/hivemindhq/hivebot/internal/bus"
	"github.com/hivemindhq/hivebot/internal/config"
)

// Gateway runs the Socket Mode connection and translates Slack events
// into bus events. It does no business logic; filtering and dispatch
// happen on the consumer side.
type Gateway struct {
	api       *slack.Client
	sm        *socketmode.Client
	bus       *bus.EventBus
	botUserID string
}

// NewGateway validates tokens and builds the Socket Mode client.
func NewGateway(cfg config.SlackConfig, b *bus.EventBus) (*Gateway, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("slack app token is required for socket mode")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("slack app token must start with xapp-")
	}

	api := slack.New(
		cfg.BotToken,
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	)
	sm := socketmode.New(api, socketmode.OptionDebug(cfg.Debug))

	return &Gateway{api: api, sm: sm, bus: b}, nil
}

// API returns the underlying Slack client for the Messenger.
func (g *Gateway) API() *slack.Client { return g.api }

// BotUserID returns the bot's own user id, known after Run has
// authenticated.
func (g *Gateway) BotUserID() string { return g.botUserID }

// Run authenticates, then pumps Socket Mode events onto the bus until
// ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	auth, err := g.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	g.botUserID = auth.UserID
	slog.Info("slack authenticated", "bot_user", auth.User, "bot_user_id", auth.UserID)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-g.sm.Events:
				if !ok {
					return
				}
				g.handle(evt)
			}
		}
	}()

	return g.sm.RunContext(ctx)
}

func (g *Gateway) handle(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Info("slack socket connecting")
	case socketmode.EventTypeConnected:
		slog.Info("slack socket connected")
	case socketmode.EventTypeConnectionError:
		slog.Error("slack socket connection error", "error", evt.Data)

	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		g.sm.Ack(*evt.Request)
		g.handleEventsAPI(apiEvent)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		g.sm.Ack(*evt.Request)
		g.publish(bus.InboundEvent{
			Kind:      bus.KindSlash,
			EventID:   cmd.TriggerID,
			ChannelID: cmd.ChannelID,
			UserID:    cmd.UserID,
			Text:      cmd.Text,
			Command:   cmd.Command,
		})
	}
}

func (g *Gateway) handleEventsAPI(apiEvent slackevents.EventsAPIEvent) {
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		g.publish(bus.InboundEvent{
			Kind:      bus.KindMessage,
			EventID:   ev.ClientMsgID,
			ChannelID: ev.Channel,
			UserID:    ev.User,
			Text:      ev.Text,
			TS:        ev.TimeStamp,
			ThreadTS:  ev.ThreadTimeStamp,
			BotID:     ev.BotID,
			Subtype:   ev.SubType,
		})

	case *slackevents.AppMentionEvent:
		g.publish(bus.InboundEvent{
			Kind:      bus.KindAppMention,
			ChannelID: ev.Channel,
			UserID:    ev.User,
			Text:      ev.Text,
			TS:        ev.TimeStamp,
			ThreadTS:  ev.ThreadTimeStamp,
			BotID:     ev.BotID,
		})

	case *slackevents.ReactionAddedEvent:
		g.publishFeedback(bus.FeedbackEvent{
			ChannelID: ev.Item.Channel,
			UserID:    ev.User,
			MessageTS: ev.Item.Timestamp,
			Reaction:  ev.Reaction,
		})

	case *slackevents.ReactionRemovedEvent:
		g.publishFeedback(bus.FeedbackEvent{
			ChannelID: ev.Item.Channel,
			UserID:    ev.User,
			MessageTS: ev.Item.Timestamp,
			Reaction:  ev.Reaction,
			Removed:   true,
		})
	}
}

func (g *Gateway) publish(ev bus.InboundEvent) {
	if !g.bus.PublishEvent(ev) {
		slog.Warn("inbound event dropped, bus full",
			"kind", ev.Kind, "channel", ev.ChannelID, "ts", ev.TS)
	}
}

func (g *Gateway) publishFeedback(ev bus.FeedbackEvent) {
	if !g.bus.PublishFeedback(ev) {
		slog.Warn("feedback event dropped, bus full",
			"channel", ev.ChannelID, "message_ts", ev.MessageTS)
	}
}
