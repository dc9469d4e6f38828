// Package slackio connects the bot to Slack: the Socket Mode event
// gateway inbound, and the message-posting surface outbound.
package slackio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

// maxChunkLen keeps each posted chunk under Slack's message size limit
// with headroom for formatting.
const maxChunkLen = 3800

// maxHistoryPages bounds thread-history pagination.
const maxHistoryPages = 5

// Messenger posts, updates, and deletes messages. Chunked posts are
// paced through a shared rate limiter so long answers respect Slack's
// posting limits.
type Messenger struct {
	api     *slack.Client
	limiter *rate.Limiter
}

// NewMessenger wraps a Slack API client.
func NewMessenger(api *slack.Client) *Messenger {
	return &Messenger{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(700*time.Millisecond), 1),
	}
}

// PostMessage posts text, optionally into a thread, returning the
// message timestamp.
func (m *Messenger) PostMessage(ctx context.Context, channel, text, threadTS string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := m.api.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}
	return ts, nil
}

// UpdateMessage replaces the text of an existing message.
func (m *Messenger) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	_, _, _, err := m.api.UpdateMessageContext(ctx, channel, ts, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// DeleteMessage removes a message.
func (m *Messenger) DeleteMessage(ctx context.Context, channel, ts string) error {
	_, _, err := m.api.DeleteMessageContext(ctx, channel, ts)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// PostChunked splits text into ordered chunks and posts them one by one
// through the rate limiter. A mid-sequence failure stops the sequence.
func (m *Messenger) PostChunked(ctx context.Context, channel, threadTS, text string) error {
	for _, chunk := range ChunkText(text, maxChunkLen) {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := m.PostMessage(ctx, channel, chunk, threadTS); err != nil {
			return err
		}
	}
	return nil
}

// HistoryMessage is one message from a thread's history.
type HistoryMessage struct {
	UserID string
	BotID  string
	Text   string
	TS     string
}

// FetchHistory returns a thread's messages in order, capped at
// maxHistoryPages pages of replies.
func (m *Messenger) FetchHistory(ctx context.Context, channel, threadTS string) ([]HistoryMessage, error) {
	var out []HistoryMessage
	cursor := ""
	for page := 0; page < maxHistoryPages; page++ {
		msgs, hasMore, next, err := m.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: threadTS,
			Cursor:    cursor,
			Limit:     200,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch thread history: %w", err)
		}
		for _, msg := range msgs {
			out = append(out, HistoryMessage{
				UserID: msg.User,
				BotID:  msg.BotID,
				Text:   msg.Text,
				TS:     msg.Timestamp,
			})
		}
		if !hasMore || next == "" {
			break
		}
		cursor = next
	}
	return out, nil
}

// LastBotMessageTS returns the timestamp of the bot's most recent
// message in a channel, or "" when none is found in the recent history.
func (m *Messenger) LastBotMessageTS(ctx context.Context, channel, botUserID string) (string, error) {
	resp, err := m.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Limit:     100,
	})
	if err != nil {
		return "", fmt.Errorf("fetch channel history: %w", err)
	}
	// History is newest-first.
	for _, msg := range resp.Messages {
		if msg.User == botUserID && msg.Timestamp != "" {
			return msg.Timestamp, nil
		}
	}
	return "", nil
}

// ChunkText splits text into pieces of at most max bytes, preferring
// paragraph then line boundaries so formatting survives the split.
func ChunkText(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	for len(text) > max {
		cut := strings.LastIndex(text[:max], "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(text[:max], "\n")
		}
		if cut <= 0 {
			cut = strings.LastIndex(text[:max], " ")
		}
		if cut <= 0 {
			cut = max
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
