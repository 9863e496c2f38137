package message

import (
	"fmt"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// Platform tags attached to every captured row.
const (
	PlatformTwitter = "twitter"
	PlatformTwitch  = "twitch"
)

// Row represents a captured message from any platform (Twitter, Twitch).
// Rows are immutable once created: built by a normalizer, written once.
type Row struct {
	Platform      string `json:"platform"`        // Platform name: "twitter", "twitch"
	Scope         string `json:"scope"`           // Capture scope, e.g. "channel:somestreamer"
	MessageID     string `json:"message_id"`      // Platform-native message ID (or composed)
	Username      string `json:"username"`        // Author's display name or login
	UserID        string `json:"user_id,omitempty"`
	SentAtUTC     string `json:"sent_at_utc"`     // RFC3339, UTC
	CapturedAtUTC string `json:"captured_at_utc"` // RFC3339, UTC
	Text          string `json:"text"`            // Message content, may be empty
}

// ConversationScope builds the scope tag for a Twitter conversation.
func ConversationScope(conversationID string) string {
	return "conversation_id:" + conversationID
}

// ChannelScope builds the scope tag for a Twitch channel.
func ChannelScope(channel string) string {
	return "channel:" + strings.ToLower(strings.TrimPrefix(channel, "#"))
}

// FormatUTC renders a timestamp in the row wire format.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FromTweet normalizes one tweet into a Row. createdAt is the platform's
// RFC3339 timestamp; if it does not parse, capturedAt stands in for it.
func FromTweet(id, authorID, username, createdAt, text, conversationID string, capturedAt time.Time) Row {
	if username == "" {
		username = authorID
	}
	if username == "" {
		username = "unknown"
	}

	sentAt := FormatUTC(capturedAt)
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		sentAt = FormatUTC(ts)
	}

	return Row{
		Platform:      PlatformTwitter,
		Scope:         ConversationScope(conversationID),
		MessageID:     id,
		Username:      username,
		UserID:        authorID,
		SentAtUTC:     sentAt,
		CapturedAtUTC: FormatUTC(capturedAt),
		Text:          strings.TrimSpace(text),
	}
}

// FromPrivateMessage normalizes an inbound Twitch chat message into a Row.
func FromPrivateMessage(msg twitch.PrivateMessage, capturedAt time.Time) Row {
	channel := strings.ToLower(strings.TrimPrefix(msg.Channel, "#"))

	username := msg.User.DisplayName
	if username == "" {
		username = msg.User.Name
	}

	sentAt := msg.Time
	if sentAt.IsZero() {
		sentAt = capturedAt
	}

	id := msg.ID
	if id == "" {
		id = fmt.Sprintf("twitch-%s-%d-%s", channel, sentAt.UnixMilli(), msg.User.Name)
	}

	return Row{
		Platform:      PlatformTwitch,
		Scope:         ChannelScope(channel),
		MessageID:     id,
		Username:      username,
		UserID:        msg.User.ID,
		SentAtUTC:     FormatUTC(sentAt),
		CapturedAtUTC: FormatUTC(capturedAt),
		Text:          strings.TrimSpace(msg.Message),
	}
}
