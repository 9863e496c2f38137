package message

import (
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
)

var capturedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFromTweet(t *testing.T) {
	row := FromTweet("101", "7", "someuser", "2023-11-14T22:30:00.000Z", " hello thread ", "42", capturedAt)

	assert.Equal(t, PlatformTwitter, row.Platform)
	assert.Equal(t, "conversation_id:42", row.Scope)
	assert.Equal(t, "101", row.MessageID)
	assert.Equal(t, "someuser", row.Username)
	assert.Equal(t, "7", row.UserID)
	assert.Equal(t, "2023-11-14T22:30:00Z", row.SentAtUTC)
	assert.Equal(t, "2024-03-01T12:00:00Z", row.CapturedAtUTC)
	assert.Equal(t, "hello thread", row.Text)
}

func TestFromTweetFallbacks(t *testing.T) {
	row := FromTweet("101", "", "", "not-a-timestamp", "hi", "42", capturedAt)
	assert.Equal(t, "unknown", row.Username)
	assert.Equal(t, "2024-03-01T12:00:00Z", row.SentAtUTC)

	row = FromTweet("101", "7", "", "", "hi", "42", capturedAt)
	assert.Equal(t, "7", row.Username)
}

func TestFromTweetConvertsToUTC(t *testing.T) {
	row := FromTweet("101", "7", "u", "2023-11-14T17:30:00-05:00", "hi", "42", capturedAt)
	assert.Equal(t, "2023-11-14T22:30:00Z", row.SentAtUTC)
}

func TestFromPrivateMessage(t *testing.T) {
	msg := twitch.PrivateMessage{
		ID:      "msg-123",
		Channel: "#MyChannel",
		Message: " hello world ",
		Time:    time.Date(2023, 11, 14, 22, 30, 0, 0, time.UTC),
		User: twitch.User{
			ID:          "42",
			Name:        "someuser",
			DisplayName: "SomeUser",
		},
	}

	row := FromPrivateMessage(msg, capturedAt)
	assert.Equal(t, PlatformTwitch, row.Platform)
	assert.Equal(t, "channel:mychannel", row.Scope)
	assert.Equal(t, "msg-123", row.MessageID)
	assert.Equal(t, "SomeUser", row.Username)
	assert.Equal(t, "42", row.UserID)
	assert.Equal(t, "2023-11-14T22:30:00Z", row.SentAtUTC)
	assert.Equal(t, "hello world", row.Text)
}

func TestFromPrivateMessageComposesID(t *testing.T) {
	msg := twitch.PrivateMessage{
		Channel: "chan",
		Message: "hi",
		Time:    time.Date(2023, 11, 14, 22, 30, 0, 0, time.UTC),
		User:    twitch.User{Name: "someuser"},
	}

	row := FromPrivateMessage(msg, capturedAt)
	assert.Equal(t, "twitch-chan-1700001000000-someuser", row.MessageID)
	assert.Equal(t, "someuser", row.Username)
}

func TestFromPrivateMessageZeroTimeUsesCaptureTime(t *testing.T) {
	msg := twitch.PrivateMessage{
		Channel: "chan",
		Message: "hi",
		User:    twitch.User{Name: "someuser"},
	}

	row := FromPrivateMessage(msg, capturedAt)
	assert.Equal(t, "2024-03-01T12:00:00Z", row.SentAtUTC)
}
