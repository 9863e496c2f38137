package twitch

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/quill/msgingest/internal/message"
)

// ircClient is the slice of the IRC client the listener uses. The production
// implementation is gempir's client; tests inject a fake that replays
// scripted messages.
type ircClient interface {
	OnPrivateMessage(callback func(msg twitch.PrivateMessage))
	OnConnect(callback func())
	Join(channels ...string)
	Connect() error
	Disconnect() error
}

// Handler receives each normalized row as it arrives.
type Handler func(message.Row) error

// Listener captures chat from one channel for a fixed wall-clock duration.
type Listener struct {
	botUsername string
	oauthToken  string

	newClient func(username, oauth string) ircClient
	now       func() time.Time
}

// NewListener creates a listener authenticating with the given bot
// credentials. The oauth token gets its "oauth:" prefix added if missing.
func NewListener(botUsername, oauthToken string) *Listener {
	return &Listener{
		botUsername: botUsername,
		oauthToken:  NormalizeOAuthToken(oauthToken),
		newClient: func(username, oauth string) ircClient {
			return twitch.NewClient(username, oauth)
		},
		now: time.Now,
	}
}

// NormalizeOAuthToken ensures the token carries the IRC "oauth:" prefix.
func NormalizeOAuthToken(token string) string {
	if token == "" || strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}

// CaptureOptions bound a capture window.
type CaptureOptions struct {
	Duration    time.Duration // capture window, required
	MaxMessages int           // stop early after this many rows, 0 for no cap
}

// Capture joins channel and forwards each inbound chat message to handle
// until the capture window elapses. It blocks for the full duration unless
// the message cap is reached or ctx is cancelled; zero messages in the
// window is a successful capture. Returns the number of captured rows.
func (l *Listener) Capture(ctx context.Context, channel string, opts CaptureOptions, handle Handler) (int, error) {
	channel = strings.ToLower(strings.TrimPrefix(channel, "#"))

	client := l.newClient(l.botUsername, l.oauthToken)

	var (
		mu         sync.Mutex
		count      int
		capReached = make(chan struct{})
		connErr    = make(chan error, 1)
	)

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		row := message.FromPrivateMessage(msg, l.now())

		mu.Lock()
		defer mu.Unlock()
		if opts.MaxMessages > 0 && count >= opts.MaxMessages {
			return
		}
		if err := handle(row); err != nil {
			log.Printf("Error recording message: %v", err)
			return
		}
		count++
		if opts.MaxMessages > 0 && count == opts.MaxMessages {
			close(capReached)
		}
	})

	client.OnConnect(func() {
		log.Printf("Connected to Twitch IRC, capturing #%s", channel)
	})

	client.Join(channel)

	// Connect blocks until Disconnect; surface only errors that arrive
	// before the window closes.
	go func() {
		if err := client.Connect(); err != nil {
			connErr <- err
		}
	}()

	timer := time.NewTimer(opts.Duration)
	defer timer.Stop()

	var runErr error
	select {
	case <-timer.C:
	case <-capReached:
		log.Println("Message cap reached, closing capture window early")
	case err := <-connErr:
		runErr = err
	case <-ctx.Done():
		runErr = ctx.Err()
	}

	log.Println("Disconnecting from Twitch IRC...")
	if err := client.Disconnect(); err != nil && runErr == nil {
		runErr = err
	}

	mu.Lock()
	defer mu.Unlock()
	return count, runErr
}
