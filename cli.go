package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"
	"github.com/urfave/cli/v2"

	"github.com/quill/msgingest/internal/authflow"
	"github.com/quill/msgingest/internal/config"
	apperrors "github.com/quill/msgingest/internal/errors"
	"github.com/quill/msgingest/internal/eventlog"
	"github.com/quill/msgingest/internal/keys"
	"github.com/quill/msgingest/internal/message"
	"github.com/quill/msgingest/internal/twitch"
	"github.com/quill/msgingest/internal/twitter"
	"github.com/quill/msgingest/internal/uploader"
	"github.com/quill/msgingest/internal/writer"
)

var conversationIDPattern = regexp.MustCompile(`^[0-9]+$`)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "msgingest",
		Usage:   "Scoped message capture for Twitter threads and Twitch chat",
		Version: Version,
		Commands: []*cli.Command{
			twitterThreadCmd(cfg),
			twitchChatCmd(cfg),
			oauthInitCmd(cfg),
		},
	}
	return app
}

// twitterThreadCmd captures one conversation thread.
func twitterThreadCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "twitter-thread",
		Usage: "Ingest messages from one Twitter thread",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "conversation-id", Required: true, Usage: "Root tweet ID / conversation_id"},
			&cli.IntFlag{Name: "pages", Value: 1, Usage: "How many API pages to fetch"},
			&cli.IntFlag{Name: "max-results", Value: 100, Usage: "Tweets per API page (10-100)"},
			&cli.StringFlag{Name: "since-id", Usage: "Only fetch tweets newer than this ID"},
			&cli.IntFlag{Name: "timeout", Value: cfg.Ingest.TimeoutSeconds, Usage: "Twitter API timeout in seconds"},
			&cli.StringFlag{Name: "out", Usage: "Output path (default derived from conversation id)"},
		},
		Action: func(c *cli.Context) error {
			conversationID := strings.TrimSpace(c.String("conversation-id"))
			if !conversationIDPattern.MatchString(conversationID) {
				return apperrors.NewValidation("conversation-id must be a numeric tweet ID")
			}
			if c.Int("pages") <= 0 {
				return apperrors.NewValidation("pages must be a positive integer")
			}
			if c.Int("max-results") <= 0 {
				return apperrors.NewValidation("max-results must be a positive integer")
			}
			if c.Int("timeout") <= 0 {
				return apperrors.NewValidation("timeout must be a positive integer")
			}

			resolved, err := keys.Resolve(cfg.KeysFile, keys.TwitterBearerToken)
			if err != nil {
				return err
			}

			evlog := eventlog.New(cfg.Ingest.EventLog)
			logEvent(evlog, "ingest_started", map[string]any{
				"source":          "twitter-thread",
				"conversation_id": conversationID,
			})

			client := &twitter.Client{
				BearerToken: resolved.Get(keys.TwitterBearerToken),
				HTTPClient:  &http.Client{Timeout: time.Duration(c.Int("timeout")) * time.Second},
				MaxRetries:  cfg.Ingest.MaxRetries,
			}
			doc, err := client.FetchThread(c.Context, conversationID, twitter.FetchOptions{
				Pages:      c.Int("pages"),
				MaxResults: c.Int("max-results"),
				SinceID:    c.String("since-id"),
			})
			if err != nil {
				logFailure(evlog, "twitter-thread", err)
				return err
			}

			outPath := c.String("out")
			if outPath == "" {
				outPath = writer.DefaultPath(cfg.Ingest.OutputDir, message.PlatformTwitter, conversationID)
			}
			if err := writer.WriteDocument(outPath, doc); err != nil {
				logFailure(evlog, "twitter-thread", err)
				return err
			}

			archiveCapture(c.Context, cfg, outPath, message.PlatformTwitter, conversationID)

			logEvent(evlog, "ingest_completed", map[string]any{
				"source":          "twitter-thread",
				"conversation_id": conversationID,
				"count":           doc.Meta.MessageCount,
				"output_path":     outPath,
			})
			fmt.Printf("Ingested %d twitter messages into %s\n", doc.Meta.MessageCount, outPath)
			return nil
		},
	}
}

// twitchChatCmd captures live chat for a fixed duration.
func twitchChatCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "twitch-chat",
		Usage: "Capture live Twitch chat for one channel",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "channel", Required: true, Usage: "Twitch channel name"},
			&cli.IntFlag{Name: "duration", Value: 60, Usage: "Capture duration in seconds"},
			&cli.IntFlag{Name: "max-messages", Value: 500, Usage: "Upper bound on captured messages"},
			&cli.StringFlag{Name: "out", Usage: "Output path (default derived from channel)"},
		},
		Action: func(c *cli.Context) error {
			channel := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.String("channel")), "#"))
			if channel == "" {
				return apperrors.NewValidation("channel must not be empty")
			}
			if c.Int("duration") <= 0 {
				return apperrors.NewValidation("duration must be a positive integer")
			}
			if c.Int("max-messages") <= 0 {
				return apperrors.NewValidation("max-messages must be a positive integer")
			}

			resolved, err := keys.Resolve(cfg.KeysFile, keys.TwitchOAuthToken, keys.TwitchBotUsername)
			if err != nil {
				return err
			}

			evlog := eventlog.New(cfg.Ingest.EventLog)
			logEvent(evlog, "ingest_started", map[string]any{
				"source":   "twitch-chat",
				"channel":  channel,
				"duration": c.Int("duration"),
			})

			outPath := c.String("out")
			if outPath == "" {
				outPath = writer.DefaultPath(cfg.Ingest.OutputDir, message.PlatformTwitch, channel)
			}
			stream, err := writer.OpenStream(outPath)
			if err != nil {
				logFailure(evlog, "twitch-chat", err)
				return err
			}

			listener := twitch.NewListener(
				resolved.Get(keys.TwitchBotUsername),
				resolved.Get(keys.TwitchOAuthToken),
			)
			count, captureErr := listener.Capture(c.Context, channel, twitch.CaptureOptions{
				Duration:    time.Duration(c.Int("duration")) * time.Second,
				MaxMessages: c.Int("max-messages"),
			}, stream.Append)

			if closeErr := stream.Close(); closeErr != nil && captureErr == nil {
				captureErr = closeErr
			}
			if captureErr != nil {
				captureErr = classifyTwitchError(captureErr)
				logFailure(evlog, "twitch-chat", captureErr)
				return captureErr
			}

			archiveCapture(c.Context, cfg, outPath, message.PlatformTwitch, channel)

			logEvent(evlog, "ingest_completed", map[string]any{
				"source":      "twitch-chat",
				"channel":     channel,
				"duration":    c.Int("duration"),
				"count":       count,
				"output_path": outPath,
			})
			fmt.Printf("Ingested %d twitch messages into %s\n", count, outPath)
			return nil
		},
	}
}

// oauthInitCmd acquires credentials and writes them to the keys file.
func oauthInitCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "oauth-init",
		Usage: "Acquire OAuth credentials and store them in the keys file",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "twitter", Usage: "Acquire a Twitter app-only bearer token"},
			&cli.StringFlag{Name: "twitter-api-key", Usage: "Twitter API key"},
			&cli.StringFlag{Name: "twitter-api-secret", Usage: "Twitter API secret"},
			&cli.BoolFlag{Name: "twitch", Usage: "Acquire a Twitch chat-read user token"},
			&cli.StringFlag{Name: "twitch-client-id", Usage: "Twitch application client ID"},
			&cli.StringFlag{Name: "twitch-client-secret", Usage: "Twitch application client secret"},
			&cli.StringFlag{Name: "twitch-redirect-uri", Value: "http://localhost:8945/twitch/callback", Usage: "Local OAuth callback URI"},
			&cli.StringFlag{Name: "twitch-scopes", Value: "chat:read", Usage: "Comma-separated Twitch scopes"},
			&cli.IntFlag{Name: "twitch-timeout", Value: 180, Usage: "Seconds to wait for the OAuth callback"},
			&cli.BoolFlag{Name: "no-browser", Usage: "Print the authorize URL instead of opening a browser"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("twitter") && !c.Bool("twitch") {
				return apperrors.NewValidation("select --twitter and/or --twitch")
			}

			updates := map[string]string{}

			if c.Bool("twitter") {
				bearer := &authflow.TwitterBearer{
					APIKey:    c.String("twitter-api-key"),
					APISecret: c.String("twitter-api-secret"),
				}
				token, err := bearer.Acquire(c.Context)
				if err != nil {
					return err
				}
				updates[keys.TwitterBearerToken] = token
				fmt.Println("Twitter bearer token generated and stored.")
			}

			if c.Bool("twitch") {
				var scopes []string
				for _, scope := range strings.Split(c.String("twitch-scopes"), ",") {
					if scope = strings.TrimSpace(scope); scope != "" {
						scopes = append(scopes, scope)
					}
				}

				flow := &authflow.TwitchFlow{
					ClientID:     c.String("twitch-client-id"),
					ClientSecret: c.String("twitch-client-secret"),
					RedirectURI:  c.String("twitch-redirect-uri"),
					Scopes:       scopes,
					Timeout:      time.Duration(c.Int("twitch-timeout")) * time.Second,
				}
				if !c.Bool("no-browser") {
					flow.OpenBrowser = openBrowser
				}

				result, err := flow.Run(c.Context, func(format string, args ...any) {
					fmt.Printf(format, args...)
				})
				if err != nil {
					return err
				}

				updates[keys.TwitchOAuthToken] = result.OAuthToken
				if result.Login != "" {
					updates[keys.TwitchBotUsername] = result.Login
				}
				if result.RefreshToken != "" {
					updates["twitch_refresh_token"] = result.RefreshToken
				}
				fmt.Println("Twitch OAuth token generated and stored.")
				if result.Login != "" {
					fmt.Printf("Twitch bot username set to: %s\n", result.Login)
				}
			}

			if err := authflow.SaveKeys(cfg.KeysFile, updates); err != nil {
				return err
			}
			fmt.Printf("Credentials written to %s\n", cfg.KeysFile)
			return nil
		},
	}
}

// classifyTwitchError maps IRC client failures onto the error taxonomy.
func classifyTwitchError(err error) error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, twitchirc.ErrLoginAuthenticationFailed):
		return apperrors.NewAuthorization("twitch", "login authentication failed")
	default:
		if _, ok := err.(*apperrors.IngestError); ok {
			return err
		}
		return apperrors.NewNetwork("twitch", err)
	}
}

// archiveCapture uploads the finished capture file when archival is enabled.
// Upload failures are logged but never fail the run; the local file is the
// source of truth.
func archiveCapture(ctx context.Context, cfg *config.Config, path, platform, scopeID string) {
	if !cfg.Uploader.Enabled {
		return
	}

	var (
		up  *uploader.Uploader
		err error
	)
	if cfg.S3.AccessKeyID != "" {
		up, err = uploader.NewWithStaticCredentials(ctx,
			cfg.S3.Bucket, cfg.S3.Region,
			cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey,
			cfg.Uploader.DeleteAfterUpload, cfg.Uploader.MaxRetries)
	} else {
		up, err = uploader.New(ctx,
			cfg.S3.Bucket, cfg.S3.Region,
			cfg.Uploader.DeleteAfterUpload, cfg.Uploader.MaxRetries)
	}
	if err != nil {
		log.Printf("Warning: archive disabled for this run: %v", err)
		return
	}
	if err := up.Archive(ctx, path, platform, writer.SanitizePathComponent(scopeID)); err != nil {
		log.Printf("Warning: failed to archive %s: %v", path, err)
	}
}

func logEvent(evlog *eventlog.Logger, event string, fields map[string]any) {
	if err := evlog.Append(event, fields); err != nil {
		log.Printf("Warning: failed to append event log entry: %v", err)
	}
}

func logFailure(evlog *eventlog.Logger, source string, err error) {
	fields := map[string]any{"source": source, "error": err.Error()}
	if iErr, ok := err.(*apperrors.IngestError); ok {
		fields["code"] = string(iErr.Code)
	}
	logEvent(evlog, "ingest_failed", fields)
}

// openBrowser points the default browser at url, best effort.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
