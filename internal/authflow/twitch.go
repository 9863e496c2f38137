package authflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	twitchAuthorizeURL = "https://id.twitch.tv/oauth2/authorize"
	twitchTokenURL     = "https://id.twitch.tv/oauth2/token"
	twitchValidateURL  = "https://id.twitch.tv/oauth2/validate"
)

// TwitchFlow runs the authorization-code grant for a chat-reading user token.
// The browser is sent to the authorize URL and the code comes back on a
// local HTTP callback.
type TwitchFlow struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string        // must be http://host:port/path for local capture
	Scopes       []string      // chat:read is always included
	Timeout      time.Duration // how long to wait for the callback

	AuthorizeURL string // overridable for tests
	TokenURL     string
	ValidateURL  string
	HTTPClient   *http.Client
	OpenBrowser  func(url string) error // nil means print-only
}

// TwitchResult is what the wizard stores in the keys file.
type TwitchResult struct {
	OAuthToken   string // with "oauth:" prefix, ready for IRC
	RefreshToken string
	Login        string // bot username reported by the validate endpoint
}

func (f *TwitchFlow) endpoint() oauth2.Endpoint {
	authURL := f.AuthorizeURL
	if authURL == "" {
		authURL = twitchAuthorizeURL
	}
	tokenURL := f.TokenURL
	if tokenURL == "" {
		tokenURL = twitchTokenURL
	}
	return oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
}

func (f *TwitchFlow) scopes() []string {
	scopes := append([]string(nil), f.Scopes...)
	for _, s := range scopes {
		if s == "chat:read" {
			return scopes
		}
	}
	return append(scopes, "chat:read")
}

func (f *TwitchFlow) timeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return 3 * time.Minute
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Run executes the full flow: authorize URL, local callback, code exchange,
// token validation. It blocks until the callback arrives or the timeout
// elapses.
func (f *TwitchFlow) Run(ctx context.Context, printf func(format string, args ...any)) (*TwitchResult, error) {
	if f.ClientID == "" || f.ClientSecret == "" {
		return nil, fmt.Errorf("twitch client ID and client secret are required")
	}

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		RedirectURL:  f.RedirectURI,
		Scopes:       f.scopes(),
		Endpoint:     f.endpoint(),
	}

	authURL := conf.AuthCodeURL(state)
	printf("Open this URL to authorize Twitch chat read access:\n%s\n", authURL)
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			printf("Could not open browser: %v\n", err)
		}
	}

	code, err := f.waitForCode(ctx, state)
	if err != nil {
		return nil, err
	}

	if f.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.HTTPClient)
	}
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange twitch code: %w", err)
	}

	login, err := f.fetchLogin(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	return &TwitchResult{
		OAuthToken:   "oauth:" + token.AccessToken,
		RefreshToken: token.RefreshToken,
		Login:        login,
	}, nil
}

// waitForCode serves the redirect URI until the authorization code arrives.
func (f *TwitchFlow) waitForCode(ctx context.Context, expectedState string) (string, error) {
	parsed, err := url.Parse(f.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("parse redirect URI: %w", err)
	}
	if parsed.Scheme != "http" {
		return "", fmt.Errorf("twitch redirect URI must use http:// for local callback capture")
	}
	callbackPath := parsed.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	listener, err := net.Listen("tcp", parsed.Host)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", parsed.Host, err)
	}

	type outcome struct {
		code string
		err  error
	}
	results := make(chan outcome, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		var out outcome
		switch {
		case query.Get("error") != "":
			out.err = fmt.Errorf("twitch OAuth callback error: %s", query.Get("error"))
		case query.Get("code") == "":
			out.err = fmt.Errorf("twitch OAuth callback error: missing_code")
		case query.Get("state") != expectedState:
			out.err = fmt.Errorf("twitch OAuth callback error: invalid_state")
		default:
			out.code = query.Get("code")
		}

		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "Twitch OAuth received. You can close this tab and return to the terminal.")

		select {
		case results <- out:
		default:
		}
	})

	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	timer := time.NewTimer(f.timeout())
	defer timer.Stop()

	select {
	case out := <-results:
		if out.err != nil {
			return "", out.err
		}
		return out.code, nil
	case <-timer.C:
		return "", fmt.Errorf("timed out waiting for Twitch OAuth callback")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// fetchLogin asks the validate endpoint which login the token belongs to.
func (f *TwitchFlow) fetchLogin(ctx context.Context, accessToken string) (string, error) {
	validateURL := f.ValidateURL
	if validateURL == "" {
		validateURL = twitchValidateURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validateURL, nil)
	if err != nil {
		return "", fmt.Errorf("create validate request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("validate twitch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("validate twitch token: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode validate response: %w", err)
	}
	return strings.ToLower(payload.Login), nil
}
