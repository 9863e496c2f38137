package authflow

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/clientcredentials"
)

const twitterTokenURL = "https://api.twitter.com/oauth2/token"

// TwitterBearer exchanges an API key and secret for an app-only bearer token
// via the client-credentials grant.
type TwitterBearer struct {
	APIKey    string
	APISecret string
	TokenURL  string // overridable for tests
}

func (t *TwitterBearer) tokenURL() string {
	if t.TokenURL != "" {
		return t.TokenURL
	}
	return twitterTokenURL
}

// Acquire fetches the bearer token.
func (t *TwitterBearer) Acquire(ctx context.Context) (string, error) {
	if t.APIKey == "" || t.APISecret == "" {
		return "", fmt.Errorf("twitter API key and secret are required")
	}

	conf := &clientcredentials.Config{
		ClientID:     t.APIKey,
		ClientSecret: t.APISecret,
		TokenURL:     t.tokenURL(),
	}
	token, err := conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch twitter bearer token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("twitter response did not include an access token")
	}
	return token.AccessToken, nil
}
