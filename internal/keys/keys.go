// Package keys resolves API credentials from a JSON keys file and the
// process environment. An environment variable named by upper-casing the key
// always wins over the file value.
package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	apperrors "github.com/quill/msgingest/internal/errors"
)

// Known credential names shared with the keys file template.
const (
	TwitterBearerToken = "twitter_bearer_token"
	TwitchOAuthToken   = "twitch_oauth_token"
	TwitchBotUsername  = "twitch_bot_username"
)

// Keys is the resolved credential mapping. Read-only after Resolve.
type Keys map[string]string

// Get returns the resolved value for name, or "" if it was not required.
func (k Keys) Get(name string) string {
	return k[name]
}

// EnvVar returns the environment variable that overrides a key.
func EnvVar(name string) string {
	return strings.ToUpper(name)
}

// Load reads the keys file. A missing file is not an error; resolution may
// still succeed from the environment alone.
func Load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse keys file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for name, value := range raw {
		if s, ok := value.(string); ok {
			out[name] = s
		}
	}
	return out, nil
}

// Resolve returns values for every required key, with the environment taking
// precedence over the keys file. A key missing from both sources fails with
// a configuration error naming the key.
func Resolve(path string, required ...string) (Keys, error) {
	fileKeys, err := Load(path)
	if err != nil {
		return nil, err
	}

	resolved := make(Keys, len(required))
	for _, name := range required {
		envVar := EnvVar(name)
		if value := strings.TrimSpace(os.Getenv(envVar)); value != "" {
			resolved[name] = value
			continue
		}
		if value := strings.TrimSpace(fileKeys[name]); value != "" {
			resolved[name] = value
			continue
		}
		return nil, apperrors.NewConfiguration(name, envVar)
	}
	return resolved, nil
}
