package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := NewValidation("duration must be positive")
	assert.Equal(t, "VALIDATION: duration must be positive", err.Error())
}

func TestNewConfigurationNamesKey(t *testing.T) {
	err := NewConfiguration("twitter_bearer_token", "TWITTER_BEARER_TOKEN")
	assert.Contains(t, err.Message, "twitter_bearer_token")
	assert.Contains(t, err.Message, "TWITTER_BEARER_TOKEN")
	assert.Equal(t, "twitter_bearer_token", err.Details["key"])
}

func TestIs(t *testing.T) {
	err := NewRateLimited("twitter", 4)
	assert.True(t, Is(err, CodeRateLimited))
	assert.False(t, Is(err, CodeNetwork))
	assert.False(t, Is(stderrors.New("plain"), CodeRateLimited))
	assert.False(t, Is(nil, CodeRateLimited))
}

func TestNewInternalNilError(t *testing.T) {
	err := NewInternal(nil)
	assert.Equal(t, "INTERNAL: internal error", err.Error())
}
