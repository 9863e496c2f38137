// Package twitter fetches one conversation thread from the recent-search API
// and assembles a root-plus-replies capture document.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/quill/msgingest/internal/errors"
)

const defaultSearchURL = "https://api.twitter.com/2/tweets/search/recent"

// Client calls the recent-search endpoint with an app bearer token.
type Client struct {
	BearerToken string
	HTTPClient  *http.Client
	SearchURL   string
	MaxRetries  int // retry budget for rate-limit responses

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) searchURL() string {
	if c.SearchURL != "" {
		return c.SearchURL
	}
	return defaultSearchURL
}

func (c *Client) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) timeNow() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

type apiTweet struct {
	ID             string `json:"id"`
	AuthorID       string `json:"author_id"`
	CreatedAt      string `json:"created_at"`
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`
}

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type searchResponse struct {
	Data     []apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// fetchPage issues one search request, retrying rate-limit responses with
// exponential backoff up to the retry budget.
func (c *Client) fetchPage(ctx context.Context, params url.Values) (*searchResponse, error) {
	budget := c.maxRetries()
	for attempt := 0; ; attempt++ {
		page, retryable, err := c.doRequest(ctx, params)
		if err == nil {
			return page, nil
		}
		if !retryable || attempt >= budget {
			return nil, err
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		if waitErr := c.wait(ctx, backoff); waitErr != nil {
			return nil, apperrors.NewNetwork("twitter", waitErr)
		}
	}
}

func (c *Client) doRequest(ctx context.Context, params url.Values) (*searchResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(), nil)
	if err != nil {
		return nil, false, apperrors.NewInternal(err)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Authorization", "Bearer "+c.BearerToken)

	resp, err := c.http().Do(req)
	if err != nil {
		return nil, false, apperrors.NewNetwork("twitter", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false, apperrors.NewNetwork("twitter", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, apperrors.NewRateLimited("twitter", c.maxRetries()+1)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, apperrors.NewAuthorization("twitter", apiErrorDetail(body, resp.StatusCode))
	default:
		return nil, false, apperrors.NewNetwork("twitter",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiErrorDetail(body, resp.StatusCode)))
	}

	var page searchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, false, apperrors.NewNetwork("twitter", fmt.Errorf("decode response: %w", err))
	}
	return &page, false, nil
}

func apiErrorDetail(body []byte, status int) string {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Title != "" {
			return parsed.Title
		}
	}
	return "HTTP " + strconv.Itoa(status)
}

func clampMaxResults(n int) int {
	if n < 10 {
		return 10
	}
	if n > 100 {
		return 100
	}
	return n
}

func baseParams(conversationID, sinceID string, maxResults int) url.Values {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("conversation_id:%s -is:retweet", conversationID))
	params.Set("tweet.fields", "id,author_id,created_at,text,conversation_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "id,username")
	params.Set("max_results", strconv.Itoa(clampMaxResults(maxResults)))
	if strings.TrimSpace(sinceID) != "" {
		params.Set("since_id", sinceID)
	}
	return params
}
