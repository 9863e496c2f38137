package twitter

import (
	"context"
	"errors"
	"sort"

	"github.com/quill/msgingest/internal/message"
)

// ThreadDocument is the Twitter capture output: capture parameters plus the
// root message with its direct replies. Replies is nil (serialized as an
// explicit null) when the thread had no replies; downstream consumers rely
// on the null-vs-array distinction.
type ThreadDocument struct {
	Meta Meta `json:"meta"`
	Main Main `json:"Main"`
}

// Meta records the parameters of the capture run.
type Meta struct {
	ConversationID string `json:"conversation_id"`
	Pages          int    `json:"pages"`
	CapturedAtUTC  string `json:"captured_at_utc"`
	MessageCount   int    `json:"message_count"`
}

// Main is the root message. All other captured messages are treated as
// direct replies to it; nested threading is not reconstructed.
type Main struct {
	message.Row
	Replies []message.Row `json:"replies"`
}

// FetchOptions bound and scope a thread capture.
type FetchOptions struct {
	Pages      int    // number of paginated requests, minimum 1
	MaxResults int    // tweets per page, clamped to 10..100
	SinceID    string // only messages newer than this id, optional
}

// FetchThread paginates the conversation search and assembles the capture
// document. No output is written here; an error before return means no file
// was produced.
func (c *Client) FetchThread(ctx context.Context, conversationID string, opts FetchOptions) (*ThreadDocument, error) {
	if conversationID == "" {
		return nil, errors.New("twitter: conversation id is required")
	}

	capturedAt := c.timeNow()
	var rows []message.Row

	it := c.pages(conversationID, opts.SinceID, opts.MaxResults, opts.Pages)
	for {
		page, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			break
		}

		usersByID := make(map[string]string, len(page.Includes.Users))
		for _, user := range page.Includes.Users {
			usersByID[user.ID] = user.Username
		}
		for _, tweet := range page.Data {
			rows = append(rows, message.FromTweet(
				tweet.ID,
				tweet.AuthorID,
				usersByID[tweet.AuthorID],
				tweet.CreatedAt,
				tweet.Text,
				conversationID,
				capturedAt,
			))
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].SentAtUTC < rows[j].SentAtUTC
	})

	doc := &ThreadDocument{
		Meta: Meta{
			ConversationID: conversationID,
			Pages:          opts.Pages,
			CapturedAtUTC:  message.FormatUTC(capturedAt),
			MessageCount:   len(rows),
		},
	}
	if len(rows) == 0 {
		return doc, nil
	}

	rootIdx := 0
	for i, row := range rows {
		if row.MessageID == conversationID {
			rootIdx = i
			break
		}
	}

	doc.Main.Row = rows[rootIdx]
	for i, row := range rows {
		if i == rootIdx {
			continue
		}
		doc.Main.Replies = append(doc.Main.Replies, row)
	}
	return doc, nil
}
