package twitter

import (
	"context"
	"net/url"
)

// pageIterator walks the paginated search results by chaining each page's
// continuation token into the next request. It stops at the page bound or
// when the platform reports no further pages, whichever comes first.
type pageIterator struct {
	client    *Client
	params    url.Values
	remaining int
	nextToken string
	done      bool
}

func (c *Client) pages(conversationID, sinceID string, maxResults, pages int) *pageIterator {
	if pages < 1 {
		pages = 1
	}
	return &pageIterator{
		client:    c,
		params:    baseParams(conversationID, sinceID, maxResults),
		remaining: pages,
	}
}

// Next fetches the next page, or returns (nil, nil) when the iterator is
// exhausted.
func (it *pageIterator) Next(ctx context.Context) (*searchResponse, error) {
	if it.done || it.remaining == 0 {
		return nil, nil
	}

	params := it.params
	if it.nextToken != "" {
		// copy so the base params stay token-free
		params = url.Values{}
		for k, v := range it.params {
			params[k] = v
		}
		params.Set("next_token", it.nextToken)
	}

	page, err := it.client.fetchPage(ctx, params)
	if err != nil {
		it.done = true
		return nil, err
	}

	it.remaining--
	it.nextToken = page.Meta.NextToken
	if it.nextToken == "" {
		it.done = true
	}
	return page, nil
}
