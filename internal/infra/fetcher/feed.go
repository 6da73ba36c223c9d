package fetcher

import (
	"context"
	"fmt"

	"scout/internal/usecase/fetch"

	"github.com/mmcdole/gofeed"
)

// Feed fetches and parses an RSS/Atom feed at url using mmcdole/gofeed.
func (f *ReadabilityFetcher) Feed(ctx context.Context, urlStr string) (*fetch.ArchivedFeed, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = f.client

	feed, err := parser.ParseURLWithContext(urlStr, reqCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fetch.ErrFeedFetchFailed, err)
	}

	items := make([]fetch.FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entry := fetch.FeedEntry{URL: item.Link, Title: item.Title}
		if item.PublishedParsed != nil {
			entry.PubDate = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			entry.PubDate = item.UpdatedParsed
		}
		items = append(items, entry)
	}

	return &fetch.ArchivedFeed{Items: items}, nil
}
