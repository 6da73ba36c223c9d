// Package fetch declares the ContentFetcher boundary (SPEC_FULL.md §4.2):
// page/feed/post/search/topic-search retrieval, returning archived payloads
// keyed by content hash. The LLM prompt, the embedding model, and the
// concrete HTTP/browser fetcher implementation are external collaborators
// per SPEC_FULL.md §1 — this package only fixes the contract.
package fetch

import (
	"context"
	"errors"
	"time"
)

// ArchivedPage is the result of ContentFetcher.Page: main-content markdown
// plus the raw HTML and outbound links, immutable and cacheable by ContentHash.
type ArchivedPage struct {
	Markdown    string
	RawHTML     string
	Links       []string
	ContentHash string
	PublishedAt *time.Time
}

// FeedEntry is one item resolved from an RSS/Atom feed.
type FeedEntry struct {
	URL     string
	Title   string
	PubDate *time.Time
}

// ArchivedFeed is the result of ContentFetcher.Feed.
type ArchivedFeed struct {
	Items []FeedEntry
}

// Post is one retrieved social post.
type Post struct {
	Text        string
	Author      string
	Permalink   string
	Mentions    []string
	Hashtags    []string
	PublishedAt *time.Time
}

// SearchResult is one hit from ContentFetcher.Search / SiteSearch.
type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

// ArchivedSearchResults is the result of ContentFetcher.Search / SiteSearch.
type ArchivedSearchResults struct {
	Results []SearchResult
}

// ContentFetcher is the boundary between ScrapePhase and the outside world
// for all content retrieval. Implementations are expected to implement
// retry with exponential backoff internally for transient failures
// (SPEC_FULL.md §4.2); the caller treats every operation as fallible and
// skips the current URL/source on error rather than aborting the run.
type ContentFetcher interface {
	// Page fetches and extracts main-content markdown for url.
	Page(ctx context.Context, url string) (*ArchivedPage, error)

	// Feed fetches and parses an RSS/Atom feed at url.
	Feed(ctx context.Context, url string) (*ArchivedFeed, error)

	// Posts fetches up to limit recent posts for a social account identifier
	// (platform-specific handle/ID format).
	Posts(ctx context.Context, identifier string, limit int) ([]Post, error)

	// Search issues a provider search-API query.
	Search(ctx context.Context, query string) (*ArchivedSearchResults, error)

	// SearchTopics searches a social platform for topics and returns matching
	// posts, used by SourceFinder-driven topic discovery.
	SearchTopics(ctx context.Context, platformURL string, topics []string, limit int) ([]Post, error)

	// SiteSearch issues a "site:domain query"-shaped search, bounded to max results.
	SiteSearch(ctx context.Context, query string, max int) (*ArchivedSearchResults, error)
}

// Sentinel errors for content fetching operations. Callers distinguish
// transient from permanent failures via retry.IsRetryable rather than
// string-matching these.
var (
	// ErrInvalidURL indicates the URL format is invalid or uses an unsupported scheme.
	ErrInvalidURL = errors.New("invalid URL or unsupported scheme")

	// ErrPrivateIP indicates the URL resolves to a private IP address
	// (SSRF prevention).
	ErrPrivateIP = errors.New("private IP access denied (SSRF prevention)")

	// ErrTooManyRedirects indicates the redirect chain exceeded the configured maximum.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates the response body exceeded the size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrReadabilityFailed indicates main-content extraction failed.
	ErrReadabilityFailed = errors.New("content extraction failed")

	// ErrFeedFetchFailed indicates fetching a feed from the source URL failed.
	ErrFeedFetchFailed = errors.New("failed to fetch feed from source")

	// ErrInvalidFeedFormat indicates the feed content could not be parsed.
	ErrInvalidFeedFormat = errors.New("invalid feed format")
)
