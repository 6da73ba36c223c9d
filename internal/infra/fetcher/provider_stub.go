package fetcher

import (
	"context"
	"errors"

	"scout/internal/usecase/fetch"
)

// ErrProviderNotConfigured is returned by the reference Posts/Search/
// SearchTopics/SiteSearch implementations. Social-platform post retrieval
// and search-engine query APIs are external-collaborator boundaries
// (SPEC_FULL.md §1, §6): the core fixes the fetch.ContentFetcher contract
// and ships this stub so a composition root compiles and runs end-to-end
// against page/feed sources without a provider API key; a production
// deployment supplies its own implementation of these four methods.
var ErrProviderNotConfigured = errors.New("fetcher: social/search provider not configured")

// Posts is a stub: no social-platform provider is wired into the core.
func (f *ReadabilityFetcher) Posts(ctx context.Context, identifier string, limit int) ([]fetch.Post, error) {
	return nil, ErrProviderNotConfigured
}

// Search is a stub: no search-engine query API is wired into the core.
func (f *ReadabilityFetcher) Search(ctx context.Context, query string) (*fetch.ArchivedSearchResults, error) {
	return nil, ErrProviderNotConfigured
}

// SearchTopics is a stub: no social-platform provider is wired into the core.
func (f *ReadabilityFetcher) SearchTopics(ctx context.Context, platformURL string, topics []string, limit int) ([]fetch.Post, error) {
	return nil, ErrProviderNotConfigured
}

// SiteSearch is a stub: no search-engine query API is wired into the core.
func (f *ReadabilityFetcher) SiteSearch(ctx context.Context, query string, max int) (*fetch.ArchivedSearchResults, error) {
	return nil, ErrProviderNotConfigured
}
