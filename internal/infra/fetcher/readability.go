package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"scout/internal/resilience/circuitbreaker"
	"scout/internal/usecase/fetch"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ReadabilityFetcher implements fetch.ContentFetcher's Page/Feed/html-listing
// operations using Mozilla Readability-style extraction over a plain HTTP
// client. Posts/Search/SearchTopics/SiteSearch are external-collaborator
// boundaries (SPEC_FULL.md §1, §6) and this type only ships stubs for them
// that return ErrProviderNotConfigured (provider_stub.go).
//
// Thread safety: ReadabilityFetcher is safe for concurrent use.
type ReadabilityFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	config         ContentFetchConfig
}

// NewReadabilityFetcher creates a new ReadabilityFetcher with the given configuration.
func NewReadabilityFetcher(config ContentFetchConfig) *ReadabilityFetcher {
	cb := circuitbreaker.New(circuitbreaker.Config{
		Name:             "content-fetch",
		MaxRequests:      5,
		Interval:         60 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	})

	f := &ReadabilityFetcher{
		circuitBreaker: cb,
		config:         config,
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", fetch.ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}

	f.client = client
	return f
}

// Page fetches url and extracts main-content markdown plus outbound links
// and a content hash, implementing fetch.ContentFetcher.
func (f *ReadabilityFetcher) Page(ctx context.Context, urlStr string) (*fetch.ArchivedPage, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return nil, err
	}

	result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx, urlStr)
	})
	if err != nil {
		return nil, err
	}

	return result.(*fetch.ArchivedPage), nil
}

func (f *ReadabilityFetcher) doFetch(ctx context.Context, urlStr string) (interface{}, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", fetch.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", "ScoutBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: request exceeded %v", fetch.ErrTimeout, f.config.Timeout)
		}
		if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
			return nil, urlErr.Err
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	limitedReader := io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	htmlBytes, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return nil, fmt.Errorf("%w: response size %d bytes exceeds limit %d bytes",
			fetch.ErrBodyTooLarge, len(htmlBytes), f.config.MaxBodySize)
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		parsedURL = nil
	}
	if resp.Request != nil && resp.Request.URL != nil {
		parsedURL = resp.Request.URL
	}

	article, err := readability.FromReader(io.NopCloser(bytes.NewReader(htmlBytes)), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fetch.ErrReadabilityFailed, err)
	}

	markdown := article.TextContent
	if markdown == "" {
		if article.Content == "" {
			return nil, fmt.Errorf("%w: no readable content found", fetch.ErrReadabilityFailed)
		}
		slog.Debug("using article Content instead of TextContent", slog.String("url", urlStr))
		markdown = article.Content
	}

	links := extractLinks(htmlBytes, parsedURL)
	sum := sha256.Sum256(htmlBytes)

	page := &fetch.ArchivedPage{
		Markdown:    markdown,
		RawHTML:     string(htmlBytes),
		Links:       links,
		ContentHash: hex.EncodeToString(sum[:]),
	}
	if !article.PublishedTime.IsZero() {
		t := article.PublishedTime
		page.PublishedAt = &t
	}
	return page, nil
}

// extractLinks collects absolute anchor hrefs from html, resolved against
// base, mirroring the teacher's webflow.go goquery-based anchor scan.
func extractLinks(html []byte, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := href
		if base != nil {
			if u, err := base.Parse(href); err == nil {
				abs = u.String()
			}
		}
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	return links
}
