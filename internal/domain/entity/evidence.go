package entity

import "time"

// Relevance classifies how directly a piece of evidence bears on its signal.
type Relevance string

const (
	RelevanceDirect       Relevance = "direct"
	RelevanceSupporting   Relevance = "supporting"
	RelevanceContradicting Relevance = "contradicting"
	RelevanceUnknown      Relevance = "unknown"
)

// ChannelType classifies the publishing channel an Evidence was retrieved
// from. Defaults to ChannelPress when the fetcher/extractor leave it unset —
// carried verbatim from the original implementation (see DESIGN.md's Open
// Question decisions).
type ChannelType string

const (
	ChannelPress ChannelType = "press"
	ChannelSocial ChannelType = "social"
	ChannelGov   ChannelType = "gov"
	ChannelBlog  ChannelType = "blog"
)

// DefaultChannelType is substituted whenever a caller does not specify one.
const DefaultChannelType = ChannelPress

// Evidence is a retrieved piece of content backing a signal. Uniqueness is
// enforced at the GraphStore layer by (signal_id, SourceURL); repeated
// scrapes of the same URL update ContentHash/RetrievedAt in place rather than
// creating a new Evidence node (SPEC_FULL.md §4.1, §8 Evidence idempotence).
type Evidence struct {
	ID                string
	SourceURL         string
	RetrievedAt       time.Time
	ContentHash       string // hex
	Snippet           string
	Relevance         Relevance
	EvidenceConfidence float64
	ChannelType       ChannelType
}

// Validate checks required Evidence fields.
func (e *Evidence) Validate() error {
	if e.SourceURL == "" {
		return &ValidationError{Field: "source_url", Message: "source_url is required"}
	}
	if e.ContentHash == "" {
		return &ValidationError{Field: "content_hash", Message: "content_hash is required"}
	}
	if e.ChannelType == "" {
		e.ChannelType = DefaultChannelType
	}
	return nil
}
