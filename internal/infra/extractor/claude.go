// Package extractor implements extract.SignalExtractor against Anthropic's
// Claude API, adapted from internal/infra/summarizer/claude.go's circuit
// breaker + retry + structured logging shape, producing a structured
// ExtractionResult via a JSON-mode prompt instead of a plain summary string.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"scout/internal/domain/entity"
	"scout/internal/resilience/circuitbreaker"
	"scout/internal/resilience/retry"
	"scout/internal/usecase/extract"
	"scout/internal/utils/text"
)

// ErrExtractionFailed wraps schema-violation/parse failures on the model's
// JSON output (SPEC_FULL.md §7 ExtractError): the caller logs the failure,
// skips the URL without emitting an event, and continues.
var ErrExtractionFailed = errors.New("signal extraction failed")

const maxContentChars = 12000

// Config holds the Claude extractor's tunables.
type Config struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultConfig returns production defaults for the extractor.
func DefaultConfig() Config {
	return Config{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 4096,
		Timeout:   60 * time.Second,
	}
}

// defaultExtractorRPS caps Claude call rate independent of ScrapePhase's
// bounded fan-out (SPEC_FULL.md §11: the teacher imports golang.org/x/time
// but under-uses it; extraction is given a concrete token-bucket job here).
const defaultExtractorRPS = 3

// Claude implements extract.SignalExtractor.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	limiter        *rate.Limiter
	config         Config
}

// NewClaude creates a Claude-backed SignalExtractor.
func NewClaude(apiKey string, config Config) *Claude {
	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.ExtractConfig(),
		limiter:        rate.NewLimiter(rate.Limit(defaultExtractorRPS), defaultExtractorRPS),
		config:         config,
	}
}

// Extract implements extract.SignalExtractor.
func (c *Claude) Extract(ctx context.Context, content, sourceURL string) (*extract.ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrExtractionFailed, err)
	}

	var result *extract.ExtractionResult
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doExtract(ctx, content, sourceURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude extractor circuit breaker open, request rejected",
					slog.String("service", "claude-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(*extract.ExtractionResult)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, retryErr)
	}
	return result, nil
}

func (c *Claude) doExtract(ctx context.Context, content, sourceURL string) (*extract.ExtractionResult, error) {
	truncated := content
	if text.CountRunes(truncated) > maxContentChars {
		runes := []rune(truncated)
		truncated = string(runes[:maxContentChars])
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildExtractionPrompt(truncated, sourceURL))),
		},
	})
	duration := time.Since(start)
	if err != nil {
		slog.ErrorContext(ctx, "extraction failed",
			slog.String("source_url", sourceURL),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrExtractionFailed)
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected response type", ErrExtractionFailed)
	}

	result, err := parseExtractionJSON(textBlock.Text)
	if err != nil {
		slog.WarnContext(ctx, "extraction JSON parse failed",
			slog.String("source_url", sourceURL),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	slog.InfoContext(ctx, "extraction completed",
		slog.String("source_url", sourceURL),
		slog.Int("nodes", len(result.Nodes)),
		slog.Duration("duration", duration))

	return result, nil
}

func buildExtractionPrompt(content, sourceURL string) string {
	return fmt.Sprintf(`Extract community-relevant signals from the article below. Respond with ONLY a JSON object matching this schema, no prose:

{"nodes":[{"temp_id":"n0","type":"Gathering|Aid|Need|Notice|Tension","title":"...","summary":"...","sensitivity":"general|elevated|sensitive","confidence":0.0,"about_location_name":"...","about_lat":0.0,"about_lng":0.0,"content_date":"2006-01-02T15:04:05Z07:00","category":"...","urgency":"...","severity":"...","cause_heat":0.0,"organizer":"...","capacity":0,"starts_at":"...","ends_at":"...","is_recurring":false}],"resource_tags":{"n0":[{"slug":"...","role":"requires|prefers|offers","confidence":0.0,"context":"..."}]},"signal_tags":{"n0":["..."]},"author_actors":{"n0":"..."},"implied_queries":["..."]}

Omit fields that don't apply to a node's type. Source URL: %s

Article:
%s`, sourceURL, content)
}

type nodeDTO struct {
	TempID            string  `json:"temp_id"`
	Type              string  `json:"type"`
	Title             string  `json:"title"`
	Summary           string  `json:"summary"`
	Sensitivity       string  `json:"sensitivity"`
	Confidence        float64 `json:"confidence"`
	AboutLocationName string  `json:"about_location_name"`
	AboutLat          *float64 `json:"about_lat"`
	AboutLng          *float64 `json:"about_lng"`
	ContentDate       string  `json:"content_date"`
	Category          string  `json:"category"`
	Urgency           string  `json:"urgency"`
	Severity          string  `json:"severity"`
	CauseHeat         float64 `json:"cause_heat"`
	Organizer         string  `json:"organizer"`
	Capacity          *int    `json:"capacity"`
	StartsAt          string  `json:"starts_at"`
	EndsAt            string  `json:"ends_at"`
	IsRecurring       bool    `json:"is_recurring"`
}

type resourceTagDTO struct {
	Slug       string  `json:"slug"`
	Role       string  `json:"role"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

type extractionDTO struct {
	Nodes          []nodeDTO                   `json:"nodes"`
	ResourceTags   map[string][]resourceTagDTO `json:"resource_tags"`
	SignalTags     map[string][]string         `json:"signal_tags"`
	AuthorActors   map[string]string           `json:"author_actors"`
	ImpliedQueries []string                    `json:"implied_queries"`
}

// parseExtractionJSON converts the model's JSON-mode response into an
// extract.ExtractionResult, tolerating a markdown code fence around the JSON.
func parseExtractionJSON(raw string) (*extract.ExtractionResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var dto extractionDTO
	if err := json.Unmarshal([]byte(raw), &dto); err != nil {
		return nil, fmt.Errorf("unmarshal extraction response: %w", err)
	}

	nodes := make([]*entity.SignalNode, 0, len(dto.Nodes))
	for _, n := range dto.Nodes {
		node, err := nodeDTOToEntity(n)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	resourceTags := make(map[string][]extract.ResourceRoleTag, len(dto.ResourceTags))
	for id, tags := range dto.ResourceTags {
		converted := make([]extract.ResourceRoleTag, 0, len(tags))
		for _, t := range tags {
			converted = append(converted, extract.ResourceRoleTag{
				Slug:       t.Slug,
				Role:       entity.ResourceRole(t.Role),
				Confidence: t.Confidence,
				Context:    t.Context,
			})
		}
		resourceTags[id] = converted
	}

	return &extract.ExtractionResult{
		Nodes:          nodes,
		ResourceTags:   resourceTags,
		SignalTags:     dto.SignalTags,
		AuthorActors:   dto.AuthorActors,
		ImpliedQueries: dto.ImpliedQueries,
	}, nil
}

func nodeDTOToEntity(n nodeDTO) (*entity.SignalNode, error) {
	nodeType := entity.NodeType(n.Type)
	if !nodeType.Valid() {
		return nil, fmt.Errorf("%w: unrecognized node type %q", ErrExtractionFailed, n.Type)
	}

	meta := entity.NodeMeta{
		ID:                n.TempID,
		Title:             entity.NormalizeTitle(n.Title),
		Summary:           n.Summary,
		Sensitivity:       entity.Sensitivity(n.Sensitivity),
		Confidence:        n.Confidence,
		AboutLocationName: n.AboutLocationName,
	}
	if n.AboutLat != nil && n.AboutLng != nil {
		meta.AboutLocation = &entity.GeoPoint{Lat: *n.AboutLat, Lng: *n.AboutLng}
	}
	if n.ContentDate != "" {
		if t, err := time.Parse(time.RFC3339, n.ContentDate); err == nil {
			meta.ContentDate = &t
		}
	}
	if meta.Sensitivity == "" {
		meta.Sensitivity = entity.SensitivityGeneral
	}

	node := &entity.SignalNode{Type: nodeType, Meta: meta}
	switch nodeType {
	case entity.NodeTypeGathering:
		g := &entity.GatheringAttrs{Category: n.Category, Organizer: n.Organizer, IsRecurring: n.IsRecurring}
		if n.StartsAt != "" {
			if t, err := time.Parse(time.RFC3339, n.StartsAt); err == nil {
				g.StartsAt = &t
			}
		}
		if n.EndsAt != "" {
			if t, err := time.Parse(time.RFC3339, n.EndsAt); err == nil {
				g.EndsAt = &t
			}
		}
		node.Gathering = g
	case entity.NodeTypeAid:
		node.Aid = &entity.AidAttrs{Category: n.Category, Capacity: n.Capacity}
	case entity.NodeTypeNeed:
		node.Need = &entity.NeedAttrs{Urgency: n.Urgency, Category: n.Category}
	case entity.NodeTypeNotice:
		node.Notice = &entity.NoticeAttrs{Category: n.Category}
	case entity.NodeTypeTension:
		node.Tension = &entity.TensionAttrs{Severity: n.Severity, CauseHeat: n.CauseHeat}
	}

	return node, nil
}
