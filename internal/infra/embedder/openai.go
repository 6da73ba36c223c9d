// Package embedder implements embed.TextEmbedder against OpenAI's
// embeddings API, adapted from internal/infra/summarizer/openai.go's circuit
// breaker + retry shape — one of the teacher's two LLM clients, repurposed
// for embeddings instead of chat completion since the domain stack needs a
// vector producer for the dedup ladder's layer-4/layer-5 cosine similarity
// lookups, not another text summarizer.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"scout/internal/resilience/circuitbreaker"
	"scout/internal/resilience/retry"
)

// defaultEmbedderRPS bounds embedding-call rate independent of the batch
// fan-out concurrency cap (SPEC_FULL.md §11).
const defaultEmbedderRPS = 5

// Config holds the OpenAI embedder's tunables.
type Config struct {
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns production defaults: text-embedding-3-small, the
// model the original implementation (rootsignal-graph) is sized against.
func DefaultConfig() Config {
	return Config{
		Model:   string(openai.SmallEmbedding3),
		Timeout: 30 * time.Second,
	}
}

// OpenAI implements embed.TextEmbedder.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	limiter        *rate.Limiter
	config         Config
}

// NewOpenAI creates an OpenAI-backed TextEmbedder.
func NewOpenAI(apiKey string, config Config) *OpenAI {
	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.EmbedderConfig()),
		retryConfig:    retry.EmbedConfig(),
		limiter:        rate.NewLimiter(rate.Limit(defaultEmbedderRPS), defaultEmbedderRPS),
		config:         config,
	}
}

// Embed batch-embeds texts, returning one unit-normalized vector per input
// in the same order. On error, no partial results are returned.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed batch failed: rate limiter: %w", err)
	}

	var result [][]float32
	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doEmbed(ctx, texts)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("embedder circuit breaker open, request rejected",
					slog.String("service", "openai-embed"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("embedder unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.([][]float32)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("embed batch failed: %w", retryErr)
	}
	return result, nil
}

func (o *OpenAI) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.config.Model),
	})
	duration := time.Since(start)
	if err != nil {
		slog.ErrorContext(ctx, "embedding request failed",
			slog.Int("batch_size", len(texts)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: requested %d, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = normalize(d.Embedding)
	}

	slog.InfoContext(ctx, "embedding batch completed",
		slog.Int("batch_size", len(texts)),
		slog.Duration("duration", duration))

	return vectors, nil
}

// normalize unit-normalizes a vector (SPEC_FULL.md §2 TextEmbedder: "unit-normalized
// float vector"). Returns v unchanged if its norm is zero.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
