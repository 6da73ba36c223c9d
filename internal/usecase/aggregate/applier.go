// Package aggregate implements the idempotent consumer of ScrapePhase's
// emitted events (SPEC_FULL.md §12 "event-sourced write seam"): it performs
// every GraphStore write, including dedup ladder layers 2-5, keeping
// ScrapePhase itself a pure orchestrator. There is no teacher analog for
// this split — the teacher's fetch.Service writes synchronously because it
// has no multi-layer dedup ladder to gate writes against — so this package
// is new code written in the teacher's idiom (constructor + interface-typed
// dependencies + slog, SPEC_FULL.md §12).
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scout/internal/domain/entity"
	"scout/internal/observability/metrics"
	"scout/internal/repository"
	"scout/internal/usecase/dedup"
	"scout/internal/usecase/embed"
	"scout/internal/usecase/extract"
	"scout/internal/usecase/scrape"
)

// Applier consumes scrape.Event values and performs the idempotent graph
// writes they describe.
type Applier struct {
	Graph          repository.GraphStore
	Embedder       embed.TextEmbedder
	BoundingBox    repository.BoundingBox
	CreatedBy      string
	EntityMappings map[string]string // host -> canonical entity name, for Corroborate attribution
	Logger         *slog.Logger
}

// New constructs an Applier from its collaborators.
func New(graph repository.GraphStore, embedder embed.TextEmbedder, bbox repository.BoundingBox, createdBy string, entityMappings map[string]string, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{
		Graph:          graph,
		Embedder:       embedder,
		BoundingBox:    bbox,
		CreatedBy:      createdBy,
		EntityMappings: entityMappings,
		Logger:         logger,
	}
}

// Apply consumes every event in order, applying each to the graph. A
// failure applying one event is logged and does not abort the batch — graph
// writes are fatal only to the current signal (SPEC_FULL.md §4.1 Failure
// semantics), never to the run.
func (a *Applier) Apply(ctx context.Context, rc *scrape.RunContext, runID string, events []scrape.Event) error {
	var tally dedupTally
	for _, ev := range events {
		var err error
		switch ev.Kind {
		case scrape.EventSignalsExtracted:
			err = a.applyBatch(ctx, rc, runID, ev.Batch, &tally)
		case scrape.EventFreshnessConfirmed:
			// ScrapePhase already called RefreshURLSignals inline for the
			// already-processed-content short circuit (SPEC_FULL.md §4.5
			// step 7); nothing further to write here.
		case scrape.EventSourceDiscovered:
			err = a.applySourceDiscovered(ctx, ev.DiscoveredSource)
		}
		if err != nil {
			a.Logger.Warn("aggregate apply failed", slog.String("kind", string(ev.Kind)), slog.Any("error", err))
		}
	}
	tally.report()
	return nil
}

// dedupTally counts ladder verdicts by layer across one Apply call, feeding
// the scout_slo_dedup_early_resolution_ratio gauge: a rising share of
// layer-5 (graph vector search) verdicts means the cheaper batch/title
// layers are no longer catching near-dupes.
type dedupTally struct {
	early, total int
}

func (t *dedupTally) add(layer string) {
	t.total++
	// A no-match create has already been through the vector search layer.
	if layer != string(dedup.LayerVectorIndex) && layer != string(dedup.LayerNone) {
		t.early++
	}
}

func (t *dedupTally) report() {
	metrics.UpdateDedupCorroborationRate(t.early, t.total)
}

func (a *Applier) applySourceDiscovered(ctx context.Context, src *entity.Source) error {
	if src == nil {
		return nil
	}
	start := time.Now()
	err := a.Graph.UpsertSource(ctx, src)
	metrics.RecordGraphWrite("upsert_source", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert discovered source: %w", err)
	}
	return nil
}

// applyBatch runs every node in one ExtractedBatch through dedup ladder
// layers 2-5 and dispatches the resulting create/refresh/corroborate verdict
// to the graph, merging an Evidence node for every terminal state
// (SPEC_FULL.md §4.4 "All three terminal states produce an Evidence merge").
func (a *Applier) applyBatch(ctx context.Context, rc *scrape.RunContext, runID string, batch *scrape.ExtractedBatch, tally *dedupTally) error {
	if batch == nil || batch.Result == nil || len(batch.Result.Nodes) == 0 {
		return nil
	}

	existingTitles, err := a.Graph.ExistingTitlesForURL(ctx, batch.SourceURL)
	if err != nil {
		a.Logger.Warn("existing_titles_for_url failed, treating as empty", slog.String("url", batch.SourceURL), slog.Any("error", err))
		existingTitles = map[string]bool{}
	}

	pairs := make([]repository.TitleTypePair, 0, len(batch.Result.Nodes))
	for _, n := range batch.Result.Nodes {
		pairs = append(pairs, repository.TitleTypePair{
			NormalizedTitle: entity.NormalizeTitle(n.Meta.Title),
			Type:            n.Type,
		})
	}
	globalMatches, err := a.Graph.FindByTitlesAndTypes(ctx, pairs)
	if err != nil {
		a.Logger.Warn("find_by_titles_and_types failed, treating as no match", slog.Any("error", err))
		globalMatches = map[repository.TitleTypePair]repository.DuplicateMatch{}
	}

	texts := make([]string, len(batch.Result.Nodes))
	for i, n := range batch.Result.Nodes {
		texts[i] = n.Meta.Title + "\n" + n.Meta.Summary
	}
	embeddings, err := a.Embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(embeddings) != len(batch.Result.Nodes) {
		return fmt.Errorf("embed batch: got %d vectors for %d nodes", len(embeddings), len(batch.Result.Nodes))
	}

	now := time.Now()
	producedCount := 0
	for i, node := range batch.Result.Nodes {
		normalizedTitle := entity.NormalizeTitle(node.Meta.Title)
		embedding := embeddings[i]

		var globalMatch *repository.DuplicateMatch
		if m, ok := globalMatches[repository.TitleTypePair{NormalizedTitle: normalizedTitle, Type: node.Type}]; ok {
			globalMatch = &m
		}

		vectorMatch, found, err := a.Graph.FindDuplicate(ctx, embedding, node.Type, dedup.EntryThreshold, a.BoundingBox)
		if err != nil {
			a.Logger.Warn("find_duplicate failed, treating as no match", slog.String("type", string(node.Type)), slog.Any("error", err))
			vectorMatch, found = nil, false
		}
		if !found {
			vectorMatch = nil
		}

		candidate := dedup.Candidate{
			NormalizedTitle: normalizedTitle,
			Type:            node.Type,
			SourceURL:       batch.SourceURL,
			Embedding:       embedding,
		}
		decision := dedup.Decide(candidate, existingTitles, globalMatch, cacheFor(rc), vectorMatch)

		metrics.RecordDedupVerdict(string(decision.Verdict), string(decision.Layer), decision.Similarity)
		tally.add(string(decision.Layer))

		if decision.Dropped {
			continue
		}

		if author, ok := batch.Result.AuthorActors[node.Meta.ID]; ok {
			node.Meta.AuthorActor = author
		}

		id, err := a.dispatch(ctx, node, embedding, decision, runID, now)
		if err != nil {
			a.Logger.Warn("dispatch failed, skipping signal", slog.String("title", node.Meta.Title), slog.Any("error", err))
			continue
		}

		a.linkAnnotations(ctx, id, node, batch.Result)

		rc.EmbeddingCache = append(rc.EmbeddingCache, scrape.CachedCandidate{
			ID: id, SourceURL: batch.SourceURL, Type: node.Type, Embedding: embedding,
		})

		ev := &entity.Evidence{
			SourceURL:   batch.SourceURL,
			RetrievedAt: now,
			ContentHash: batch.ContentHash,
			Relevance:   entity.RelevanceDirect,
			ChannelType: entity.DefaultChannelType,
		}
		writeStart := time.Now()
		if err := a.Graph.CreateEvidence(ctx, id, ev); err != nil {
			metrics.RecordGraphWrite("create_evidence", time.Since(writeStart), err)
			a.Logger.Warn("create_evidence failed", slog.String("signal_id", id), slog.Any("error", err))
			continue
		}
		metrics.RecordGraphWrite("create_evidence", time.Since(writeStart), nil)
		producedCount++
	}

	if err := a.Graph.RecordSourceScrape(ctx, batch.SourceID, producedCount, now); err != nil {
		a.Logger.Warn("record_source_scrape failed", slog.String("canonical_key", batch.SourceID), slog.Any("error", err))
	}
	return nil
}

// dispatch applies the verdict-specific graph write and returns the
// resulting signal ID.
func (a *Applier) dispatch(ctx context.Context, node *entity.SignalNode, embedding []float32, decision dedup.Decision, runID string, now time.Time) (string, error) {
	start := time.Now()
	switch decision.Verdict {
	case dedup.VerdictCreate:
		id, err := a.Graph.CreateNode(ctx, node, embedding, a.CreatedBy, runID)
		metrics.RecordGraphWrite("create_node", time.Since(start), err)
		if err != nil {
			return "", fmt.Errorf("create_node: %w", err)
		}
		metrics.UpdateSignalNodesTotal(string(node.Type), 1)
		return id, nil

	case dedup.VerdictRefresh:
		if err := a.Graph.RefreshSignal(ctx, decision.ExistingID, node.Type, now); err != nil {
			metrics.RecordGraphWrite("refresh_signal", time.Since(start), err)
			return "", fmt.Errorf("refresh_signal: %w", err)
		}
		metrics.RecordGraphWrite("refresh_signal", time.Since(start), nil)
		return decision.ExistingID, nil

	case dedup.VerdictCorroborate:
		if err := a.Graph.Corroborate(ctx, decision.ExistingID, node.Type, now, a.EntityMappings); err != nil {
			metrics.RecordGraphWrite("corroborate", time.Since(start), err)
			return "", fmt.Errorf("corroborate: %w", err)
		}
		metrics.RecordGraphWrite("corroborate", time.Since(start), nil)
		return decision.ExistingID, nil
	}
	return "", fmt.Errorf("dispatch: unrecognized verdict %q", decision.Verdict)
}

// linkAnnotations writes the SignalTags/ResourceTags/AuthorActors the
// extractor proposed for node (keyed by its provisional temp_id, carried
// through in node.Meta.ID) as TAGGED, REQUIRES/PREFERS/OFFERS, and
// ACTED_IN{role=author} edges (SPEC_FULL.md §3, §4.3, §4.5 step 10). Each
// write is independent and best-effort: one failing edge is logged and
// skipped, never aborting the signal it's attached to (SPEC_FULL.md §4.1
// failure semantics).
func (a *Applier) linkAnnotations(ctx context.Context, signalID string, node *entity.SignalNode, result *extract.ExtractionResult) {
	if result == nil || node.Meta.ID == "" {
		return
	}
	key := node.Meta.ID

	if slugs := result.SignalTags[key]; len(slugs) > 0 {
		if err := a.Graph.TagSignal(ctx, signalID, node.Type, slugs); err != nil {
			a.Logger.Warn("tag_signal failed", slog.String("signal_id", signalID), slog.Any("error", err))
		}
	}

	for _, rt := range result.ResourceTags[key] {
		link := repository.ResourceLink{Slug: rt.Slug, Role: rt.Role, Confidence: rt.Confidence}
		if err := a.Graph.LinkResource(ctx, signalID, node.Type, link); err != nil {
			a.Logger.Warn("link_resource failed", slog.String("signal_id", signalID), slog.String("slug", rt.Slug), slog.Any("error", err))
		}
	}

	if author, ok := result.AuthorActors[key]; ok && author != "" {
		if err := a.Graph.LinkActor(ctx, signalID, node.Type, author, "author"); err != nil {
			a.Logger.Warn("link_actor failed", slog.String("signal_id", signalID), slog.Any("error", err))
		}
	}
}

// cacheFor adapts RunContext's embedding cache to the ladder's input shape.
func cacheFor(rc *scrape.RunContext) []dedup.CachedEmbedding {
	cache := make([]dedup.CachedEmbedding, len(rc.EmbeddingCache))
	for i, c := range rc.EmbeddingCache {
		cache[i] = dedup.CachedEmbedding{ID: c.ID, SourceURL: c.SourceURL, Type: c.Type, Embedding: c.Embedding}
	}
	return cache
}
