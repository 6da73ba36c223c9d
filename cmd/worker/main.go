// Command worker is a thin composition-root example wiring the scout
// library together (SPEC_FULL.md §6: "cmd/ in this repository carries only
// a thin composition-root example... not a production entrypoint"). It runs
// one scout cycle over one region and serves health/metrics while doing so
// — the same init/health/metrics shape as the teacher's cmd/worker, minus
// the cron scheduler the teacher used to repeat it (scheduling is an
// explicit Non-goal, SPEC_FULL.md §1: "A hosting binary provides CLI, exit
// codes, etc... schedulers and cron loops" are out of scope).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"scout/internal/domain/entity"
	"scout/internal/infra/adapter/persistence/neo4j"
	"scout/internal/infra/embedder"
	"scout/internal/infra/extractor"
	"scout/internal/infra/fetcher"
	"scout/internal/infra/worker"
	"scout/internal/observability/metrics"
	"scout/internal/pkg/config"
	"scout/internal/repository"
	"scout/internal/usecase/aggregate"
	"scout/internal/usecase/discovery"
	"scout/internal/usecase/linkpromoter"
	"scout/internal/usecase/scrape"
)

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadScoutConfigFromEnv(logger)
	if err != nil {
		logger.Error("failed to load scout configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("scout configuration loaded",
		slog.String("region", cfg.RegionSlug),
		slog.Float64("radius_km", cfg.RadiusKm),
		slog.Bool("discovery_enabled", cfg.DiscoveryEnabled()))

	healthAddr := fmt.Sprintf(":%d", cfg.HealthPort)
	healthServer := worker.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	metricsServer := startMetricsServer(logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	graph, err := neo4j.NewStore(ctx, neo4j.Config{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUsername,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	})
	if err != nil {
		logger.Error("failed to connect to neo4j", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := graph.Close(context.Background()); err != nil {
			logger.Error("failed to close neo4j driver", slog.Any("error", err))
		}
	}()

	contentFetcher := fetcher.NewReadabilityFetcher(fetcher.DefaultConfig())
	signalExtractor := extractor.NewClaude(cfg.AnthropicAPIKey, extractor.DefaultConfig())
	textEmbedder := embedder.NewOpenAI(cfg.OpenAIAPIKey, embedder.DefaultConfig())

	phase := scrape.New(contentFetcher, signalExtractor, graph, logger)
	applier := aggregate.New(graph, textEmbedder, cfg.BoundingBox(), cfg.CreatedBy, nil, logger)
	promoter := linkpromoter.New(graph, logger)
	finder := discovery.New(graph, textEmbedder, nil, logger)

	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	if err := runCycle(ctx, logger, cfg, graph, phase, applier, promoter, finder); err != nil {
		logger.Error("scout cycle failed", slog.Any("error", err))
	}

	logger.Info("scout cycle finished, serving health/metrics until signalled")
	<-ctx.Done()
	logger.Info("shutdown signal received")
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// cycleStats is the end-of-run summary logged per SPEC_FULL.md §7
// ("Stats are logged at end-of-run: signals_extracted, signals_stored,
// signals_deduplicated, urls_scraped, urls_failed, urls_unchanged, by_type
// counts, freshness histograms").
type cycleStats struct {
	sourcesDue        int
	signalsExtracted  int
	extractedBatches  int
	urlsFailed        int
	linksPromoted     int
	queriesDiscovered int
	reap              repository.ReapStats
	impliedQueries    []string
}

// runCycle runs one scout pass over cfg.RegionSlug (SPEC_FULL.md §5
// "Per-region mutual exclusion" and §4.5/§4.6/§4.7): acquire the region's
// ScoutLock, partition due sources into the web and social cohorts, run
// both ScrapePhase pipelines, apply their events through the
// AggregateApplier, promote collected links, run SourceFinder for the next
// cycle's candidates, and reap expired signals. Once the lock is held it is
// always released. Once due sources are loaded, failures of the later steps
// are logged and the cycle still ends with a stats summary (SPEC_FULL.md §7
// "the run always completes with a stats summary"); a DueSources error
// returns without one.
func runCycle(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.ScoutConfig,
	graph repository.GraphStore,
	phase *scrape.Phase,
	applier *aggregate.Applier,
	promoter *linkpromoter.Promoter,
	finder *discovery.Finder,
) error {
	runID := uuid.New().String()
	now := time.Now().UTC()
	logger = logger.With(slog.String("run_id", runID), slog.String("region", cfg.RegionSlug))

	acquired, err := graph.AcquireScoutLock(ctx, cfg.RegionSlug, runID, now)
	if err != nil {
		return fmt.Errorf("acquire scout lock: %w", err)
	}
	if !acquired {
		logger.Info("scout lock held by another run, skipping cycle")
		return nil
	}
	defer func() {
		if err := graph.ReleaseScoutLock(context.Background(), cfg.RegionSlug, runID); err != nil {
			logger.Warn("release scout lock failed", slog.Any("error", err))
		}
	}()

	bbox := cfg.BoundingBox()
	sources, err := graph.DueSources(ctx, bbox, now)
	if err != nil {
		return fmt.Errorf("due sources: %w", err)
	}

	stats := cycleStats{sourcesDue: len(sources)}
	rc := scrape.NewRunContext(runID, cfg.RegionSlug)

	var webSources, socialSources []*entity.Source
	for _, src := range sources {
		if src.Strategy.IsSocial() {
			socialSources = append(socialSources, src)
		} else {
			webSources = append(webSources, src)
		}
	}

	if len(webSources) > 0 {
		out, err := phase.RunWeb(ctx, rc, webSources, nil)
		if err != nil {
			logger.Warn("run_web failed", slog.Any("error", err))
		}
		if out != nil {
			applyAndAccumulate(ctx, logger, applier, promoter, rc, runID, out, &stats)
		}
	}

	if len(socialSources) > 0 {
		out, err := phase.RunSocial(ctx, rc, socialSources, nil)
		if err != nil {
			logger.Warn("run_social failed", slog.Any("error", err))
		}
		if out != nil {
			applyAndAccumulate(ctx, logger, applier, promoter, rc, runID, out, &stats)
		}
	}

	if err := runDiscovery(ctx, logger, cfg, graph, finder); err != nil {
		logger.Warn("source discovery failed", slog.Any("error", err))
	} else {
		stats.queriesDiscovered++
	}

	if n, err := upsertImpliedQueries(ctx, graph, stats.impliedQueries); err != nil {
		logger.Warn("implied query upsert failed", slog.Any("error", err))
	} else {
		stats.queriesDiscovered += n
	}

	reapStats, err := graph.ReapExpired(ctx, cfg.ReapConfig(), now)
	if err != nil {
		logger.Warn("reap_expired failed", slog.Any("error", err))
	}
	stats.reap = reapStats

	logger.Info("scout cycle completed",
		slog.Int("sources_due", stats.sourcesDue),
		slog.Int("signals_extracted", stats.signalsExtracted),
		slog.Int("urls_failed", stats.urlsFailed),
		slog.Int("links_promoted", stats.linksPromoted),
		slog.Int("past_events_reaped", stats.reap.PastEvents),
		slog.Int("expired_needs_reaped", stats.reap.ExpiredNeeds),
		slog.Int("expired_notices_reaped", stats.reap.ExpiredNotices),
		slog.Int("stale_reaped", stats.reap.StaleAidTension),
		slog.Int("orphaned_evidence_reaped", stats.reap.OrphanedEvidence))

	metrics.UpdateCycleDuration(time.Since(now).Seconds())
	metrics.UpdateExtractionSuccessRate(stats.extractedBatches, stats.extractedBatches+stats.urlsFailed)

	return nil
}

// applyAndAccumulate runs a ScrapeOutput through the aggregate applier and
// the link promoter, folding the result into stats (SPEC_FULL.md §4.5 step
// 10, §4.7).
func applyAndAccumulate(
	ctx context.Context,
	logger *slog.Logger,
	applier *aggregate.Applier,
	promoter *linkpromoter.Promoter,
	rc *scrape.RunContext,
	runID string,
	out *scrape.ScrapeOutput,
	stats *cycleStats,
) {
	for _, ev := range out.Events {
		if ev.Kind == scrape.EventSignalsExtracted && ev.Batch != nil && ev.Batch.Result != nil {
			stats.signalsExtracted += len(ev.Batch.Result.Nodes)
			stats.extractedBatches++
		}
	}
	stats.urlsFailed += len(out.QueryAPIErrors)
	stats.impliedQueries = append(stats.impliedQueries, out.ImpliedQueries...)

	if err := applier.Apply(ctx, rc, runID, out.Events); err != nil {
		logger.Warn("aggregate apply failed", slog.Any("error", err))
	}

	promoted, err := promoter.Promote(ctx, out.CollectedLinks)
	if err != nil {
		logger.Warn("link promotion failed", slog.Any("error", err))
		return
	}
	stats.linksPromoted += len(promoted)
}

// runDiscovery assembles the minimal graph-derived briefing SourceFinder
// needs to decide cold-start-vs-proposer (SPEC_FULL.md §4.6), then resolves
// and upserts whatever Sources survive dedup. A fuller briefing (situation
// landscape, gap-type stats, extraction yields, response shapes) requires
// rollup components this core doesn't own (SPEC_FULL.md §1 Non-goals: story
// synthesis and situation rollups are external); this composition root
// exercises the cold-start path, the shape every deployment falls back to
// whenever the LLM proposer is absent or errors.
func runDiscovery(ctx context.Context, logger *slog.Logger, cfg config.ScoutConfig, graph repository.GraphStore, finder *discovery.Finder) error {
	briefing := discovery.DiscoveryBriefing{}

	plan, err := finder.Discover(ctx, briefing, cfg.RegionSlug)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	if len(plan.Queries) == 0 {
		return nil
	}

	newSources, err := finder.Resolve(ctx, plan, briefing)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	for _, src := range newSources {
		exists, err := graph.SourceExists(ctx, src.CanonicalKey)
		if err != nil {
			logger.Warn("source_exists check failed", slog.String("canonical_key", src.CanonicalKey), slog.Any("error", err))
			continue
		}
		if exists {
			continue
		}
		if err := graph.UpsertSource(ctx, src); err != nil {
			logger.Warn("upsert discovered query source failed", slog.String("canonical_key", src.CanonicalKey), slog.Any("error", err))
		}
	}
	return nil
}

// upsertImpliedQueries turns the run's accumulated implied follow-up queries
// (SPEC_FULL.md §4.5, extracted alongside Tension/Need signals) into
// WebQuery sources discoverable on the next cycle, deduplicated by exact
// text and skipped when already present (SPEC_FULL.md §4.6's
// discovery_method=signal_expansion weight applies here, distinct from the
// gap_analysis path SourceFinder drives). Returns the count actually created.
func upsertImpliedQueries(ctx context.Context, graph repository.GraphStore, queries []string) (int, error) {
	seen := make(map[string]bool, len(queries))
	var created int
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true

		canonicalKey := "query:" + q
		exists, err := graph.SourceExists(ctx, canonicalKey)
		if err != nil {
			return created, fmt.Errorf("source_exists for implied query %q: %w", q, err)
		}
		if exists {
			continue
		}
		src := &entity.Source{
			CanonicalKey:    canonicalKey,
			CanonicalValue:  q,
			Strategy:        entity.StrategyWebQuery,
			DiscoveryMethod: entity.DiscoverySignalExpansion,
			Active:          true,
			Weight:          discovery.InitialWeight(entity.DiscoverySignalExpansion, discovery.GapUnmetTension),
		}
		if err := graph.UpsertSource(ctx, src); err != nil {
			return created, fmt.Errorf("upsert implied query source %q: %w", q, err)
		}
		created++
	}
	return created, nil
}
