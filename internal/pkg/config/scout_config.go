package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"scout/internal/repository"
)

// ScoutConfig is the engine's full config surface (SPEC_FULL.md §6): the
// bounding box for one region, API credentials, the LLM discovery budget,
// and the reap/freshness windows. Loaded fail-open, the same way the
// teacher's worker.WorkerConfig loads cron/notify settings: every field has
// a default, and a malformed value falls back to it with a logged warning
// rather than aborting startup.
type ScoutConfig struct {
	RegionSlug string
	RegionName string
	CenterLat  float64
	CenterLng  float64
	RadiusKm   float64

	AnthropicAPIKey string
	OpenAIAPIKey    string

	Neo4jURI      string
	Neo4jUsername string
	Neo4jPassword string
	Neo4jDatabase string

	// DiscoveryBudget caps LLM discovery calls per cycle; 0 means unlimited
	// (SPEC_FULL.md §6).
	DiscoveryBudget int

	NeedExpireDays          int
	NoticeExpireDays        int
	FreshnessMaxDays        int
	GatheringPastGraceHours int

	ChromeBin           string
	MaxConcurrentChrome int

	HealthPort int
	CreatedBy  string
}

// LoadScoutConfigFromEnv loads ScoutConfig from the environment, applying
// the same fail-open fallback strategy as the teacher's
// worker.LoadConfigFromEnv: invalid values are logged and replaced with
// defaults rather than treated as fatal.
func LoadScoutConfigFromEnv(logger *slog.Logger) (ScoutConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := ScoutConfig{
		RegionSlug: LoadEnvString("REGION_SLUG", "default"),
		RegionName: LoadEnvString("REGION_NAME", "Default Region"),

		AnthropicAPIKey: LoadEnvString("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    LoadEnvString("OPENAI_API_KEY", ""),

		Neo4jURI:      LoadEnvString("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUsername: LoadEnvString("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: LoadEnvString("NEO4J_PASSWORD", ""),
		Neo4jDatabase: LoadEnvString("NEO4J_DATABASE", "neo4j"),

		ChromeBin: LoadEnvString("CHROME_BIN", ""),
		CreatedBy: LoadEnvString("SCOUT_CREATED_BY", "scout"),
	}

	applyWarnings := func(result ConfigLoadResult) {
		for _, w := range result.Warnings {
			logger.Warn("scout config fallback", slog.String("detail", w))
		}
	}

	budgetResult := LoadEnvInt("DISCOVERY_BUDGET", 0, func(v int) error {
		return ValidateIntRange(v, 0, 100000)
	})
	applyWarnings(budgetResult)
	cfg.DiscoveryBudget = budgetResult.Value.(int)

	needExpireResult := LoadEnvInt("NEED_EXPIRE_DAYS", 14, func(v int) error {
		return ValidateIntRange(v, 1, 3650)
	})
	applyWarnings(needExpireResult)
	cfg.NeedExpireDays = needExpireResult.Value.(int)

	noticeExpireResult := LoadEnvInt("NOTICE_EXPIRE_DAYS", 30, func(v int) error {
		return ValidateIntRange(v, 1, 3650)
	})
	applyWarnings(noticeExpireResult)
	cfg.NoticeExpireDays = noticeExpireResult.Value.(int)

	freshnessResult := LoadEnvInt("FRESHNESS_MAX_DAYS", 60, func(v int) error {
		return ValidateIntRange(v, 1, 3650)
	})
	applyWarnings(freshnessResult)
	cfg.FreshnessMaxDays = freshnessResult.Value.(int)

	graceResult := LoadEnvInt("GATHERING_PAST_GRACE_HOURS", 6, func(v int) error {
		return ValidateIntRange(v, 0, 720)
	})
	applyWarnings(graceResult)
	cfg.GatheringPastGraceHours = graceResult.Value.(int)

	chromeConcurrencyResult := LoadEnvInt("MAX_CONCURRENT_CHROME", 2, func(v int) error {
		return ValidateIntRange(v, 1, 32)
	})
	applyWarnings(chromeConcurrencyResult)
	cfg.MaxConcurrentChrome = chromeConcurrencyResult.Value.(int)

	healthPortResult := LoadEnvInt("HEALTH_PORT", 8090, func(v int) error {
		return ValidateIntRange(v, 1, 65535)
	})
	applyWarnings(healthPortResult)
	cfg.HealthPort = healthPortResult.Value.(int)

	lat, err := loadEnvFloat("CENTER_LAT", 0, -90, 90)
	if err != nil {
		logger.Warn("scout config fallback", slog.String("detail", err.Error()))
	}
	cfg.CenterLat = lat

	lng, err := loadEnvFloat("CENTER_LNG", 0, -180, 180)
	if err != nil {
		logger.Warn("scout config fallback", slog.String("detail", err.Error()))
	}
	cfg.CenterLng = lng

	radius, err := loadEnvFloat("RADIUS_KM", 25, 0.1, 1000)
	if err != nil {
		logger.Warn("scout config fallback", slog.String("detail", err.Error()))
	}
	cfg.RadiusKm = radius

	return cfg, nil
}

// loadEnvFloat mirrors LoadEnvInt's fail-open shape for the one numeric type
// the existing loaders don't cover (bounding-box coordinates and radius are
// the only float config values named in SPEC_FULL.md §6).
func loadEnvFloat(envKey string, defaultValue, min, max float64) (float64, error) {
	raw := os.Getenv(envKey)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s=%q: not a number, falling back to default %v", envKey, raw, defaultValue)
	}
	if v < min || v > max {
		return defaultValue, fmt.Errorf("invalid %s=%v: outside [%v, %v], falling back to default %v", envKey, v, min, max, defaultValue)
	}
	return v, nil
}

// DiscoveryEnabled reports whether the LLM-driven discovery proposer should
// be wired (SPEC_FULL.md §6: "empty -> mechanical fallback").
func (c ScoutConfig) DiscoveryEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// BoundingBox builds the region scope consulted by vector search
// (SPEC_FULL.md §4.1). It is also passed to DueSources, which does not
// filter on it.
func (c ScoutConfig) BoundingBox() repository.BoundingBox {
	return repository.BoundingBox{
		CenterLat: c.CenterLat,
		CenterLng: c.CenterLng,
		RadiusKm:  c.RadiusKm,
	}
}

// ReapConfig builds the expiry windows consulted by ReapExpired
// (SPEC_FULL.md §6 config table).
func (c ScoutConfig) ReapConfig() repository.ReapConfig {
	return repository.ReapConfig{
		NeedExpireDays:          c.NeedExpireDays,
		NoticeExpireDays:        c.NoticeExpireDays,
		FreshnessMaxDays:        c.FreshnessMaxDays,
		GatheringPastGraceHours: c.GatheringPastGraceHours,
	}
}
