package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mnemo-dev/mnemo/internal/domain"
)

// DecayMode selects how the attention sweep lowers scores.
type DecayMode string

const (
	DecaySimple    DecayMode = "simple"    // per-tier multiplicative rates
	DecayFSRS      DecayMode = "fsrs"      // retrievability from stability
	DecayComposite DecayMode = "composite" // five-factor weighted blend
)

// ArchiveAction is what the archival scan does to a candidate.
type ArchiveAction string

const (
	ArchiveMark       ArchiveAction = "mark"
	ArchiveSoftDelete ArchiveAction = "soft_delete"
	ArchiveLogOnly    ArchiveAction = "log_only"
)

// Config is the full engine configuration, built once at startup and
// injected into every component. No component reads the environment after
// Load returns.
type Config struct {
	DBPath   string
	LogLevel string

	// State classifier thresholds, strictly ordered HOT > WARM > COLD > DORMANT.
	HotThreshold     float64
	WarmThreshold    float64
	ColdThreshold    float64
	DormantThreshold float64
	HotLimit         int
	WarmLimit        int
	SummaryMaxChars  int

	// Archival / inactivity rule (shared with the classifier via
	// domain.ArchivalPolicy).
	InactivityThreshold time.Duration
	ArchivalInterval    time.Duration
	ArchivalBatchSize   int
	ArchivalAction      ArchiveAction
	ArchivalRatePerSec  float64

	// Working memory
	MaxSessionEntries int
	SessionTimeout    time.Duration

	// Attention scoring
	DecayMode      DecayMode
	SpreadBoost    float64
	SpreadFanout   int
	UsageCap       int // access count saturation for the usage factor
	TemporalWeight float64
	UsageWeight    float64
	TierWeight     float64
	QueryWeight    float64
	CitationWeight float64

	// Prediction-error gate
	ReinforceThreshold float64
	UpdateThreshold    float64
	LinkThreshold      float64
	MaxLinkCandidates  int
	PreviewMaxChars    int

	// Consolidation
	ConsolidationInterval time.Duration
	ReplayMinAge          time.Duration
	ReplayBatchSize       int
	OverlapThreshold      float64
	MinOccurrences        int
	MinPatternStrength    float64
	StrengthenMultiplier  float64
	StrengthenMinAccess   int
	StrengthenCooldown    time.Duration
}

// Default returns the spec-default configuration.
func Default() *Config {
	return &Config{
		DBPath:   "mnemo.db",
		LogLevel: "info",

		HotThreshold:     0.80,
		WarmThreshold:    0.25,
		ColdThreshold:    0.05,
		DormantThreshold: 0.02,
		HotLimit:         5,
		WarmLimit:        10,
		SummaryMaxChars:  200,

		InactivityThreshold: 90 * 24 * time.Hour,
		ArchivalInterval:    time.Hour,
		ArchivalBatchSize:   50,
		ArchivalAction:      ArchiveMark,
		ArchivalRatePerSec:  25,

		MaxSessionEntries: 50,
		SessionTimeout:    72 * time.Hour,

		DecayMode:      DecaySimple,
		SpreadBoost:    0.35,
		SpreadFanout:   5,
		UsageCap:       50,
		TemporalWeight: 0.45,
		UsageWeight:    0.20,
		TierWeight:     0.20,
		QueryWeight:    0.10,
		CitationWeight: 0.05,

		ReinforceThreshold: 0.95,
		UpdateThreshold:    0.90,
		LinkThreshold:      0.70,
		MaxLinkCandidates:  3,
		PreviewMaxChars:    120,

		ConsolidationInterval: 6 * time.Hour,
		ReplayMinAge:          7 * 24 * time.Hour,
		ReplayBatchSize:       50,
		OverlapThreshold:      0.75,
		MinOccurrences:        2,
		MinPatternStrength:    0.6,
		StrengthenMultiplier:  1.3,
		StrengthenMinAccess:   5,
		StrengthenCooldown:    24 * time.Hour,
	}
}

// Load reads the .env file specified by MNEMO_ENV (or .env by default)
// plus its .secret sidecar, then builds and validates a Config from the
// environment on top of the defaults.
func Load() (*Config, error) {
	envFile := os.Getenv("MNEMO_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	cfg := Default()

	cfg.DBPath = envString("MNEMO_DB_PATH", cfg.DBPath)
	cfg.LogLevel = envString("MNEMO_LOG_LEVEL", cfg.LogLevel)

	cfg.HotThreshold = envFloat("MNEMO_HOT_THRESHOLD", cfg.HotThreshold)
	cfg.WarmThreshold = envFloat("MNEMO_WARM_THRESHOLD", cfg.WarmThreshold)
	cfg.ColdThreshold = envFloat("MNEMO_COLD_THRESHOLD", cfg.ColdThreshold)
	cfg.DormantThreshold = envFloat("MNEMO_DORMANT_THRESHOLD", cfg.DormantThreshold)
	cfg.HotLimit = envInt("MNEMO_HOT_LIMIT", cfg.HotLimit)
	cfg.WarmLimit = envInt("MNEMO_WARM_LIMIT", cfg.WarmLimit)

	cfg.InactivityThreshold = envDays("MNEMO_INACTIVITY_DAYS", cfg.InactivityThreshold)
	cfg.ArchivalInterval = envDuration("MNEMO_ARCHIVAL_INTERVAL", cfg.ArchivalInterval)
	cfg.ArchivalBatchSize = envInt("MNEMO_ARCHIVAL_BATCH_SIZE", cfg.ArchivalBatchSize)
	cfg.ArchivalAction = ArchiveAction(envString("MNEMO_ARCHIVAL_ACTION", string(cfg.ArchivalAction)))
	cfg.ArchivalRatePerSec = envFloat("MNEMO_ARCHIVAL_RATE", cfg.ArchivalRatePerSec)

	cfg.MaxSessionEntries = envInt("MNEMO_MAX_SESSION_ENTRIES", cfg.MaxSessionEntries)
	cfg.SessionTimeout = envDuration("MNEMO_SESSION_TIMEOUT", cfg.SessionTimeout)

	cfg.DecayMode = DecayMode(envString("MNEMO_DECAY_MODE", string(cfg.DecayMode)))
	cfg.SpreadBoost = envFloat("MNEMO_SPREAD_BOOST", cfg.SpreadBoost)
	cfg.SpreadFanout = envInt("MNEMO_SPREAD_FANOUT", cfg.SpreadFanout)

	cfg.ConsolidationInterval = envDuration("MNEMO_CONSOLIDATION_INTERVAL", cfg.ConsolidationInterval)
	cfg.ReplayMinAge = envDays("MNEMO_REPLAY_MIN_AGE_DAYS", cfg.ReplayMinAge)
	cfg.ReplayBatchSize = envInt("MNEMO_REPLAY_BATCH_SIZE", cfg.ReplayBatchSize)
	cfg.OverlapThreshold = envFloat("MNEMO_OVERLAP_THRESHOLD", cfg.OverlapThreshold)
	cfg.MinOccurrences = envInt("MNEMO_MIN_OCCURRENCES", cfg.MinOccurrences)
	cfg.MinPatternStrength = envFloat("MNEMO_MIN_PATTERN_STRENGTH", cfg.MinPatternStrength)
	cfg.StrengthenMultiplier = envFloat("MNEMO_STRENGTHEN_MULTIPLIER", cfg.StrengthenMultiplier)
	cfg.StrengthenMinAccess = envInt("MNEMO_STRENGTHEN_MIN_ACCESS", cfg.StrengthenMinAccess)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants every component relies on.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if !(c.HotThreshold > c.WarmThreshold && c.WarmThreshold > c.ColdThreshold && c.ColdThreshold > c.DormantThreshold) {
		return fmt.Errorf("state thresholds must be strictly ordered hot > warm > cold > dormant")
	}
	if c.HotThreshold > 1 || c.DormantThreshold < 0 {
		return fmt.Errorf("state thresholds must lie in [0,1]")
	}
	if c.HotLimit <= 0 || c.WarmLimit <= 0 {
		return fmt.Errorf("state limits must be positive")
	}
	if c.MaxSessionEntries <= 0 {
		return fmt.Errorf("max session entries must be positive")
	}
	if c.SpreadBoost <= 0 || c.SpreadBoost > 1 {
		return fmt.Errorf("spread boost must lie in (0,1]")
	}
	if c.SpreadFanout <= 0 {
		return fmt.Errorf("spread fanout must be positive")
	}
	switch c.DecayMode {
	case DecaySimple, DecayFSRS, DecayComposite:
	default:
		return fmt.Errorf("unknown decay mode %q", c.DecayMode)
	}
	switch c.ArchivalAction {
	case ArchiveMark, ArchiveSoftDelete, ArchiveLogOnly:
	default:
		return fmt.Errorf("unknown archival action %q", c.ArchivalAction)
	}
	if !(c.ReinforceThreshold >= c.UpdateThreshold && c.UpdateThreshold >= c.LinkThreshold) {
		return fmt.Errorf("gate thresholds must be ordered reinforce >= update >= link")
	}
	if c.OverlapThreshold <= 0 || c.OverlapThreshold > 1 {
		return fmt.Errorf("overlap threshold must lie in (0,1]")
	}
	if c.MinOccurrences < 2 {
		return fmt.Errorf("min occurrences must be at least 2")
	}
	if c.StrengthenMultiplier <= 1 {
		return fmt.Errorf("strengthen multiplier must exceed 1")
	}
	if c.ArchivalBatchSize <= 0 || c.ReplayBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	return nil
}

// ArchivalPolicy returns the shared inactivity rule both the classifier
// and the archival manager consult.
func (c *Config) ArchivalPolicy() domain.ArchivalPolicy {
	return domain.ArchivalPolicy{InactivityThreshold: c.InactivityThreshold}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envDays(key string, def time.Duration) time.Duration {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return time.Duration(v * 24 * float64(time.Hour))
}
