// Package config loads engine configuration from YAML with defaults
// and validation. Settings layer in order: built-in defaults, the user
// config (~/.weblens/config.yaml), then the project config
// (./.weblens/config.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default tunables exported for documentation and validation.
const (
	DefaultScoreThreshold      = 5
	DefaultConfidenceFloor     = 25
	DefaultStabilityWait       = 5 * time.Second
	DefaultHistoryCapacity     = 100
	DefaultQueueGrace          = 10 * time.Minute
	DefaultEventBuffer         = 256
	DefaultMaxConcurrentRuns   = 4
	DefaultNetworkVerifyWindow = 10 * time.Second
)

// Config is the complete engine configuration.
type Config struct {
	Resolver   ResolverConfig   `yaml:"resolver"`
	Structural StructuralConfig `yaml:"structural"`
	Retry      RetryConfig      `yaml:"retry"`
	Runner     RunnerConfig     `yaml:"runner"`
	Browser    BrowserConfig    `yaml:"browser"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ResolverConfig holds the semantic scoring weights. The defaults are
// the calibrated production values; they are configurable so scoring
// changes never require a rebuild.
type ResolverConfig struct {
	// Attribute weights.
	TestIDWeight        int `yaml:"test_id_weight"`
	NameExactWeight     int `yaml:"name_exact_weight"`
	NameSubstringWeight int `yaml:"name_substring_weight"`
	WordOverlapWeight   int `yaml:"word_overlap_weight"`
	AriaLabelWeight     int `yaml:"aria_label_weight"`
	RoleWeight          int `yaml:"role_weight"`
	PlaceholderWeight   int `yaml:"placeholder_weight"`
	TitleWeight         int `yaml:"title_weight"`
	TagWeight           int `yaml:"tag_weight"`

	// Proximity bonuses for user-declared context.
	ProximityNearBonus    int `yaml:"proximity_near_bonus"`
	ProximityContainBonus int `yaml:"proximity_contain_bonus"`
	ProximityRadiusPx     int `yaml:"proximity_radius_px"`

	// A candidate must exceed Threshold to count as a match at all.
	Threshold int `yaml:"threshold"`
	// Raw scores divide by NormalizeDivisor to produce a 0..1
	// confidence, capped at 1.
	NormalizeDivisor int `yaml:"normalize_divisor"`
}

// StructuralConfig holds the structural-resolution weights for
// semantically void elements.
type StructuralConfig struct {
	MarkupWeight     int `yaml:"markup_weight"`
	ClassWeight      int `yaml:"class_weight"`
	AttrWeight       int `yaml:"attr_weight"`
	PositionWeight   int `yaml:"position_weight"`
	HrefWeight       int `yaml:"href_weight"`
	NearbyTextWeight int `yaml:"nearby_text_weight"`

	// ConfidenceFloor is a fixed minimum score. Structural matches are
	// heuristic; anything below the floor is rejected rather than
	// guessed at.
	ConfidenceFloor int `yaml:"confidence_floor"`
}

// RetryTier is one confidence level's retry schedule.
type RetryTier struct {
	Attempts int           `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`
}

// RetryConfig maps reference confidence to retry schedules. Native
// captures fail fast; hand-typed names get patience.
type RetryConfig struct {
	High   RetryTier `yaml:"high"`
	Medium RetryTier `yaml:"medium"`
	Low    RetryTier `yaml:"low"`

	// StabilityWait is the settle delay before the first resolution
	// attempt after a navigation.
	StabilityWait time.Duration `yaml:"stability_wait"`
}

// RunnerConfig tunes run management.
type RunnerConfig struct {
	HistoryCapacity   int           `yaml:"history_capacity"`
	QueueGrace        time.Duration `yaml:"queue_grace"`
	EventBuffer       int           `yaml:"event_buffer"`
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs"`
}

// BrowserConfig tunes browser sessions.
type BrowserConfig struct {
	ViewportWidth   int           `yaml:"viewport_width"`
	ViewportHeight  int           `yaml:"viewport_height"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
	Headless        bool          `yaml:"headless"`
}

// StorageConfig locates the report database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls the structured event log.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Resolver: ResolverConfig{
			TestIDWeight:          15,
			NameExactWeight:       12,
			NameSubstringWeight:   8,
			WordOverlapWeight:     4,
			AriaLabelWeight:       8,
			RoleWeight:            5,
			PlaceholderWeight:     3,
			TitleWeight:           3,
			TagWeight:             1,
			ProximityNearBonus:    5,
			ProximityContainBonus: 3,
			ProximityRadiusPx:     400,
			Threshold:             DefaultScoreThreshold,
			NormalizeDivisor:      20,
		},
		Structural: StructuralConfig{
			MarkupWeight:     15,
			ClassWeight:      10,
			AttrWeight:       8,
			PositionWeight:   12,
			HrefWeight:       10,
			NearbyTextWeight: 5,
			ConfidenceFloor:  DefaultConfidenceFloor,
		},
		Retry: RetryConfig{
			High:          RetryTier{Attempts: 2, Interval: 500 * time.Millisecond},
			Medium:        RetryTier{Attempts: 3, Interval: time.Second},
			Low:           RetryTier{Attempts: 5, Interval: 2 * time.Second},
			StabilityWait: DefaultStabilityWait,
		},
		Runner: RunnerConfig{
			HistoryCapacity:   DefaultHistoryCapacity,
			QueueGrace:        DefaultQueueGrace,
			EventBuffer:       DefaultEventBuffer,
			MaxConcurrentRuns: DefaultMaxConcurrentRuns,
		},
		Browser: BrowserConfig{
			ViewportWidth:   1280,
			ViewportHeight:  800,
			NavigateTimeout: 30 * time.Second,
			Headless:        true,
		},
		Storage: StorageConfig{
			Path: filepath.Join(".weblens", "runs.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration from defaults plus the user
// and project config files, then validates it.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		if err := loadAndMerge(cfg, filepath.Join(home, ".weblens", "config.yaml")); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}
	if err := loadAndMerge(cfg, filepath.Join(".", ".weblens", "config.yaml")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file over defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadAndMerge(cfg, path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Resolver.Threshold < 0 {
		return fmt.Errorf("resolver.threshold must be non-negative")
	}
	if c.Resolver.NormalizeDivisor <= 0 {
		return fmt.Errorf("resolver.normalize_divisor must be positive")
	}
	if c.Structural.ConfidenceFloor <= 0 {
		return fmt.Errorf("structural.confidence_floor must be positive")
	}
	for name, tier := range map[string]RetryTier{
		"retry.high": c.Retry.High, "retry.medium": c.Retry.Medium, "retry.low": c.Retry.Low,
	} {
		if tier.Attempts < 1 {
			return fmt.Errorf("%s.attempts must be at least 1", name)
		}
		if tier.Interval <= 0 {
			return fmt.Errorf("%s.interval must be positive", name)
		}
	}
	if c.Runner.HistoryCapacity < 1 {
		return fmt.Errorf("runner.history_capacity must be at least 1")
	}
	if c.Runner.EventBuffer < 1 {
		return fmt.Errorf("runner.event_buffer must be at least 1")
	}
	if c.Runner.MaxConcurrentRuns < 1 {
		return fmt.Errorf("runner.max_concurrent_runs must be at least 1")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive")
	}
	return nil
}
