package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// MatchingWeights combines the three candidate sub-scores into the overall
// matching score. The weights are renormalized at load time so they always
// sum to 1.
type MatchingWeights struct {
	Skill       float64 `yaml:"skill"`
	Workload    float64 `yaml:"workload"`
	Performance float64 `yaml:"performance"`
}

// PerformanceWeights blends the reviewer history metrics into the
// performance sub-score. Metrics missing for a reviewer are excluded and the
// remaining weights renormalized per reviewer.
type PerformanceWeights struct {
	Experience  float64 `yaml:"experience"`
	OnTimeRate  float64 `yaml:"on_time_rate"`
	Quality     float64 `yaml:"quality"`
	Consistency float64 `yaml:"consistency"`
}

// MatchingConfig holds all tunables of the reviewer matching engine.
type MatchingConfig struct {
	Weights            MatchingWeights    `yaml:"weights"`
	Performance        PerformanceWeights `yaml:"performance"`
	DefaultMaxWorkload int                `yaml:"default_max_workload"`
	// ExperienceCeiling is the completed-assignment count at which the
	// experience metric saturates at 1.0.
	ExperienceCeiling int `yaml:"experience_ceiling"`
	// ScoreBudgetMS bounds how long one suggestion computation may run, in
	// milliseconds, before the ranked list is truncated.
	ScoreBudgetMS int `yaml:"score_budget_ms"`
}

// Budget returns the score budget as a duration.
func (c MatchingConfig) Budget() time.Duration {
	return time.Duration(c.ScoreBudgetMS) * time.Millisecond
}

// DefaultMatchingConfig returns the compiled-in defaults.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		Weights: MatchingWeights{
			Skill:       0.5,
			Workload:    0.25,
			Performance: 0.25,
		},
		Performance: PerformanceWeights{
			Experience:  0.30,
			OnTimeRate:  0.35,
			Quality:     0.25,
			Consistency: 0.10,
		},
		DefaultMaxWorkload: 5,
		ExperienceCeiling:  20,
		ScoreBudgetMS:      2000,
	}
}

var (
	matchingMu  sync.RWMutex
	matchingCfg MatchingConfig = DefaultMatchingConfig()
)

// Matching returns the currently loaded matching configuration.
func Matching() MatchingConfig {
	matchingMu.RLock()
	defer matchingMu.RUnlock()
	return matchingCfg
}

// SetMatching replaces the matching configuration. Used by tests and by the
// reload path.
func SetMatching(cfg MatchingConfig) {
	matchingMu.Lock()
	defer matchingMu.Unlock()
	matchingCfg = cfg
}

// InitMatching loads the matching configuration from the YAML file named by
// MATCHING_CONFIG, then applies env overrides. Missing file falls back to
// defaults; a malformed file is a startup error.
func InitMatching() error {
	cfg := DefaultMatchingConfig()

	if path := os.Getenv("MATCHING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read matching config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to parse matching config %s: %w", path, err)
		}
	} else {
		log.Println("MATCHING_CONFIG not set, using default matching weights")
	}

	applyMatchingEnvOverrides(&cfg)

	if err := normalizeMatchingConfig(&cfg); err != nil {
		return err
	}

	SetMatching(cfg)
	return nil
}

func applyMatchingEnvOverrides(cfg *MatchingConfig) {
	if v := envFloat("MATCHING_WEIGHT_SKILL"); v != nil {
		cfg.Weights.Skill = *v
	}
	if v := envFloat("MATCHING_WEIGHT_WORKLOAD"); v != nil {
		cfg.Weights.Workload = *v
	}
	if v := envFloat("MATCHING_WEIGHT_PERFORMANCE"); v != nil {
		cfg.Weights.Performance = *v
	}
	if raw := os.Getenv("MATCHING_DEFAULT_MAX_WORKLOAD"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.DefaultMaxWorkload = n
		}
	}
}

func envFloat(name string) *float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Warning: ignoring invalid %s=%q", name, raw)
		return nil
	}
	return &v
}

func normalizeMatchingConfig(cfg *MatchingConfig) error {
	sum := cfg.Weights.Skill + cfg.Weights.Workload + cfg.Weights.Performance
	if sum <= 0 {
		return fmt.Errorf("matching weights must sum to a positive value, got %.3f", sum)
	}
	cfg.Weights.Skill /= sum
	cfg.Weights.Workload /= sum
	cfg.Weights.Performance /= sum

	if cfg.DefaultMaxWorkload <= 0 {
		cfg.DefaultMaxWorkload = DefaultMatchingConfig().DefaultMaxWorkload
	}
	if cfg.ExperienceCeiling <= 0 {
		cfg.ExperienceCeiling = DefaultMatchingConfig().ExperienceCeiling
	}
	if cfg.ScoreBudgetMS <= 0 {
		cfg.ScoreBudgetMS = DefaultMatchingConfig().ScoreBudgetMS
	}
	return nil
}
