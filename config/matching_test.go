package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestInitMatchingDefaults(t *testing.T) {
	t.Setenv("MATCHING_CONFIG", "")
	t.Setenv("MATCHING_WEIGHT_SKILL", "")
	t.Setenv("MATCHING_WEIGHT_WORKLOAD", "")
	t.Setenv("MATCHING_WEIGHT_PERFORMANCE", "")

	if err := InitMatching(); err != nil {
		t.Fatalf("InitMatching returned error: %v", err)
	}

	cfg := Matching()
	if cfg.Weights.Skill != 0.5 || cfg.Weights.Workload != 0.25 || cfg.Weights.Performance != 0.25 {
		t.Fatalf("unexpected default weights: %+v", cfg.Weights)
	}
	if cfg.DefaultMaxWorkload != 5 {
		t.Fatalf("unexpected default max workload: %d", cfg.DefaultMaxWorkload)
	}
}

func TestInitMatchingLoadsYAMLAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matching.yaml")
	content := []byte("weights:\n  skill: 2\n  workload: 1\n  performance: 1\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("MATCHING_CONFIG", path)
	t.Setenv("MATCHING_WEIGHT_SKILL", "")
	t.Setenv("MATCHING_WEIGHT_WORKLOAD", "")
	t.Setenv("MATCHING_WEIGHT_PERFORMANCE", "")

	if err := InitMatching(); err != nil {
		t.Fatalf("InitMatching returned error: %v", err)
	}

	cfg := Matching()
	if math.Abs(cfg.Weights.Skill-0.5) > 1e-9 {
		t.Fatalf("expected skill weight normalized to 0.5, got %v", cfg.Weights.Skill)
	}
	sum := cfg.Weights.Skill + cfg.Weights.Workload + cfg.Weights.Performance
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("weights must sum to 1, got %v", sum)
	}
}

func TestInitMatchingEnvOverride(t *testing.T) {
	t.Setenv("MATCHING_CONFIG", "")
	t.Setenv("MATCHING_WEIGHT_SKILL", "0.8")
	t.Setenv("MATCHING_WEIGHT_WORKLOAD", "0.1")
	t.Setenv("MATCHING_WEIGHT_PERFORMANCE", "0.1")

	if err := InitMatching(); err != nil {
		t.Fatalf("InitMatching returned error: %v", err)
	}

	cfg := Matching()
	if math.Abs(cfg.Weights.Skill-0.8) > 1e-9 {
		t.Fatalf("expected skill weight 0.8, got %v", cfg.Weights.Skill)
	}
}

func TestInitMatchingRejectsNonPositiveWeights(t *testing.T) {
	t.Setenv("MATCHING_CONFIG", "")
	t.Setenv("MATCHING_WEIGHT_SKILL", "0")
	t.Setenv("MATCHING_WEIGHT_WORKLOAD", "0")
	t.Setenv("MATCHING_WEIGHT_PERFORMANCE", "0")

	if err := InitMatching(); err == nil {
		t.Fatal("expected an error for all-zero weights")
	}
}
