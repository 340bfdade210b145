package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsComplete(t *testing.T) {
	cfg := Default()

	if cfg.Working.Capacity != 7 {
		t.Errorf("capacity = %d, want 7", cfg.Working.Capacity)
	}
	if cfg.Decay.BaseStrength <= 0 || cfg.Decay.DefaultRate <= 0 {
		t.Errorf("decay defaults missing: %+v", cfg.Decay)
	}
	if cfg.Consolidation.SimilarityThreshold <= 0 || cfg.Consolidation.JobTimeout <= 0 {
		t.Errorf("consolidation defaults missing: %+v", cfg.Consolidation)
	}

	sum := cfg.Retrieval.RelevanceWeight + cfg.Retrieval.StrengthWeight +
		cfg.Retrieval.ImportanceWeight + cfg.Retrieval.RecencyWeight
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("retrieval weights sum to %v, want 1.0", sum)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("working:\n  capacity: 5\nconsolidation:\n  job_timeout: 30s\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Working.Capacity != 5 {
		t.Errorf("capacity = %d, want 5 from file", cfg.Working.Capacity)
	}
	if cfg.Consolidation.JobTimeout != 30*time.Second {
		t.Errorf("job_timeout = %v, want 30s from file", cfg.Consolidation.JobTimeout)
	}
	// Untouched sections keep their defaults.
	if cfg.Retrieval.DefaultLimit != Default().Retrieval.DefaultLimit {
		t.Errorf("default_limit = %d, want default", cfg.Retrieval.DefaultLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestShortTermTTL(t *testing.T) {
	cfg := Default()

	if ttl, ok := cfg.ShortTermTTL("temporary"); !ok || ttl != time.Hour {
		t.Errorf("temporary = %v, %v", ttl, ok)
	}
	if ttl, ok := cfg.ShortTermTTL("high"); !ok || ttl != 30*24*time.Hour {
		t.Errorf("high = %v, %v", ttl, ok)
	}
	if _, ok := cfg.ShortTermTTL("critical"); ok {
		t.Error("critical records must never expire")
	}
}
