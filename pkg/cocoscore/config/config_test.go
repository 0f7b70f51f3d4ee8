package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	agg := cfg.Aggregate()
	if agg.DocumentWeight != 15 || agg.ParagraphWeight != 0 || agg.SentenceWeight != 1 {
		t.Errorf("unexpected default weights: %+v", agg)
	}
	if cfg.WeightingExponent != 0.6 {
		t.Errorf("expected exponent 0.6, got %v", cfg.WeightingExponent)
	}

	disease := cfg.DiseaseAggregate()
	if !disease.IgnoreScores {
		t.Error("disease pipeline must ignore scores")
	}
	if disease.ParagraphWeight != 0 {
		t.Errorf("disease paragraph weight should be 0, got %v", disease.ParagraphWeight)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory store, got %q", cfg.Store.Driver)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "cocoscore.yaml")

	content := `weights:
  document: 3
  paragraph: 2
  sentence: 0.2
weighting_exponent: 0.5
ignore_scores: true
types:
  first: "9606"
  second: "-26"
workers: 4
logging:
  level: debug
  format: json
store:
  driver: sqlite
  dsn: ` + filepath.Join(tmpDir, "runs.db") + `
server:
  addr: 127.0.0.1:9090
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Weights != (Weights{Document: 3, Paragraph: 2, Sentence: 0.2}) {
		t.Errorf("unexpected weights: %+v", cfg.Weights)
	}
	if cfg.WeightingExponent != 0.5 {
		t.Errorf("expected exponent 0.5, got %v", cfg.WeightingExponent)
	}
	if !cfg.IgnoreScores {
		t.Error("expected ignore_scores")
	}
	if cfg.Types.First != "9606" || cfg.Types.Second != "-26" {
		t.Errorf("unexpected types: %+v", cfg.Types)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Errorf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected sqlite store, got %q", cfg.Store.Driver)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("unexpected addr %q", cfg.Server.Addr)
	}

	// Unset sections keep their defaults
	if cfg.Disease.DocumentWeight != 15 || cfg.Disease.SentenceWeight != 1 {
		t.Errorf("disease defaults lost: %+v", cfg.Disease)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("COCOSCORE_STORE_DRIVER", "postgres")
	t.Setenv("COCOSCORE_STORE_DSN", "postgres://localhost/cocoscore")
	t.Setenv("COCOSCORE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN != "postgres://localhost/cocoscore" {
		t.Errorf("store overrides not applied: %+v", cfg.Store)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn level, got %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/cocoscore.yaml")
	if err == nil {
		t.Error("Should fail on missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("weights: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Should fail on invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Weights.Document = -1 }},
		{"all zero weights", func(c *Config) { c.Weights = Weights{} }},
		{"exponent above one", func(c *Config) { c.WeightingExponent = 1.5 }},
		{"negative exponent", func(c *Config) { c.WeightingExponent = -0.1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"zero disease weights", func(c *Config) { c.Disease.DocumentWeight = 0; c.Disease.SentenceWeight = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, internalerr.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}
