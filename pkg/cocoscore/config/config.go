package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/cocoscore/pkg/cocoscore/aggregate"
	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
)

// Config is the scoring configuration file
type Config struct {
	Weights           Weights             `yaml:"weights"`
	WeightingExponent float64             `yaml:"weighting_exponent"`
	IgnoreScores      bool                `yaml:"ignore_scores"`
	Types             aggregate.PairTypes `yaml:"types"`
	Disease           Disease             `yaml:"disease"`
	Workers           int                 `yaml:"workers"`
	Logging           Logging             `yaml:"logging"`
	Store             Store               `yaml:"store"`
	Server            Server              `yaml:"server"`
}

// Weights are the granularity weights of the general pipeline
type Weights struct {
	Document  float64 `yaml:"document"`
	Paragraph float64 `yaml:"paragraph"`
	Sentence  float64 `yaml:"sentence"`
}

// Disease configures the disease pipeline. Its paragraph weight is always 0
// and its weighting exponent is fixed.
type Disease struct {
	DocumentWeight float64             `yaml:"document_weight"`
	SentenceWeight float64             `yaml:"sentence_weight"`
	Types          aggregate.PairTypes `yaml:"types"`
}

// Logging controls log level and output format
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Store selects where scoring runs are persisted
type Store struct {
	Driver string `yaml:"driver"` // memory, sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// Server configures the query service
type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the standard configuration
func Default() *Config {
	return &Config{
		Weights:           Weights{Document: 15, Paragraph: 0, Sentence: 1},
		WeightingExponent: 0.6,
		Disease:           Disease{DocumentWeight: 15, SentenceWeight: 1},
		Workers:           1,
		Logging:           Logging{Level: "info", Format: "text"},
		Store:             Store{Driver: "memory"},
		Server:            Server{Addr: ":8080"},
	}
}

// Load reads a YAML config on top of the defaults and applies environment
// overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("COCOSCORE_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("COCOSCORE_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("COCOSCORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks weights, the exponent and the store driver
func (c *Config) Validate() error {
	if err := c.Aggregate().Validate(); err != nil {
		return err
	}
	if err := c.DiseaseAggregate().Validate(); err != nil {
		return fmt.Errorf("disease: %w", err)
	}
	if math.IsNaN(c.WeightingExponent) || c.WeightingExponent < 0 || c.WeightingExponent > 1 {
		return internalerr.Configf("weighting exponent %v outside [0,1]", c.WeightingExponent)
	}
	if c.Workers < 0 {
		return internalerr.Configf("workers must be >= 0, got %d", c.Workers)
	}
	switch strings.ToLower(c.Store.Driver) {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return internalerr.Configf("store driver %q needs a dsn", c.Store.Driver)
		}
	default:
		return internalerr.Configf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// Aggregate returns the aggregator configuration of the general pipeline
func (c *Config) Aggregate() aggregate.Config {
	return aggregate.Config{
		DocumentWeight:  c.Weights.Document,
		ParagraphWeight: c.Weights.Paragraph,
		SentenceWeight:  c.Weights.Sentence,
		IgnoreScores:    c.IgnoreScores,
		Types:           c.Types,
		Workers:         c.Workers,
	}
}

// DiseaseAggregate returns the aggregator configuration of the disease pipeline
func (c *Config) DiseaseAggregate() aggregate.Config {
	return aggregate.Config{
		DocumentWeight: c.Disease.DocumentWeight,
		SentenceWeight: c.Disease.SentenceWeight,
		IgnoreScores:   true,
		Types:          c.Disease.Types,
		Workers:        c.Workers,
	}
}
