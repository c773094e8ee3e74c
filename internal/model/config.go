package model

import (
	"runtime"
	"time"
)

// Config is the complete carbonintel configuration
type Config struct {
	Query       QueryConfig       `yaml:"query" mapstructure:"query"`
	Rubric      Rubric            `yaml:"rubric" mapstructure:"rubric"`
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
}

// QueryConfig bounds the time-window query surface
type QueryConfig struct {
	DefaultDays        int `yaml:"default_days" mapstructure:"default_days"`
	MinDays            int `yaml:"min_days" mapstructure:"min_days"`
	MaxDays            int `yaml:"max_days" mapstructure:"max_days"`
	RecentDays         int `yaml:"recent_days" mapstructure:"recent_days"`                   // Nested "recent" sub-window
	TopN               int `yaml:"top_n" mapstructure:"top_n"`                               // Length of top lists in summaries
	HighScoreThreshold int `yaml:"high_score_threshold" mapstructure:"high_score_threshold"` // Strictly greater counts as high
	AlertLimit         int `yaml:"alert_limit" mapstructure:"alert_limit"`
}

// ExtractionConfig configures the field extractor
type ExtractionConfig struct {
	RulesFile    string            `yaml:"rules_file" mapstructure:"rules_file"`       // Optional YAML rule set replacing the built-ins
	KnownSectors map[string]string `yaml:"known_sectors" mapstructure:"known_sectors"` // Normalized company -> sector
	MaxDetails   int               `yaml:"max_details" mapstructure:"max_details"`     // Cap on accumulated details text
}

// StoreConfig selects and configures the record store
type StoreConfig struct {
	Driver   string        `yaml:"driver" mapstructure:"driver"` // memory, file, postgres
	Path     string        `yaml:"path" mapstructure:"path"`     // Directory for the file driver
	DSN      string        `yaml:"dsn" mapstructure:"dsn"`       // Postgres connection string
	Table    string        `yaml:"table" mapstructure:"table"`
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"` // Read-through cache; 0 disables
}

// ConcurrencyConfig sizes the worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// MetricsConfig configures ingestion metrics output
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"` // Prometheus textfile-collector path
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Query: QueryConfig{
			DefaultDays:        180,
			MinDays:            1,
			MaxDays:            180,
			RecentDays:         7,
			TopN:               5,
			HighScoreThreshold: 60,
			AlertLimit:         20,
		},
		Rubric: DefaultRubric(),
		Extraction: ExtractionConfig{
			KnownSectors: map[string]string{
				"persefoni":      "carbon-accounting",
				"watershed":      "carbon-accounting",
				"sweep":          "carbon-accounting",
				"greenly":        "carbon-accounting",
				"climatiq":       "carbon-accounting",
				"carbonchain":    "carbon-accounting",
				"sylvera":        "mrv",
				"pachama":        "nature-based",
				"verra":          "registry",
				"gold standard":  "registry",
				"toucan":         "tokenization",
				"flowcarbon":     "tokenization",
				"klimadao":       "tokenization",
				"patch":          "marketplace",
				"cloverly":       "marketplace",
				"northern trust": "tokenization",
			},
			MaxDetails: 2000,
		},
		Store: StoreConfig{
			Driver:   "file",
			Path:     "~/.carbonintel/records",
			Table:    "intel_records",
			CacheTTL: 10 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
