// Package config loads the service configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rule source kinds.
const (
	SourceFile     = "file"
	SourceRemote   = "remote"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Config is read once at startup and not changed afterwards.
type Config struct {
	Server    Server    `yaml:"server"`
	Engine    Engine    `yaml:"engine"`
	Rules     Rules     `yaml:"rules"`
	Annotator Annotator `yaml:"annotator"`
	Logging   Logging   `yaml:"logging"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Engine holds chunking and paging limits.
type Engine struct {
	ChunkSize        int           `yaml:"chunk_size"`         // Code points per client chunk
	DefaultLimit     int           `yaml:"default_limit"`      // Page size when the client sends none
	MaxLimit         int           `yaml:"max_limit"`          // Upper bound on page size
	MaxDocumentChars int           `yaml:"max_document_chars"` // Larger inputs are rejected
	MatchTimeout     time.Duration `yaml:"match_timeout"`      // Per-rule, per-paragraph budget
}

// Rules selects where rule records come from.
type Rules struct {
	Source  string        `yaml:"source"` // file, remote, sqlite or postgres
	Path    string        `yaml:"path"`   // file and sqlite
	URL     string        `yaml:"url"`    // remote
	DSN     string        `yaml:"dsn"`    // postgres
	Table   string        `yaml:"table"`  // sqlite and postgres
	Refresh time.Duration `yaml:"refresh"`
	Watch   bool          `yaml:"watch"`
}

// Annotator configures the NLP sidecar.
type Annotator struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// Script, when set, is started with python3 if the sidecar is not answering.
	Script string `yaml:"script"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns a Config with every field usable as is.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:         ":5000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Engine: Engine{
			ChunkSize:        10000,
			DefaultLimit:     20,
			MaxLimit:         200,
			MaxDocumentChars: 2_000_000,
			MatchTimeout:     250 * time.Millisecond,
		},
		Rules: Rules{
			Source:  SourceFile,
			Path:    "rules.json",
			Table:   "rules",
			Refresh: 5 * time.Minute,
		},
		Annotator: Annotator{
			URL:     "http://127.0.0.1:5001",
			Timeout: 5 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over Defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes raw YAML over Defaults, rejecting unknown keys.
func Parse(raw []byte) (Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Engine.ChunkSize <= 0 {
		errs = append(errs, errors.New("engine.chunk_size must be > 0"))
	}
	if c.Engine.DefaultLimit <= 0 {
		errs = append(errs, errors.New("engine.default_limit must be > 0"))
	}
	if c.Engine.MaxLimit < c.Engine.DefaultLimit {
		errs = append(errs, errors.New("engine.max_limit must be >= engine.default_limit"))
	}
	if c.Engine.MaxDocumentChars <= 0 {
		errs = append(errs, errors.New("engine.max_document_chars must be > 0"))
	}
	if c.Engine.MatchTimeout < 0 {
		errs = append(errs, errors.New("engine.match_timeout must be >= 0"))
	}

	switch c.Rules.Source {
	case SourceFile, SourceSQLite:
		if c.Rules.Path == "" {
			errs = append(errs, fmt.Errorf("rules.path is required for source %q", c.Rules.Source))
		}
	case SourceRemote:
		if c.Rules.URL == "" {
			errs = append(errs, errors.New("rules.url is required for source \"remote\""))
		}
	case SourcePostgres:
		if c.Rules.DSN == "" {
			errs = append(errs, errors.New("rules.dsn is required for source \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("rules.source %q is not one of file, remote, sqlite, postgres", c.Rules.Source))
	}
	if c.Rules.Refresh < 0 {
		errs = append(errs, errors.New("rules.refresh must be >= 0"))
	}

	if c.Annotator.Enabled && c.Annotator.URL == "" {
		errs = append(errs, errors.New("annotator.url is required when the annotator is enabled"))
	}
	return errors.Join(errs...)
}
