// Command writecheck serves the annotation API and checks documents from the
// command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/0xcro3dile/writecheck-go/internal/adapters/annotator"
	"github.com/0xcro3dile/writecheck-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/writecheck-go/internal/adapters/loader"
	"github.com/0xcro3dile/writecheck-go/internal/adapters/rulesource"
	"github.com/0xcro3dile/writecheck-go/internal/config"
	"github.com/0xcro3dile/writecheck-go/internal/domain/engine"
	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
	"github.com/0xcro3dile/writecheck-go/internal/domain/ports"
	"github.com/0xcro3dile/writecheck-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/writecheck-go/internal/infrastructure/http"
	"github.com/0xcro3dile/writecheck-go/internal/logging"
)

const version = "0.1.0"

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

// CLI defines the command-line interface for writecheck.
var CLI struct {
	// Global flags
	Config    string `name:"config" short:"c" help:"Path to YAML config file" type:"path" env:"WRITECHECK_CONFIG"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" env:"WRITECHECK_LOG_LEVEL"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" env:"WRITECHECK_LOG_FORMAT"`

	Serve   ServeCmd   `cmd:"" help:"Start the annotation API server"`
	Check   CheckCmd   `cmd:"" help:"Check a document and print every match"`
	Rules   RulesGroup `cmd:"" help:"Rule file operations"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// RulesGroup contains rule maintenance operations.
type RulesGroup struct {
	Validate ValidateCmd `cmd:"" help:"Normalize and compile a rule file, reporting every problem"`
	Import   ImportCmd   `cmd:"" help:"Import a rule file into a SQLite or Postgres table"`
}

// setup loads the config, applies global flag overrides and initializes logging.
func setup() (config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return cfg, err
	}
	if CLI.LogLevel != "" {
		cfg.Logging.Level = CLI.LogLevel
	}
	if CLI.LogFormat != "" {
		cfg.Logging.Format = CLI.LogFormat
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return cfg, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return cfg, err
	}
	logging.Init(level, format, os.Stderr)
	return cfg, nil
}

// loadRules opens the configured source and performs the first load.
func loadRules(ctx context.Context, cfg config.Config) (*usecases.RuleCache, func() error, error) {
	src, closeSource, err := rulesource.Open(ctx, cfg.Rules)
	if err != nil {
		return nil, closeSource, fmt.Errorf("opening rule source: %w", err)
	}
	cache := usecases.NewRuleCache(src, engine.CompileOptions{MatchTimeout: cfg.Engine.MatchTimeout})
	if _, err := cache.Reload(ctx); err != nil {
		return nil, closeSource, err
	}
	return cache, closeSource, nil
}

func annotateConfig(cfg config.Config) usecases.AnnotateConfig {
	return usecases.AnnotateConfig{
		ChunkSize:        cfg.Engine.ChunkSize,
		MaxDocumentChars: cfg.Engine.MaxDocumentChars,
		AnnotatorTimeout: cfg.Annotator.Timeout,
		Paging:           engine.Defaults{Limit: cfg.Engine.DefaultLimit, MaxLimit: cfg.Engine.MaxLimit},
	}
}

// startAnnotator connects to the NLP sidecar, spawning it when a script is
// configured and nothing answers. The sidecar is optional: failures are logged
// and heuristics stay off until it comes up.
func startAnnotator(ctx context.Context, cfg config.Annotator) (*annotator.SpacyAnnotator, func()) {
	a := annotator.NewSpacyAnnotator(cfg.URL, cfg.Timeout)
	if a.IsServiceHealthy(ctx) || cfg.Script == "" {
		return a, func() {}
	}

	startCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	stop, err := a.StartService(startCtx, cfg.Script)
	if err != nil {
		logging.Warn("annotation service did not start, heuristics unavailable", "error", err)
		return a, func() {}
	}
	return a, stop
}

// ServeCmd starts the HTTP API.
type ServeCmd struct {
	Addr         string `help:"Listen address (overrides config)" env:"WRITECHECK_ADDR"`
	RulesFile    string `name:"rules" help:"Rule file (overrides config, implies file source)" type:"path"`
	NoHeuristics bool   `name:"no-heuristics" help:"Run pattern rules only"`
}

func (c *ServeCmd) Run() error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.RulesFile != "" {
		cfg.Rules.Source = config.SourceFile
		cfg.Rules.Path = c.RulesFile
	}
	if c.NoHeuristics {
		cfg.Annotator.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, closeSource, err := loadRules(ctx, cfg)
	defer closeSource()
	if err != nil {
		return err
	}

	var events <-chan ports.FileEvent
	if cfg.Rules.Watch && cfg.Rules.Source == config.SourceFile {
		w, err := filewatcher.NewFileWatcher(cfg.Rules.Path)
		if err != nil {
			return fmt.Errorf("creating rule watcher: %w", err)
		}
		defer w.Stop()
		if events, err = w.WatchFile(ctx, cfg.Rules.Path); err != nil {
			return fmt.Errorf("watching %s: %w", cfg.Rules.Path, err)
		}
	}
	refresh := cfg.Rules.Refresh
	if cfg.Rules.Source == config.SourceFile && events != nil {
		refresh = 0
	}
	go cache.Run(ctx, refresh, events)

	var ann ports.Annotator
	var health httpserver.HealthChecker
	if cfg.Annotator.Enabled {
		a, stopAnnotator := startAnnotator(ctx, cfg.Annotator)
		defer stopAnnotator()
		ann, health = a, a
	}

	uc := usecases.NewAnnotateUseCase(cache, ann, annotateConfig(cfg))
	srv := httpserver.NewServer(uc, cache, health, httpserver.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		// UTF-8 is at most 4 bytes per code point, plus room for the envelope.
		MaxBodyBytes: int64(cfg.Engine.MaxDocumentChars)*4 + 64*1024,
	})
	return srv.Start(ctx)
}

// CheckCmd checks a single document.
type CheckCmd struct {
	Path       string `arg:"" help:"Document to check (txt, md, pdf, xml)" type:"existingfile"`
	RulesFile  string `name:"rules" help:"Rule file (overrides config, implies file source)" type:"path"`
	XPath      string `name:"xpath" help:"XPath selecting paragraphs in XML input" default:"//p"`
	Heuristics bool   `help:"Also run heuristic checks through the annotation service"`
	JSON       bool   `name:"json" help:"Print matches as JSON"`
	Strict     bool   `help:"Exit with an error when any match is found"`
}

func (c *CheckCmd) Run() error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	if c.RulesFile != "" {
		cfg.Rules.Source = config.SourceFile
		cfg.Rules.Path = c.RulesFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := context.Background()
	cache, closeSource, err := loadRules(ctx, cfg)
	defer closeSource()
	if err != nil {
		return err
	}

	docs := loader.NewMultiLoader()
	docs.Register(loader.NewXMLLoader(c.XPath))
	doc, err := docs.Load(ctx, c.Path)
	if err != nil {
		return err
	}

	var ann ports.Annotator
	if c.Heuristics {
		ann = annotator.NewSpacyAnnotator(cfg.Annotator.URL, cfg.Annotator.Timeout)
	}
	uc := usecases.NewAnnotateUseCase(cache, ann, annotateConfig(cfg))
	matches, err := uc.CheckAll(ctx, doc.Content)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(matches); err != nil {
			return err
		}
	} else {
		printMatches(stdout, doc.Name, matches)
	}

	if c.Strict && len(matches) > 0 {
		return fmt.Errorf("%d issue(s) found in %s", len(matches), doc.Name)
	}
	return nil
}

func printMatches(w io.Writer, name string, matches []entities.Match) {
	for _, m := range matches {
		fmt.Fprintf(w, "%s:%d:%d-%d [%s] %q", name, m.ParagraphIndex+1, m.StartInParagraph, m.EndInParagraph, m.RuleID, m.Text)
		if m.Issue != "" {
			fmt.Fprintf(w, " %s", m.Issue)
		}
		if m.Replacement != "" {
			fmt.Fprintf(w, " (replace with %q)", m.Replacement)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d issue(s)\n", len(matches))
}

// ValidateCmd reports records that cannot be normalized or compiled.
type ValidateCmd struct {
	Path string `arg:"" help:"Rule file (.json or .json.xz)" type:"existingfile"`
}

func (c *ValidateCmd) Run() error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	records, err := rulesource.ReadRecordsFile(c.Path)
	if err != nil {
		return err
	}
	rules, skipped := rulesource.NormalizeAll(records)
	rs := engine.CompileAll(rules, engine.CompileOptions{MatchTimeout: cfg.Engine.MatchTimeout})

	for _, err := range skipped {
		fmt.Fprintf(stdout, "skipped: %v\n", err)
	}
	for _, f := range rs.Failures() {
		fmt.Fprintf(stdout, "invalid: %v\n", f)
	}
	fmt.Fprintf(stdout, "%d records, %d compiled, %d enabled, version %s\n",
		len(records), rs.Len(), rs.EnabledCount(), rs.Version())

	if n := len(skipped) + len(rs.Failures()); n > 0 {
		return fmt.Errorf("%d problem(s) in %s", n, c.Path)
	}
	return nil
}

// ImportCmd copies a rule file into a database table.
type ImportCmd struct {
	Path     string `arg:"" help:"Rule file (.json or .json.xz)" type:"existingfile"`
	SQLite   string `name:"sqlite" help:"SQLite database path" type:"path" xor:"target"`
	Postgres string `name:"postgres" help:"Postgres connection string" xor:"target" env:"WRITECHECK_POSTGRES_DSN"`
	Table    string `help:"Destination table" default:"rules"`
}

// ruleImporter is satisfied by the database-backed sources.
type ruleImporter interface {
	ports.RuleSource
	Import(ctx context.Context, rules []entities.Rule) error
	Close() error
}

func (c *ImportCmd) Run() error {
	if _, err := setup(); err != nil {
		return err
	}
	if c.SQLite == "" && c.Postgres == "" {
		return errors.New("one of --sqlite or --postgres is required")
	}

	records, err := rulesource.ReadRecordsFile(c.Path)
	if err != nil {
		return err
	}
	rules, skipped := rulesource.NormalizeAll(records)
	for _, err := range skipped {
		logging.Warn("rule record skipped", "file", c.Path, "error", err)
	}

	ctx := context.Background()
	dst, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := dst.Import(ctx, rules); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "imported %d rules into %s (%d skipped)\n", len(rules), dst.Name(), len(skipped))
	return nil
}

func (c *ImportCmd) open(ctx context.Context) (ruleImporter, error) {
	if c.SQLite != "" {
		db, err := rulesource.NewSQLiteSource(c.SQLite, c.Table)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	pg, err := rulesource.NewPostgresSource(ctx, c.Postgres, c.Table)
	if err != nil {
		return nil, err
	}
	if err := pg.Initialize(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "writecheck version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("writecheck"),
		kong.Description("Rule-based writing checks over HTTP and the command line"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
