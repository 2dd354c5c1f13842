// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate the engine and depend on port interfaces.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xcro3dile/writecheck-go/internal/domain/engine"
	"github.com/0xcro3dile/writecheck-go/internal/domain/ports"
	"github.com/0xcro3dile/writecheck-go/internal/logging"
)

var (
	// ErrNoRules is returned when no rule snapshot has been loaded yet.
	ErrNoRules = errors.New("no rules loaded")
	// ErrUnknownRule is returned when toggling an ID that is not in the snapshot.
	ErrUnknownRule = errors.New("unknown rule")
)

// reloadDebounce absorbs the burst of events a single editor save produces.
const reloadDebounce = 200 * time.Millisecond

// RuleCache owns the current compiled rule snapshot.
// Readers call Current and never block; reloads build a complete new snapshot
// before swapping it in.
type RuleCache struct {
	source  ports.RuleSource
	opts    engine.CompileOptions
	current atomic.Pointer[engine.RuleSet]

	mu        sync.Mutex      // serializes loads, swaps and toggles
	overrides map[string]bool // runtime enable/disable, reapplied after reloads
}

// NewRuleCache creates an empty cache over source. Call Reload to fill it.
func NewRuleCache(source ports.RuleSource, opts engine.CompileOptions) *RuleCache {
	return &RuleCache{
		source:    source,
		opts:      opts,
		overrides: make(map[string]bool),
	}
}

// Current returns the active snapshot, or nil before the first successful load.
func (c *RuleCache) Current() *engine.RuleSet {
	return c.current.Load()
}

// Source returns the name of the backing rule source.
func (c *RuleCache) Source() string {
	return c.source.Name()
}

// Reload loads and compiles the full rule list and swaps it in.
// On error the previous snapshot stays active. changed is false when the new
// snapshot has the same fingerprint as the active one.
func (c *RuleCache) Reload(ctx context.Context) (changed bool, err error) {
	// Load runs under mu so an older load can never be swapped in after a newer one.
	c.mu.Lock()
	defer c.mu.Unlock()

	rules, err := c.source.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading rules from %s: %w", c.source.Name(), err)
	}

	for i := range rules {
		if disabled, ok := c.overrides[rules[i].ID]; ok {
			rules[i].Disabled = disabled
		}
	}
	next := engine.CompileAll(rules, c.opts)
	for _, f := range next.Failures() {
		logging.Warn("rule skipped", "source", c.source.Name(), "rule", f.RuleID, "error", f.Err)
	}

	if prev := c.current.Load(); prev != nil && prev.Version() == next.Version() {
		logging.Debug("rules unchanged", "source", c.source.Name(), "version", next.Version())
		return false, nil
	}
	c.current.Store(next)
	logging.RuleLoad(c.source.Name(), next.Version(), next.Len(), len(next.Failures()), "enabled", next.EnabledCount())
	return true, nil
}

// SetDisabled toggles one rule without recompiling and remembers the choice
// across reloads.
func (c *RuleCache) SetDisabled(id string, disabled bool) (*engine.RuleSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	if cur == nil {
		return nil, ErrNoRules
	}
	next, ok := cur.WithDisabled(id, disabled)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRule, id)
	}
	c.overrides[id] = disabled
	c.current.Store(next)
	logging.Info("rule toggled", "rule", id, "disabled", disabled, "version", next.Version())
	return next, nil
}

// Run keeps the cache fresh until ctx ends: it reloads every refresh interval
// (zero disables polling) and shortly after each file event. Reload errors are
// logged and the previous snapshot is kept.
func (c *RuleCache) Run(ctx context.Context, refresh time.Duration, events <-chan ports.FileEvent) {
	var tick <-chan time.Time
	if refresh > 0 {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		tick = ticker.C
	}

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	reload := func(reason string) {
		if _, err := c.Reload(ctx); err != nil && ctx.Err() == nil {
			logging.Error("rule reload failed", "reason", reason, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			reload("refresh")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Operation == ports.FileDeleted {
				logging.Warn("rule file removed, keeping current rules", "path", ev.Path)
				continue
			}
			debounce.Reset(reloadDebounce)
		case <-debounce.C:
			reload("file change")
		}
	}
}
