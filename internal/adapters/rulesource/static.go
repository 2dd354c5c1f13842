package rulesource

import (
	"context"
	"sync"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// StaticSource serves an in-memory rule list.
// Set replaces the list; the next Load sees the new one.
type StaticSource struct {
	mu    sync.RWMutex
	name  string
	rules []entities.Rule
}

// NewStaticSource creates an in-memory source holding a copy of rules.
func NewStaticSource(name string, rules ...entities.Rule) *StaticSource {
	s := &StaticSource{name: name}
	s.Set(rules)
	return s
}

func (s *StaticSource) Name() string { return "static:" + s.name }

// Load returns a copy of the current list.
func (s *StaticSource) Load(ctx context.Context) ([]entities.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.Rule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

// Set replaces the served list.
func (s *StaticSource) Set(rules []entities.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = make([]entities.Rule, len(rules))
	copy(s.rules, rules)
}
