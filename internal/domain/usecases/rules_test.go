package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/writecheck-go/internal/domain/engine"
	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
	"github.com/0xcro3dile/writecheck-go/internal/domain/ports"
)

func twoRules() []entities.Rule {
	return []entities.Rule{
		{ID: "a", Pattern: "alpha", IgnoreCase: true},
		{ID: "b", Pattern: "beta", IgnoreCase: true},
	}
}

func TestRuleCache_EmptyBeforeLoad(t *testing.T) {
	cache := NewRuleCache(&mockRuleSource{}, engine.CompileOptions{})

	assert.Nil(t, cache.Current())
	_, err := cache.SetDisabled("a", true)
	assert.ErrorIs(t, err, ErrNoRules)
}

func TestRuleCache_Reload(t *testing.T) {
	src := &mockRuleSource{rules: twoRules()}
	cache := NewRuleCache(src, engine.CompileOptions{})

	changed, err := cache.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, cache.Current().Len())
	assert.Equal(t, "mock", cache.Source())
}

func TestRuleCache_UnchangedReloadKeepsSnapshot(t *testing.T) {
	cache := NewRuleCache(&mockRuleSource{rules: twoRules()}, engine.CompileOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)
	first := cache.Current()

	changed, err := cache.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, first, cache.Current())
}

func TestRuleCache_FailedReloadKeepsPrevious(t *testing.T) {
	src := &mockRuleSource{rules: twoRules()}
	cache := NewRuleCache(src, engine.CompileOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)
	before := cache.Current()

	src.set(nil, errors.New("connection refused"))
	_, err = cache.Reload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Same(t, before, cache.Current())
}

func TestRuleCache_InvalidRulesAreSkipped(t *testing.T) {
	src := &mockRuleSource{rules: []entities.Rule{
		{ID: "ok", Pattern: "fine"},
		{ID: "bad", Pattern: "(unclosed"},
	}}
	cache := NewRuleCache(src, engine.CompileOptions{})

	_, err := cache.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Current().Len())
	assert.Len(t, cache.Current().Failures(), 1)
}

func TestRuleCache_SetDisabledSurvivesReload(t *testing.T) {
	src := &mockRuleSource{rules: twoRules()}
	cache := NewRuleCache(src, engine.CompileOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)

	rs, err := cache.SetDisabled("a", true)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.EnabledCount())
	assert.Same(t, rs, cache.Current())

	src.set(append(twoRules(), entities.Rule{ID: "c", Pattern: "gamma"}), nil)
	changed, err := cache.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 3, cache.Current().Len())
	assert.Equal(t, 2, cache.Current().EnabledCount())

	_, err = cache.SetDisabled("a", false)
	require.NoError(t, err)
	assert.Equal(t, 3, cache.Current().EnabledCount())
}

func TestRuleCache_SetDisabledUnknown(t *testing.T) {
	cache := NewRuleCache(&mockRuleSource{rules: twoRules()}, engine.CompileOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)

	_, err = cache.SetDisabled("zzz", true)
	assert.ErrorIs(t, err, ErrUnknownRule)
}

func TestRuleCache_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	small := []entities.Rule{{ID: "a", Pattern: "a"}}
	large := []entities.Rule{{ID: "a", Pattern: "a"}, {ID: "b", Pattern: "b"}, {ID: "c", Pattern: "c"}}
	src := &mockRuleSource{rules: small}
	cache := NewRuleCache(src, engine.CompileOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ctx.Err() == nil; i++ {
			if i%2 == 0 {
				src.set(large, nil)
			} else {
				src.set(small, nil)
			}
			cache.Reload(ctx)
		}
	}()

	for i := 0; i < 1000; i++ {
		n := cache.Current().Len()
		assert.True(t, n == 1 || n == 3, "partial snapshot of %d rules", n)
	}
	cancel()
	wg.Wait()
}

func TestRuleCache_RunReloadsOnFileEvent(t *testing.T) {
	src := &mockRuleSource{rules: twoRules()}
	cache := NewRuleCache(src, engine.CompileOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan ports.FileEvent, 4)
	done := make(chan struct{})
	go func() {
		cache.Run(ctx, 0, events)
		close(done)
	}()

	src.set(twoRules()[:1], nil)
	events <- ports.FileEvent{Path: "rules.json", Operation: ports.FileModified}
	events <- ports.FileEvent{Path: "rules.json", Operation: ports.FileModified}

	assert.Eventually(t, func() bool { return cache.Current().Len() == 1 }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 2, src.loadCount(), "burst of events reloads once")

	cancel()
	<-done
}

func TestRuleCache_RunIgnoresDeletes(t *testing.T) {
	src := &mockRuleSource{rules: twoRules()}
	cache := NewRuleCache(src, engine.CompileOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	events := make(chan ports.FileEvent, 1)
	events <- ports.FileEvent{Path: "rules.json", Operation: ports.FileDeleted}

	cache.Run(ctx, 0, events)
	assert.Equal(t, 1, src.loadCount())
}

func TestRuleCache_RunPolls(t *testing.T) {
	src := &mockRuleSource{rules: twoRules()}
	cache := NewRuleCache(src, engine.CompileOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.Run(ctx, 20*time.Millisecond, nil)

	assert.Eventually(t, func() bool { return cache.Current() != nil }, 2*time.Second, 10*time.Millisecond)
}

func TestRuleCache_OverlappingReloadsKeepNewest(t *testing.T) {
	src := &gatedRuleSource{
		results: [][]entities.Rule{
			{{ID: "old", Pattern: "old"}},
			{{ID: "new", Pattern: "new"}},
		},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	cache := NewRuleCache(src, engine.CompileOptions{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cache.Reload(context.Background())
	}()
	<-src.entered
	go func() {
		defer wg.Done()
		cache.Reload(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	_, ok := cache.Current().Lookup("new")
	assert.True(t, ok)
	_, ok = cache.Current().Lookup("old")
	assert.False(t, ok)
}
