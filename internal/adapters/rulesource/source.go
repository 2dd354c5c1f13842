package rulesource

import (
	"context"
	"fmt"

	"github.com/0xcro3dile/writecheck-go/internal/config"
	"github.com/0xcro3dile/writecheck-go/internal/domain/ports"
)

// Open builds the source selected by cfg. The returned close function is never nil.
func Open(ctx context.Context, cfg config.Rules) (ports.RuleSource, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Source {
	case config.SourceFile:
		return NewFileSource(cfg.Path), noop, nil
	case config.SourceRemote:
		return NewRemoteSource(cfg.URL), noop, nil
	case config.SourceSQLite:
		s, err := NewSQLiteSource(cfg.Path, cfg.Table)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.SourcePostgres:
		s, err := NewPostgresSource(ctx, cfg.DSN, cfg.Table)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown rule source %q", cfg.Source)
}
