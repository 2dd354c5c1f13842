package rulesource

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// PostgresSource reads rules from a Postgres table shared with other services.
type PostgresSource struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresSource connects and pings the database.
func NewPostgresSource(ctx context.Context, dsn, table string) (*PostgresSource, error) {
	if table == "" {
		table = "rules"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresSource{pool: pool, table: table}, nil
}

func (s *PostgresSource) Name() string { return "postgres:" + s.table }

// Initialize creates the rule table if it does not exist.
func (s *PostgresSource) Initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			pattern TEXT NOT NULL,
			ignore_case BOOLEAN NOT NULL DEFAULT TRUE,
			multiline BOOLEAN NOT NULL DEFAULT TRUE,
			suggestion TEXT NOT NULL DEFAULT '',
			replacement TEXT NOT NULL DEFAULT '',
			disabled BOOLEAN NOT NULL DEFAULT FALSE
		)`, pgx.Identifier{s.table}.Sanitize()))
	if err != nil {
		return fmt.Errorf("creating rule table: %w", err)
	}
	return nil
}

// Load reads every row in position order.
func (s *PostgresSource) Load(ctx context.Context) ([]entities.Rule, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, pattern, ignore_case, multiline, suggestion, replacement, disabled
		FROM %s ORDER BY position, id`, pgx.Identifier{s.table}.Sanitize()))
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			id, pattern, suggestion, replacement string
			ignoreCase, multiline, disabled      bool
		)
		if err := rows.Scan(&id, &pattern, &ignoreCase, &multiline, &suggestion, &replacement, &disabled); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		records = append(records, Record{
			"id":          id,
			"pattern":     pattern,
			"ignore_case": ignoreCase,
			"multiline":   multiline,
			"suggestion":  suggestion,
			"replacement": replacement,
			"disabled":    disabled,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return normalizeAndLog(s.Name(), records), nil
}

// Import replaces the table contents with rules in one transaction.
func (s *PostgresSource) Import(ctx context.Context, rules []entities.Rule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	table := pgx.Identifier{s.table}.Sanitize()
	if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clearing rules: %w", err)
	}

	batch := &pgx.Batch{}
	insert := fmt.Sprintf(`
		INSERT INTO %s (id, position, pattern, ignore_case, multiline, suggestion, replacement, disabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, table)
	for i, r := range rules {
		batch.Queue(insert, r.ID, i, r.Pattern, r.IgnoreCase, r.Multiline, r.Suggestion, r.Replacement, r.Disabled)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting rules: %w", err)
	}
	return tx.Commit(ctx)
}

// Close releases the pool.
func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}
