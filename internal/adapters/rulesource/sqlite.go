package rulesource

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// SQLiteSource stores rules in a SQLite table and serves them in position order.
type SQLiteSource struct {
	mu    sync.RWMutex
	db    *sql.DB
	path  string
	table string
}

// NewSQLiteSource opens (and creates if needed) the rule database at path.
func NewSQLiteSource(path, table string) (*SQLiteSource, error) {
	if table == "" {
		table = "rules"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteSource{db: db, path: path, table: table}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSource) Name() string { return "sqlite:" + s.path }

func (s *SQLiteSource) quotedTable() string {
	return `"` + strings.ReplaceAll(s.table, `"`, `""`) + `"`
}

func (s *SQLiteSource) initSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		pattern TEXT NOT NULL,
		ignore_case INTEGER NOT NULL DEFAULT 1,
		multiline INTEGER NOT NULL DEFAULT 1,
		suggestion TEXT NOT NULL DEFAULT '',
		replacement TEXT NOT NULL DEFAULT '',
		disabled INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`, s.quotedTable())
	_, err := s.db.Exec(schema)
	return err
}

// Load reads every row in position order.
func (s *SQLiteSource) Load(ctx context.Context) ([]entities.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, pattern, ignore_case, multiline, suggestion, replacement, disabled
		FROM %s ORDER BY position, id`, s.quotedTable()))
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

// Import replaces the table contents with rules, keeping their order.
func (s *SQLiteSource) Import(ctx context.Context, rules []entities.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+s.quotedTable()); err != nil {
		return fmt.Errorf("clearing rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (id, position, pattern, ignore_case, multiline, suggestion, replacement, disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.quotedTable()))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range rules {
		_, err := stmt.ExecContext(ctx, r.ID, i, r.Pattern, r.IgnoreCase, r.Multiline, r.Suggestion, r.Replacement, r.Disabled)
		if err != nil {
			return fmt.Errorf("inserting rule %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored rules.
func (s *SQLiteSource) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.quotedTable()).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
