package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/querysql"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// MemoryDSN opens a private in-memory sqlite database.
const MemoryDSN = ":memory:"

// Store wraps a database handle and the SQL dialect it speaks.
type Store struct {
	db      *sql.DB
	dialect querysql.Dialect
}

// Open connects to a database. driver is "sqlite3" (or "sqlite") or "pgx"
// (or "postgres"); an empty driver means sqlite3.
func Open(driver, dsn string) (*Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite, "sqlite":
		return openSQLite(dsn)
	case DriverPostgres, "postgres", "postgresql":
		return openPostgres(dsn)
	}
	return nil, fmt.Errorf("open store: unknown driver %q (want sqlite3 or pgx)", driver)
}

// OpenMemory opens an empty in-memory sqlite database.
func OpenMemory() (*Store, error) {
	return openSQLite(MemoryDSN)
}

func openSQLite(path string) (*Store, error) {
	if path == "" {
		path = MemoryDSN
	}
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a distinct database, and sqlite has a
	// single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(db, path == MemoryDSN); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: db, dialect: querysql.SQLite}, nil
}

func openPostgres(dsn string) (*Store, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	db := stdlib.OpenDB(*cfg)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db, dialect: querysql.Postgres}, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if !memory {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect is the SQL dialect statements for this store must be translated
// to.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// Table is a materialized result set.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Result is the outcome of Run: a Table for reads, an affected row count
// for writes.
type Result struct {
	Table        *Table `json:"table,omitempty"`
	RowsAffected int64  `json:"rows_affected"`
}

// Run executes a translated statement, reading rows for a select and
// reporting the affected row count otherwise.
func (s *Store) Run(ctx context.Context, out *querysql.Output, named map[string]any) (*Result, error) {
	if out.Kind == queryir.KindSelect {
		t, err := s.Query(ctx, out, named)
		if err != nil {
			return nil, err
		}
		return &Result{Table: t}, nil
	}
	n, err := s.Exec(ctx, out, named)
	if err != nil {
		return nil, err
	}
	return &Result{RowsAffected: n}, nil
}

// Query runs a translated select and reads every row.
//
// CRITICAL: out must have been translated for this store's dialect; the
// placeholder styles differ.
func (s *Store) Query(ctx context.Context, out *querysql.Output, named map[string]any) (*Table, error) {
	args, err := s.args(out, named)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, out.SQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	t := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		row := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range row {
			row[i] = normalize(v)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return t, nil
}

// Exec runs a translated write and returns the number of affected rows.
func (s *Store) Exec(ctx context.Context, out *querysql.Output, named map[string]any) (int64, error) {
	args, err := s.args(out, named)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, out.SQL, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) args(out *querysql.Output, named map[string]any) ([]any, error) {
	if out.Dialect != s.dialect {
		return nil, fmt.Errorf("statement translated for %s, store speaks %s", out.Dialect, s.dialect)
	}
	args, err := out.Args(named)
	if err != nil {
		return nil, fmt.Errorf("bind parameters: %w", err)
	}
	return args, nil
}

// normalize maps driver values onto the JSON-friendly set: text as string,
// integers as int64, reals as float64.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
