// Package engine wraps the embedded DuckDB connection and the small set of
// catalog operations the pipeline needs: drop-if-exists guards, existence
// probes, CSV view binding and CSV export.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"exo-etl/internal/domain"
)

// Engine holds the single DuckDB connection pool for a pipeline run.
type Engine struct {
	db *sql.DB
}

// Open opens (or creates) the file-backed DuckDB store at path, ensuring the
// containing directory exists, and applies the threads pragma. Reopening an
// existing store preserves prior tables.
func Open(path string, threads int) (*Engine, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb store %s: %w", path, err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open duckdb store %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA threads=%d", threads)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set threads pragma: %w", err)
	}

	return &Engine{db: db}, nil
}

// DB exposes the underlying connection pool.
func (e *Engine) DB() *sql.DB { return e.db }

// Close releases the connection.
func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Exec runs a single statement.
func (e *Engine) Exec(ctx context.Context, query string) error {
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute statement: %w", err)
	}
	return nil
}

// DropIfExists drops a table or view if present. Dependent tables must be
// dropped before the tables they reference.
func (e *Engine) DropIfExists(ctx context.Context, kind domain.ObjectKind, name string) error {
	if kind != domain.ObjectTable && kind != domain.ObjectView {
		return domain.ErrValidation("object kind must be TABLE or VIEW, got %q", kind)
	}
	if _, err := e.db.ExecContext(ctx, fmt.Sprintf("DROP %s IF EXISTS %s", kind, name)); err != nil {
		return fmt.Errorf("drop %s %s: %w", strings.ToLower(string(kind)), name, err)
	}
	return nil
}

// TableExists reports whether a base table of the given name exists in the
// store's main schema.
func (e *Engine) TableExists(ctx context.Context, name string) (bool, error) {
	const q = `
	SELECT COUNT(*)
	FROM information_schema.tables
	WHERE table_schema = 'main' AND table_name = ? AND table_type = 'BASE TABLE'`
	return e.existsQuery(ctx, q, name)
}

// ViewExists reports whether a view of the given name exists in the store's
// main schema.
func (e *Engine) ViewExists(ctx context.Context, name string) (bool, error) {
	const q = `
	SELECT COUNT(*)
	FROM information_schema.views
	WHERE table_schema = 'main' AND table_name = ?`
	return e.existsQuery(ctx, q, name)
}

func (e *Engine) existsQuery(ctx context.Context, query, name string) (bool, error) {
	var n int
	if err := e.db.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return false, fmt.Errorf("catalog lookup for %s: %w", name, err)
	}
	return n == 1, nil
}

// Count returns the row count of a table or view.
func (e *Engine) Count(ctx context.Context, relation string) (int64, error) {
	var n int64
	if err := e.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", relation)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", relation, err)
	}
	return n, nil
}

// BindCSVView (re)creates a view exposing the rows of a delimited-text file
// with engine-inferred column types. The prior view of the same name is
// dropped first so repeated runs stay idempotent.
func (e *Engine) BindCSVView(ctx context.Context, name, csvPath string) error {
	if err := e.DropIfExists(ctx, domain.ObjectView, name); err != nil {
		return err
	}
	// Literal path instead of a prepared parameter: read_csv_auto does not
	// accept parameters in a view definition.
	stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_csv_auto(%s)", name, PathLiteral(csvPath))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("bind csv view %s: %w", name, err)
	}
	return nil
}

// ExportCSV materializes a relation to a comma-delimited file with a header
// row, overwriting any existing file at outPath.
func (e *Engine) ExportCSV(ctx context.Context, relation, outPath string) error {
	stmt := fmt.Sprintf("COPY (SELECT * FROM %s) TO %s (HEADER, DELIMITER ',')", relation, PathLiteral(outPath))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("export %s: %w", relation, err)
	}
	return nil
}

// QuoteLiteral single-quotes a SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// PathLiteral renders a filesystem path as a SQL string literal. DuckDB
// accepts forward slashes on every platform.
func PathLiteral(path string) string {
	return QuoteLiteral(filepath.ToSlash(path))
}
