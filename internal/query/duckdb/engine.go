// Package duckdb answers queries in-process over the Parquet snapshot of the
// dataset published to object storage.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/artevida/askql/internal/dataset"
	"github.com/artevida/askql/internal/migrations"
	"github.com/artevida/askql/internal/query"
	"github.com/artevida/askql/internal/storage"
)

const DefaultTimeout = 10 * time.Second

// Engine materializes a published dataset into a local DuckDB database on
// first use: one table per downloaded Parquet file, plus the reporting views.
// Once loaded the database cannot read files or change its configuration.
// Reload swaps in a newer snapshot.
type Engine struct {
	store   storage.ObjectStore
	name    string
	timeout time.Duration

	mu       sync.RWMutex
	db       *sql.DB
	workDir  string
	manifest dataset.Manifest
}

func NewEngine(store storage.ObjectStore, datasetName string, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{store: store, name: datasetName, timeout: timeout}
}

func (e *Engine) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if err := e.ensureLoaded(ctx); err != nil {
		return query.Result{}, query.NewExecutionError(query.KindConnectionRefused, err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return query.Result{}, query.NewExecutionError(query.KindConnectionRefused, errors.New("snapshot is closed"))
	}
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, classify(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	columns, values, err := query.ScanRows(rows)
	if err != nil {
		return query.Result{}, classify(ctx, err)
	}
	return query.Result{Columns: columns, Rows: values, Duration: time.Since(start)}, nil
}

// Manifest returns the manifest of the loaded snapshot, loading it if needed.
func (e *Engine) Manifest(ctx context.Context) (dataset.Manifest, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return dataset.Manifest{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.manifest, nil
}

// Ping loads the snapshot if needed and runs a trivial query.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return errors.New("snapshot is closed")
	}
	return e.db.PingContext(ctx)
}

// Reload downloads the current manifest's tables and replaces the loaded
// snapshot. In-flight queries finish against the old one.
func (e *Engine) Reload(ctx context.Context) error {
	db, workDir, manifest, err := e.load(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	oldDB, oldDir := e.db, e.workDir
	e.db, e.workDir, e.manifest = db, workDir, manifest
	e.mu.Unlock()
	closeSnapshot(oldDB, oldDir)
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	closeSnapshot(e.db, e.workDir)
	e.db, e.workDir = nil, ""
	return nil
}

func (e *Engine) ensureLoaded(ctx context.Context) error {
	e.mu.RLock()
	loaded := e.db != nil
	e.mu.RUnlock()
	if loaded {
		return nil
	}
	return e.Reload(ctx)
}

func (e *Engine) load(ctx context.Context) (*sql.DB, string, dataset.Manifest, error) {
	if e.store == nil {
		return nil, "", dataset.Manifest{}, fmt.Errorf("object store is required")
	}
	manifest, err := dataset.LoadManifest(ctx, e.store, e.name)
	if err != nil {
		return nil, "", dataset.Manifest{}, err
	}

	workDir, err := os.MkdirTemp("", "askql-duckdb-")
	if err != nil {
		return nil, "", dataset.Manifest{}, fmt.Errorf("create snapshot temp dir: %w", err)
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		_ = os.RemoveAll(workDir)
		return nil, "", dataset.Manifest{}, fmt.Errorf("open duckdb: %w", err)
	}
	if err := e.materialize(ctx, db, workDir, manifest); err != nil {
		closeSnapshot(db, workDir)
		return nil, "", dataset.Manifest{}, err
	}
	return db, workDir, manifest, nil
}

func (e *Engine) materialize(ctx context.Context, db *sql.DB, workDir string, manifest dataset.Manifest) error {
	for index, file := range manifest.Tables {
		reader, err := e.store.Get(ctx, file.Key)
		if err != nil {
			return fmt.Errorf("get object %q: %w", file.Key, err)
		}
		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(file.Table), index))
		if err := download(localPath, reader, file.SHA256); err != nil {
			_ = reader.Close()
			return fmt.Errorf("download %q: %w", file.Key, err)
		}
		if err := reader.Close(); err != nil {
			return fmt.Errorf("close object %q: %w", file.Key, err)
		}

		tableSQL := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(file.Table), quoteString(localPath))
		if _, err := db.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("load table %q: %w", file.Table, err)
		}
	}

	statements, err := migrations.ViewStatements()
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create reporting view: %w", err)
		}
	}
	return lockDown(ctx, db)
}

// lockDownStatements stop queries from reaching the filesystem, e.g. through
// a quoted path in FROM or read_csv, and keep them from undoing that.
var lockDownStatements = []string{
	`SET enable_external_access = false`,
	`SET lock_configuration = true`,
}

func lockDown(ctx context.Context, db *sql.DB) error {
	for _, stmt := range lockDownStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("lock down snapshot: %w", err)
		}
	}
	return nil
}

func closeSnapshot(db *sql.DB, workDir string) {
	if db != nil {
		_ = db.Close()
	}
	if workDir != "" {
		_ = os.RemoveAll(workDir)
	}
}

// DuckDB reports errors as "<Kind> Error: message".
var syntaxPrefixes = []string{"Parser Error", "Binder Error", "Catalog Error"}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return query.NewExecutionError(query.KindTimeout, err)
	}
	message := err.Error()
	for _, prefix := range syntaxPrefixes {
		if strings.Contains(message, prefix) {
			return query.NewExecutionError(query.KindSyntax, err)
		}
	}
	return query.NewExecutionError(query.KindOther, err)
}

// Mixed-case table names such as Activity_Artist must resolve the way the
// generated SQL spells them, so identifiers are quoted verbatim.
func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return strings.ToLower(value)
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
