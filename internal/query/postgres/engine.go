package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/artevida/askql/internal/query"
)

const DefaultTimeout = 10 * time.Second

// Engine executes statements in read-only transactions with a server-side
// statement timeout.
type Engine struct {
	db      *sql.DB
	timeout time.Duration
}

func NewEngine(db *sql.DB, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{db: db, timeout: timeout}
}

func (e *Engine) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if e.db == nil {
		return query.Result{}, query.NewExecutionError(query.KindConnectionRefused, errors.New("database is not configured"))
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return query.Result{}, classify(ctx, fmt.Errorf("begin read-only transaction: %w", err))
	}
	// Read-only: nothing to commit.
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", e.timeout.Milliseconds())); err != nil {
		return query.Result{}, classify(ctx, fmt.Errorf("set statement timeout: %w", err))
	}

	rows, err := tx.QueryContext(ctx, sqlText)
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

// Ping checks connectivity with the engine's timeout.
func (e *Engine) Ping(ctx context.Context) error {
	if e.db == nil {
		return errors.New("database is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.db.PingContext(ctx)
}

func classify(ctx context.Context, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "57014":
			return query.NewExecutionError(query.KindTimeout, err)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "57P03":
			return query.NewExecutionError(query.KindConnectionRefused, err)
		case strings.HasPrefix(pgErr.Code, "42"):
			return query.NewExecutionError(query.KindSyntax, err)
		default:
			return query.NewExecutionError(query.KindOther, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || pgconn.Timeout(err) {
		return query.NewExecutionError(query.KindTimeout, err)
	}

	var connectErr *pgconn.ConnectError
	var opErr *net.OpError
	if errors.As(err, &connectErr) || errors.Is(err, syscall.ECONNREFUSED) || (errors.As(err, &opErr) && opErr.Op == "dial") {
		return query.NewExecutionError(query.KindConnectionRefused, err)
	}
	return query.NewExecutionError(query.KindOther, err)
}
