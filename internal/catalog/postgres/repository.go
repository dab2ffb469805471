package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Repository reads catalog metadata from the live database.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// LoadColumns returns column names in ordinal order keyed by lower-cased
// object name. Objects that do not exist are simply absent from the map.
func (r *Repository) LoadColumns(ctx context.Context, names []string) (map[string][]string, error) {
	if len(names) == 0 {
		return map[string][]string{}, nil
	}

	placeholders := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for i, name := range names {
		placeholders = append(placeholders, "$"+strconv.Itoa(i+1))
		args = append(args, strings.ToLower(name))
	}
	query := `
SELECT LOWER(table_name), column_name
FROM information_schema.columns
WHERE table_schema = current_schema()
  AND LOWER(table_name) IN (` + strings.Join(placeholders, ", ") + `)
ORDER BY table_name, ordinal_position`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make(map[string][]string, len(names))
	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns[tableName] = append(columns[tableName], columnName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return columns, nil
}
