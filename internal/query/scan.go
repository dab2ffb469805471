package query

import (
	"database/sql"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ScanRows drains rows into column names and normalized values: byte slices
// become strings, decimals become float64.
func ScanRows(rows *sql.Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}
	decimal := make([]bool, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			name := strings.ToUpper(ct.DatabaseTypeName())
			decimal[i] = name == "NUMERIC" || name == "DECIMAL"
		}
	}

	out := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v, decimal[i])
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, out, nil
}

type floater interface {
	Float64() float64
}

func normalize(value any, decimal bool) any {
	switch typed := value.(type) {
	case []byte:
		return normalize(string(typed), decimal)
	case string:
		if decimal {
			if f, err := strconv.ParseFloat(typed, 64); err == nil {
				return f
			}
		}
		return typed
	case *big.Int:
		if typed.IsInt64() {
			return typed.Int64()
		}
		return typed.String()
	case floater:
		return typed.Float64()
	default:
		return value
	}
}
