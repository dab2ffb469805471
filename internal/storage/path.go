package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	ParquetContentType  = "application/vnd.apache.parquet"
	ManifestContentType = "application/json"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// TablePath is the object key of one table's Parquet file inside a dataset.
// Table names are lowercased so keys do not depend on how a caller spells them.
func TablePath(dataset, table string) (string, error) {
	if err := validatePathComponent(dataset, "dataset"); err != nil {
		return "", err
	}
	if err := validatePathComponent(table, "table name"); err != nil {
		return "", err
	}
	return path.Join(dataset, "tables", strings.ToLower(table)+".parquet"), nil
}

func ManifestPath(dataset string) (string, error) {
	if err := validatePathComponent(dataset, "dataset"); err != nil {
		return "", err
	}
	return path.Join(dataset, "manifest.json"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
