package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const ParquetContentType = "application/vnd.apache.parquet"

var keyComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ExtractKey names the parquet extract of one table, e.g. samples/natality.parquet.
func ExtractKey(prefix, table string) (string, error) {
	if !keyComponentPattern.MatchString(table) {
		return "", fmt.Errorf("invalid table name: %q", table)
	}
	key := table + ".parquet"
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = path.Join(prefix, key)
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ValidateKey accepts slash separated keys whose every component is a plain name.
func ValidateKey(key string) error {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	for _, component := range strings.Split(key, "/") {
		if !keyComponentPattern.MatchString(component) {
			return fmt.Errorf("invalid object key %q: bad component %q", key, component)
		}
	}
	return nil
}
