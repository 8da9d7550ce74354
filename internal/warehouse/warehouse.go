package warehouse

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ErrConnection wraps every failure to reach a warehouse at open time.
var ErrConnection = errors.New("warehouse: connection failed")

type Client interface {
	// ListTables returns fully qualified identifiers, <dataset>.<table>.
	ListTables(ctx context.Context, dataset string) ([]string, error)
	Query(ctx context.Context, sql string) (Table, error)
	Close() error
}

type Kind string

const (
	KindNumeric  Kind = "numeric"
	KindText     Kind = "text"
	KindBoolean  Kind = "boolean"
	KindTemporal Kind = "temporal"
	KindUnknown  Kind = "unknown"
)

type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

type Table struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (t Table) NumRows() int {
	return len(t.Rows)
}

func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		names = append(names, column.Name)
	}
	return names
}

// Value returns nil for out of range coordinates.
func (t Table) Value(row, col int) any {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][col]
}

// Format renders the table the way a dataframe prints: a right-aligned
// header line followed by one index-prefixed line per row.
func (t Table) Format() string {
	if len(t.Rows) == 0 {
		return fmt.Sprintf("Empty table\nColumns: [%s]\nIndex: []", strings.Join(t.ColumnNames(), ", "))
	}

	cells := make([][]string, len(t.Rows))
	widths := make([]int, len(t.Columns))
	for i, column := range t.Columns {
		widths[i] = len(column.Name)
	}
	for r, row := range t.Rows {
		cells[r] = make([]string, len(t.Columns))
		for c := range t.Columns {
			var value any
			if c < len(row) {
				value = row[c]
			}
			text := formatValue(value)
			cells[r][c] = text
			if len(text) > widths[c] {
				widths[c] = len(text)
			}
		}
	}
	indexWidth := len(strconv.Itoa(len(t.Rows) - 1))

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", indexWidth))
	for i, column := range t.Columns {
		fmt.Fprintf(&b, "  %*s", widths[i], column.Name)
	}
	for r := range cells {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%-*d", indexWidth, r)
		for c, text := range cells[r] {
			fmt.Fprintf(&b, "  %*s", widths[c], text)
		}
	}
	return b.String()
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "None"
	case bool:
		if typed {
			return "True"
		}
		return "False"
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format(time.DateOnly)
		}
		return typed.Format(time.DateTime)
	case []byte:
		return string(typed)
	default:
		return fmt.Sprint(typed)
	}
}

// KindFromDatabaseType maps a driver reported column type to a Kind.
// Parameters such as NUMERIC(10,2) are ignored.
func KindFromDatabaseType(name string) Kind {
	name = strings.ToUpper(strings.TrimSpace(name))
	if idx := strings.IndexAny(name, "(<"); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}
	switch name {
	case "INTEGER", "INT", "INT2", "INT4", "INT8", "INT64", "SMALLINT", "TINYINT", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "UHUGEINT",
		"FLOAT", "FLOAT4", "FLOAT8", "FLOAT32", "FLOAT64", "DOUBLE", "DOUBLE PRECISION", "REAL",
		"NUMERIC", "BIGNUMERIC", "DECIMAL":
		return KindNumeric
	case "STRING", "VARCHAR", "TEXT", "CHAR", "BPCHAR", "UUID", "ENUM":
		return KindText
	case "BOOL", "BOOLEAN":
		return KindBoolean
	case "DATE", "TIME", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "INTERVAL":
		return KindTemporal
	default:
		return KindUnknown
	}
}

// KindOfValue classifies a scanned Go value.
func KindOfValue(value any) Kind {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, *big.Int, *big.Float, *big.Rat:
		return KindNumeric
	case string, []byte:
		return KindText
	case bool:
		return KindBoolean
	case time.Time, time.Duration:
		return KindTemporal
	default:
		return KindUnknown
	}
}

// InferKinds fills Unknown column kinds from the first non-nil value.
func InferKinds(t *Table) {
	for c := range t.Columns {
		if t.Columns[c].Kind != KindUnknown && t.Columns[c].Kind != "" {
			continue
		}
		t.Columns[c].Kind = KindUnknown
		for r := range t.Rows {
			if value := t.Value(r, c); value != nil {
				t.Columns[c].Kind = KindOfValue(value)
				break
			}
		}
	}
}
