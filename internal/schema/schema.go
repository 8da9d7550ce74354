// Package schema holds the static description of the queryable tables and
// renders it into the grounding block used by prompts.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("schema: table not found")

type FieldType string

const (
	Integer FieldType = "INTEGER"
	Float   FieldType = "FLOAT"
	String  FieldType = "STRING"
	Boolean FieldType = "BOOLEAN"
)

type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description"`
}

type Table struct {
	ID          string  `json:"table_id"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
}

// Render returns the grounding block for the table. Field order is kept.
func (t Table) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", t.ID)
	fmt.Fprintf(&b, "Description: %s\n", t.Description)
	b.WriteString("Fields:\n")
	for _, field := range t.Fields {
		fmt.Fprintf(&b, "  - %s (%s) - %s\n", field.Name, field.Type, field.Description)
	}
	return b.String()
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	tables map[string]Table
	order  []string
}

func NewCatalog(tables ...Table) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]Table, len(tables))}
	for _, table := range tables {
		id := strings.TrimSpace(table.ID)
		if id == "" {
			return nil, fmt.Errorf("table id is required")
		}
		if _, exists := c.tables[id]; exists {
			return nil, fmt.Errorf("duplicate table %q", id)
		}
		fields := make([]Field, len(table.Fields))
		copy(fields, table.Fields)
		table.ID = id
		table.Fields = fields
		c.tables[id] = table
		c.order = append(c.order, id)
	}
	return c, nil
}

// Describe accepts a bare table id or a dataset-qualified, optionally
// backtick-delimited reference such as `bigquery-public-data.samples.natality`.
func (c *Catalog) Describe(name string) (Table, error) {
	table, ok := c.tables[TableName(name)]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	fields := make([]Field, len(table.Fields))
	copy(fields, table.Fields)
	table.Fields = fields
	return table, nil
}

func (c *Catalog) Tables() []Table {
	out := make([]Table, 0, len(c.order))
	for _, id := range c.order {
		table, _ := c.Describe(id)
		out = append(out, table)
	}
	return out
}

// Context renders a block for every reference the catalog knows about, in
// reference order. Unknown references are skipped.
func (c *Catalog) Context(refs []string) []string {
	blocks := make([]string, 0, len(refs))
	for _, ref := range refs {
		table, err := c.Describe(ref)
		if err != nil {
			continue
		}
		blocks = append(blocks, table.Render())
	}
	return blocks
}

// TableName strips delimiters and dataset qualifiers from a table reference.
func TableName(ref string) string {
	ref = strings.ReplaceAll(strings.TrimSpace(ref), "`", "")
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		ref = ref[idx+1:]
	}
	return ref
}
