// File path: internal/catalog/catalog.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Azure-Samples/infra-support-copilot/internal/common"
	"github.com/Azure-Samples/infra-support-copilot/internal/store"
)

// Entry is one whitelisted column: the unit of authority for everything the
// plan builder and guard will accept.
type Entry struct {
	Table  string
	Column string
	Type   string
}

// Join describes a known relationship between two whitelisted tables.
type Join struct {
	LeftTable   string
	LeftColumn  string
	RightTable  string
	RightColumn string
}

// knownJoins lists the inventory schema's relationships. A join is only
// exposed when both of its tables survived the whitelist.
var knownJoins = []Join{
	{LeftTable: "virtual_machines", LeftColumn: "resource_id", RightTable: "network_interfaces", RightColumn: "vm_resource_id"},
	{LeftTable: "virtual_machines", LeftColumn: "name", RightTable: "installed_software", RightColumn: "computer_name"},
}

// Catalog is the immutable whitelist of queryable tables and columns. It is
// loaded once at startup and safe for unsynchronized concurrent reads.
type Catalog struct {
	tables map[string]map[string]string
	order  []string
	joins  []Join
}

// Load introspects the live schema for every whitelisted table. Tables the
// schema does not know are skipped with a warning rather than failing
// startup; an empty result is an error because nothing would be queryable.
func Load(ctx context.Context, st *store.Store, allowed []string) (*Catalog, error) {
	if st == nil {
		return nil, errors.New("store required")
	}
	logger := common.Logger()
	entries := make([]Entry, 0, 64)
	for _, table := range allowed {
		trimmed := strings.TrimSpace(table)
		if trimmed == "" {
			continue
		}
		cols, err := st.TableColumns(ctx, trimmed)
		if err != nil {
			return nil, fmt.Errorf("catalog load: %w", err)
		}
		if len(cols) == 0 {
			logger.Warn("catalog: whitelisted table missing from schema", "table", trimmed)
			continue
		}
		for _, col := range cols {
			entries = append(entries, Entry{Table: trimmed, Column: col.Name, Type: col.Type})
		}
	}
	cat, err := New(entries)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog: loaded", "tables", len(cat.order))
	return cat, nil
}

// New builds a catalog from explicit entries.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, errors.New("catalog requires at least one entry")
	}
	tables := make(map[string]map[string]string)
	var order []string
	for _, entry := range entries {
		table := strings.TrimSpace(entry.Table)
		column := strings.TrimSpace(entry.Column)
		if table == "" || column == "" {
			continue
		}
		if _, ok := tables[table]; !ok {
			tables[table] = make(map[string]string)
			order = append(order, table)
		}
		tables[table][column] = entry.Type
	}
	if len(order) == 0 {
		return nil, errors.New("catalog requires at least one entry")
	}
	var joins []Join
	for _, join := range knownJoins {
		if _, ok := tables[join.LeftTable]; !ok {
			continue
		}
		if _, ok := tables[join.RightTable]; !ok {
			continue
		}
		joins = append(joins, join)
	}
	return &Catalog{tables: tables, order: order, joins: joins}, nil
}

// Tables returns the whitelisted table names in load order.
func (c *Catalog) Tables() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Columns returns the column names of a whitelisted table, sorted. Unknown
// tables yield nil.
func (c *Catalog) Columns(table string) []string {
	cols, ok := c.tables[table]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cols))
	for name := range cols {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasTable reports whether the table is whitelisted.
func (c *Catalog) HasTable(table string) bool {
	_, ok := c.tables[table]
	return ok
}

// Exists reports whether table.column is whitelisted.
func (c *Catalog) Exists(table, column string) bool {
	cols, ok := c.tables[table]
	if !ok {
		return false
	}
	_, ok = cols[column]
	return ok
}

// ColumnType returns the declared type of a whitelisted column.
func (c *Catalog) ColumnType(table, column string) (string, bool) {
	cols, ok := c.tables[table]
	if !ok {
		return "", false
	}
	typ, ok := cols[column]
	return typ, ok
}

// Joins returns relationships between whitelisted tables.
func (c *Catalog) Joins() []Join {
	out := make([]Join, len(c.joins))
	copy(out, c.joins)
	return out
}

// JoinBetween returns the relationship linking two tables, in either
// direction.
func (c *Catalog) JoinBetween(a, b string) (Join, bool) {
	for _, join := range c.joins {
		if join.LeftTable == a && join.RightTable == b {
			return join, true
		}
		if join.LeftTable == b && join.RightTable == a {
			return join, true
		}
	}
	return Join{}, false
}

// Describe renders the catalog as a compact schema listing suitable for
// prompt construction.
func (c *Catalog) Describe() string {
	var b strings.Builder
	for _, table := range c.order {
		b.WriteString("TABLE ")
		b.WriteString(table)
		b.WriteString(" (")
		cols := c.Columns(table)
		for i, col := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(col)
			if typ, ok := c.ColumnType(table, col); ok && typ != "" {
				b.WriteString(" ")
				b.WriteString(typ)
			}
		}
		b.WriteString(")\n")
	}
	for _, join := range c.joins {
		fmt.Fprintf(&b, "JOIN %s.%s = %s.%s\n", join.LeftTable, join.LeftColumn, join.RightTable, join.RightColumn)
	}
	return b.String()
}
