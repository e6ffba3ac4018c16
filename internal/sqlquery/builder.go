// File path: internal/sqlquery/builder.go
package sqlquery

import (
	"strings"

	"github.com/Azure-Samples/infra-support-copilot/internal/catalog"
	"github.com/Azure-Samples/infra-support-copilot/internal/common"
)

// Builder assembles query plans from user selections. Everything it accepts
// is restricted to the schema catalog at construction time; entries outside
// the catalog are dropped silently so one stray name does not fail the whole
// request.
type Builder struct {
	catalog *catalog.Catalog
}

func NewBuilder(cat *catalog.Catalog) *Builder {
	return &Builder{catalog: cat}
}

// FilterTables keeps the selected names present in the catalog, preserving
// order and dropping duplicates.
func (b *Builder) FilterTables(selected []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range selected {
		name := strings.TrimSpace(raw)
		if name == "" || !b.catalog.HasTable(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Manual builds a plan from explicit table and column selections. Columns may
// be qualified ("table.column") or bare; bare names are resolved against the
// selected tables in order. An empty surviving selection returns
// ErrSelectionEmpty so the flow re-prompts rather than proceeding.
func (b *Builder) Manual(tables, columns []string) (Plan, error) {
	logger := common.Logger()
	kept := b.FilterTables(tables)
	if len(kept) == 0 {
		return Plan{}, ErrSelectionEmpty
	}
	allowed := make(map[string]struct{}, len(kept))
	for _, table := range kept {
		allowed[table] = struct{}{}
	}
	seen := make(map[string]struct{})
	var cols []Column
	dropped := 0
	for _, raw := range columns {
		col, ok := b.resolveColumn(raw, kept)
		if !ok {
			dropped++
			continue
		}
		if _, ok := allowed[col.Table]; !ok {
			dropped++
			continue
		}
		key := col.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cols = append(cols, col)
	}
	if dropped > 0 {
		logger.Debug("sqlquery: dropped out-of-catalog selections", "count", dropped)
	}
	if len(cols) == 0 {
		return Plan{}, ErrSelectionEmpty
	}
	plan := Plan{Columns: cols}
	plan.Tables = plan.TableSet()
	return plan, nil
}

func (b *Builder) resolveColumn(raw string, selected []string) (Column, bool) {
	if col, ok := ParseColumn(raw); ok {
		if b.catalog.Exists(col.Table, col.Name) {
			return col, true
		}
		return Column{}, false
	}
	name := strings.TrimSpace(raw)
	if name == "" {
		return Column{}, false
	}
	for _, table := range selected {
		if b.catalog.Exists(table, name) {
			return Column{Table: table, Name: name}, true
		}
	}
	return Column{}, false
}
