// File path: internal/sqlquery/plan.go
package sqlquery

import (
	"fmt"
	"strings"
)

// Column is a qualified column reference.
type Column struct {
	Table string
	Name  string
}

func (c Column) String() string {
	return c.Table + "." + c.Name
}

// ParseColumn splits a "table.column" reference. Bare names are not accepted
// here; the manual builder qualifies them against the selected tables first.
func ParseColumn(raw string) (Column, bool) {
	trimmed := strings.TrimSpace(raw)
	idx := strings.Index(trimmed, ".")
	if idx <= 0 || idx == len(trimmed)-1 {
		return Column{}, false
	}
	table := strings.TrimSpace(trimmed[:idx])
	name := strings.TrimSpace(trimmed[idx+1:])
	if table == "" || name == "" || strings.Contains(name, ".") {
		return Column{}, false
	}
	return Column{Table: table, Name: name}, true
}

// Predicate is one templated filter condition. The value is never
// interpolated into SQL text; the guard binds it as a query parameter.
type Predicate struct {
	Column Column
	Op     string
	Value  string
}

// Plan is the intermediate, not-yet-validated representation of a
// prospective read-only query. It must be fully reducible to catalog entries
// before the guard will render it.
type Plan struct {
	Tables     []string
	Columns    []Column
	Predicates []Predicate
	OrderBy    []Column
	Limit      int
}

// TableSet returns the distinct tables referenced by the plan, preserving
// first-reference order: explicit tables first, then tables implied by
// columns.
func (p Plan) TableSet() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(table string) {
		if table == "" {
			return
		}
		if _, ok := seen[table]; ok {
			return
		}
		seen[table] = struct{}{}
		out = append(out, table)
	}
	for _, table := range p.Tables {
		add(strings.TrimSpace(table))
	}
	for _, col := range p.Columns {
		add(col.Table)
	}
	return out
}

// Query is a guard-approved, executable statement. Args carry predicate
// values out-of-band so no user- or model-supplied value is ever part of the
// SQL text.
type Query struct {
	SQL  string
	Args []any
}

func (p Plan) describe() string {
	cols := make([]string, len(p.Columns))
	for i, col := range p.Columns {
		cols[i] = col.String()
	}
	return fmt.Sprintf("tables=%v columns=%v limit=%d", p.TableSet(), cols, p.Limit)
}
