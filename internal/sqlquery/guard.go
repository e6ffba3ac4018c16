// File path: internal/sqlquery/guard.go
package sqlquery

import (
	"strconv"
	"strings"

	"github.com/Azure-Samples/infra-support-copilot/internal/catalog"
	"github.com/Azure-Samples/infra-support-copilot/internal/common"
)

const defaultMaxRows = 50

// allowedOps is the closed set of predicate operators the guard will render.
var allowedOps = map[string]string{
	"=":    "=",
	"!=":   "<>",
	"<>":   "<>",
	"<":    "<",
	"<=":   "<=",
	">":    ">",
	">=":   ">=",
	"like": "LIKE",
	"LIKE": "LIKE",
}

// forbiddenVerbs are checked against the rendered statement as a final
// defense; the renderer itself can only produce SELECT.
var forbiddenVerbs = []string{
	"INSERT", "UPDATE", "DELETE", "MERGE", "DROP", "ALTER", "TRUNCATE",
	"CREATE", "REPLACE", "ATTACH", "DETACH", "PRAGMA", "VACUUM",
}

const maxPredicateValueLen = 256

// Guard validates a plan against the schema catalog and renders it to
// executable text. It rejects rather than repairs: the only additive fix is
// the row limit default.
type Guard struct {
	catalog *catalog.Catalog
	maxRows int
}

func NewGuard(cat *catalog.Catalog, maxRows int) *Guard {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Guard{catalog: cat, maxRows: maxRows}
}

// MaxRows returns the configured row cap.
func (g *Guard) MaxRows() int {
	return g.maxRows
}

// Validate checks the plan in order: catalog membership, joinability,
// predicate safety, row limit. On success it returns the rendered read-only
// query; any violation returns a Rejected error carrying a machine-readable
// reason code.
func (g *Guard) Validate(plan Plan) (Query, error) {
	logger := common.Logger()
	if len(plan.Columns) == 0 {
		return Query{}, &Rejected{Reason: ReasonNoColumns}
	}
	tables := plan.TableSet()
	for _, table := range tables {
		if !g.catalog.HasTable(table) {
			logger.Warn("sqlquery: guard rejected plan", "reason", ReasonUnknownTable)
			return Query{}, &Rejected{Reason: ReasonUnknownTable}
		}
	}
	for _, col := range plan.Columns {
		if !g.catalog.Exists(col.Table, col.Name) {
			logger.Warn("sqlquery: guard rejected plan", "reason", ReasonUnknownColumn)
			return Query{}, &Rejected{Reason: ReasonUnknownColumn}
		}
	}
	selected := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		selected[table] = struct{}{}
	}
	for _, col := range plan.OrderBy {
		if err := g.checkColumn(col, selected); err != nil {
			return Query{}, err
		}
	}
	joins, err := g.joinPath(tables)
	if err != nil {
		return Query{}, err
	}
	for _, pred := range plan.Predicates {
		if err := g.checkColumn(pred.Column, selected); err != nil {
			return Query{}, err
		}
		if _, ok := allowedOps[pred.Op]; !ok {
			return Query{}, &Rejected{Reason: ReasonUnsafePredicate}
		}
		if len(pred.Value) > maxPredicateValueLen {
			return Query{}, &Rejected{Reason: ReasonUnsafePredicate}
		}
	}
	limit := g.ApplyLimit(plan.Limit)
	query := g.render(plan, tables, joins, limit)
	if verb, ok := containsForbiddenVerb(query.SQL); ok {
		logger.Warn("sqlquery: rendered query contained forbidden verb", "verb", verb)
		return Query{}, &Rejected{Reason: ReasonForbiddenVerb}
	}
	logger.Debug("sqlquery: guard approved plan", "plan", plan.describe(), "limit", limit)
	return query, nil
}

// ApplyLimit clamps a requested limit into (0, maxRows]. Applying it twice
// yields the same value.
func (g *Guard) ApplyLimit(limit int) int {
	if limit <= 0 || limit > g.maxRows {
		return g.maxRows
	}
	return limit
}

// checkColumn verifies a predicate or order-by reference is whitelisted and
// belongs to a table the plan actually selects from.
func (g *Guard) checkColumn(col Column, selected map[string]struct{}) error {
	if !g.catalog.HasTable(col.Table) {
		return &Rejected{Reason: ReasonUnknownTable}
	}
	if !g.catalog.Exists(col.Table, col.Name) {
		return &Rejected{Reason: ReasonUnknownColumn}
	}
	if _, ok := selected[col.Table]; !ok {
		return &Rejected{Reason: ReasonUnjoinableTables}
	}
	return nil
}

// joinPath verifies every table beyond the first is reachable through a
// catalog-known relationship with an earlier table.
func (g *Guard) joinPath(tables []string) ([]catalog.Join, error) {
	if len(tables) <= 1 {
		return nil, nil
	}
	joined := []string{tables[0]}
	joins := make([]catalog.Join, 0, len(tables)-1)
	for _, table := range tables[1:] {
		var found bool
		for _, prior := range joined {
			if join, ok := g.catalog.JoinBetween(prior, table); ok {
				joins = append(joins, join)
				found = true
				break
			}
		}
		if !found {
			return nil, &Rejected{Reason: ReasonUnjoinableTables}
		}
		joined = append(joined, table)
	}
	return joins, nil
}

func (g *Guard) render(plan Plan, tables []string, joins []catalog.Join, limit int) Query {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, col := range plan.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteColumn(col))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(tables[0]))
	for i, table := range tables[1:] {
		join := joins[i]
		b.WriteString(" LEFT OUTER JOIN ")
		b.WriteString(quoteIdent(table))
		b.WriteString(" ON ")
		b.WriteString(quoteColumn(Column{Table: join.LeftTable, Name: join.LeftColumn}))
		b.WriteString(" = ")
		b.WriteString(quoteColumn(Column{Table: join.RightTable, Name: join.RightColumn}))
	}
	args := make([]any, 0, len(plan.Predicates))
	for i, pred := range plan.Predicates {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(quoteColumn(pred.Column))
		b.WriteString(" ")
		b.WriteString(allowedOps[pred.Op])
		b.WriteString(" ?")
		args = append(args, pred.Value)
	}
	for i, col := range plan.OrderBy {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(quoteColumn(col))
	}
	b.WriteString(" LIMIT ")
	b.WriteString(strconv.Itoa(limit))
	return Query{SQL: b.String(), Args: args}
}

// quoteIdent neutralizes delimiter-breaking characters before an identifier
// is interpolated into query text.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteColumn(col Column) string {
	return quoteIdent(col.Table) + "." + quoteIdent(col.Name)
}

// containsForbiddenVerb scans the statement outside quoted identifiers for
// write or DDL verbs.
func containsForbiddenVerb(sql string) (string, bool) {
	var unquoted strings.Builder
	inQuote := false
	for _, r := range sql {
		if r == '"' {
			inQuote = !inQuote
			unquoted.WriteByte(' ')
			continue
		}
		if !inQuote {
			unquoted.WriteRune(r)
		}
	}
	text := unquoted.String()
	if strings.ContainsRune(text, ';') {
		return ";", true
	}
	for _, field := range strings.Fields(strings.ToUpper(text)) {
		for _, verb := range forbiddenVerbs {
			if field == verb {
				return verb, true
			}
		}
	}
	return "", false
}

