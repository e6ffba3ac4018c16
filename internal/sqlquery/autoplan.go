// File path: internal/sqlquery/autoplan.go
package sqlquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langgraphgo/graph"

	"github.com/Azure-Samples/infra-support-copilot/internal/catalog"
	"github.com/Azure-Samples/infra-support-copilot/internal/common"
	"github.com/Azure-Samples/infra-support-copilot/internal/llm"
)

// Planner proposes a plan for a natural-language goal. Implementations are
// pluggable; safety never depends on them because every proposal still passes
// the guard.
type Planner interface {
	Propose(ctx context.Context, goal string) (Plan, error)
}

const planPromptTemplate = `You are an expert query planner for Azure infrastructure inventory data.
Propose the smallest read-only query plan that answers the user's request.

Available tables and columns:
{{.schema}}

Respond with ONLY a JSON object, no markdown fences, shaped like:
{"tables": ["table"], "columns": ["table.column"], "predicates": [{"column": "table.column", "op": "=", "value": "literal"}], "order_by": ["table.column"], "limit": 50}
Use only tables and columns from the listing above. Allowed predicate ops: = != < <= > >= LIKE.

User request: {{.goal}}`

type planProposal struct {
	Tables     []string `json:"tables"`
	Columns    []string `json:"columns"`
	Predicates []struct {
		Column string `json:"column"`
		Op     string `json:"op"`
		Value  string `json:"value"`
	} `json:"predicates"`
	OrderBy []string `json:"order_by"`
	Limit   int      `json:"limit"`
}

// LLMPlanner drives a propose/repair message pipeline over the configured
// provider and filters every candidate against the catalog before plan
// assembly. When the model output is unusable it falls back to a
// deterministic keyword heuristic.
type LLMPlanner struct {
	provider llm.Provider
	catalog  *catalog.Catalog
	prompt   prompts.PromptTemplate
}

func NewLLMPlanner(provider llm.Provider, cat *catalog.Catalog) *LLMPlanner {
	return &LLMPlanner{
		provider: provider,
		catalog:  cat,
		prompt:   prompts.NewPromptTemplate(planPromptTemplate, []string{"schema", "goal"}),
	}
}

func (p *LLMPlanner) Propose(ctx context.Context, goal string) (Plan, error) {
	logger := common.Logger()
	trimmed := strings.TrimSpace(goal)
	if trimmed == "" {
		return Plan{}, ErrSelectionEmpty
	}
	raw, err := p.propose(ctx, trimmed)
	if err != nil {
		logger.Warn("sqlquery: plan proposal failed, using heuristic", "error", err)
		return p.heuristicPlan(trimmed), nil
	}
	var proposal planProposal
	if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
		logger.Warn("sqlquery: plan proposal unparseable, using heuristic")
		return p.heuristicPlan(trimmed), nil
	}
	plan, ok := p.assemble(proposal)
	if !ok {
		logger.Warn("sqlquery: plan proposal had no catalog-valid candidates, using heuristic")
		return p.heuristicPlan(trimmed), nil
	}
	logger.Debug("sqlquery: auto plan assembled", "plan", plan.describe())
	return plan, nil
}

// propose runs a two-node message graph: the model proposes, then the output
// is stripped of code fences before parsing.
func (p *LLMPlanner) propose(ctx context.Context, goal string) (string, error) {
	rendered, err := p.prompt.Format(map[string]any{
		"schema": p.catalog.Describe(),
		"goal":   goal,
	})
	if err != nil {
		return "", fmt.Errorf("format plan prompt: %w", err)
	}
	g := graph.NewMessageGraph()
	g.AddNode("propose", func(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		answer, err := p.provider.Chat(ctx, []llm.Message{{Role: "user", Content: messageText(state[len(state)-1])}})
		if err != nil {
			return nil, err
		}
		return append(state, llms.TextParts(llms.ChatMessageTypeAI, answer)), nil
	})
	g.AddNode("repair", func(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		cleaned := stripCodeFences(messageText(state[len(state)-1]))
		return append(state, llms.TextParts(llms.ChatMessageTypeAI, cleaned)), nil
	})
	g.AddEdge("propose", "repair")
	g.AddEdge("repair", graph.END)
	g.SetEntryPoint("propose")
	runnable, err := g.Compile()
	if err != nil {
		return "", fmt.Errorf("compile plan graph: %w", err)
	}
	state, err := runnable.Invoke(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, rendered)})
	if err != nil {
		return "", err
	}
	if len(state) == 0 {
		return "", fmt.Errorf("empty plan graph state")
	}
	return messageText(state[len(state)-1]), nil
}

// assemble filters proposal candidates through the catalog before building
// the plan; invalid candidates are dropped, never passed through for the
// guard to catch later.
func (p *LLMPlanner) assemble(proposal planProposal) (Plan, bool) {
	var plan Plan
	for _, table := range proposal.Tables {
		if p.catalog.HasTable(strings.TrimSpace(table)) {
			plan.Tables = append(plan.Tables, strings.TrimSpace(table))
		}
	}
	for _, raw := range proposal.Columns {
		col, ok := ParseColumn(raw)
		if !ok || !p.catalog.Exists(col.Table, col.Name) {
			continue
		}
		plan.Columns = append(plan.Columns, col)
	}
	if len(plan.Columns) == 0 {
		return Plan{}, false
	}
	for _, pred := range proposal.Predicates {
		col, ok := ParseColumn(pred.Column)
		if !ok || !p.catalog.Exists(col.Table, col.Name) {
			continue
		}
		if _, ok := allowedOps[pred.Op]; !ok {
			continue
		}
		plan.Predicates = append(plan.Predicates, Predicate{Column: col, Op: pred.Op, Value: pred.Value})
	}
	for _, raw := range proposal.OrderBy {
		col, ok := ParseColumn(raw)
		if !ok || !p.catalog.Exists(col.Table, col.Name) {
			continue
		}
		plan.OrderBy = append(plan.OrderBy, col)
	}
	plan.Limit = proposal.Limit
	plan.Tables = plan.TableSet()
	return plan, true
}

// heuristicPlan matches goal tokens against catalog names; when nothing
// matches it falls back to a VM overview, the smallest plan that plausibly
// answers an infrastructure question.
func (p *LLMPlanner) heuristicPlan(goal string) Plan {
	tokens := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(goal), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_')
	}) {
		tokens[tok] = struct{}{}
	}
	var plan Plan
	for _, table := range p.catalog.Tables() {
		tableMentioned := mentioned(table, tokens)
		for _, column := range p.catalog.Columns(table) {
			if tableMentioned || mentioned(column, tokens) {
				plan.Columns = append(plan.Columns, Column{Table: table, Name: column})
			}
		}
	}
	if len(plan.Columns) == 0 {
		plan = p.overviewPlan()
	}
	plan.Tables = plan.TableSet()
	return plan
}

func (p *LLMPlanner) overviewPlan() Plan {
	var plan Plan
	preferred := []string{"name", "location", "vm_size", "power_state"}
	for _, table := range p.catalog.Tables() {
		for _, column := range preferred {
			if p.catalog.Exists(table, column) {
				plan.Columns = append(plan.Columns, Column{Table: table, Name: column})
			}
		}
		if len(plan.Columns) > 0 {
			return plan
		}
		for i, column := range p.catalog.Columns(table) {
			if i >= 4 {
				break
			}
			plan.Columns = append(plan.Columns, Column{Table: table, Name: column})
		}
		return plan
	}
	return plan
}

func mentioned(name string, tokens map[string]struct{}) bool {
	for _, part := range strings.Split(strings.ToLower(name), "_") {
		if _, ok := tokens[part]; ok {
			return true
		}
	}
	_, ok := tokens[strings.ToLower(name)]
	return ok
}

func messageText(mc llms.MessageContent) string {
	var parts []string
	for _, part := range mc.Parts {
		if text, ok := part.(llms.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.Trim(trimmed, "`\n ")
	if rest, ok := strings.CutPrefix(trimmed, "json"); ok {
		trimmed = rest
	} else if rest, ok := strings.CutPrefix(trimmed, "sql"); ok {
		trimmed = rest
	}
	return strings.TrimSpace(trimmed)
}
