// File path: internal/sqlquery/autoplan_test.go
package sqlquery

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure-Samples/infra-support-copilot/internal/llm"
)

type scriptedProvider struct {
	reply     string
	err       error
	chatCalls int
}

func (s *scriptedProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	s.chatCalls++
	return s.reply, s.err
}

func (s *scriptedProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	return make([][]float32, len(input)), nil
}

func (s *scriptedProvider) Name() string { return "scripted" }

func TestProposeAssemblesValidProposal(t *testing.T) {
	provider := &scriptedProvider{reply: `{
		"tables": ["virtual_machines"],
		"columns": ["virtual_machines.name", "virtual_machines.power_state"],
		"predicates": [{"column": "virtual_machines.power_state", "op": "=", "value": "VM deallocated"}],
		"order_by": ["virtual_machines.name"],
		"limit": 10
	}`}
	planner := NewLLMPlanner(provider, testCatalog(t))
	plan, err := planner.Propose(context.Background(), "which machines are stopped?")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(plan.Columns) != 2 || plan.Columns[0].Name != "name" {
		t.Fatalf("unexpected columns: %v", plan.Columns)
	}
	if len(plan.Predicates) != 1 || plan.Predicates[0].Value != "VM deallocated" {
		t.Fatalf("unexpected predicates: %v", plan.Predicates)
	}
	if plan.Limit != 10 {
		t.Fatalf("unexpected limit: %d", plan.Limit)
	}
	if provider.chatCalls != 1 {
		t.Fatalf("expected one chat call, got %d", provider.chatCalls)
	}
}

func TestProposeStripsCodeFences(t *testing.T) {
	provider := &scriptedProvider{reply: "```json\n{\"tables\": [\"virtual_machines\"], \"columns\": [\"virtual_machines.name\"]}\n```"}
	planner := NewLLMPlanner(provider, testCatalog(t))
	plan, err := planner.Propose(context.Background(), "list machine names")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(plan.Columns) != 1 || plan.Columns[0].Name != "name" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestProposeDropsOutOfCatalogCandidates(t *testing.T) {
	provider := &scriptedProvider{reply: `{
		"tables": ["virtual_machines", "secrets"],
		"columns": ["virtual_machines.name", "secrets.password"],
		"predicates": [
			{"column": "secrets.password", "op": "=", "value": "x"},
			{"column": "virtual_machines.name", "op": "DROP", "value": "x"}
		]
	}`}
	planner := NewLLMPlanner(provider, testCatalog(t))
	plan, err := planner.Propose(context.Background(), "names please")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(plan.Tables) != 1 || plan.Tables[0] != "virtual_machines" {
		t.Fatalf("out-of-catalog table survived: %v", plan.Tables)
	}
	if len(plan.Columns) != 1 || plan.Columns[0].Table != "virtual_machines" {
		t.Fatalf("out-of-catalog column survived: %v", plan.Columns)
	}
	if len(plan.Predicates) != 0 {
		t.Fatalf("invalid predicates survived: %v", plan.Predicates)
	}
}

func TestProposeHeuristicOnUnparseableOutput(t *testing.T) {
	provider := &scriptedProvider{reply: "[local-stub] I cannot produce JSON"}
	planner := NewLLMPlanner(provider, testCatalog(t))
	plan, err := planner.Propose(context.Background(), "show power_state of every machine")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	found := false
	for _, col := range plan.Columns {
		if col.Name == "power_state" {
			found = true
		}
		if !planner.catalog.Exists(col.Table, col.Name) {
			t.Fatalf("heuristic produced out-of-catalog column %v", col)
		}
	}
	if !found {
		t.Fatalf("heuristic missed mentioned column: %v", plan.Columns)
	}
}

func TestProposeHeuristicOnProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream unavailable")}
	planner := NewLLMPlanner(provider, testCatalog(t))
	plan, err := planner.Propose(context.Background(), "anything at all")
	if err != nil {
		t.Fatalf("propose should fall back, got: %v", err)
	}
	if len(plan.Columns) == 0 {
		t.Fatal("overview fallback produced an empty plan")
	}
}

func TestProposeEmptyGoal(t *testing.T) {
	planner := NewLLMPlanner(&scriptedProvider{}, testCatalog(t))
	if _, err := planner.Propose(context.Background(), "   "); err != ErrSelectionEmpty {
		t.Fatalf("expected ErrSelectionEmpty, got %v", err)
	}
}
