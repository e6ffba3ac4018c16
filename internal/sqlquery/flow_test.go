// File path: internal/sqlquery/flow_test.go
package sqlquery

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure-Samples/infra-support-copilot/internal/catalog"
	"github.com/Azure-Samples/infra-support-copilot/internal/protocol"
	"github.com/Azure-Samples/infra-support-copilot/internal/store"
)

type stubPlanner struct {
	plan Plan
	err  error
}

func (s *stubPlanner) Propose(ctx context.Context, goal string) (Plan, error) {
	return s.plan, s.err
}

func testFlow(t *testing.T, planner Planner) *Flow {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "flow_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	for i, name := range []string{"vm-alpha", "vm-beta"} {
		_, err := st.DB().Exec(
			`INSERT INTO virtual_machines (resource_id, name, location, vm_size, power_state)
			 VALUES (?, ?, ?, ?, ?)`,
			"/subscriptions/x/"+name, name, "eastus", "Standard_B2s", []string{"VM running", "VM deallocated"}[i],
		)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	cat, err := catalog.Load(context.Background(), st, []string{
		"virtual_machines", "network_interfaces", "installed_software",
	})
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	guard := NewGuard(cat, 50)
	exec := NewExecutor(st.DB(), 5*time.Second, 50)
	if planner == nil {
		planner = &stubPlanner{err: ErrSelectionEmpty}
	}
	return NewFlow(cat, guard, exec, planner)
}

func turn(text string) Turn {
	return Turn{Message: protocol.Parse(text)}
}

func TestManualWalkToExecution(t *testing.T) {
	flow := testFlow(t, nil)
	ctx := context.Background()

	opening := flow.Engage()
	if opening.Stage != StageChooseMethod || !strings.HasPrefix(opening.Reply, ";;METHOD;;") {
		t.Fatalf("unexpected opening: %+v", opening)
	}

	out, err := flow.Handle(ctx, turn(";;METHOD;;manual"))
	if err != nil {
		t.Fatalf("method turn: %v", err)
	}
	if out.Stage != StageSelectTables || !strings.Contains(out.Reply, "virtual_machines") {
		t.Fatalf("unexpected table prompt: %+v", out)
	}

	out, err = flow.Handle(ctx, turn(";;TABLES;;virtual_machines"))
	if err != nil {
		t.Fatalf("table turn: %v", err)
	}
	if out.Stage != StageSelectColumns || !strings.Contains(out.Reply, "virtual_machines.power_state") {
		t.Fatalf("unexpected column prompt: %+v", out)
	}
	if strings.Contains(out.Reply, "network_interfaces.") {
		t.Fatalf("column prompt leaked unselected table: %q", out.Reply)
	}

	out, err = flow.Handle(ctx, turn(";;COLUMNS;;virtual_machines.name"))
	if err != nil {
		t.Fatalf("column turn: %v", err)
	}
	if out.Stage != StageDone {
		t.Fatalf("expected done, got %v", out.Stage)
	}
	if len(out.Rows.Columns) != 1 || len(out.Rows.Rows) != 2 {
		t.Fatalf("expected only the selected column for two rows, got %v %v", out.Rows.Columns, out.Rows.Rows)
	}
	if !strings.Contains(out.SQL, `"virtual_machines"."name"`) || strings.Contains(out.SQL, "power_state") {
		t.Fatalf("sql should project only the selected column: %q", out.SQL)
	}
}

func TestEmptyTableSelectionReprompts(t *testing.T) {
	flow := testFlow(t, nil)
	out, err := flow.Handle(context.Background(), turn(";;TABLES;;not_a_table,also_fake"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out.Stage != StageSelectTables || !strings.HasPrefix(out.Reply, ";;TABLES;;") {
		t.Fatalf("expected table re-prompt, got %+v", out)
	}
}

func TestCraftedColumnSelectionNeverExecutes(t *testing.T) {
	flow := testFlow(t, nil)
	out, err := flow.Handle(context.Background(), turn(";;COLUMNS;;secrets.password,users.token"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out.Stage == StageDone || out.Rows != nil || out.SQL != "" {
		t.Fatalf("crafted selection must not reach execution: %+v", out)
	}
	if out.Stage != StageSelectTables {
		t.Fatalf("expected table re-prompt after full drop, got %v", out.Stage)
	}
}

func TestAmbiguousMethodChoiceReprompts(t *testing.T) {
	flow := testFlow(t, nil)
	out, err := flow.Handle(context.Background(), turn(";;METHOD;;whatever"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out.Stage != StageChooseMethod {
		t.Fatalf("expected method re-prompt, got %v", out.Stage)
	}
}

func TestPlainTextAbandonsFlow(t *testing.T) {
	flow := testFlow(t, nil)
	out, err := flow.Handle(context.Background(), turn("actually never mind"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out.Stage != StageStart || out.Reply != "" {
		t.Fatalf("expected silent return to start, got %+v", out)
	}
}

func TestAutoMethodUsesPlanner(t *testing.T) {
	planner := &stubPlanner{plan: Plan{
		Tables:  []string{"virtual_machines"},
		Columns: []Column{{Table: "virtual_machines", Name: "power_state"}},
	}}
	flow := testFlow(t, planner)
	out, err := flow.Handle(context.Background(), Turn{
		Message:  protocol.Parse(";;METHOD;;auto"),
		Question: "which machines are stopped?",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out.Stage != StageDone || len(out.Rows.Rows) != 2 {
		t.Fatalf("unexpected auto outcome: %+v", out)
	}
}

func TestConcurrentConversationsDoNotInterleave(t *testing.T) {
	flow := testFlow(t, nil)
	ctx := context.Background()
	selections := []string{"virtual_machines.name", "virtual_machines.power_state"}

	var wg sync.WaitGroup
	for _, selection := range selections {
		wg.Add(1)
		go func(selection string) {
			defer wg.Done()
			want := strings.TrimPrefix(selection, "virtual_machines.")
			for i := 0; i < 20; i++ {
				out, err := flow.Handle(ctx, turn(";;COLUMNS;;"+selection))
				if err != nil {
					t.Errorf("handle %s: %v", selection, err)
					return
				}
				if len(out.Rows.Columns) != 1 || out.Rows.Columns[0] != want {
					t.Errorf("conversation for %s saw columns %v", selection, out.Rows.Columns)
					return
				}
			}
		}(selection)
	}
	wg.Wait()
}
