// File path: internal/sqlquery/flow.go
package sqlquery

import (
	"context"
	"strings"

	"github.com/Azure-Samples/infra-support-copilot/internal/catalog"
	"github.com/Azure-Samples/infra-support-copilot/internal/common"
	"github.com/Azure-Samples/infra-support-copilot/internal/protocol"
)

// Stage is a position in the structured-query conversation state machine.
type Stage int

const (
	StageStart Stage = iota
	StageChooseMethod
	StageSelectTables
	StageSelectColumns
	StageBuildPlan
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageChooseMethod:
		return "choose_method"
	case StageSelectTables:
		return "select_tables"
	case StageSelectColumns:
		return "select_columns"
	case StageBuildPlan:
		return "build_plan"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Turn is one inbound chat turn for the structured-query flow. Question
// carries the latest standalone user question from the history, which the
// auto branch plans against.
type Turn struct {
	Message  protocol.Message
	Question string
}

// Outcome is the flow's reply for a turn. Reply is either a sentinel-encoded
// prompt for the client to render or empty when Rows carry the result.
type Outcome struct {
	Stage Stage
	Reply string
	SQL   string
	Rows  *RowSet
}

// Flow drives the stage machine. It holds no per-conversation state: every
// turn's stage and selections are reconstructed from that turn's sentinel
// payload, so concurrent conversations cannot interfere and a restart loses
// nothing beyond requiring the user to re-select.
type Flow struct {
	catalog  *catalog.Catalog
	builder  *Builder
	guard    *Guard
	executor *Executor
	planner  Planner
}

func NewFlow(cat *catalog.Catalog, guard *Guard, executor *Executor, planner Planner) *Flow {
	return &Flow{
		catalog:  cat,
		builder:  NewBuilder(cat),
		guard:    guard,
		executor: executor,
		planner:  planner,
	}
}

// Engage opens the flow for a freshly classified structured-query question.
func (f *Flow) Engage() Outcome {
	return Outcome{Stage: StageChooseMethod, Reply: f.methodPrompt()}
}

// Handle advances the state machine for one sentinel turn. Guard rejections
// and execution failures are returned as errors; the caller reports the
// reason and the conversation returns to Start, never a silent retry with
// relaxed constraints.
func (f *Flow) Handle(ctx context.Context, turn Turn) (Outcome, error) {
	logger := common.Logger()
	switch turn.Message.Kind {
	case protocol.KindMethodChoice:
		switch strings.ToLower(strings.TrimSpace(turn.Message.Payload)) {
		case protocol.MethodManual:
			return Outcome{Stage: StageSelectTables, Reply: f.tablePrompt()}, nil
		case protocol.MethodAuto:
			return f.autoExecute(ctx, turn.Question)
		default:
			logger.Debug("sqlquery: ambiguous method choice, re-prompting")
			return f.Engage(), nil
		}
	case protocol.KindTableSelection:
		kept := f.builder.FilterTables(protocol.DecodeList(turn.Message.Payload))
		if len(kept) == 0 {
			logger.Debug("sqlquery: empty table selection, re-prompting")
			return Outcome{Stage: StageSelectTables, Reply: f.tablePrompt()}, nil
		}
		return Outcome{Stage: StageSelectColumns, Reply: f.columnPrompt(kept)}, nil
	case protocol.KindColumnSelection:
		selections := protocol.DecodeList(turn.Message.Payload)
		tables := f.tablesFromSelections(selections)
		plan, err := f.builder.Manual(tables, selections)
		if err != nil {
			logger.Debug("sqlquery: empty column selection, re-prompting")
			if len(tables) > 0 {
				return Outcome{Stage: StageSelectColumns, Reply: f.columnPrompt(tables)}, nil
			}
			return Outcome{Stage: StageSelectTables, Reply: f.tablePrompt()}, nil
		}
		return f.validateAndExecute(ctx, plan)
	case protocol.KindExecute:
		goal := strings.TrimSpace(turn.Message.Payload)
		if goal == "" {
			goal = turn.Question
		}
		return f.autoExecute(ctx, goal)
	default:
		// Unrelated plain text abandons the flow.
		return Outcome{Stage: StageStart}, nil
	}
}

func (f *Flow) autoExecute(ctx context.Context, goal string) (Outcome, error) {
	plan, err := f.planner.Propose(ctx, goal)
	if err != nil {
		if err == ErrSelectionEmpty {
			return f.Engage(), nil
		}
		return Outcome{Stage: StageStart}, err
	}
	return f.validateAndExecute(ctx, plan)
}

func (f *Flow) validateAndExecute(ctx context.Context, plan Plan) (Outcome, error) {
	query, err := f.guard.Validate(plan)
	if err != nil {
		return Outcome{Stage: StageStart}, err
	}
	rows, err := f.executor.Execute(ctx, query)
	if err != nil {
		return Outcome{Stage: StageStart}, err
	}
	return Outcome{Stage: StageDone, SQL: query.SQL, Rows: rows}, nil
}

func (f *Flow) methodPrompt() string {
	return protocol.Encode(protocol.KindMethodChoice, protocol.EncodeList([]string{protocol.MethodManual, protocol.MethodAuto}))
}

func (f *Flow) tablePrompt() string {
	return protocol.Encode(protocol.KindTableSelection, protocol.EncodeList(f.catalog.Tables()))
}

func (f *Flow) columnPrompt(tables []string) string {
	var qualified []string
	for _, table := range tables {
		for _, column := range f.catalog.Columns(table) {
			qualified = append(qualified, table+"."+column)
		}
	}
	return protocol.Encode(protocol.KindColumnSelection, protocol.EncodeList(qualified))
}

// tablesFromSelections recovers the table context from qualified column
// selections, keeping only catalog tables.
func (f *Flow) tablesFromSelections(selections []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range selections {
		col, ok := ParseColumn(raw)
		if !ok || !f.catalog.HasTable(col.Table) {
			continue
		}
		if _, dup := seen[col.Table]; dup {
			continue
		}
		seen[col.Table] = struct{}{}
		out = append(out, col.Table)
	}
	return out
}
