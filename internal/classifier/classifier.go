// File path: internal/classifier/classifier.go
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/Azure-Samples/infra-support-copilot/internal/common"
	"github.com/Azure-Samples/infra-support-copilot/internal/llm"
	"github.com/Azure-Samples/infra-support-copilot/internal/protocol"
)

// Route is the coarse intent of a chat turn.
type Route int

const (
	// RouteFreeText answers from retrieved documents.
	RouteFreeText Route = iota
	// RouteStructured enters the structured-query flow.
	RouteStructured
	// RouteSentinel continues an in-flight structured-query conversation.
	RouteSentinel
)

func (r Route) String() string {
	switch r {
	case RouteFreeText:
		return "free_text"
	case RouteStructured:
		return "structured_query"
	case RouteSentinel:
		return "sentinel"
	default:
		return "unknown"
	}
}

const condensePromptTemplate = `Given the conversation below, rewrite the final user message as a single
standalone question that preserves all names, identifiers and constraints from
the earlier turns. Reply with ONLY the rewritten question.

Conversation:
{{.history}}

Standalone question:`

const routePromptTemplate = `You route user requests for an Azure infrastructure support assistant.
Pick exactly one tool:
- "rag": questions answered from documentation and incident notes.
- "sql_query": requests to list, count, filter or look up inventory records
  (virtual machines, network interfaces, installed software).

Respond with ONLY a JSON object like {"tool": "sql_query"}.

User request: {{.query}}`

// structuredHints mark inventory-lookup phrasing for the fallback when the
// model output is unusable.
var structuredHints = []string{
	"list", "show me", "how many", "count", "which vms", "which machines",
	"sql", "query", "table", "rows", "installed software", "ip address",
	"virtual machine", "network interface",
}

// Classifier decides, per turn, whether the conversation stays in free-text
// retrieval or enters the structured-query flow. Sentinel turns bypass the
// model entirely: their kind is decided by the protocol prefix alone.
type Classifier struct {
	provider       llm.Provider
	condensePrompt prompts.PromptTemplate
	routePrompt    prompts.PromptTemplate
}

func New(provider llm.Provider) *Classifier {
	return &Classifier{
		provider:       provider,
		condensePrompt: prompts.NewPromptTemplate(condensePromptTemplate, []string{"history"}),
		routePrompt:    prompts.NewPromptTemplate(routePromptTemplate, []string{"query"}),
	}
}

// Classify maps a parsed turn to a route. Any recognised sentinel kind is
// routed mechanically; only plain text consults the model.
func (c *Classifier) Classify(ctx context.Context, msg protocol.Message) Route {
	if msg.Kind != protocol.KindPlainText {
		return RouteSentinel
	}
	return c.classifyText(ctx, msg.Payload)
}

func (c *Classifier) classifyText(ctx context.Context, query string) Route {
	logger := common.Logger()
	rendered, err := c.routePrompt.Format(map[string]any{"query": query})
	if err != nil {
		logger.Warn("classifier: route prompt failed", "error", err)
		return heuristicRoute(query)
	}
	answer, err := c.provider.Chat(ctx, []llm.Message{{Role: "user", Content: rendered}})
	if err != nil {
		logger.Warn("classifier: route call failed, using heuristic", "error", err)
		return heuristicRoute(query)
	}
	var choice struct {
		Tool string `json:"tool"`
	}
	if err := json.Unmarshal([]byte(stripFences(answer)), &choice); err != nil {
		logger.Debug("classifier: route output unparseable, using heuristic")
		return heuristicRoute(query)
	}
	switch strings.ToLower(strings.TrimSpace(choice.Tool)) {
	case "sql_query":
		return RouteStructured
	case "rag":
		return RouteFreeText
	default:
		logger.Debug("classifier: unknown tool choice, using heuristic", "tool", choice.Tool)
		return heuristicRoute(query)
	}
}

// Condense rewrites the latest user message into a standalone question using
// the preceding turns. With a single turn, or when the model is unavailable,
// the message is returned as-is.
func (c *Classifier) Condense(ctx context.Context, history []llm.Message) (string, error) {
	last := lastUserMessage(history)
	if last == "" {
		return "", fmt.Errorf("no user message in history")
	}
	if countUserMessages(history) <= 1 {
		return last, nil
	}
	rendered, err := c.condensePrompt.Format(map[string]any{"history": renderHistory(history)})
	if err != nil {
		return last, nil
	}
	answer, err := c.provider.Chat(ctx, []llm.Message{{Role: "user", Content: rendered}})
	if err != nil {
		common.Logger().Warn("classifier: condense failed, using last message", "error", err)
		return last, nil
	}
	condensed := strings.TrimSpace(answer)
	if condensed == "" || strings.HasPrefix(condensed, "[local-stub]") {
		return last, nil
	}
	return condensed, nil
}

func heuristicRoute(query string) Route {
	lowered := strings.ToLower(query)
	for _, hint := range structuredHints {
		if strings.Contains(lowered, hint) {
			return RouteStructured
		}
	}
	return RouteFreeText
}

func lastUserMessage(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}

func countUserMessages(history []llm.Message) int {
	n := 0
	for _, msg := range history {
		if msg.Role == "user" {
			n++
		}
	}
	return n
}

func renderHistory(history []llm.Message) string {
	var b strings.Builder
	for _, msg := range history {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.Trim(trimmed, "`\n ")
	if rest, ok := strings.CutPrefix(trimmed, "json"); ok {
		trimmed = rest
	}
	return strings.TrimSpace(trimmed)
}
