// File path: internal/api/chat_handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure-Samples/infra-support-copilot/internal/classifier"
	"github.com/Azure-Samples/infra-support-copilot/internal/common"
	"github.com/Azure-Samples/infra-support-copilot/internal/llm"
	"github.com/Azure-Samples/infra-support-copilot/internal/protocol"
	"github.com/Azure-Samples/infra-support-copilot/internal/retriever"
	"github.com/Azure-Samples/infra-support-copilot/internal/sqlquery"
)

const (
	maxSourceDocs     = 5
	maxTableRendering = 4000
)

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: completion decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("messages required"))
		return
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("last message must be from the user"))
		return
	}
	convID := s.carrier.Normalize(req.ConversationID)
	history := toProviderMessages(req.Messages)
	msg := protocol.Parse(last.Content)
	route := s.classifier.Classify(ctx, msg)
	logger.Info("api: completion routed",
		"conversation", convID, "kind", msg.Kind.String(), "route", route.String())

	switch route {
	case classifier.RouteSentinel:
		s.completeStructuredTurn(ctx, w, convID, msg, history)
	case classifier.RouteStructured:
		outcome := s.flow.Engage()
		writeCompletion(w, convID, completionMessage{
			Role:    "assistant",
			Content: outcome.Reply,
			Context: &messageContext{Intent: "sql_query"},
		})
	default:
		s.completeFreeText(ctx, w, convID, history)
	}
}

// completeStructuredTurn advances the structured-query state machine with the
// parsed sentinel turn. The standalone question recovered from earlier plain
// turns feeds the auto branch's planner.
func (s *Server) completeStructuredTurn(ctx context.Context, w http.ResponseWriter, convID string, msg protocol.Message, history []llm.Message) {
	turn := sqlquery.Turn{Message: msg, Question: lastPlainQuestion(history)}
	outcome, err := s.flow.Handle(ctx, turn)
	if err != nil {
		writeCompletion(w, convID, structuredFailureMessage(err))
		return
	}
	if outcome.Reply != "" {
		writeCompletion(w, convID, completionMessage{
			Role:    "assistant",
			Content: outcome.Reply,
			Context: &messageContext{Intent: "sql_query"},
		})
		return
	}
	if outcome.Rows != nil {
		writeCompletion(w, convID, completionMessage{
			Role:    "assistant",
			Content: outcome.Rows.Markdown(maxTableRendering),
			Context: &messageContext{Intent: "sql_query", SQL: outcome.SQL},
		})
		return
	}
	// Plain text reached the flow: the conversation quietly leaves it.
	s.completeFreeText(ctx, w, convID, history)
}

func (s *Server) completeFreeText(ctx context.Context, w http.ResponseWriter, convID string, history []llm.Message) {
	logger := common.Logger()
	question, err := s.classifier.Condense(ctx, history)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results := s.retriever.Search(question, maxSourceDocs)
	rendered, err := s.answer.Format(map[string]any{
		"query":   question,
		"sources": renderSources(results),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	answer, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: rendered},
		{Role: "user", Content: question},
	})
	if err != nil {
		if friendly, ok := friendlyProviderError(err); ok {
			logger.Warn("api: provider throttled", "error", err)
			writeCompletion(w, convID, completionMessage{Role: "assistant", Content: friendly})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeCompletion(w, convID, completionMessage{
		Role:    "assistant",
		Content: answer,
		Context: &messageContext{Citations: buildCitations(results)},
	})
}

// structuredFailureMessage reports a guard rejection or execution failure by
// reason code only and returns the conversation to the start.
func structuredFailureMessage(err error) completionMessage {
	content := "Something went wrong while running your query. Let's start over: ask your question again."
	if rejected, ok := sqlquery.AsRejected(err); ok {
		content = fmt.Sprintf(
			"I can't run that query (reason: %s). Let's start over: pick tables and columns again.",
			rejected.Reason,
		)
	} else {
		var execErr *sqlquery.ExecutionError
		if errors.As(err, &execErr) && execErr.Timeout {
			content = "The query took too long and was cancelled. Try a narrower selection."
		}
	}
	return completionMessage{
		Role:    "assistant",
		Content: content,
		Context: &messageContext{Intent: "sql_query"},
	}
}

// friendlyProviderError maps upstream throttling to a message a user can act
// on. Other provider failures are surfaced as server errors.
func friendlyProviderError(err error) (string, bool) {
	lowered := strings.ToLower(err.Error())
	if strings.Contains(lowered, "429") || strings.Contains(lowered, "rate limit") || strings.Contains(lowered, "quota") {
		return "The assistant is receiving too many requests right now. Please wait a moment and ask again.", true
	}
	return "", false
}

func writeCompletion(w http.ResponseWriter, convID string, msg completionMessage) {
	writeJSON(w, http.StatusOK, completionResponse{
		ConversationID: convID,
		Choices:        []completionChoice{{Index: 0, Message: msg}},
	})
}

func toProviderMessages(messages []chatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// lastPlainQuestion finds the most recent user turn that is not a sentinel
// control message.
func lastPlainQuestion(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != "user" {
			continue
		}
		if protocol.Parse(history[i].Content).Kind != protocol.KindPlainText {
			continue
		}
		return strings.TrimSpace(history[i].Content)
	}
	return ""
}

// renderSources formats retrieval hits as the Sources block consumed by the
// system prompt, labelled for citation as [doc1]..[docN].
func renderSources(results []retriever.SearchResult) string {
	if len(results) == 0 {
		return "(no sources found)"
	}
	var b strings.Builder
	for i, res := range results {
		fmt.Fprintf(&b, "[doc%d] %s (%s)\n%s\n\n", i+1, res.Doc.Title, res.Doc.Kind, res.Doc.Content)
	}
	return strings.TrimSpace(b.String())
}

func buildCitations(results []retriever.SearchResult) []citation {
	citations := make([]citation, 0, len(results))
	for i, res := range results {
		citations = append(citations, citation{
			Label:   fmt.Sprintf("doc%d", i+1),
			Title:   res.Doc.Title,
			Kind:    res.Doc.Kind,
			Content: res.Doc.Content,
		})
	}
	return citations
}
