// File path: internal/classifier/classifier_test.go
package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure-Samples/infra-support-copilot/internal/llm"
	"github.com/Azure-Samples/infra-support-copilot/internal/protocol"
)

type fakeProvider struct {
	reply     string
	err       error
	chatCalls int
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.chatCalls++
	return f.reply, f.err
}

func (f *fakeProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	return make([][]float32, len(input)), nil
}

func (f *fakeProvider) Name() string { return "fake" }

func TestSentinelTurnsBypassModel(t *testing.T) {
	provider := &fakeProvider{reply: `{"tool": "rag"}`}
	c := New(provider)
	for _, text := range []string{
		";;METHOD;;manual",
		";;TABLES;;virtual_machines",
		";;COLUMNS;;virtual_machines.name",
		";;EXECUTE;;stopped machines",
	} {
		if got := c.Classify(context.Background(), protocol.Parse(text)); got != RouteSentinel {
			t.Fatalf("%q routed to %v", text, got)
		}
	}
	if provider.chatCalls != 0 {
		t.Fatalf("sentinel routing called the model %d times", provider.chatCalls)
	}
}

func TestClassifyHonoursToolChoice(t *testing.T) {
	cases := []struct {
		reply string
		want  Route
	}{
		{`{"tool": "sql_query"}`, RouteStructured},
		{`{"tool": "rag"}`, RouteFreeText},
		{"```json\n{\"tool\": \"sql_query\"}\n```", RouteStructured},
	}
	for _, tc := range cases {
		c := New(&fakeProvider{reply: tc.reply})
		got := c.Classify(context.Background(), protocol.Parse("what is the weather"))
		if got != tc.want {
			t.Fatalf("reply %q routed to %v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestClassifyFallsBackToHeuristic(t *testing.T) {
	c := New(&fakeProvider{err: errors.New("rate limited")})
	ctx := context.Background()
	if got := c.Classify(ctx, protocol.Parse("list all virtual machines in eastus")); got != RouteStructured {
		t.Fatalf("inventory phrasing routed to %v", got)
	}
	if got := c.Classify(ctx, protocol.Parse("explain our patching policy")); got != RouteFreeText {
		t.Fatalf("doc question routed to %v", got)
	}
}

func TestClassifyUnknownToolUsesHeuristic(t *testing.T) {
	c := New(&fakeProvider{reply: `{"tool": "log_analytics"}`})
	got := c.Classify(context.Background(), protocol.Parse("how many rows are in installed_software"))
	if got != RouteStructured {
		t.Fatalf("expected heuristic structured route, got %v", got)
	}
}

func TestCondenseSingleTurnSkipsModel(t *testing.T) {
	provider := &fakeProvider{reply: "rewritten"}
	c := New(provider)
	got, err := c.Condense(context.Background(), []llm.Message{
		{Role: "user", Content: "  which VMs are stopped?  "},
	})
	if err != nil {
		t.Fatalf("condense: %v", err)
	}
	if got != "which VMs are stopped?" {
		t.Fatalf("unexpected condensed question: %q", got)
	}
	if provider.chatCalls != 0 {
		t.Fatal("single-turn condense should not call the model")
	}
}

func TestCondenseMultiTurn(t *testing.T) {
	c := New(&fakeProvider{reply: "which network interfaces belong to vm-alpha?"})
	got, err := c.Condense(context.Background(), []llm.Message{
		{Role: "user", Content: "tell me about vm-alpha"},
		{Role: "assistant", Content: "vm-alpha is a Standard_B2s in eastus."},
		{Role: "user", Content: "and its NICs?"},
	})
	if err != nil {
		t.Fatalf("condense: %v", err)
	}
	if got != "which network interfaces belong to vm-alpha?" {
		t.Fatalf("unexpected condensed question: %q", got)
	}
}

func TestCondenseFallsBackOnModelFailure(t *testing.T) {
	c := New(&fakeProvider{err: errors.New("unavailable")})
	got, err := c.Condense(context.Background(), []llm.Message{
		{Role: "user", Content: "first"},
		{Role: "user", Content: "second question"},
	})
	if err != nil {
		t.Fatalf("condense: %v", err)
	}
	if got != "second question" {
		t.Fatalf("expected last user message, got %q", got)
	}
}

func TestCondenseRequiresUserMessage(t *testing.T) {
	c := New(&fakeProvider{})
	if _, err := c.Condense(context.Background(), []llm.Message{
		{Role: "assistant", Content: "hello"},
	}); err == nil {
		t.Fatal("expected error for history without user turns")
	}
}
