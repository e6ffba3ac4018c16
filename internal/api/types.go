// File path: internal/api/types.go
package api

// The completion envelope mirrors the OpenAI chat-completion shape so chat
// UIs can consume it without a bespoke client.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Messages       []chatMessage `json:"messages"`
	ConversationID string        `json:"conversation_id,omitempty"`
}

type citation struct {
	Label   string `json:"label"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

type messageContext struct {
	Citations []citation `json:"citations,omitempty"`
	Intent    string     `json:"intent,omitempty"`
	SQL       string     `json:"sql,omitempty"`
}

type completionMessage struct {
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Context *messageContext `json:"context,omitempty"`
}

type completionChoice struct {
	Index   int               `json:"index"`
	Message completionMessage `json:"message"`
}

type completionResponse struct {
	ConversationID string             `json:"conversation_id"`
	Choices        []completionChoice `json:"choices"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Provider  string `json:"provider"`
	Tables    int    `json:"tables"`
	Documents int    `json:"documents,omitempty"`
}
