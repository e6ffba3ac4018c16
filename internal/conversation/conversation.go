// File path: internal/conversation/conversation.go
package conversation

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Azure-Samples/infra-support-copilot/internal/common"
)

// Carrier issues and normalizes conversation identifiers. Identifiers are
// correlation-only: they tag log lines and responses so a client can stitch
// turns together, but they never gate access to state. Every turn is
// reconstructed from its own payload, so a guessed or replayed identifier
// grants nothing.
type Carrier struct{}

func NewCarrier() *Carrier {
	return &Carrier{}
}

// Issue mints a fresh conversation identifier.
func (c *Carrier) Issue() string {
	return uuid.NewString()
}

// Normalize returns a canonical identifier for an untrusted client-supplied
// value. Anything that does not parse as a UUID is replaced with a fresh one;
// the replacement is logged so the client-side mismatch is visible.
func (c *Carrier) Normalize(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return c.Issue()
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		common.Logger().Debug("conversation: replacing malformed identifier")
		return c.Issue()
	}
	return parsed.String()
}
