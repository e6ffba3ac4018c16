// File path: internal/conversation/conversation_test.go
package conversation

import (
	"testing"

	"github.com/google/uuid"
)

func TestIssueProducesUniqueIdentifiers(t *testing.T) {
	c := NewCarrier()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := c.Issue()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("issued identifier is not a uuid: %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate identifier issued: %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNormalizeKeepsValidIdentifier(t *testing.T) {
	c := NewCarrier()
	id := c.Issue()
	if got := c.Normalize("  " + id + "  "); got != id {
		t.Fatalf("valid identifier rewritten: %q -> %q", id, got)
	}
}

func TestNormalizeCanonicalisesCase(t *testing.T) {
	c := NewCarrier()
	upper := "123E4567-E89B-12D3-A456-426614174000"
	got := c.Normalize(upper)
	if got != "123e4567-e89b-12d3-a456-426614174000" {
		t.Fatalf("unexpected canonical form: %q", got)
	}
}

func TestNormalizeReplacesGarbage(t *testing.T) {
	c := NewCarrier()
	for _, bad := range []string{"", "   ", "not-a-uuid", "123", "'; DROP TABLE sessions; --"} {
		got := c.Normalize(bad)
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("replacement for %q is not a uuid: %q", bad, got)
		}
		if got == bad {
			t.Fatalf("garbage identifier passed through: %q", bad)
		}
	}
}
