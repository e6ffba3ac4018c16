// File path: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultSystemPrompt grounds free-text answers in retrieved sources and is
// overridable via SYSTEM_PROMPT. The {{.query}} and {{.sources}} slots are
// filled by the answer templates in internal/api.
const defaultSystemPrompt = "You are an infrastructure knowledge assistant answering about servers, incidents and ownership.\n" +
	"Use ONLY the information contained in the Sources section. If information is missing, state you don't know. Never invent data.\n\n" +
	"ANSWER FORMAT:\n" +
	"- Provide concise bullet points (<=5) unless the user requests another format.\n" +
	"- For each factual bullet cite the server or incident identifier in parentheses.\n\n" +
	"RULES:\n" +
	"1. Use only facts from Sources.\n" +
	"2. Clearly say 'insufficient information' when data is not found.\n\n" +
	"Now answer the user Query in the language of the user Query using only Sources.\n" +
	"Query: {{.query}}\nSources:\n{{.sources}}"

// Config holds the application-level settings consumed by cmd/copilot.
type Config struct {
	Addr string

	StorePath string
	SeedPath  string

	// AllowedTables is the environment-provided whitelist consumed by the
	// schema catalog; every downstream query decision is bounded by it.
	AllowedTables []string

	MaxRows      int
	QueryTimeout time.Duration

	SystemPrompt string
}

// Merge overlays non-zero fields from the override onto the base config.
func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.Addr) != "" {
		result.Addr = strings.TrimSpace(override.Addr)
	}
	if strings.TrimSpace(override.StorePath) != "" {
		result.StorePath = strings.TrimSpace(override.StorePath)
	}
	if strings.TrimSpace(override.SeedPath) != "" {
		result.SeedPath = strings.TrimSpace(override.SeedPath)
	}
	if len(override.AllowedTables) > 0 {
		result.AllowedTables = append([]string(nil), override.AllowedTables...)
	}
	if override.MaxRows > 0 {
		result.MaxRows = override.MaxRows
	}
	if override.QueryTimeout > 0 {
		result.QueryTimeout = override.QueryTimeout
	}
	if strings.TrimSpace(override.SystemPrompt) != "" {
		result.SystemPrompt = override.SystemPrompt
	}
	return result
}

// LoadConfig builds the configuration from environment variables and applies
// defaults. godotenv has already populated the environment by the time this
// runs in cmd/copilot.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("invalid PORT %q", port)
		}
		cfg.Addr = fmt.Sprintf(":%d", parsed)
	}
	cfg.StorePath = strings.TrimSpace(os.Getenv("COPILOT_STORE_PATH"))
	cfg.SeedPath = strings.TrimSpace(os.Getenv("COPILOT_SEED_PATH"))
	if tables := strings.TrimSpace(os.Getenv("COPILOT_ALLOWED_TABLES")); tables != "" {
		cfg.AllowedTables = splitList(tables)
	}
	if raw := strings.TrimSpace(os.Getenv("COPILOT_MAX_ROWS")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("invalid COPILOT_MAX_ROWS %q", raw)
		}
		cfg.MaxRows = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("COPILOT_QUERY_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("invalid COPILOT_QUERY_TIMEOUT %q", raw)
		}
		cfg.QueryTimeout = parsed
	}
	cfg.SystemPrompt = os.Getenv("SYSTEM_PROMPT")
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":8080"
	}
	if strings.TrimSpace(c.StorePath) == "" {
		c.StorePath = "copilot.db"
	}
	if len(c.AllowedTables) == 0 {
		c.AllowedTables = []string{"virtual_machines", "network_interfaces", "installed_software"}
	}
	if c.MaxRows <= 0 {
		c.MaxRows = 50
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
