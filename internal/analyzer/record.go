package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/decoyhq/agenttrap/internal/request"
	"github.com/decoyhq/agenttrap/internal/session"
)

// RequestRecord is the append-only per-request row emitted to the store
// and fanned out to the record sinks.
type RequestRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	IP          string            `json:"ip"`
	UserAgent   string            `json:"user_agent"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Body        string            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`

	ResponseStatus int   `json:"response_status"`
	ResponseTimeMS int64 `json:"response_time_ms"`

	APIKeyStatus request.APIKeyStatus `json:"api_key_status"`
	APIKeyUsed   string               `json:"api_key_used,omitempty"`

	SQLInjectionDetected bool `json:"sql_injection_detected"`
	BotUserAgentDetected bool `json:"bot_user_agent_detected"`

	TechniqueID       string `json:"technique_id"`
	VulnerabilityType string `json:"vulnerability_type"`
}

// Result is what one analysis pass produces. It is never surfaced to the
// honeypot client; operators see it through logs and the store.
type Result struct {
	SessionID            string                 `json:"session_id"`
	Score                int                    `json:"score"`
	Classification       session.Classification `json:"classification"`
	Reasons              []string               `json:"reasons"`
	SQLInjectionDetected bool                   `json:"sql_injection_detected"`
	BotUserAgentDetected bool                   `json:"bot_user_agent_detected"`
	HoneyTokenTriggered  bool                   `json:"honey_token_triggered"`
	TechniqueID          string                 `json:"technique_id"`
}

// Store is the persistent backend consumed by the analyzer. Failures are
// contained: the analyzer logs them and keeps going on in-memory state.
type Store interface {
	UpsertSession(ctx context.Context, s session.Session) error
	AppendRequest(ctx context.Context, rec RequestRecord) error
	MarkTokenTriggered(ctx context.Context, value string, at time.Time, ip, sessionID string) error
}

// vulnerabilityType composes the record label from key status and the
// session classification, e.g. "wrong-api-key-scraper".
func vulnerabilityType(status request.APIKeyStatus, class session.Classification) string {
	return fmt.Sprintf("%s-api-key-%s", status, class)
}
