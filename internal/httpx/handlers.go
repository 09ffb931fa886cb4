package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/decoyhq/agenttrap/internal/analyzer"
	"github.com/decoyhq/agenttrap/internal/metrics"
	"github.com/decoyhq/agenttrap/internal/request"
	"github.com/decoyhq/agenttrap/internal/token"
	cfg "github.com/decoyhq/agenttrap/pkg/config"
)

type Env struct {
	Cfg     cfg.Config
	Queue   *analyzer.Queue
	Tokens  *token.Registry
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

func (e Env) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (e Env) Readyz(w http.ResponseWriter, r *http.Request) {
	// TODO: verify store connectivity before returning 200
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Honeypot is the catch-all route. Every path looks like a real API: the
// bait key unlocks a plausible payload salted with planted credentials,
// anything else gets a generic 401. The response goes out first; analysis
// runs behind the bounded queue so the caller never observes detection
// latency.
func (e Env) Honeypot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	meta := request.Normalize(r, e.Cfg.MaxBodyBytes, e.Cfg.BaitAPIKey)

	var status int
	w.Header().Set("Content-Type", "application/json")
	if meta.APIKeyStatus == request.APIKeyCorrect {
		status = http.StatusOK
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(e.syntheticPayload(meta.Path))
	} else {
		status = http.StatusUnauthorized
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid or missing API key",
		})
	}

	if e.Queue != nil {
		ok := e.Queue.Dispatch(analyzer.Job{
			Meta:           meta,
			At:             start,
			ResponseStatus: status,
			ResponseTime:   time.Since(start),
		})
		if !ok {
			e.Log.Warn().Str("path", meta.Path).Msg("analysis queue refused job")
		}
	}
}

// syntheticPayload fabricates an API response for an authenticated caller.
// Planted credentials from the catalogue are mixed in so an agent that
// harvests the payload trips a honey token on its next move.
func (e Env) syntheticPayload(path string) map[string]any {
	payload := map[string]any{
		"status": "ok",
		"path":   path,
		"account": map[string]any{
			"id":   "acct_1O9X2hLkdIwHu7ix",
			"plan": "enterprise",
		},
	}
	if e.Tokens == nil {
		return payload
	}

	creds := map[string]string{}
	for _, tok := range e.Tokens.All() {
		if tok.Value == e.Cfg.BaitAPIKey {
			continue
		}
		switch tok.Type {
		case token.TypeAWSKey:
			creds["aws_access_key_id"] = tok.Value
		case token.TypeGitHubToken:
			creds["github_token"] = tok.Value
		case token.TypeJWT:
			creds["service_jwt"] = tok.Value
		case token.TypeAPIKey:
			creds["internal_api_key"] = tok.Value
		}
	}
	if len(creds) > 0 {
		payload["integrations"] = creds
	}
	return payload
}

func NewMux(e Env) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", e.Healthz)
	mux.HandleFunc("/readyz", e.Readyz)
	mux.HandleFunc("/", e.Honeypot)

	return RequestLogger(e.Log)(MetricsMiddleware(e.Metrics)(cors(mux)))
}
