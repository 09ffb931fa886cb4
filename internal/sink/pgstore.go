package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/decoyhq/agenttrap/internal/analyzer"
	"github.com/decoyhq/agenttrap/internal/session"
	"github.com/decoyhq/agenttrap/internal/token"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id UUID PRIMARY KEY,
	ip TEXT NOT NULL,
	user_agent TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	last_activity TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ,
	request_count INTEGER NOT NULL DEFAULT 0,
	endpoints_called JSONB NOT NULL DEFAULT '[]',
	methods_used JSONB NOT NULL DEFAULT '[]',
	looked_at_docs BOOLEAN NOT NULL DEFAULT FALSE,
	tried_openapi BOOLEAN NOT NULL DEFAULT FALSE,
	tried_admin BOOLEAN NOT NULL DEFAULT FALSE,
	tried_internal BOOLEAN NOT NULL DEFAULT FALSE,
	systematic_probing BOOLEAN NOT NULL DEFAULT FALSE,
	sql_injection_attempted BOOLEAN NOT NULL DEFAULT FALSE,
	used_honey_token BOOLEAN NOT NULL DEFAULT FALSE,
	agent_likeness_score INTEGER NOT NULL DEFAULT 0,
	classification TEXT NOT NULL DEFAULT 'unknown',
	classification_reasons JSONB NOT NULL DEFAULT '[]',
	interval_mean DOUBLE PRECISION,
	interval_cv DOUBLE PRECISION,
	UNIQUE (ip, user_agent)
);

CREATE TABLE IF NOT EXISTS requests (
	id UUID PRIMARY KEY,
	session_id UUID NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	ip TEXT NOT NULL,
	user_agent TEXT NOT NULL,
	method TEXT NOT NULL,
	path TEXT NOT NULL,
	query_params JSONB,
	body TEXT,
	headers JSONB,
	response_status INTEGER NOT NULL,
	response_time_ms BIGINT NOT NULL,
	api_key_status TEXT NOT NULL,
	api_key_used TEXT,
	sql_injection_detected BOOLEAN NOT NULL DEFAULT FALSE,
	bot_user_agent_detected BOOLEAN NOT NULL DEFAULT FALSE,
	technique_id TEXT NOT NULL,
	vulnerability_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS honey_tokens (
	token_value TEXT PRIMARY KEY,
	token_type TEXT NOT NULL,
	triggered BOOLEAN NOT NULL DEFAULT FALSE,
	triggered_at TIMESTAMPTZ,
	triggered_by_ip TEXT,
	triggered_by_session TEXT
);
`

const upsertSessionSQL = `
INSERT INTO sessions (
	id, ip, user_agent, start_time, last_activity, end_time, request_count,
	endpoints_called, methods_used,
	looked_at_docs, tried_openapi, tried_admin, tried_internal,
	systematic_probing, sql_injection_attempted, used_honey_token,
	agent_likeness_score, classification, classification_reasons,
	interval_mean, interval_cv
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
ON CONFLICT (ip, user_agent) DO UPDATE SET
	id = EXCLUDED.id,
	start_time = EXCLUDED.start_time,
	last_activity = EXCLUDED.last_activity,
	end_time = EXCLUDED.end_time,
	request_count = EXCLUDED.request_count,
	endpoints_called = EXCLUDED.endpoints_called,
	methods_used = EXCLUDED.methods_used,
	looked_at_docs = EXCLUDED.looked_at_docs,
	tried_openapi = EXCLUDED.tried_openapi,
	tried_admin = EXCLUDED.tried_admin,
	tried_internal = EXCLUDED.tried_internal,
	systematic_probing = EXCLUDED.systematic_probing,
	sql_injection_attempted = EXCLUDED.sql_injection_attempted,
	used_honey_token = EXCLUDED.used_honey_token,
	agent_likeness_score = GREATEST(sessions.agent_likeness_score, EXCLUDED.agent_likeness_score),
	classification = EXCLUDED.classification,
	classification_reasons = EXCLUDED.classification_reasons,
	interval_mean = EXCLUDED.interval_mean,
	interval_cv = EXCLUDED.interval_cv`

const appendRequestSQL = `
INSERT INTO requests (
	id, session_id, ts, ip, user_agent, method, path,
	query_params, body, headers,
	response_status, response_time_ms, api_key_status, api_key_used,
	sql_injection_detected, bot_user_agent_detected,
	technique_id, vulnerability_type
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

const markTokenSQL = `
UPDATE honey_tokens
SET triggered = TRUE, triggered_at = $2, triggered_by_ip = $3, triggered_by_session = $4
WHERE token_value = $1 AND triggered = FALSE`

const seedTokenSQL = `
INSERT INTO honey_tokens (token_value, token_type)
VALUES ($1, $2)
ON CONFLICT (token_value) DO NOTHING`

// PGStore is the Postgres persistent backend: session upserts, the
// append-only request log, and honey token attribution.
type PGStore struct {
	dsn string
	db  *sql.DB
}

func NewPGStore(dsn string) *PGStore { return &PGStore{dsn: dsn} }

// newPGStoreWithDB exists for tests.
func newPGStoreWithDB(db *sql.DB) *PGStore { return &PGStore{db: db} }

// Start opens the pool, verifies connectivity, and ensures the schema.
func (s *PGStore) Start(ctx context.Context) error {
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("ensure schema: %w", err)
	}
	s.db = db
	return nil
}

func (s *PGStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SeedTokens inserts the catalogue, skipping values already present so a
// restart never resets trigger state.
func (s *PGStore) SeedTokens(ctx context.Context, seeds []token.Seed) error {
	for _, seed := range seeds {
		if _, err := s.db.ExecContext(ctx, seedTokenSQL, seed.Value, seed.Type); err != nil {
			return fmt.Errorf("seed honey token: %w", err)
		}
	}
	return nil
}

func (s *PGStore) UpsertSession(ctx context.Context, sess session.Session) error {
	endpoints, err := json.Marshal(sess.Endpoints())
	if err != nil {
		return fmt.Errorf("marshal endpoints: %w", err)
	}
	methods, err := json.Marshal(sess.Methods())
	if err != nil {
		return fmt.Errorf("marshal methods: %w", err)
	}
	reasons, err := json.Marshal(sess.Reasons())
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	var endTime any
	if sess.EndTime != nil {
		endTime = *sess.EndTime
	}
	var mean, cv any
	if sess.IntervalMean != nil {
		mean = *sess.IntervalMean
	}
	if sess.IntervalCV != nil {
		cv = *sess.IntervalCV
	}

	_, err = s.db.ExecContext(ctx, upsertSessionSQL,
		sess.ID, sess.IP, sess.UserAgent,
		sess.StartTime, sess.LastActivity, endTime, sess.RequestCount,
		endpoints, methods,
		sess.Flags.LookedAtDocs, sess.Flags.TriedOpenAPI,
		sess.Flags.TriedAdmin, sess.Flags.TriedInternal,
		sess.Flags.SystematicProbing, sess.Flags.SQLInjectionAttempted,
		sess.Flags.UsedHoneyToken,
		sess.AgentLikenessScore, string(sess.Classification), reasons,
		mean, cv,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *PGStore) AppendRequest(ctx context.Context, rec analyzer.RequestRecord) error {
	query, err := json.Marshal(rec.QueryParams)
	if err != nil {
		return fmt.Errorf("marshal query params: %w", err)
	}
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, appendRequestSQL,
		rec.ID, rec.SessionID, rec.Timestamp,
		rec.IP, rec.UserAgent, rec.Method, rec.Path,
		query, rec.Body, headers,
		rec.ResponseStatus, rec.ResponseTimeMS,
		string(rec.APIKeyStatus), rec.APIKeyUsed,
		rec.SQLInjectionDetected, rec.BotUserAgentDetected,
		rec.TechniqueID, rec.VulnerabilityType,
	)
	if err != nil {
		return fmt.Errorf("append request: %w", err)
	}
	return nil
}

// MarkTokenTriggered sets attribution on the first trigger only; the WHERE
// guard keeps later writers from overwriting it.
func (s *PGStore) MarkTokenTriggered(ctx context.Context, value string, at time.Time, ip, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, markTokenSQL, value, at, ip, sessionID); err != nil {
		return fmt.Errorf("mark honey token: %w", err)
	}
	return nil
}
