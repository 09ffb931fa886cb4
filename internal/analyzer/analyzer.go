// Package analyzer orchestrates one detection pass per honeypot request:
// normalize, detect, score, classify, persist, emit.
package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/decoyhq/agenttrap/internal/detect"
	"github.com/decoyhq/agenttrap/internal/metrics"
	"github.com/decoyhq/agenttrap/internal/mitre"
	"github.com/decoyhq/agenttrap/internal/request"
	"github.com/decoyhq/agenttrap/internal/score"
	"github.com/decoyhq/agenttrap/internal/session"
	"github.com/decoyhq/agenttrap/internal/token"
)

// Config wires an Analyzer. Store, Emit, and Metrics are optional; a nil
// store means analysis runs purely in memory.
type Config struct {
	Sessions *session.Store
	Tokens   *token.Registry
	Store    Store
	Emit     func(RequestRecord)
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

type Analyzer struct {
	sessions *session.Store
	tokens   *token.Registry
	store    Store
	emit     func(RequestRecord)
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func New(cfg Config) *Analyzer {
	return &Analyzer{
		sessions: cfg.Sessions,
		tokens:   cfg.Tokens,
		store:    cfg.Store,
		emit:     cfg.Emit,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}
}

// Analyze runs one detection pass. at is the request arrival time;
// responseStatus and responseTime describe the honeypot's already-sent
// answer. Nothing here ever propagates an error to the HTTP path.
func (a *Analyzer) Analyze(ctx context.Context, meta request.Metadata, at time.Time, responseStatus int, responseTime time.Duration) Result {
	started := time.Now()

	prior := a.sessions.GetOrCreate(meta.IP, meta.UserAgent, at)

	hit := a.tokens.Check(meta, prior.ID, at)
	cats := detect.ClassifyPath(meta.Path)
	verdicts := score.Verdicts{
		SQLInjection: detect.SQLInjection(meta.Query, meta.Body),
		BotUserAgent: detect.BotUserAgent(meta.UserAgent),
		HoneyToken:   hit.Triggered,
		Docs:         cats.Docs,
		OpenAPI:      cats.OpenAPI,
		Admin:        cats.Admin,
		Internal:     cats.Internal,
	}

	newScore, awarded := score.Evaluate(prior, meta, verdicts)
	class := score.Classify(newScore)
	technique := mitre.Map(meta.APIKeyStatus, hit.Triggered, verdicts.SQLInjection)

	diff := session.Diff{
		Endpoints: []string{meta.Path},
		Methods:   []string{meta.Method},
		Reasons:   awarded,
		Flags: session.Flags{
			LookedAtDocs:          cats.Docs,
			TriedOpenAPI:          cats.OpenAPI,
			TriedAdmin:            cats.Admin,
			TriedInternal:         cats.Internal,
			SQLInjectionAttempted: verdicts.SQLInjection,
			UsedHoneyToken:        hit.Triggered,
		},
		Score:             newScore,
		Classification:    class,
		LastActivity:      at,
		IncrementRequests: 1,
	}

	merged, ok := a.sessions.Apply(prior.ID, diff)
	if !ok {
		// The session slot was replaced mid-flight; keep reporting on the
		// state we computed, under a synthetic id.
		merged = prior
		merged.ID = uuid.New().String()
		merged.AgentLikenessScore = newScore
		merged.Classification = class
		a.log.Warn().Str("ip", meta.IP).Msg("session vanished during analysis, using temporary id")
	}

	a.persist(ctx, merged, meta, hit, verdicts, technique, at, responseStatus, responseTime)

	result := Result{
		SessionID:            merged.ID,
		Score:                merged.AgentLikenessScore,
		Classification:       merged.Classification,
		Reasons:              merged.Reasons(),
		SQLInjectionDetected: verdicts.SQLInjection,
		BotUserAgentDetected: verdicts.BotUserAgent,
		HoneyTokenTriggered:  hit.Triggered,
		TechniqueID:          technique,
	}

	a.log.Info().
		Str("session", shortID(result.SessionID)).
		Int("score", result.Score).
		Str("classification", string(result.Classification)).
		Str("reasons", strings.Join(result.Reasons, ",")).
		Bool("sql_injection", result.SQLInjectionDetected).
		Bool("honey_token", result.HoneyTokenTriggered).
		Msg("request analyzed")

	if a.metrics != nil {
		a.metrics.RequestsAnalyzed.WithLabelValues(string(result.Classification)).Inc()
		a.metrics.DetectionScore.Observe(float64(result.Score))
		a.metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
		if hit.Triggered {
			a.metrics.HoneyTokenTriggers.WithLabelValues(hit.TokenType).Inc()
		}
	}

	return result
}

// persist writes the session diff, the token attribution, and the request
// record. Store faults are logged and skipped; later steps still run.
func (a *Analyzer) persist(ctx context.Context, merged session.Session, meta request.Metadata, hit token.Hit, verdicts score.Verdicts, technique string, at time.Time, responseStatus int, responseTime time.Duration) {
	if a.store != nil {
		if err := a.store.UpsertSession(ctx, merged); err != nil {
			a.storeError("upsert_session", err)
		}
		if hit.First {
			if err := a.store.MarkTokenTriggered(ctx, hit.Value, at, meta.IP, merged.ID); err != nil {
				a.storeError("mark_token", err)
			}
		}
	}

	rec := RequestRecord{
		ID:                   uuid.New().String(),
		SessionID:            merged.ID,
		Timestamp:            at,
		IP:                   meta.IP,
		UserAgent:            meta.UserAgent,
		Method:               meta.Method,
		Path:                 meta.Path,
		QueryParams:          meta.Query,
		Body:                 meta.RawBody,
		Headers:              meta.Headers,
		ResponseStatus:       responseStatus,
		ResponseTimeMS:       responseTime.Milliseconds(),
		APIKeyStatus:         meta.APIKeyStatus,
		APIKeyUsed:           meta.APIKeyUsed,
		SQLInjectionDetected: verdicts.SQLInjection,
		BotUserAgentDetected: verdicts.BotUserAgent,
		TechniqueID:          technique,
		VulnerabilityType:    vulnerabilityType(meta.APIKeyStatus, merged.Classification),
	}

	if a.store != nil {
		if err := a.store.AppendRequest(ctx, rec); err != nil {
			a.storeError("append_request", err)
		}
	}
	if a.emit != nil {
		a.emit(rec)
	}
}

func (a *Analyzer) storeError(op string, err error) {
	a.log.Error().Err(err).Str("operation", op).Msg("store write failed")
	if a.metrics != nil {
		a.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
