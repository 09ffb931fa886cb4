package sink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/decoyhq/agenttrap/internal/analyzer"
)

// LogSink writes every detection record as one structured log line.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("sink", "log").Logger()}
}

func (s *LogSink) Start(ctx context.Context) error { return nil }

func (s *LogSink) Enqueue(rec analyzer.RequestRecord) error {
	s.log.Info().
		Str("session", rec.SessionID).
		Str("ip", rec.IP).
		Str("method", rec.Method).
		Str("path", rec.Path).
		Str("api_key_status", string(rec.APIKeyStatus)).
		Bool("sql_injection", rec.SQLInjectionDetected).
		Bool("bot_user_agent", rec.BotUserAgentDetected).
		Str("technique", rec.TechniqueID).
		Str("vulnerability", rec.VulnerabilityType).
		Msg("detection record")
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }
