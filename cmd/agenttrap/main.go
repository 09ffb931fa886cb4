package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/decoyhq/agenttrap/internal/analyzer"
	"github.com/decoyhq/agenttrap/internal/httpx"
	"github.com/decoyhq/agenttrap/internal/metrics"
	"github.com/decoyhq/agenttrap/internal/session"
	"github.com/decoyhq/agenttrap/internal/sink"
	"github.com/decoyhq/agenttrap/internal/token"
	"github.com/decoyhq/agenttrap/pkg/config"
)

func main() {
	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "agenttrap").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seeds, err := loadSeeds(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("loading honey token seeds")
	}
	registry, err := token.NewRegistry(seeds)
	if err != nil {
		log.Fatal().Err(err).Msg("building honey token registry")
	}

	sessions := session.NewStore(cfg.SessionTimeout)
	m := metrics.NewMetrics()

	metricsSrv := metrics.NewServer(metrics.LoadConfig())
	if err := metricsSrv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("starting metrics server")
	}

	var store analyzer.Store
	var pg *sink.PGStore
	if cfg.StoreDSN != "" {
		pg = sink.NewPGStore(cfg.StoreDSN)
		if err := pg.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("connecting to postgres")
		}
		if err := pg.SeedTokens(ctx, seeds); err != nil {
			log.Fatal().Err(err).Msg("seeding honey tokens")
		}
		store = pg
	}

	sinks := buildSinks(cfg.Outputs, log)
	for _, s := range sinks {
		if err := s.Start(ctx); err != nil {
			log.Fatal().Err(err).Str("sink", s.Name()).Msg("starting sink")
		}
	}

	emit := func(rec analyzer.RequestRecord) {
		for _, s := range sinks {
			if err := s.Enqueue(rec); err != nil {
				log.Error().Err(err).Str("sink", s.Name()).Msg("sink enqueue failed")
				m.SinkErrors.WithLabelValues(s.Name(), "enqueue").Inc()
			}
		}
	}

	a := analyzer.New(analyzer.Config{
		Sessions: sessions,
		Tokens:   registry,
		Store:    store,
		Emit:     emit,
		Metrics:  m,
		Logger:   log,
	})

	if len(os.Args) > 1 && os.Args[1] == "--test" {
		runTestMode(a, log)
		closeSinks(sinks, pg, log)
		return
	}

	queue := analyzer.NewQueue(a, cfg.QueueSize, cfg.Workers, cfg.AnalysisTimeout)

	env := httpx.Env{
		Cfg:     cfg,
		Queue:   queue,
		Tokens:  registry,
		Metrics: m,
		Log:     log,
	}

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: httpx.NewMux(env),
	}

	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Msg("honeypot listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)

	// Drain in-flight analyses before the sinks go away.
	queue.Close()
	closeSinks(sinks, pg, log)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func loadSeeds(cfg config.Config) ([]token.Seed, error) {
	if cfg.HoneyTokensFile != "" {
		return token.LoadSeeds(cfg.HoneyTokensFile)
	}
	return token.DefaultSeeds(cfg.BaitAPIKey), nil
}

func buildSinks(outputs []string, log zerolog.Logger) []sink.Sink {
	var sinks []sink.Sink
	for _, out := range outputs {
		switch out {
		case "log":
			sinks = append(sinks, sink.NewLogSink(log))
		case "kafka":
			sinks = append(sinks, sink.NewKafkaSinkFromEnv(log))
		case "postgres":
			// The Postgres store is wired through STORE_DSN, not as a sink.
		default:
			log.Warn().Str("output", out).Msg("unknown output, skipping")
		}
	}
	return sinks
}

func closeSinks(sinks []sink.Sink, pg *sink.PGStore, log zerolog.Logger) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Str("sink", s.Name()).Msg("closing sink")
		}
	}
	if pg != nil {
		if err := pg.Close(); err != nil {
			log.Error().Err(err).Msg("closing postgres")
		}
	}
}
