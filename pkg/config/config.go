package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr   string
	MaxBodyBytes int64 // bytes read from a honeypot request body

	BaitAPIKey string // the planted key the honeypot accepts

	StoreDSN        string // Postgres DSN; empty disables the store
	HoneyTokensFile string // YAML seed catalogue; empty uses built-in seeds

	SessionTimeout  time.Duration // sliding inactivity window per session
	AnalysisTimeout time.Duration // deadline for one analysis pass
	QueueSize       int           // in-flight analysis queue capacity
	Workers         int           // analysis worker goroutines

	Outputs []string // enabled record sinks: log, postgres, kafka
}

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getStringSlice(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func Load() Config {
	return Config{
		ServerAddr:      getOr("SERVER_ADDR", ":18080"),
		MaxBodyBytes:    getInt64("MAX_BODY_BYTES", 1<<20), // 1 MiB default
		BaitAPIKey:      getOr("BAIT_API_KEY", "sk_live_51HoneypotBaitKey2024"),
		StoreDSN:        getOr("STORE_DSN", ""),
		HoneyTokensFile: getOr("HONEY_TOKENS_FILE", ""),
		SessionTimeout:  time.Duration(getInt("SESSION_TIMEOUT_MIN", 10)) * time.Minute,
		AnalysisTimeout: time.Duration(getInt("ANALYSIS_TIMEOUT_MS", 5000)) * time.Millisecond,
		QueueSize:       getInt("ANALYSIS_QUEUE_SIZE", 1024),
		Workers:         getInt("ANALYSIS_WORKERS", 4),
		Outputs:         getStringSlice("OUTPUTS", "log"),
	}
}
