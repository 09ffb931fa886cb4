package sink

import (
	"context"

	"github.com/decoyhq/agenttrap/internal/analyzer"
)

// Sink receives every detection record the analyzer produces. Sinks are
// fan-out only; the Postgres store is wired separately as the analyzer's
// persistent backend.
type Sink interface {
	Start(ctx context.Context) error
	Enqueue(rec analyzer.RequestRecord) error
	Close() error
	Name() string
}
