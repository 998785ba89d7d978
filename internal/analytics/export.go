package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/leadwireai/leadwire/internal/identity"
	"github.com/leadwireai/leadwire/internal/transcript"
)

type pairLister interface {
	ListPairs(ctx context.Context, tenant string, since time.Time) ([]transcript.TrainingPair, error)
}

// Exporter writes aggregated customer and agent message pairs as JSON
// Lines, one pair per line.
type Exporter struct {
	entries pairLister
	logger  *slog.Logger
}

// NewExporter creates a training-pair exporter.
func NewExporter(log *slog.Logger, entries pairLister) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	return &Exporter{
		entries: entries,
		logger:  log.With(slog.String("service", "export")),
	}
}

// Export streams pairs for a tenant since the given time and returns the
// number written. Customer entries without a paired reply are already
// filtered out upstream.
func (e *Exporter) Export(ctx context.Context, w io.Writer, tenant string, since time.Time) (int, error) {
	if strings.TrimSpace(tenant) == "" {
		tenant = identity.DefaultTenant
	}
	pairs, err := e.entries.ListPairs(ctx, tenant, since)
	if err != nil {
		return 0, fmt.Errorf("load training pairs: %w", err)
	}
	enc := json.NewEncoder(w)
	for _, pair := range pairs {
		if err := enc.Encode(pair); err != nil {
			return 0, fmt.Errorf("write training pair: %w", err)
		}
	}
	e.logger.Info("training pairs exported",
		slog.String("tenant", tenant),
		slog.Int("count", len(pairs)),
	)
	return len(pairs), nil
}
