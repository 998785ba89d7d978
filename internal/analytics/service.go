// Package analytics records per-reply usage and latency, keeps the
// recent-error ring behind the diagnostics surface, and exports logged
// conversations as training pairs.
package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/leadwireai/leadwire/internal/completion"
	dbpkg "github.com/leadwireai/leadwire/internal/db"
)

// DBTX is the database surface the recorder needs. *pgxpool.Pool satisfies it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type entryAnnotator interface {
	AttachMetadata(ctx context.Context, entryID string, metadata map[string]any) error
}

// RecordInput describes one generated reply.
type RecordInput struct {
	LeadID    string
	SessionID string
	EntryID   string
	Channel   string
	Model     string
	Usage     completion.Usage
	LatencyMs int64
}

// Recorder persists usage rows and annotates the paired transcript entry.
type Recorder struct {
	db      DBTX
	entries entryAnnotator
	logger  *slog.Logger
}

// NewRecorder creates a usage recorder.
func NewRecorder(log *slog.Logger, db DBTX, entries entryAnnotator) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		db:      db,
		entries: entries,
		logger:  log.With(slog.String("service", "analytics")),
	}
}

const insertUsageSQL = `
INSERT INTO usage_records (id, lead_id, session_id, entry_id, channel, model,
    prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`

// Record inserts one usage row. When the agent entry is known its usage
// metadata is merged onto the transcript entry too; a failure there is
// logged, not surfaced, since the row itself landed.
func (r *Recorder) Record(ctx context.Context, input RecordInput) error {
	pgLead, err := dbpkg.ParseUUID(input.LeadID)
	if err != nil {
		return fmt.Errorf("invalid lead id: %w", err)
	}
	pgSession, err := dbpkg.ParseUUID(input.SessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	var pgEntry pgtype.UUID
	if input.EntryID != "" {
		pgEntry, err = dbpkg.ParseUUID(input.EntryID)
		if err != nil {
			return fmt.Errorf("invalid entry id: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, insertUsageSQL,
		dbpkg.NewUUID(), pgLead, pgSession, pgEntry, input.Channel, input.Model,
		input.Usage.PromptTokens, input.Usage.CompletionTokens, input.Usage.TotalTokens,
		input.LatencyMs)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	if input.EntryID != "" && r.entries != nil {
		meta := map[string]any{
			"model":             input.Model,
			"latency_ms":        input.LatencyMs,
			"prompt_tokens":     input.Usage.PromptTokens,
			"completion_tokens": input.Usage.CompletionTokens,
			"total_tokens":      input.Usage.TotalTokens,
		}
		if err := r.entries.AttachMetadata(ctx, input.EntryID, meta); err != nil {
			r.logger.Warn("attach usage metadata",
				slog.String("entry_id", input.EntryID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}
