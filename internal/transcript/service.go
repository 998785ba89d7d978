package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/leadwireai/leadwire/internal/db"
)

// DBTX is the database surface the service needs. *pgxpool.Pool satisfies it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBService persists and reads transcript entries.
type DBService struct {
	db     DBTX
	logger *slog.Logger
}

// NewService creates a transcript service.
func NewService(log *slog.Logger, db DBTX) *DBService {
	if log == nil {
		log = slog.Default()
	}
	return &DBService{
		db:     db,
		logger: log.With(slog.String("service", "transcript")),
	}
}

const appendEntrySQL = `
INSERT INTO transcript_entries (id, lead_id, channel, role, content, kind, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
RETURNING id, lead_id, channel, role, content, kind, metadata, created_at`

// Append logs a single entry.
func (s *DBService) Append(ctx context.Context, input AppendInput) (Entry, error) {
	pgLeadID, err := dbpkg.ParseUUID(input.LeadID)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid lead id: %w", err)
	}
	kind := input.Kind
	if strings.TrimSpace(kind) == "" {
		kind = KindText
	}
	metaBytes, err := json.Marshal(nonNilMap(input.Metadata))
	if err != nil {
		return Entry{}, fmt.Errorf("marshal entry metadata: %w", err)
	}

	row := s.db.QueryRow(ctx, appendEntrySQL,
		dbpkg.NewUUID(), pgLeadID, input.Channel, input.Role, input.Content, kind, metaBytes)
	entry, err := scanEntry(row)
	if err != nil {
		return Entry{}, fmt.Errorf("append entry: %w", err)
	}
	return entry, nil
}

const listRecentSQL = `
SELECT id, lead_id, channel, role, content, kind, metadata, created_at
FROM transcript_entries
WHERE lead_id = $1 AND channel = $2
ORDER BY created_at DESC, id DESC
LIMIT $3`

// ListRecent returns up to limit latest entries for (lead, channel),
// ordered oldest-first for model input.
func (s *DBService) ListRecent(ctx context.Context, leadID, channel string, limit int32) ([]Entry, error) {
	entries, err := s.ListRecentDesc(ctx, leadID, channel, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// ListRecentDesc returns up to limit latest entries newest-first, the
// order local summarization walks them in.
func (s *DBService) ListRecentDesc(ctx context.Context, leadID, channel string, limit int32) ([]Entry, error) {
	pgLeadID, err := dbpkg.ParseUUID(leadID)
	if err != nil {
		return nil, fmt.Errorf("invalid lead id: %w", err)
	}
	rows, err := s.db.Query(ctx, listRecentSQL, pgLeadID, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

const attachMetadataSQL = `
UPDATE transcript_entries SET metadata = metadata || $2 WHERE id = $1`

// AttachMetadata merges metadata into an existing entry. Used by the
// analytics recorder to fold timing and token usage onto the reply.
func (s *DBService) AttachMetadata(ctx context.Context, entryID string, metadata map[string]any) error {
	pgID, err := dbpkg.ParseUUID(entryID)
	if err != nil {
		return fmt.Errorf("invalid entry id: %w", err)
	}
	payload, err := json.Marshal(nonNilMap(metadata))
	if err != nil {
		return fmt.Errorf("marshal entry metadata: %w", err)
	}
	if _, err := s.db.Exec(ctx, attachMetadataSQL, pgID, payload); err != nil {
		return fmt.Errorf("attach entry metadata: %w", err)
	}
	return nil
}

const listPairsSQL = `
SELECT c.content, a.content, l.tenant, c.channel, c.created_at
FROM transcript_entries c
JOIN leads l ON l.id = c.lead_id
JOIN LATERAL (
    SELECT content
    FROM transcript_entries r
    WHERE r.lead_id = c.lead_id AND r.channel = c.channel
      AND r.role = 'agent' AND r.created_at >= c.created_at
    ORDER BY r.created_at ASC, r.id ASC
    LIMIT 1
) a ON true
WHERE c.role = 'customer' AND l.tenant = $1 AND c.created_at >= $2
ORDER BY c.created_at ASC`

// ListPairs returns customer messages paired with the first agent reply
// logged at or after each, for the training-data export. Customer entries
// never followed by an agent reply are skipped.
func (s *DBService) ListPairs(ctx context.Context, tenant string, since time.Time) ([]TrainingPair, error) {
	rows, err := s.db.Query(ctx, listPairsSQL, tenant, pgtype.Timestamptz{Time: since, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("list training pairs: %w", err)
	}
	defer rows.Close()

	var pairs []TrainingPair
	for rows.Next() {
		var pair TrainingPair
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&pair.Prompt, &pair.Completion, &pair.Tenant, &pair.Channel, &createdAt); err != nil {
			return nil, fmt.Errorf("scan training pair: %w", err)
		}
		pair.CreatedAt = createdAt.Time
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list training pairs: %w", err)
	}
	return pairs, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		id        pgtype.UUID
		leadID    pgtype.UUID
		metaRaw   []byte
		createdAt pgtype.Timestamptz
		entry     Entry
	)
	if err := row.Scan(&id, &leadID, &entry.Channel, &entry.Role, &entry.Content,
		&entry.Kind, &metaRaw, &createdAt); err != nil {
		return Entry{}, err
	}
	entry.ID = dbpkg.UUIDString(id)
	entry.LeadID = dbpkg.UUIDString(leadID)
	entry.CreatedAt = createdAt.Time
	entry.Metadata = map[string]any{}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &entry.Metadata); err != nil {
			return Entry{}, fmt.Errorf("decode entry metadata: %w", err)
		}
	}
	return entry, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
