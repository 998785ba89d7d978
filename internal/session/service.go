package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

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

// Service reads and writes channel sessions.
type Service struct {
	db     DBTX
	logger *slog.Logger
}

// NewService creates a session service.
func NewService(log *slog.Logger, db DBTX) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     db,
		logger: log.With(slog.String("service", "session")),
	}
}

const upsertSessionSQL = `
INSERT INTO sessions (id, channel, external_id, tenant, message_count, last_message_at,
                      metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, now(), $5, now(), now())
ON CONFLICT (channel, external_id, tenant) DO UPDATE SET
    metadata   = EXCLUDED.metadata || sessions.metadata,
    updated_at = now()
RETURNING id, channel, external_id, tenant, lead_id, message_count, last_message_at,
          metadata, summary, context_note, phase, interests, created_at, updated_at,
          (xmax = 0) AS created`

// GetOrCreate resolves the session for (channel, external id, tenant),
// creating it on the first message. One conditional upsert, so concurrent
// first messages converge on a single row. Existing metadata keys win over
// hint metadata.
func (s *Service) GetOrCreate(ctx context.Context, channel, externalID, tenant string, metadata map[string]any) (Session, bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Session{}, false, fmt.Errorf("external id is required")
	}

	metaBytes, err := json.Marshal(nonNilMap(metadata))
	if err != nil {
		return Session{}, false, fmt.Errorf("marshal session metadata: %w", err)
	}

	row := s.db.QueryRow(ctx, upsertSessionSQL,
		dbpkg.NewUUID(), channel, externalID, tenant, metaBytes)
	sess, created, err := scanSession(row, true)
	if err != nil {
		return Session{}, false, fmt.Errorf("upsert session: %w", err)
	}
	if created {
		s.logger.Info("session created",
			slog.String("session_id", sess.ID),
			slog.String("channel", channel),
			slog.String("tenant", tenant),
		)
	}
	return sess, created, nil
}

const linkSessionSQL = `
UPDATE sessions SET lead_id = $2, updated_at = now()
WHERE id = $1 AND lead_id IS NULL`

// LinkToIdentity points the session at its lead. The pointer is set once;
// once linked the call is an idempotent no-op.
func (s *Service) LinkToIdentity(ctx context.Context, sessionID, leadID string) error {
	pgSessionID, err := dbpkg.ParseUUID(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	pgLeadID, err := dbpkg.ParseUUID(leadID)
	if err != nil {
		return fmt.Errorf("invalid lead id: %w", err)
	}
	if _, err := s.db.Exec(ctx, linkSessionSQL, pgSessionID, pgLeadID); err != nil {
		return fmt.Errorf("link session: %w", err)
	}
	return nil
}

const incrementSessionSQL = `
UPDATE sessions
SET message_count = message_count + 1, last_message_at = now(), updated_at = now()
WHERE id = $1
RETURNING message_count`

// IncrementMessageCount bumps the per-session counter and the last-message
// time in one statement, returning the new counter value.
func (s *Service) IncrementMessageCount(ctx context.Context, sessionID string) (int, error) {
	pgID, err := dbpkg.ParseUUID(sessionID)
	if err != nil {
		return 0, fmt.Errorf("invalid session id: %w", err)
	}
	var count int32
	if err := s.db.QueryRow(ctx, incrementSessionSQL, pgID).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment message count: %w", err)
	}
	return int(count), nil
}

const updateConversationDataSQL = `
UPDATE sessions
SET summary = $2, context_note = $3, phase = $4, interests = $5, updated_at = now()
WHERE id = $1`

// UpdateConversationData replaces the derived fields wholesale; the last
// writer wins.
func (s *Service) UpdateConversationData(ctx context.Context, sessionID string, data ConversationData) error {
	pgID, err := dbpkg.ParseUUID(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	interests, err := json.Marshal(nonNilSlice(data.Interests))
	if err != nil {
		return fmt.Errorf("marshal interests: %w", err)
	}
	if _, err := s.db.Exec(ctx, updateConversationDataSQL,
		pgID, data.Summary, data.ContextNote, data.Phase, interests); err != nil {
		return fmt.Errorf("update conversation data: %w", err)
	}
	return nil
}

const getSessionSQL = `
SELECT id, channel, external_id, tenant, lead_id, message_count, last_message_at,
       metadata, summary, context_note, phase, interests, created_at, updated_at
FROM sessions
WHERE id = $1`

// GetByID returns a session by id. ErrNotFound when absent.
func (s *Service) GetByID(ctx context.Context, id string) (Session, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Session{}, fmt.Errorf("invalid session id: %w", err)
	}
	sess, _, err := scanSession(s.db.QueryRow(ctx, getSessionSQL, pgID), false)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func scanSession(row pgx.Row, withCreated bool) (Session, bool, error) {
	var (
		id            pgtype.UUID
		leadID        pgtype.UUID
		messageCount  int32
		lastMessageAt pgtype.Timestamptz
		createdAt     pgtype.Timestamptz
		updatedAt     pgtype.Timestamptz
		metaRaw       []byte
		interestsRaw  []byte
		created       bool
		sess          Session
	)

	dest := []any{
		&id, &sess.Channel, &sess.ExternalID, &sess.Tenant, &leadID,
		&messageCount, &lastMessageAt, &metaRaw, &sess.Summary,
		&sess.ContextNote, &sess.Phase, &interestsRaw, &createdAt, &updatedAt,
	}
	if withCreated {
		dest = append(dest, &created)
	}
	if err := row.Scan(dest...); err != nil {
		return Session{}, false, err
	}

	sess.ID = dbpkg.UUIDString(id)
	sess.LeadID = dbpkg.UUIDString(leadID)
	sess.MessageCount = int(messageCount)
	sess.LastMessageAt = lastMessageAt.Time
	sess.CreatedAt = createdAt.Time
	sess.UpdatedAt = updatedAt.Time

	sess.Metadata = map[string]any{}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &sess.Metadata); err != nil {
			return Session{}, false, fmt.Errorf("decode session metadata: %w", err)
		}
	}
	sess.Interests = []string{}
	if len(interestsRaw) > 0 {
		if err := json.Unmarshal(interestsRaw, &sess.Interests); err != nil {
			return Session{}, false, fmt.Errorf("decode interests: %w", err)
		}
	}
	return sess, created, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
