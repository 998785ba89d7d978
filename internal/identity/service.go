package identity

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

// phoneSuffixLen is the number of trailing digits kept after normalization.
// Identifiers from the same subscriber differ only by country-code prefix,
// so the suffix is the dedup key.
const phoneSuffixLen = 10

// DBTX is the database surface the service needs. *pgxpool.Pool satisfies it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service reads and writes lead records.
type Service struct {
	db     DBTX
	logger *slog.Logger
}

// NewService creates a lead service.
func NewService(log *slog.Logger, db DBTX) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     db,
		logger: log.With(slog.String("service", "identity")),
	}
}

// NormalizePhone strips non-digits and keeps the last ten digits.
// Returns ErrInvalidIdentifier when fewer than ten digits remain.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < phoneSuffixLen {
		return "", ErrInvalidIdentifier
	}
	return digits[len(digits)-phoneSuffixLen:], nil
}

const upsertLeadSQL = `
INSERT INTO leads (id, phone, tenant, display_name, email, first_channel, last_channel,
                   last_interaction_at, message_counts, context, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6, now(),
        jsonb_build_object($6::text, 1), jsonb_build_object($6::text, $7::jsonb), now(), now())
ON CONFLICT (phone, tenant) DO UPDATE SET
    display_name        = COALESCE(leads.display_name, EXCLUDED.display_name),
    email               = COALESCE(leads.email, EXCLUDED.email),
    last_channel        = EXCLUDED.last_channel,
    last_interaction_at = now(),
    context             = jsonb_set(leads.context, ARRAY[$6::text],
                                    COALESCE(leads.context->$6::text, '{}'::jsonb) || $7::jsonb),
    updated_at          = now()
RETURNING id, phone, tenant, display_name, email, first_channel, last_channel,
          last_interaction_at, message_counts, context, created_at, updated_at,
          (xmax = 0) AS created`

// GetOrCreate resolves a raw identifier to its lead row, creating it on
// first contact. The whole get-or-create is one conditional upsert, so
// concurrent first messages from a new identifier converge on one row.
// On an existing row only null name/email fields are filled from the hint,
// the last-touch channel and time move forward, and the hint metadata is
// merged into that channel's slice of the context blob.
func (s *Service) GetOrCreate(ctx context.Context, rawID, tenant string, hint Hint) (Lead, bool, error) {
	phone, err := NormalizePhone(rawID)
	if err != nil {
		return Lead{}, false, err
	}
	if strings.TrimSpace(tenant) == "" {
		tenant = DefaultTenant
	}
	channel := strings.TrimSpace(hint.Channel)
	if channel == "" {
		channel = "unknown"
	}

	metaBytes, err := json.Marshal(nonNilMap(hint.Metadata))
	if err != nil {
		return Lead{}, false, fmt.Errorf("marshal hint metadata: %w", err)
	}

	row := s.db.QueryRow(ctx, upsertLeadSQL,
		dbpkg.NewUUID(),
		phone,
		tenant,
		dbpkg.Text(strings.TrimSpace(hint.DisplayName)),
		dbpkg.Text(strings.TrimSpace(hint.Email)),
		channel,
		metaBytes,
	)

	lead, created, err := scanLead(row, true)
	if err != nil {
		return Lead{}, false, fmt.Errorf("upsert lead: %w", err)
	}
	if created {
		s.logger.Info("lead created",
			slog.String("lead_id", lead.ID),
			slog.String("tenant", lead.Tenant),
			slog.String("channel", channel),
		)
	}
	return lead, created, nil
}

const getLeadSQL = `
SELECT id, phone, tenant, display_name, email, first_channel, last_channel,
       last_interaction_at, message_counts, context, created_at, updated_at
FROM leads
WHERE id = $1`

// GetByID returns a lead by id. ErrNotFound when absent.
func (s *Service) GetByID(ctx context.Context, id string) (Lead, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Lead{}, fmt.Errorf("invalid lead id: %w", err)
	}
	lead, _, err := scanLead(s.db.QueryRow(ctx, getLeadSQL, pgID), false)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

const updateChannelContextSQL = `
UPDATE leads
SET context    = jsonb_set(context, ARRAY[$2::text],
                           COALESCE(context->$2::text, '{}'::jsonb) || $3::jsonb),
    updated_at = now()
WHERE id = $1`

// UpdateChannelContext merges data into one channel's slice of the lead
// context blob, leaving other channels' slices untouched.
func (s *Service) UpdateChannelContext(ctx context.Context, id, channel string, data map[string]any) error {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return fmt.Errorf("invalid lead id: %w", err)
	}
	payload, err := json.Marshal(nonNilMap(data))
	if err != nil {
		return fmt.Errorf("marshal channel context: %w", err)
	}
	if _, err := s.db.Exec(ctx, updateChannelContextSQL, pgID, channel, payload); err != nil {
		return fmt.Errorf("update channel context: %w", err)
	}
	return nil
}

func scanLead(row pgx.Row, withCreated bool) (Lead, bool, error) {
	var (
		id                pgtype.UUID
		displayName       pgtype.Text
		email             pgtype.Text
		lastInteractionAt pgtype.Timestamptz
		createdAt         pgtype.Timestamptz
		updatedAt         pgtype.Timestamptz
		countsRaw         []byte
		contextRaw        []byte
		created           bool
		lead              Lead
	)

	dest := []any{
		&id, &lead.Phone, &lead.Tenant, &displayName, &email,
		&lead.FirstChannel, &lead.LastChannel, &lastInteractionAt,
		&countsRaw, &contextRaw, &createdAt, &updatedAt,
	}
	if withCreated {
		dest = append(dest, &created)
	}
	if err := row.Scan(dest...); err != nil {
		return Lead{}, false, err
	}

	lead.ID = dbpkg.UUIDString(id)
	lead.DisplayName = dbpkg.TextString(displayName)
	lead.Email = dbpkg.TextString(email)
	lead.LastInteractionAt = lastInteractionAt.Time
	lead.CreatedAt = createdAt.Time
	lead.UpdatedAt = updatedAt.Time

	lead.MessageCounts = map[string]int{}
	if len(countsRaw) > 0 {
		if err := json.Unmarshal(countsRaw, &lead.MessageCounts); err != nil {
			return Lead{}, false, fmt.Errorf("decode message counts: %w", err)
		}
	}
	lead.Context = map[string]ChannelContext{}
	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &lead.Context); err != nil {
			return Lead{}, false, fmt.Errorf("decode context blob: %w", err)
		}
	}
	return lead, created, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
