package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leadwireai/leadwire/internal/booking"
	"github.com/leadwireai/leadwire/internal/identity"
	"github.com/leadwireai/leadwire/internal/session"
)

// Builder computes the conversation context for one inbound turn.
type Builder struct {
	identities IdentityStore
	sessions   SessionStore
	entries    TranscriptReader
	bookings   booking.Service
	logger     *slog.Logger
}

// NewBuilder creates a context builder.
func NewBuilder(log *slog.Logger, identities IdentityStore, sessions SessionStore, entries TranscriptReader, bookings booking.Service) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		identities: identities,
		sessions:   sessions,
		entries:    entries,
		bookings:   bookings,
		logger:     log.With(slog.String("service", "conversation")),
	}
}

// Build resolves the lead and session for an inbound message, loads the
// recent transcript window, and derives summary, interests, phase, and the
// model guidance note. Resolution failures surface; writing the derivatives
// back is best-effort and never fails the turn.
func (b *Builder) Build(ctx context.Context, channel, externalID, tenant string, hint identity.Hint) (*Context, error) {
	if strings.TrimSpace(tenant) == "" {
		tenant = identity.DefaultTenant
	}
	hint.Channel = channel

	lead, created, err := b.identities.GetOrCreate(ctx, externalID, tenant, hint)
	if err != nil {
		return nil, err
	}
	sess, _, err := b.sessions.GetOrCreate(ctx, channel, externalID, tenant, hint.Metadata)
	if err != nil {
		return nil, err
	}
	if !sess.Linked() {
		if err := b.sessions.LinkToIdentity(ctx, sess.ID, lead.ID); err != nil {
			return nil, fmt.Errorf("link session to lead: %w", err)
		}
		sess.LeadID = lead.ID
	}

	history, err := b.entries.ListRecent(ctx, lead.ID, channel, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load transcript window: %w", err)
	}
	newest := newestFirst(history)

	interests := deriveInterests(newest)
	phase := derivePhase(sess.MessageCount)
	summary := deriveSummary(newest)

	var activeBooking *booking.Booking
	if bkg, err := b.bookings.ActiveBooking(ctx, lead.ID); err != nil {
		b.logger.Warn("booking lookup failed",
			slog.String("lead_id", lead.ID),
			slog.Any("error", err),
		)
	} else {
		activeBooking = bkg
	}
	hasBooking := activeBooking != nil

	returning := !created || sess.MessageCount > 0 || len(history) > 0
	note := composeNote(noteInput{
		channel:    channel,
		summary:    summary,
		interests:  interests,
		stored:     lead.Context,
		returning:  returning,
		hasBooking: hasBooking,
	})

	cctx := &Context{
		Lead:         lead,
		Session:      sess,
		History:      history,
		Summary:      summary,
		Interests:    interests,
		Phase:        phase,
		ContextNote:  note,
		IsReturning:  returning,
		HasBooking:   hasBooking,
		Booking:      activeBooking,
		MessageCount: sess.MessageCount,
	}
	b.persistDerived(ctx, cctx)
	return cctx, nil
}

// persistDerived folds the turn's derivatives back into the session row and
// the lead's channel slice of the context blob. The in-hand context is
// already complete, so failures are logged and swallowed.
func (b *Builder) persistDerived(ctx context.Context, c *Context) {
	data := session.ConversationData{
		Summary:     c.Summary,
		ContextNote: c.ContextNote,
		Phase:       c.Phase,
		Interests:   c.Interests,
	}
	if err := b.sessions.UpdateConversationData(ctx, c.Session.ID, data); err != nil {
		b.logger.Warn("persist session derivatives failed",
			slog.String("session_id", c.Session.ID),
			slog.Any("error", err),
		)
	}

	blob := map[string]any{
		"summary":   c.Summary,
		"interests": c.Interests,
		"phase":     c.Phase,
	}
	if err := b.identities.UpdateChannelContext(ctx, c.Lead.ID, c.Session.Channel, blob); err != nil {
		b.logger.Warn("persist lead context failed",
			slog.String("lead_id", c.Lead.ID),
			slog.Any("error", err),
		)
	}
}
