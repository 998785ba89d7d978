package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadwireai/leadwire/internal/booking"
	"github.com/leadwireai/leadwire/internal/identity"
	"github.com/leadwireai/leadwire/internal/session"
	"github.com/leadwireai/leadwire/internal/transcript"
)

type fakeIdentities struct {
	lead          identity.Lead
	created       bool
	err           error
	contextWrites []map[string]any
	contextErr    error
}

func (f *fakeIdentities) GetOrCreate(_ context.Context, rawID, tenant string, _ identity.Hint) (identity.Lead, bool, error) {
	if f.err != nil {
		return identity.Lead{}, false, f.err
	}
	return f.lead, f.created, nil
}

func (f *fakeIdentities) UpdateChannelContext(_ context.Context, _, _ string, data map[string]any) error {
	f.contextWrites = append(f.contextWrites, data)
	return f.contextErr
}

type fakeSessions struct {
	session    session.Session
	err        error
	links      [][2]string
	linkErr    error
	updates    []session.ConversationData
	updateErr  error
	getCalled  int
	linkCalled int
}

func (f *fakeSessions) GetOrCreate(_ context.Context, _, _, _ string, _ map[string]any) (session.Session, bool, error) {
	f.getCalled++
	if f.err != nil {
		return session.Session{}, false, f.err
	}
	return f.session, false, nil
}

func (f *fakeSessions) LinkToIdentity(_ context.Context, sessionID, leadID string) error {
	f.linkCalled++
	f.links = append(f.links, [2]string{sessionID, leadID})
	return f.linkErr
}

func (f *fakeSessions) UpdateConversationData(_ context.Context, _ string, data session.ConversationData) error {
	f.updates = append(f.updates, data)
	return f.updateErr
}

type fakeReader struct {
	entries []transcript.Entry
	err     error
}

func (f *fakeReader) ListRecent(_ context.Context, _, _ string, _ int32) ([]transcript.Entry, error) {
	return f.entries, f.err
}

func newTestBuilder(ids *fakeIdentities, sess *fakeSessions, reader *fakeReader, bookings booking.Service) *Builder {
	if bookings == nil {
		bookings = booking.NewMemoryService()
	}
	return NewBuilder(nil, ids, sess, reader, bookings)
}

func TestBuildNewCaller(t *testing.T) {
	ids := &fakeIdentities{
		lead:    identity.Lead{ID: "2f0a1f64-9a7a-4a5e-8f05-111111111111", Phone: "9876543210", Tenant: "default"},
		created: true,
	}
	sess := &fakeSessions{
		session: session.Session{ID: "3b9f2c81-1d2e-4f30-9a6b-222222222222", Channel: "whatsapp", MessageCount: 0},
	}
	b := newTestBuilder(ids, sess, &fakeReader{}, nil)

	cctx, err := b.Build(context.Background(), "whatsapp", "9876543210", "", identity.Hint{DisplayName: "Asha"})
	require.NoError(t, err)

	assert.False(t, cctx.IsReturning)
	assert.False(t, cctx.HasBooking)
	assert.Equal(t, PhaseDiscoveryEntry, cctx.Phase)
	assert.Empty(t, cctx.History)
	assert.Contains(t, cctx.ContextNote, "new customer")
	assert.Contains(t, cctx.ContextNote, "No booking exists")
}

func TestBuildLinksUnlinkedSessionOnce(t *testing.T) {
	ids := &fakeIdentities{lead: identity.Lead{ID: "2f0a1f64-9a7a-4a5e-8f05-111111111111"}}
	sess := &fakeSessions{
		session: session.Session{ID: "3b9f2c81-1d2e-4f30-9a6b-222222222222", Channel: "whatsapp"},
	}
	b := newTestBuilder(ids, sess, &fakeReader{}, nil)

	cctx, err := b.Build(context.Background(), "whatsapp", "9876543210", "default", identity.Hint{})
	require.NoError(t, err)
	require.Equal(t, 1, sess.linkCalled)
	assert.Equal(t, [2]string{sess.session.ID, ids.lead.ID}, sess.links[0])
	assert.Equal(t, ids.lead.ID, cctx.Session.LeadID)

	sess.session.LeadID = ids.lead.ID
	_, err = b.Build(context.Background(), "whatsapp", "9876543210", "default", identity.Hint{})
	require.NoError(t, err)
	assert.Equal(t, 1, sess.linkCalled, "linked session must not be re-linked")
}

func TestBuildReturningCrossChannel(t *testing.T) {
	ids := &fakeIdentities{
		lead: identity.Lead{
			ID: "2f0a1f64-9a7a-4a5e-8f05-111111111111",
			Context: map[string]identity.ChannelContext{
				"web": {"summary": "Customer asked about pricing: how much", "interests": []any{"how much"}},
			},
		},
		created: false,
	}
	sess := &fakeSessions{
		session: session.Session{ID: "3b9f2c81-1d2e-4f30-9a6b-222222222222", Channel: "whatsapp", LeadID: ids.lead.ID},
	}
	b := newTestBuilder(ids, sess, &fakeReader{}, nil)

	cctx, err := b.Build(context.Background(), "whatsapp", "9876543210", "default", identity.Hint{})
	require.NoError(t, err)
	assert.True(t, cctx.IsReturning)
	assert.Contains(t, cctx.ContextNote, "Earlier on web")
	assert.Contains(t, cctx.ContextNote, "returning customer")
}

func TestBuildDerivesFromHistory(t *testing.T) {
	ids := &fakeIdentities{lead: identity.Lead{ID: "2f0a1f64-9a7a-4a5e-8f05-111111111111"}, created: false}
	sess := &fakeSessions{
		session: session.Session{ID: "3b9f2c81-1d2e-4f30-9a6b-222222222222", Channel: "whatsapp", LeadID: ids.lead.ID, MessageCount: 4},
	}
	reader := &fakeReader{entries: []transcript.Entry{
		{Role: transcript.RoleCustomer, Content: "what is the price of the enterprise plan"},
		{Role: transcript.RoleAgent, Content: "it depends on seats"},
	}}
	b := newTestBuilder(ids, sess, reader, nil)

	cctx, err := b.Build(context.Background(), "whatsapp", "9876543210", "default", identity.Hint{})
	require.NoError(t, err)
	assert.Equal(t, PhaseEvaluation, cctx.Phase)
	assert.Contains(t, cctx.Summary, "Customer asked about pricing")
	assert.NotEmpty(t, cctx.Interests)
	assert.Equal(t, 4, cctx.MessageCount)

	require.Len(t, sess.updates, 1)
	assert.Equal(t, cctx.Summary, sess.updates[0].Summary)
	assert.Equal(t, cctx.Phase, sess.updates[0].Phase)
	require.Len(t, ids.contextWrites, 1)
	assert.Equal(t, cctx.Summary, ids.contextWrites[0]["summary"])
}

func TestBuildPersistFailuresAreSwallowed(t *testing.T) {
	ids := &fakeIdentities{
		lead:       identity.Lead{ID: "2f0a1f64-9a7a-4a5e-8f05-111111111111"},
		contextErr: errors.New("lead write refused"),
	}
	sess := &fakeSessions{
		session:   session.Session{ID: "3b9f2c81-1d2e-4f30-9a6b-222222222222", Channel: "whatsapp", LeadID: ids.lead.ID},
		updateErr: errors.New("session write refused"),
	}
	b := newTestBuilder(ids, sess, &fakeReader{}, nil)

	cctx, err := b.Build(context.Background(), "whatsapp", "9876543210", "default", identity.Hint{})
	require.NoError(t, err)
	assert.NotNil(t, cctx)
}

func TestBuildSurfacesResolutionFailure(t *testing.T) {
	ids := &fakeIdentities{err: identity.ErrInvalidIdentifier}
	sess := &fakeSessions{}
	b := newTestBuilder(ids, sess, &fakeReader{}, nil)

	_, err := b.Build(context.Background(), "whatsapp", "12", "default", identity.Hint{})
	require.ErrorIs(t, err, identity.ErrInvalidIdentifier)
	assert.Zero(t, sess.getCalled, "session store untouched after failed resolution")
}

func TestBuildReportsActiveBooking(t *testing.T) {
	ids := &fakeIdentities{lead: identity.Lead{ID: "2f0a1f64-9a7a-4a5e-8f05-111111111111"}}
	sess := &fakeSessions{
		session: session.Session{ID: "3b9f2c81-1d2e-4f30-9a6b-222222222222", Channel: "whatsapp", LeadID: ids.lead.ID},
	}
	bookings := booking.NewMemoryService()
	_, err := bookings.Hold(context.Background(), ids.lead.ID, "demo call")
	require.NoError(t, err)

	b := newTestBuilder(ids, sess, &fakeReader{}, bookings)
	cctx, err := b.Build(context.Background(), "whatsapp", "9876543210", "default", identity.Hint{})
	require.NoError(t, err)
	assert.True(t, cctx.HasBooking)
	assert.Contains(t, cctx.ContextNote, "active booking already exists")
}
