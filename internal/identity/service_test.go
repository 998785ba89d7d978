package identity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbpkg "github.com/leadwireai/leadwire/internal/db"
)

// fakeRow implements pgx.Row with a custom scan function.
type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

// fakeDBTX implements DBTX for unit testing.
type fakeDBTX struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryRows    int
}

func (d *fakeDBTX) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if d.execFunc != nil {
		return d.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (d *fakeDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (d *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	d.queryRows++
	if d.queryRowFunc != nil {
		return d.queryRowFunc(ctx, sql, args...)
	}
	return &fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func makeLeadRow(id pgtype.UUID, phone, tenant string, created bool) *fakeRow {
	counts, _ := json.Marshal(map[string]int{"whatsapp": 1})
	blob, _ := json.Marshal(map[string]map[string]any{"whatsapp": {"source": "ad"}})
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	return &fakeRow{
		scanFunc: func(dest ...any) error {
			if len(dest) < 12 {
				return pgx.ErrNoRows
			}
			*dest[0].(*pgtype.UUID) = id
			*dest[1].(*string) = phone
			*dest[2].(*string) = tenant
			*dest[3].(*pgtype.Text) = pgtype.Text{String: "Asha", Valid: true}
			*dest[4].(*pgtype.Text) = pgtype.Text{}
			*dest[5].(*string) = "whatsapp"
			*dest[6].(*string) = "whatsapp"
			*dest[7].(*pgtype.Timestamptz) = now
			*dest[8].(*[]byte) = counts
			*dest[9].(*[]byte) = blob
			*dest[10].(*pgtype.Timestamptz) = now
			*dest[11].(*pgtype.Timestamptz) = now
			if len(dest) > 12 {
				*dest[12].(*bool) = created
			}
			return nil
		},
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare ten digits", raw: "9876543210", want: "9876543210"},
		{name: "country code prefix", raw: "919876543210", want: "9876543210"},
		{name: "plus and separators", raw: "+91 98765-43210", want: "9876543210"},
		{name: "whatsapp jid", raw: "919876543210@s.whatsapp.net", want: "9876543210"},
		{name: "too short", raw: "12345", wantErr: true},
		{name: "letters only", raw: "not-a-number", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidIdentifier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhonePrefixEquivalence(t *testing.T) {
	withPrefix, err := NormalizePhone("919876543210")
	require.NoError(t, err)
	bare, err := NormalizePhone("9876543210")
	require.NoError(t, err)
	assert.Equal(t, bare, withPrefix)
}

func TestGetOrCreateSingleRoundTrip(t *testing.T) {
	leadID := dbpkg.NewUUID()
	var gotArgs []any
	fake := &fakeDBTX{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			gotArgs = args
			return makeLeadRow(leadID, "9876543210", DefaultTenant, true)
		},
	}
	svc := NewService(nil, fake)

	lead, created, err := svc.GetOrCreate(context.Background(), "+91 9876543210", "", Hint{
		Channel:     "whatsapp",
		DisplayName: "Asha",
		Metadata:    map[string]any{"source": "ad"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, fake.queryRows)
	assert.Equal(t, dbpkg.UUIDString(leadID), lead.ID)
	assert.Equal(t, "9876543210", lead.Phone)
	assert.Equal(t, map[string]int{"whatsapp": 1}, lead.MessageCounts)
	assert.Equal(t, "ad", lead.ChannelSlice("whatsapp")["source"])

	// Normalized phone travels as the second statement argument.
	require.GreaterOrEqual(t, len(gotArgs), 6)
	assert.Equal(t, "9876543210", gotArgs[1])
	assert.Equal(t, DefaultTenant, gotArgs[2])
	assert.Equal(t, "whatsapp", gotArgs[5])
}

func TestGetOrCreateReturningCall(t *testing.T) {
	leadID := dbpkg.NewUUID()
	fake := &fakeDBTX{
		queryRowFunc: func(context.Context, string, ...any) pgx.Row {
			return makeLeadRow(leadID, "9876543210", DefaultTenant, false)
		},
	}
	svc := NewService(nil, fake)

	lead, created, err := svc.GetOrCreate(context.Background(), "9876543210", DefaultTenant, Hint{Channel: "web"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, dbpkg.UUIDString(leadID), lead.ID)
}

func TestGetOrCreateInvalidIdentifierSkipsStore(t *testing.T) {
	fake := &fakeDBTX{}
	svc := NewService(nil, fake)

	_, _, err := svc.GetOrCreate(context.Background(), "123", DefaultTenant, Hint{Channel: "whatsapp"})
	require.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Zero(t, fake.queryRows)
}

func TestGetByIDNotFound(t *testing.T) {
	fake := &fakeDBTX{}
	svc := NewService(nil, fake)

	_, err := svc.GetByID(context.Background(), dbpkg.UUIDString(dbpkg.NewUUID()))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetByIDRejectsMalformedID(t *testing.T) {
	svc := NewService(nil, &fakeDBTX{})

	_, err := svc.GetByID(context.Background(), "not-a-uuid")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
