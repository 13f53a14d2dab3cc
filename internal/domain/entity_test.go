package domain

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_WireFormatIsString(t *testing.T) {
	ts := Timestamp{time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)}
	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01T12:30:00Z"`, string(b), "timestamps serialize as RFC3339 strings")
}

func TestTimestamp_RehydratesToTime(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-01T12:30:00Z"`), &ts))
	assert.Equal(t, 2024, ts.Year(), "rehydrated value is a real time, not a string")
	assert.False(t, ts.IsZero())
}

func TestTimestamp_AcceptsLegacyUnixMillis(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`1709296200000`), &ts))
	assert.Equal(t, int64(1709296200000), ts.UnixMilli())
}

func TestTimestamp_MalformedDegradesToZero(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"not-a-date"`), &ts), "malformed timestamps must not fail the read")
	assert.True(t, ts.IsZero())
}

func TestTimestamp_RoundTrip(t *testing.T) {
	now := Now()
	b, err := json.Marshal(now)
	require.NoError(t, err)
	var back Timestamp
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, now.Equal(back.Time), "millisecond-truncated timestamps survive the round trip")
}

func TestNewID_Pattern(t *testing.T) {
	pattern := regexp.MustCompile(`^product_\d+_[a-z0-9]+$`)
	id := NewID(EntityProduct)
	assert.Regexp(t, pattern, id)

	other := NewID(EntityProduct)
	assert.NotEqual(t, id, other, "ids are never reused")
}

func TestCollection_FilterPreservesOrder(t *testing.T) {
	col := Collection{
		{ID: "a", StoreID: "s1"},
		{ID: "b", StoreID: "s2"},
		{ID: "c", StoreID: "s1"},
	}
	got := col.Filter(ByStoreID("s1"))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestCollection_FilterNilMatchesAll(t *testing.T) {
	col := Collection{{ID: "a"}, {ID: "b"}}
	assert.Len(t, col.Filter(nil), 2)
}

func TestDecodeCollection_Malformed(t *testing.T) {
	_, err := DecodeCollection([]byte(`{"not": "a collection`))
	assert.Error(t, err)
}

func TestDecodeCollection_Empty(t *testing.T) {
	col, err := DecodeCollection(nil)
	require.NoError(t, err)
	assert.Empty(t, col)
}

func TestEncodeDecodeCollection_RehydratesTimestamps(t *testing.T) {
	created := Now()
	col := Collection{{
		ID:        NewID(EntityStore),
		Type:      EntityStore,
		Subdomain: "acme",
		CreatedAt: created,
		UpdatedAt: created,
	}}

	blob, err := EncodeCollection(col)
	require.NoError(t, err)

	back, err := DecodeCollection(blob)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.True(t, back[0].CreatedAt.Equal(created.Time))
	assert.False(t, back[0].CreatedAt.IsZero(), "createdAt is a date after rehydration")
}

func TestCollectionKey_Plurals(t *testing.T) {
	assert.Equal(t, "storefront_stores", CollectionKey(EntityStore))
	assert.Equal(t, "storefront_categories", CollectionKey(EntityCategory))
	assert.Equal(t, "storefront_sync_products", SignalChannel(EntityProduct))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "shop@example.com", NormalizeEmail("  Shop@Example.COM "))
	assert.Equal(t, "storefront_identity_shop@example.com", IdentityMappingKey(" Shop@example.com"))
}
