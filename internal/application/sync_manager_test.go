package application

import (
	"context"
	"testing"

	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/infrastructure/storage"
	"storefront-sync-layer/internal/infrastructure/transport"
	"storefront-sync-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, bus *transport.LocalBus, id string, parents ...string) *SyncManager {
	t.Helper()
	cfg := SyncManagerConfig{
		ContextID: id,
		Durable:   storage.NewMemoryTier(),
		Volatile:  storage.NewMemoryTier(),
		Logger:    zerolog.Nop(),
		Parents:   parents,
	}
	if bus != nil {
		tr := bus.Attach(id)
		cfg.Feed = tr
		cfg.Messenger = tr
	}
	m, err := NewSyncManager(context.Background(), cfg)
	require.NoError(t, err)
	return m
}

func storesCollection(ids ...string) domain.Collection {
	col := domain.Collection{}
	for _, id := range ids {
		col = append(col, &domain.Entity{
			ID:        "store_1_" + id,
			Type:      domain.EntityStore,
			Subdomain: id,
			CreatedAt: domain.Now(),
			UpdatedAt: domain.Now(),
		})
	}
	return col
}

func TestSyncManager_ApplyUpdateIsIdempotent(t *testing.T) {
	m := newTestManager(t, nil, "ctx")
	col := storesCollection("acme", "globex")

	m.ApplyUpdate(domain.EntityStore, col)
	first, err := m.durable.Get(domain.CollectionKey(domain.EntityStore))
	require.NoError(t, err)

	m.ApplyUpdate(domain.EntityStore, col)
	second, err := m.durable.Get(domain.CollectionKey(domain.EntityStore))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "applying the same response twice leaves the durable tier identical")
	assert.Len(t, m.GetWithFallback(domain.EntityStore), 2, "no duplicated entities")
}

func TestSyncManager_WritesUpdateBothTiers(t *testing.T) {
	m := newTestManager(t, nil, "ctx")
	m.ApplyUpdate(domain.EntityProduct, storesCollection("x"))

	key := domain.CollectionKey(domain.EntityProduct)
	durable, err := m.durable.Get(key)
	require.NoError(t, err)
	volatile, err := m.volatile.Get(key)
	require.NoError(t, err)
	assert.Equal(t, string(durable), string(volatile), "both tiers updated before the write completes")
}

func TestSyncManager_TierRepair(t *testing.T) {
	m := newTestManager(t, nil, "ctx")

	// Simulate a durable tier wiped while the window's volatile copy survives.
	blob, err := domain.EncodeCollection(storesCollection("acme", "globex", "initech"))
	require.NoError(t, err)
	require.NoError(t, m.volatile.Set(domain.CollectionKey(domain.EntityStore), blob))

	got := m.GetWithFallback(domain.EntityStore)
	assert.Len(t, got, 3, "volatile fallback returns all entities")

	repaired, err := m.durable.Get(domain.CollectionKey(domain.EntityStore))
	require.NoError(t, err)
	repairedCol, err := domain.DecodeCollection(repaired)
	require.NoError(t, err)
	assert.Len(t, repairedCol, 3, "durable tier repaired from the volatile copy")
}

func TestSyncManager_CorruptDurableDegradesToEmpty(t *testing.T) {
	m := newTestManager(t, nil, "ctx")
	require.NoError(t, m.durable.Set(domain.CollectionKey(domain.EntityOrder), []byte(`{"broken`)))

	got := m.GetWithFallback(domain.EntityOrder)
	assert.Empty(t, got, "corruption degrades to an empty collection, never a crash")
}

func TestSyncManager_EventListeners(t *testing.T) {
	m := newTestManager(t, nil, "ctx")

	var calls int
	id := m.AddEventListener(UpdateEventName(domain.EntityStore), func(domain.Collection) { calls++ })
	m.ApplyUpdate(domain.EntityStore, storesCollection("acme"))
	assert.Equal(t, 1, calls)

	m.RemoveEventListener(UpdateEventName(domain.EntityStore), id)
	m.ApplyUpdate(domain.EntityStore, storesCollection("acme"))
	assert.Equal(t, 1, calls, "removed listeners stay silent")
}

func TestSyncManager_ChangeEventPropagatesBetweenContexts(t *testing.T) {
	bus := transport.NewLocalBus(zerolog.Nop())
	writer := newTestManager(t, bus, "writer")
	reader := newTestManager(t, bus, "reader")

	var notified domain.Collection
	reader.AddEventListener(UpdateEventName(domain.EntityProduct), func(col domain.Collection) { notified = col })

	require.NoError(t, writer.ReplaceCollection(context.Background(), domain.EntityProduct, storesCollection("p1")))

	assert.Len(t, reader.GetWithFallback(domain.EntityProduct), 1, "reader's tiers mirror the broadcast")
	assert.Len(t, notified, 1, "reader's listeners observe the background update")
}

func TestSyncManager_RequestFromParentFlow(t *testing.T) {
	bus := transport.NewLocalBus(zerolog.Nop())
	parent := newTestManager(t, bus, "parent")
	child := newTestManager(t, bus, "child", "parent")

	parent.ApplyUpdate(domain.EntityStore, storesCollection("acme"))

	require.Empty(t, child.GetWithFallback(domain.EntityStore))
	child.RequestFromParent(context.Background(), "acme")

	got := child.GetWithFallback(domain.EntityStore)
	require.Len(t, got, 1, "parent answers with its store collection")
	assert.Equal(t, "acme", got[0].Subdomain)
}

func TestSyncManager_RequestFromParentWithoutParentIsNoop(t *testing.T) {
	m := newTestManager(t, nil, "orphan")
	assert.NotPanics(t, func() { m.RequestFromParent(context.Background(), "acme") })
}

func TestSyncManager_UnknownMessageIgnored(t *testing.T) {
	bus := transport.NewLocalBus(zerolog.Nop())
	m := newTestManager(t, bus, "ctx")
	sender := bus.Attach("sender")

	require.NoError(t, sender.Send(context.Background(), "ctx", &domain.Message{Type: domain.MessageDataUpdate, Entity: domain.EntityOrder}))
	assert.Empty(t, m.GetWithFallback(domain.EntityOrder))

	var heard bool
	require.NoError(t, m.feed.Subscribe(context.Background(), func(ports.ChangeEvent) { heard = true }))
	require.NoError(t, sender.Publish(context.Background(), ports.ChangeEvent{Entity: domain.EntityOrder, Payload: []byte(`{"bad`)}))
	assert.True(t, heard, "event delivered")
	assert.Empty(t, m.GetWithFallback(domain.EntityOrder), "malformed payload ignored")
}
