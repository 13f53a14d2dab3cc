package application

import (
	"context"
	"testing"
	"time"

	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/infrastructure/transport"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaiter_ReturnsImmediatelyWhenDataPresent(t *testing.T) {
	m := newTestManager(t, nil, "ctx")
	m.ApplyUpdate(domain.EntityStore, storesCollection("acme"))
	w := NewWaiter(m, zerolog.Nop())

	start := time.Now()
	got := w.WaitForData(context.Background(), domain.EntityStore, "acme", time.Second)
	assert.Len(t, got, 1)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestWaiter_TerminatesWithinBound(t *testing.T) {
	m := newTestManager(t, nil, "ctx")
	w := NewWaiter(m, zerolog.Nop())

	start := time.Now()
	got := w.WaitForData(context.Background(), domain.EntityStore, "", time.Second)
	elapsed := time.Since(start)

	assert.Empty(t, got, "best-effort result, possibly empty")
	assert.Less(t, elapsed, 1500*time.Millisecond, "terminates within maxWait plus one poll interval")
	assert.GreaterOrEqual(t, elapsed, time.Second)
}

func TestWaiter_PicksUpLateArrivingData(t *testing.T) {
	m := newTestManager(t, nil, "ctx")
	w := NewWaiter(m, zerolog.Nop())

	go func() {
		time.Sleep(700 * time.Millisecond)
		m.ApplyUpdate(domain.EntityStore, storesCollection("acme"))
	}()

	got := w.WaitForData(context.Background(), domain.EntityStore, "acme", 3*time.Second)
	assert.Len(t, got, 1, "waiter observes data that arrives mid-poll")
}

func TestWaiter_RequestNudgesParent(t *testing.T) {
	bus := transport.NewLocalBus(zerolog.Nop())
	parent := newTestManager(t, bus, "parent")
	child := newTestManager(t, bus, "child", "parent")
	parent.ApplyUpdate(domain.EntityStore, storesCollection("acme"))

	w := NewWaiter(child, zerolog.Nop())
	got := w.WaitForData(context.Background(), domain.EntityStore, "acme", 3*time.Second)

	require.Len(t, got, 1, "the empty context recovers its data by nudging the opener")
	assert.Equal(t, "acme", got[0].Subdomain)
}

func TestWaiter_KeepsWaitingForMatchingSubdomain(t *testing.T) {
	m := newTestManager(t, nil, "ctx")
	m.ApplyUpdate(domain.EntityStore, storesCollection("other"))
	w := NewWaiter(m, zerolog.Nop())

	start := time.Now()
	got := w.WaitForData(context.Background(), domain.EntityStore, "acme", time.Second)

	assert.GreaterOrEqual(t, time.Since(start), time.Second, "non-matching data keeps the waiter polling")
	assert.Len(t, got, 1, "deadline still returns whatever is available")
}
