// Package transport implements the two cross-context notification
// transports: an in-process bus for contexts living in the same process
// (and for tests) and a Redis pub/sub pair for contexts in separate
// processes.
package transport

import (
	"context"
	"sync"

	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/ports"

	"github.com/rs/zerolog"
)

// LocalBus connects in-process contexts. Each context attaches once and gets
// a LocalTransport implementing both the change feed and the messenger.
type LocalBus struct {
	mu       sync.RWMutex
	contexts map[string]*LocalTransport
	logger   zerolog.Logger
}

// NewLocalBus creates an empty bus.
func NewLocalBus(logger zerolog.Logger) *LocalBus {
	return &LocalBus{
		contexts: make(map[string]*LocalTransport),
		logger:   logger,
	}
}

// Attach registers a context on the bus under its id.
func (b *LocalBus) Attach(contextID string) *LocalTransport {
	t := &LocalTransport{bus: b, id: contextID}
	b.mu.Lock()
	b.contexts[contextID] = t
	b.mu.Unlock()
	b.logger.Debug().Str("contextId", contextID).Msg("Context attached to local bus")
	return t
}

// Detach removes a context; pending sends to it are dropped.
func (b *LocalBus) Detach(contextID string) {
	b.mu.Lock()
	delete(b.contexts, contextID)
	b.mu.Unlock()
}

func (b *LocalBus) others(origin string) []*LocalTransport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*LocalTransport, 0, len(b.contexts))
	for id, t := range b.contexts {
		if id == origin {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (b *LocalBus) lookup(id string) *LocalTransport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.contexts[id]
}

// LocalTransport is one context's endpoint on the bus.
type LocalTransport struct {
	bus *LocalBus
	id  string

	mu        sync.RWMutex
	changeFns []func(ports.ChangeEvent)
	msgFns    []func(*domain.Message)
}

var _ ports.ChangeFeed = (*LocalTransport)(nil)
var _ ports.Messenger = (*LocalTransport)(nil)

// Addr returns this context's id.
func (t *LocalTransport) Addr() string { return t.id }

// Publish delivers the change event to every other attached context. The
// publishing context never observes its own event.
func (t *LocalTransport) Publish(_ context.Context, event ports.ChangeEvent) error {
	if event.Origin == "" {
		event.Origin = t.id
	}
	for _, other := range t.bus.others(event.Origin) {
		other.deliverChange(event)
	}
	return nil
}

// Subscribe registers a change-event listener.
func (t *LocalTransport) Subscribe(_ context.Context, fn func(ports.ChangeEvent)) error {
	t.mu.Lock()
	t.changeFns = append(t.changeFns, fn)
	t.mu.Unlock()
	return nil
}

// Send delivers a direct message to the addressed context. An unknown
// address is dropped silently; delivery is best-effort by design.
func (t *LocalTransport) Send(_ context.Context, to string, msg *domain.Message) error {
	if msg.From == "" {
		msg.From = t.id
	}
	target := t.bus.lookup(to)
	if target == nil {
		t.bus.logger.Debug().Str("to", to).Str("type", msg.Type).Msg("Dropping message to unknown context")
		return nil
	}
	target.deliverMessage(msg)
	return nil
}

// Receive registers a direct-message listener.
func (t *LocalTransport) Receive(_ context.Context, fn func(*domain.Message)) error {
	t.mu.Lock()
	t.msgFns = append(t.msgFns, fn)
	t.mu.Unlock()
	return nil
}

func (t *LocalTransport) deliverChange(event ports.ChangeEvent) {
	t.mu.RLock()
	fns := make([]func(ports.ChangeEvent), len(t.changeFns))
	copy(fns, t.changeFns)
	t.mu.RUnlock()
	for _, fn := range fns {
		fn(event)
	}
}

func (t *LocalTransport) deliverMessage(msg *domain.Message) {
	t.mu.RLock()
	fns := make([]func(*domain.Message), len(t.msgFns))
	copy(fns, t.msgFns)
	t.mu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
}
