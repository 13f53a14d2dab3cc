package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/ports"

	"github.com/rs/zerolog"
)

// UpdateEventName returns the listener event name emitted when a type's
// collection changes, e.g. "products_updated".
func UpdateEventName(typ domain.EntityType) string {
	return domain.CollectionKey(typ)[len("storefront_"):] + "_updated"
}

// SyncManagerConfig wires one context's synchronization manager. Feed,
// Messenger and Parents are optional: a context with no transports still
// works, it just never hears from anyone.
type SyncManagerConfig struct {
	ContextID string
	Durable   ports.Tier
	Volatile  ports.Tier
	Feed      ports.ChangeFeed
	Messenger ports.Messenger
	// Parents holds the context ids of the opener and/or parent frame, the
	// targets of RequestFromParent.
	Parents []string
	Logger  zerolog.Logger
	Metrics *Metrics
}

// SyncManager is the single coordination point of one execution context. It
// mirrors incoming collection data into both persistence tiers and is the
// only place where consumers observe background updates without polling.
//
// Construct exactly one per context and pass it by reference; it subscribes
// to both transports at construction time and lives for the context's
// lifetime.
type SyncManager struct {
	contextID string
	durable   ports.Tier
	volatile  ports.Tier
	feed      ports.ChangeFeed
	messenger ports.Messenger
	parents   []string
	logger    zerolog.Logger
	metrics   *Metrics

	mu           sync.Mutex
	listeners    map[string]map[int]func(domain.Collection)
	nextListener int
}

// NewSyncManager constructs the manager and subscribes it to both transports.
func NewSyncManager(ctx context.Context, cfg SyncManagerConfig) (*SyncManager, error) {
	if cfg.Durable == nil || cfg.Volatile == nil {
		return nil, fmt.Errorf("sync manager requires both storage tiers")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics()
	}

	m := &SyncManager{
		contextID: cfg.ContextID,
		durable:   cfg.Durable,
		volatile:  cfg.Volatile,
		feed:      cfg.Feed,
		messenger: cfg.Messenger,
		parents:   cfg.Parents,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		listeners: make(map[string]map[int]func(domain.Collection)),
	}

	if m.feed != nil {
		if err := m.feed.Subscribe(ctx, m.onChangeEvent); err != nil {
			return nil, fmt.Errorf("failed to subscribe to change feed: %w", err)
		}
	}
	if m.messenger != nil {
		if err := m.messenger.Receive(ctx, func(msg *domain.Message) { m.onMessage(ctx, msg) }); err != nil {
			return nil, fmt.Errorf("failed to subscribe to direct messages: %w", err)
		}
	}
	return m, nil
}

// ContextID returns this context's transport address.
func (m *SyncManager) ContextID() string { return m.contextID }

// AddEventListener registers fn for an update event name and returns a
// handle for RemoveEventListener.
func (m *SyncManager) AddEventListener(name string, fn func(domain.Collection)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListener++
	id := m.nextListener
	if m.listeners[name] == nil {
		m.listeners[name] = make(map[int]func(domain.Collection))
	}
	m.listeners[name][id] = fn
	return id
}

// RemoveEventListener unregisters a listener handle. Unknown handles are
// ignored.
func (m *SyncManager) RemoveEventListener(name string, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners[name], id)
}

func (m *SyncManager) emit(name string, col domain.Collection) {
	m.mu.Lock()
	fns := make([]func(domain.Collection), 0, len(m.listeners[name]))
	for _, fn := range m.listeners[name] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(col)
	}
}

// readTier decodes one tier's collection. A malformed blob is logged and
// degrades to an empty collection; corruption never propagates as a crash.
func (m *SyncManager) readTier(tier ports.Tier, typ domain.EntityType) domain.Collection {
	blob, err := tier.Get(domain.CollectionKey(typ))
	if err != nil {
		m.logger.Error().Err(err).Str("entity", string(typ)).Msg("Failed to read collection, treating as empty")
		return domain.Collection{}
	}
	col, err := domain.DecodeCollection(blob)
	if err != nil {
		m.metrics.DecodeFailures.WithLabelValues(string(typ)).Inc()
		m.logger.Error().Err(err).Str("entity", string(typ)).Msg("Malformed persisted collection, treating as empty")
		return domain.Collection{}
	}
	return col
}

// writeBoth persists the collection to the durable tier first, then mirrors
// it into the volatile tier. A write is complete only when both succeeded.
func (m *SyncManager) writeBoth(typ domain.EntityType, col domain.Collection) error {
	blob, err := domain.EncodeCollection(col)
	if err != nil {
		return err
	}
	key := domain.CollectionKey(typ)
	if err := m.durable.Set(key, blob); err != nil {
		return fmt.Errorf("failed to persist %s to durable tier: %w", typ, err)
	}
	if err := m.volatile.Set(key, blob); err != nil {
		return fmt.Errorf("failed to mirror %s to volatile tier: %w", typ, err)
	}
	return nil
}

func (m *SyncManager) getWithFallbackLocked(typ domain.EntityType) domain.Collection {
	col := m.readTier(m.durable, typ)
	if len(col) > 0 {
		return col
	}
	col = m.readTier(m.volatile, typ)
	if len(col) == 0 {
		return domain.Collection{}
	}
	// The volatile tier has data the durable tier lost; repair the
	// asymmetry before returning.
	blob, err := domain.EncodeCollection(col)
	if err == nil {
		if err := m.durable.Set(domain.CollectionKey(typ), blob); err != nil {
			m.logger.Warn().Err(err).Str("entity", string(typ)).Msg("Failed to repair durable tier")
		} else {
			m.metrics.TierRepairs.WithLabelValues(string(typ)).Inc()
			m.logger.Info().Str("entity", string(typ)).Int("count", len(col)).Msg("Repaired durable tier from volatile copy")
		}
	}
	return col
}

// GetWithFallback reads a collection: durable tier first, volatile tier when
// the durable one is empty. A non-empty volatile copy is written back into
// the durable tier before it is returned.
func (m *SyncManager) GetWithFallback(typ domain.EntityType) domain.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getWithFallbackLocked(typ)
}

// ApplyUpdate replaces the local collection wholesale with one received from
// another context and notifies listeners. Applying the same update twice is
// a no-op for the stored state.
func (m *SyncManager) ApplyUpdate(typ domain.EntityType, col domain.Collection) {
	m.mu.Lock()
	if err := m.writeBoth(typ, col); err != nil {
		m.mu.Unlock()
		m.logger.Error().Err(err).Str("entity", string(typ)).Msg("Failed to apply incoming update")
		return
	}
	m.mu.Unlock()

	m.metrics.UpdatesApplied.WithLabelValues(string(typ)).Inc()
	m.emit(UpdateEventName(typ), col)
}

// ReplaceCollection persists a locally produced collection to both tiers,
// notifies local listeners and broadcasts it to other contexts. This is the
// write path behind every entity mutation: the change-event transport cannot
// notify the writing context itself, so listeners are invoked synchronously
// here.
func (m *SyncManager) ReplaceCollection(ctx context.Context, typ domain.EntityType, col domain.Collection) error {
	m.mu.Lock()
	err := m.writeBoth(typ, col)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.emit(UpdateEventName(typ), col)
	m.Broadcast(ctx, typ)
	return nil
}

// CreateAndBroadcast appends one entity to its collection, persists both
// tiers and explicitly re-broadcasts the result. Used when the change-event
// transport cannot be relied upon for same-context creation.
func (m *SyncManager) CreateAndBroadcast(ctx context.Context, e *domain.Entity) error {
	m.mu.Lock()
	col := append(m.getWithFallbackLocked(e.Type), e)
	err := m.writeBoth(e.Type, col)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.emit(UpdateEventName(e.Type), col)
	m.Broadcast(ctx, e.Type)
	return nil
}

// Broadcast publishes the current durable collection for a type to every
// other context: the change feed for whoever listens, plus a DATA_UPDATE
// direct message to the opener/parent. The whole collection is sent, never a
// diff; receivers replace wholesale. Best-effort, failures are logged only.
func (m *SyncManager) Broadcast(ctx context.Context, typ domain.EntityType) {
	m.mu.Lock()
	col := m.readTier(m.durable, typ)
	m.mu.Unlock()

	blob, err := domain.EncodeCollection(col)
	if err != nil {
		m.logger.Error().Err(err).Str("entity", string(typ)).Msg("Failed to encode broadcast payload")
		return
	}

	if m.feed != nil {
		if err := m.feed.Publish(ctx, ports.ChangeEvent{Entity: typ, Payload: blob, Origin: m.contextID}); err != nil {
			m.logger.Warn().Err(err).Str("entity", string(typ)).Msg("Failed to publish change event")
		}
	}
	if m.messenger != nil {
		msg := &domain.Message{
			Type:      domain.MessageDataUpdate,
			Entity:    typ,
			Data:      col,
			Timestamp: time.Now().UnixMilli(),
			From:      m.contextID,
		}
		for _, parent := range m.parents {
			if err := m.messenger.Send(ctx, parent, msg); err != nil {
				m.logger.Warn().Err(err).Str("to", parent).Msg("Failed to send data update")
			}
		}
	}
	m.metrics.BroadcastsSent.WithLabelValues(string(typ)).Inc()
}

// RequestFromParent asks the opener/parent context for store data. A context
// without an opener or parent is a no-op; delivery is best-effort.
func (m *SyncManager) RequestFromParent(ctx context.Context, subdomain string) {
	if m.messenger == nil || len(m.parents) == 0 {
		return
	}
	msg := &domain.Message{
		Type:      domain.MessageRequestStoreData,
		Subdomain: subdomain,
		Timestamp: time.Now().UnixMilli(),
		From:      m.contextID,
	}
	for _, parent := range m.parents {
		if err := m.messenger.Send(ctx, parent, msg); err != nil {
			m.logger.Warn().Err(err).Str("to", parent).Msg("Failed to request store data")
		}
	}
}

func (m *SyncManager) onChangeEvent(event ports.ChangeEvent) {
	col, err := domain.DecodeCollection(event.Payload)
	if err != nil {
		m.logger.Warn().Err(err).Str("entity", string(event.Entity)).Msg("Ignoring malformed change event")
		return
	}
	m.logger.Debug().
		Str("entity", string(event.Entity)).
		Str("origin", event.Origin).
		Int("count", len(col)).
		Msg("Applying external change event")
	m.ApplyUpdate(event.Entity, col)
}

func (m *SyncManager) onMessage(ctx context.Context, msg *domain.Message) {
	switch msg.Type {
	case domain.MessageRequestStoreData:
		stores := m.GetWithFallback(domain.EntityStore)
		if len(stores) == 0 || msg.From == "" {
			return
		}
		reply := &domain.Message{
			Type:      domain.MessageStoreDataResponse,
			Stores:    stores,
			Timestamp: time.Now().UnixMilli(),
			From:      m.contextID,
		}
		if err := m.messenger.Send(ctx, msg.From, reply); err != nil {
			m.logger.Warn().Err(err).Str("to", msg.From).Msg("Failed to answer store data request")
		}
	case domain.MessageStoreDataResponse, domain.MessageDataUpdate:
		// Last observed full collection wins; a stale sender can overwrite
		// newer local data. Log the sender timestamp so that overwrite is
		// at least visible.
		m.logger.Debug().
			Str("type", msg.Type).
			Str("from", msg.From).
			Int64("sentAt", msg.Timestamp).
			Msg("Applying collection from direct message")
		m.ApplyUpdate(msg.EntityType(), msg.Collection())
	}
}
