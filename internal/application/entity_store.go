package application

import (
	"context"
	"errors"
	"fmt"

	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/ports"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Update when no entity carries the given id.
var ErrNotFound = errors.New("entity not found")

// Reserved field names promoted from the fields map onto the entity itself,
// so tenant-scoped scans never dig into Fields.
const (
	fieldStoreID   = "storeId"
	fieldOwnerID   = "ownerId"
	fieldSubdomain = "subdomain"
)

// EntityStore is the typed persistence abstraction over the synchronized
// collections. All operations are synchronous: they read and write the local
// tiers through the sync manager and return before any remote replication
// happens. Every successful create or update broadcasts the full updated
// collection to the other contexts.
type EntityStore struct {
	sync   *SyncManager
	logger zerolog.Logger

	remote ports.RemoteBackend
	guard  *RemoteGuard

	now   func() domain.Timestamp
	newID func(domain.EntityType) string
}

// NewEntityStore creates an entity store bound to one context's sync manager.
func NewEntityStore(syncMgr *SyncManager, logger zerolog.Logger) *EntityStore {
	return &EntityStore{
		sync:   syncMgr,
		logger: logger,
		now:    domain.Now,
		newID:  domain.NewID,
	}
}

// AttachRemote enables best-effort background replication of every local
// write to the remote backend, through the resilience guard.
func (s *EntityStore) AttachRemote(remote ports.RemoteBackend, guard *RemoteGuard) {
	s.remote = remote
	s.guard = guard
}

// Sync exposes the underlying sync manager for consumers that subscribe to
// update events.
func (s *EntityStore) Sync() *SyncManager { return s.sync }

// Create assigns an id and timestamps, appends the entity to its collection,
// persists both tiers and broadcasts the updated collection.
func (s *EntityStore) Create(ctx context.Context, typ domain.EntityType, fields map[string]any) (*domain.Entity, error) {
	now := s.now()
	e := &domain.Entity{
		ID:        s.newID(typ),
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyFields(e, fields)

	if err := s.sync.CreateAndBroadcast(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", typ, err)
	}
	s.pushRemote(typ)
	return e, nil
}

// List returns the collection for a type, optionally filtered. Timestamps
// are real time values on every element; rehydration happens in the codec,
// never at call sites.
func (s *EntityStore) List(typ domain.EntityType, pred domain.Predicate) domain.Collection {
	return s.sync.GetWithFallback(typ).Filter(pred)
}

// GetByID returns the entity with the given id, or nil.
func (s *EntityStore) GetByID(typ domain.EntityType, id string) *domain.Entity {
	return s.sync.GetWithFallback(typ).FindByID(id)
}

// Update applies a patch to the entity with the given id, re-stamps
// UpdatedAt, persists and broadcasts. Returns ErrNotFound when the id is not
// in the collection.
func (s *EntityStore) Update(ctx context.Context, typ domain.EntityType, id string, patch map[string]any) (*domain.Entity, error) {
	col := s.sync.GetWithFallback(typ)
	e := col.FindByID(id)
	if e == nil {
		return nil, ErrNotFound
	}

	applyFields(e, patch)
	e.UpdatedAt = s.now()

	if err := s.sync.ReplaceCollection(ctx, typ, col); err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", typ, id, err)
	}
	s.pushRemote(typ)
	return e, nil
}

// Delete removes the entity with the given id and reports whether it
// existed. Only products and administrative resets ever hard-delete.
func (s *EntityStore) Delete(ctx context.Context, typ domain.EntityType, id string) bool {
	col := s.sync.GetWithFallback(typ)
	kept := make(domain.Collection, 0, len(col))
	found := false
	for _, e := range col {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return false
	}
	if err := s.sync.ReplaceCollection(ctx, typ, kept); err != nil {
		s.logger.Error().Err(err).Str("entity", string(typ)).Str("id", id).Msg("Failed to persist delete")
		return false
	}
	s.pushRemote(typ)
	return true
}

// pushRemote replicates the current collection to the remote backend in the
// background. The local write already succeeded; an unreachable backend only
// costs freshness, so the fallback is a no-op.
func (s *EntityStore) pushRemote(typ domain.EntityType) {
	if s.remote == nil || s.guard == nil {
		return
	}
	col := s.sync.GetWithFallback(typ)
	go func() {
		_, err := Guarded(context.Background(), s.guard,
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, s.remote.PushCollection(ctx, typ, col)
			},
			func(context.Context) (struct{}, error) {
				return struct{}{}, nil
			},
			"push_"+string(typ),
		)
		if err != nil {
			s.logger.Warn().Err(err).Str("entity", string(typ)).Msg("Remote push failed")
		}
	}()
}

func applyFields(e *domain.Entity, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case fieldStoreID:
			if s, ok := v.(string); ok {
				e.StoreID = s
				continue
			}
		case fieldOwnerID:
			if s, ok := v.(string); ok {
				e.OwnerID = s
				continue
			}
		case fieldSubdomain:
			if s, ok := v.(string); ok {
				e.Subdomain = s
				continue
			}
		}
		if e.Fields == nil {
			e.Fields = make(map[string]any)
		}
		e.Fields[k] = v
	}
}
