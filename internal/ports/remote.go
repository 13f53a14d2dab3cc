package ports

import (
	"context"

	"storefront-sync-layer/internal/domain"
)

// RemoteBackend is the authoritative server-side store. Every call through it
// must go through the resilience guard; callers never assume it is reachable.
type RemoteBackend interface {
	// Ping is the lightweight availability probe.
	Ping(ctx context.Context) error

	// PushCollection replaces the server-side collection for one type.
	PushCollection(ctx context.Context, typ domain.EntityType, col domain.Collection) error

	// PullCollection fetches the server-side collection for one type,
	// optionally narrowed to one tenant subdomain. Returns (nil, nil) when
	// the server holds nothing.
	PullCollection(ctx context.Context, typ domain.EntityType, subdomain string) (domain.Collection, error)
}
