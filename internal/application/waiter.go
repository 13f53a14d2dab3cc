package application

import (
	"context"
	"time"

	"storefront-sync-layer/internal/domain"

	"github.com/rs/zerolog"
)

const (
	defaultWaitTimeout = 5 * time.Second
	waitPollInterval   = 500 * time.Millisecond
)

// Waiter blocks a mounting view until the data it depends on has arrived in
// this context, bounded by a deadline. It never fails: at the deadline it
// returns whatever is available, possibly empty, because the caller is a
// rendering path that must show some state.
type Waiter struct {
	sync     *SyncManager
	interval time.Duration
	logger   zerolog.Logger
}

// NewWaiter creates a waiter polling on the standard 500ms cadence.
func NewWaiter(syncMgr *SyncManager, logger zerolog.Logger) *Waiter {
	return &Waiter{
		sync:     syncMgr,
		interval: waitPollInterval,
		logger:   logger,
	}
}

// WaitForData polls the sync manager for a type's collection until it is
// non-empty (and, when subdomain is given, contains a matching entity) or
// until maxWait elapses. While the collection stays empty it nudges the
// opener/parent with a data request each round. maxWait <= 0 means the
// default 5s. Returns within maxWait plus one poll interval.
func (w *Waiter) WaitForData(ctx context.Context, typ domain.EntityType, subdomain string, maxWait time.Duration) domain.Collection {
	if maxWait <= 0 {
		maxWait = defaultWaitTimeout
	}
	deadline := time.Now().Add(maxWait)

	for {
		col := w.sync.GetWithFallback(typ)
		if len(col) > 0 {
			if subdomain == "" {
				return col
			}
			if len(col.Filter(domain.BySubdomain(subdomain))) > 0 {
				return col
			}
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			w.logger.Warn().
				Str("entity", string(typ)).
				Str("subdomain", subdomain).
				Int("count", len(col)).
				Msg("Wait deadline reached, returning best-effort data")
			return col
		}
		if len(col) == 0 {
			w.sync.RequestFromParent(ctx, subdomain)
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.interval):
		}
	}
}
