package ports

import (
	"context"

	"storefront-sync-layer/internal/domain"
)

// ChangeEvent notifies other contexts that the durable tier was mutated for
// one entity type. Payload is the full serialized collection after the write.
// Origin is the writing context's id: the transport never delivers an event
// back to the context that published it, mirroring the platform's storage
// event semantics, so the writer must update its own view synchronously.
type ChangeEvent struct {
	Entity  domain.EntityType
	Payload []byte
	Origin  string
}

// ChangeFeed is the change-event transport.
type ChangeFeed interface {
	Publish(ctx context.Context, event ChangeEvent) error
	Subscribe(ctx context.Context, fn func(ChangeEvent)) error
}

// Messenger is the direct-addressed transport between a context and its
// opener/parent. Addr is this context's own address; Send is best-effort and
// unverified (trusted same-application assumption).
type Messenger interface {
	Addr() string
	Send(ctx context.Context, to string, msg *domain.Message) error
	Receive(ctx context.Context, fn func(*domain.Message)) error
}
