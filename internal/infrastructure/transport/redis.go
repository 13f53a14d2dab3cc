package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const contextChannelPrefix = "storefront_ctx_"

// changeEnvelope is the wire form of a change event on the signal channels.
type changeEnvelope struct {
	Entity  domain.EntityType `json:"entity"`
	Origin  string            `json:"origin"`
	Payload json.RawMessage   `json:"payload"`
}

// RedisTransport implements both transports over Redis pub/sub. Change
// events go to one signal channel per entity type; direct messages go to a
// per-context channel. Delivery is fire-and-forget: a context that is not
// subscribed at publish time never sees the event, matching the
// no-delivery-guarantee contract between contexts that are not
// simultaneously open.
type RedisTransport struct {
	client redis.UniversalClient
	id     string
	logger zerolog.Logger

	changeSub *redis.PubSub
	msgSub    *redis.PubSub
}

var _ ports.ChangeFeed = (*RedisTransport)(nil)
var _ ports.Messenger = (*RedisTransport)(nil)

// NewRedisTransport creates a transport endpoint for one context.
func NewRedisTransport(client redis.UniversalClient, contextID string, logger zerolog.Logger) *RedisTransport {
	return &RedisTransport{
		client: client,
		id:     contextID,
		logger: logger,
	}
}

// Addr returns this context's id.
func (t *RedisTransport) Addr() string { return t.id }

// Publish sends the change event to the type's signal channel.
func (t *RedisTransport) Publish(ctx context.Context, event ports.ChangeEvent) error {
	if event.Origin == "" {
		event.Origin = t.id
	}
	env := changeEnvelope{
		Entity:  event.Entity,
		Origin:  event.Origin,
		Payload: json.RawMessage(event.Payload),
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	if err := t.client.Publish(ctx, domain.SignalChannel(event.Entity), b).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Subscribe listens on every signal channel and forwards events that did not
// originate from this context.
func (t *RedisTransport) Subscribe(ctx context.Context, fn func(ports.ChangeEvent)) error {
	channels := make([]string, 0, len(domain.EntityTypes))
	for _, typ := range domain.EntityTypes {
		channels = append(channels, domain.SignalChannel(typ))
	}
	sub := t.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to signal channels: %w", err)
	}
	t.changeSub = sub

	go func() {
		for msg := range sub.Channel() {
			var env changeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				t.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Ignoring malformed change event")
				continue
			}
			if env.Origin == t.id {
				continue
			}
			fn(ports.ChangeEvent{Entity: env.Entity, Payload: []byte(env.Payload), Origin: env.Origin})
		}
	}()
	return nil
}

// Send publishes a direct message to the addressed context's channel. Nobody
// listening means the message is lost, which is acceptable for this
// best-effort protocol.
func (t *RedisTransport) Send(ctx context.Context, to string, msg *domain.Message) error {
	if msg.From == "" {
		msg.From = t.id
	}
	b, err := domain.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := t.client.Publish(ctx, contextChannelPrefix+to, b).Err(); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Receive listens on this context's own channel. Unknown message types are
// dropped by the decoder.
func (t *RedisTransport) Receive(ctx context.Context, fn func(*domain.Message)) error {
	sub := t.client.Subscribe(ctx, contextChannelPrefix+t.id)
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to context channel: %w", err)
	}
	t.msgSub = sub

	go func() {
		for raw := range sub.Channel() {
			msg, ok := domain.DecodeMessage([]byte(raw.Payload))
			if !ok {
				continue
			}
			fn(msg)
		}
	}()
	return nil
}

// Close tears down both subscriptions.
func (t *RedisTransport) Close() error {
	if t.changeSub != nil {
		if err := t.changeSub.Close(); err != nil {
			return err
		}
	}
	if t.msgSub != nil {
		return t.msgSub.Close()
	}
	return nil
}
