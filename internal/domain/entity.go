package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies one of the synchronized collections.
type EntityType string

const (
	EntityStore    EntityType = "store"
	EntityProduct  EntityType = "product"
	EntityCategory EntityType = "category"
	EntityOrder    EntityType = "order"
	EntityCustomer EntityType = "customer"
)

// EntityTypes lists every synchronized collection in a stable order.
var EntityTypes = []EntityType{EntityStore, EntityProduct, EntityCategory, EntityOrder, EntityCustomer}

// Timestamp wraps time.Time so that every serialized entity carries its
// timestamps as RFC3339 strings and every read rehydrates them back into
// real time values. All entity (de)serialization goes through this one type;
// no call site re-implements the conversion.
type Timestamp struct {
	time.Time
}

// Now returns the current instant as a Timestamp, truncated to millisecond
// precision so a value survives a serialize/deserialize round trip unchanged.
func Now() Timestamp {
	return Timestamp{time.Now().UTC().Truncate(time.Millisecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts an RFC3339 string, a unix-millisecond number written
// by older payloads, or an empty value. A malformed timestamp degrades to the
// zero value rather than failing the whole collection read.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			t.Time = time.Time{}
			return nil
		}
		t.Time = parsed.UTC()
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	t.Time = time.Time{}
	return nil
}

// Entity is one record in a synchronized collection. Tenant references are
// first-class so that predicate scans do not have to dig into Fields; all
// other domain attributes live in Fields.
type Entity struct {
	ID        string         `json:"id"`
	Type      EntityType     `json:"type"`
	StoreID   string         `json:"storeId,omitempty"`
	OwnerID   string         `json:"ownerId,omitempty"`
	Subdomain string         `json:"subdomain,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt Timestamp      `json:"createdAt"`
	UpdatedAt Timestamp      `json:"updatedAt"`
}

// NewID generates an identifier of the form {type}_{unix-ms}_{suffix}.
// Identifiers are never reused; the random suffix disambiguates ids minted
// within the same millisecond.
func NewID(typ EntityType) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", typ, time.Now().UnixMilli(), suffix)
}

// Collection is an ordered sequence of entities of one type, persisted as a
// single serialized blob under the type's well-known key. Insertion order is
// preserved; all queries are full scans.
type Collection []*Entity

// Predicate filters a collection scan.
type Predicate func(*Entity) bool

// ByStoreID matches entities belonging to one store.
func ByStoreID(id string) Predicate {
	return func(e *Entity) bool { return e.StoreID == id }
}

// ByOwnerID matches entities owned by one identity.
func ByOwnerID(id string) Predicate {
	return func(e *Entity) bool { return e.OwnerID == id }
}

// BySubdomain matches entities keyed by one tenant subdomain.
func BySubdomain(subdomain string) Predicate {
	return func(e *Entity) bool { return e.Subdomain == subdomain }
}

// Filter returns the entities matching pred, in collection order. A nil
// predicate matches everything.
func (c Collection) Filter(pred Predicate) Collection {
	if pred == nil {
		out := make(Collection, len(c))
		copy(out, c)
		return out
	}
	var out Collection
	for _, e := range c {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// FindByID returns the entity with the given id, or nil.
func (c Collection) FindByID(id string) *Entity {
	for _, e := range c {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// EncodeCollection is the single serialization path for persisted and
// broadcast collections.
func EncodeCollection(c Collection) ([]byte, error) {
	if c == nil {
		c = Collection{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode collection: %w", err)
	}
	return b, nil
}

// DecodeCollection is the single deserialization path. Timestamps are
// rehydrated by the Timestamp codec; a malformed blob returns an error so the
// caller can degrade to an empty collection.
func DecodeCollection(b []byte) (Collection, error) {
	if len(b) == 0 {
		return Collection{}, nil
	}
	var c Collection
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return c, nil
}
