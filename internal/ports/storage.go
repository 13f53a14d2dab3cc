package ports

// Tier is one persistence backend for serialized collection blobs. Two tiers
// exist per context: a durable one that survives context close and a volatile
// one that lives only as long as the window. Keys are the well-known strings
// from the domain package; values are opaque serialized blobs.
//
// Get returns (nil, nil) when the key is absent. Clear wipes the whole tier
// and is reserved for explicit administrative resets.
type Tier interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
	Clear() error
}
