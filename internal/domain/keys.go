package domain

import "strings"

// Persistence and channel keys shared by both storage tiers and the
// broadcast transports. Every context derives the same keys, so a collection
// written by one window is found by every other.
const (
	keyPrefix    = "storefront_"
	signalPrefix = keyPrefix + "sync_"

	// CurrentIdentityKey holds the most recently resolved offline identity.
	CurrentIdentityKey = keyPrefix + "current_identity"

	identityMappingPrefix = keyPrefix + "identity_"
)

func plural(typ EntityType) string {
	if typ == EntityCategory {
		return "categories"
	}
	return string(typ) + "s"
}

// CollectionKey returns the well-known durable/volatile tier key for a type,
// e.g. "storefront_stores".
func CollectionKey(typ EntityType) string {
	return keyPrefix + plural(typ)
}

// SignalChannel returns the change-event channel name for a type, prefixed to
// mark it as a sync signal rather than a data key.
func SignalChannel(typ EntityType) string {
	return signalPrefix + plural(typ)
}

// NormalizeEmail canonicalizes a credential identifier before it is used as a
// mapping key: lowercased, surrounding whitespace removed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IdentityMappingKey returns the persistence key for the synthetic-id mapping
// of one normalized email.
func IdentityMappingKey(email string) string {
	return identityMappingPrefix + NormalizeEmail(email)
}
