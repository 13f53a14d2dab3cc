package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrCredentialsRejected is returned when every matching strategy has been
// exhausted. Only reachable with the default strategy disabled.
var ErrCredentialsRejected = errors.New("credentials rejected")

// DefaultCredentials is the fixed set of offline credential records known to
// the resolver out of the box.
func DefaultCredentials() []domain.CredentialRecord {
	return []domain.CredentialRecord{
		{ID: "user_local_admin", Email: "admin@storefront.local", Password: "admin123", Name: "Local Admin", Role: domain.RoleAdmin},
		{ID: "user_local_merchant", Email: "merchant@storefront.local", Password: "merchant123", Name: "Local Merchant", Role: domain.RoleMerchant},
		{ID: "user_local_customer", Email: "customer@storefront.local", Password: "customer123", Name: "Local Customer", Role: domain.RoleCustomer},
	}
}

// syntheticMapping is the persisted email-to-id record. Created at most once
// per normalized email and never overwritten, so downstream entities keyed by
// the id stay attached to the same owner across sessions.
type syntheticMapping struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	CreatedAt domain.Timestamp `json:"createdAt"`
}

// IdentityResolver maps arbitrary input credentials to a stable, persisted
// identity while the remote backend cannot authenticate anyone. Matching
// strategies run in order, first success wins, each strictly more permissive
// than the last; the final unconditional admin strategy exists so a local
// operator can never be locked out, and can be disabled.
type IdentityResolver struct {
	durable      ports.Tier
	known        []domain.CredentialRecord
	allowDefault bool
	logger       zerolog.Logger
	newID        func() string
}

// NewIdentityResolver creates a resolver over the durable tier. A nil or
// empty known set falls back to DefaultCredentials.
func NewIdentityResolver(durable ports.Tier, known []domain.CredentialRecord, logger zerolog.Logger) *IdentityResolver {
	if len(known) == 0 {
		known = DefaultCredentials()
	}
	return &IdentityResolver{
		durable:      durable,
		known:        known,
		allowDefault: true,
		logger:       logger,
		newID: func() string {
			suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
			return fmt.Sprintf("user_%d_%s", time.Now().UnixMilli(), suffix)
		},
	}
}

// DisableDefaultStrategy turns off the unconditional admin match, making the
// rejected-credentials outcome reachable.
func (r *IdentityResolver) DisableDefaultStrategy() {
	r.allowDefault = false
}

func (r *IdentityResolver) byRole(role domain.Role) *domain.CredentialRecord {
	for i := range r.known {
		if r.known[i].Role == role {
			return &r.known[i]
		}
	}
	return nil
}

// Resolve matches the credential pair against the ordered strategies and
// persists the outcome as the current resolved identity.
func (r *IdentityResolver) Resolve(email, password string) (*domain.Identity, error) {
	trimmedEmail := strings.TrimSpace(email)
	trimmedPassword := strings.TrimSpace(password)

	type strategy struct {
		name  string
		match func() *domain.CredentialRecord
	}

	strategies := []strategy{
		{"exact", func() *domain.CredentialRecord {
			for i := range r.known {
				if r.known[i].Email == email && r.known[i].Password == password {
					return &r.known[i]
				}
			}
			return nil
		}},
		{"trimmed", func() *domain.CredentialRecord {
			for i := range r.known {
				if r.known[i].Email == trimmedEmail && r.known[i].Password == trimmedPassword {
					return &r.known[i]
				}
			}
			return nil
		}},
		{"case_insensitive", func() *domain.CredentialRecord {
			for i := range r.known {
				if strings.EqualFold(r.known[i].Email, trimmedEmail) && r.known[i].Password == trimmedPassword {
					return &r.known[i]
				}
			}
			return nil
		}},
		{"role_marker", func() *domain.CredentialRecord {
			// Secret is deliberately not checked at this tier. The exact
			// markers run before the generic "store"/"shop" substrings,
			// which would otherwise swallow any address at a
			// storefront.local-style domain.
			lower := strings.ToLower(trimmedEmail)
			switch {
			case strings.Contains(lower, "admin"):
				return r.byRole(domain.RoleAdmin)
			case strings.Contains(lower, "merchant"):
				return r.byRole(domain.RoleMerchant)
			case strings.Contains(lower, "customer"):
				return r.byRole(domain.RoleCustomer)
			case strings.Contains(lower, "store"), strings.Contains(lower, "shop"):
				return r.byRole(domain.RoleMerchant)
			}
			return nil
		}},
		{"default_admin", func() *domain.CredentialRecord {
			if !r.allowDefault {
				return nil
			}
			return r.byRole(domain.RoleAdmin)
		}},
	}

	for _, s := range strategies {
		rec := s.match()
		if rec == nil {
			continue
		}
		identity, err := r.identityFor(rec, trimmedEmail)
		if err != nil {
			return nil, err
		}
		r.logger.Info().
			Str("strategy", s.name).
			Str("role", string(rec.Role)).
			Str("identityId", identity.ID).
			Msg("Resolved offline identity")
		if err := r.persistCurrent(identity); err != nil {
			r.logger.Error().Err(err).Msg("Failed to persist resolved identity")
		}
		return identity, nil
	}

	return nil, ErrCredentialsRejected
}

// identityFor builds the identity for a matched record. Merchant identities
// get a synthetic id stabilized per normalized input email, because stores
// and products are keyed by their owner id and must stay attached to the
// same owner across sessions.
func (r *IdentityResolver) identityFor(rec *domain.CredentialRecord, inputEmail string) (*domain.Identity, error) {
	identity := &domain.Identity{
		ID:         rec.ID,
		Email:      rec.Email,
		Name:       rec.Name,
		Role:       rec.Role,
		ResolvedAt: domain.Now(),
	}
	if inputEmail != "" {
		identity.Email = inputEmail
	}
	if rec.Role == domain.RoleMerchant {
		id, err := r.syntheticFor(identity.Email)
		if err != nil {
			return nil, err
		}
		identity.ID = id
		identity.Synthetic = true
	}
	return identity, nil
}

// syntheticFor returns the persisted synthetic id for a normalized email,
// minting and persisting it on first use. An existing mapping is never
// overwritten.
func (r *IdentityResolver) syntheticFor(email string) (string, error) {
	key := domain.IdentityMappingKey(email)
	blob, err := r.durable.Get(key)
	if err != nil {
		return "", fmt.Errorf("failed to read identity mapping: %w", err)
	}
	if len(blob) > 0 {
		var m syntheticMapping
		if err := json.Unmarshal(blob, &m); err == nil && m.ID != "" {
			return m.ID, nil
		}
		r.logger.Error().Str("key", key).Msg("Malformed identity mapping, minting a replacement")
	}

	m := syntheticMapping{
		ID:        r.newID(),
		Email:     domain.NormalizeEmail(email),
		CreatedAt: domain.Now(),
	}
	out, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode identity mapping: %w", err)
	}
	if err := r.durable.Set(key, out); err != nil {
		return "", fmt.Errorf("failed to persist identity mapping: %w", err)
	}
	return m.ID, nil
}

func (r *IdentityResolver) persistCurrent(identity *domain.Identity) error {
	blob, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := r.durable.Set(domain.CurrentIdentityKey, blob); err != nil {
		return fmt.Errorf("failed to persist identity: %w", err)
	}
	return nil
}

// Current returns the persisted resolved identity, or nil when nobody is
// resolved. Reads are synchronous and local.
func (r *IdentityResolver) Current() *domain.Identity {
	blob, err := r.durable.Get(domain.CurrentIdentityKey)
	if err != nil || len(blob) == 0 {
		return nil
	}
	var identity domain.Identity
	if err := json.Unmarshal(blob, &identity); err != nil {
		r.logger.Error().Err(err).Msg("Malformed current identity record")
		return nil
	}
	return &identity
}

// SignOut clears the current resolved identity. The synthetic-id mappings
// stay: the same email must resolve to the same identity next time.
func (r *IdentityResolver) SignOut() error {
	return r.durable.Delete(domain.CurrentIdentityKey)
}
