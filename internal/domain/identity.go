package domain

// Role classifies a resolved identity.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleMerchant Role = "merchant"
	RoleCustomer Role = "customer"
)

// CredentialRecord is one known offline credential pair.
type CredentialRecord struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// Identity is a resolved user identity. When the remote backend is
// unreachable the ID is a locally generated synthetic identifier that stays
// stable for the same normalized email across sessions.
type Identity struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Synthetic  bool      `json:"synthetic,omitempty"`
	ResolvedAt Timestamp `json:"resolvedAt"`
}
