package model

import "time"

// IdentityType classifies who or what an identity represents.
type IdentityType string

const (
	IdentityHuman  IdentityType = "human"
	IdentityAI     IdentityType = "ai"
	IdentitySystem IdentityType = "system"
	IdentityHybrid IdentityType = "hybrid"
)

// ValidIdentityTypes are the allowed identity types.
var ValidIdentityTypes = map[IdentityType]bool{
	IdentityHuman:  true,
	IdentityAI:     true,
	IdentitySystem: true,
	IdentityHybrid: true,
}

// Address is a hyperbolic coordinate plus the derivation path that
// produced it. Assigned once per identity; never changes afterwards.
type Address struct {
	Point []float64 `json:"point"`
	Path  []string  `json:"path"`
}

// Clone returns a deep copy of the address.
func (a Address) Clone() Address {
	return Address{
		Point: append([]float64(nil), a.Point...),
		Path:  append([]string(nil), a.Path...),
	}
}

// Preferences is the fixed identity preference set plus an open
// extension map for forward-compatible custom data.
type Preferences struct {
	Language    string            `json:"language,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
	DefaultTier Tier              `json:"default_tier,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
}

// SecurityConfig holds an identity's security posture.
type SecurityConfig struct {
	EncryptAtRest bool     `json:"encrypt_at_rest"`
	Roles         []string `json:"roles,omitempty"`
}

// Identity is a registered actor in the system. ID and Address are
// immutable after creation.
type Identity struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         IdentityType   `json:"type"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Preferences  Preferences    `json:"preferences"`
	Address      Address        `json:"address"`
	Security     SecurityConfig `json:"security"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the identity.
func (id *Identity) Clone() *Identity {
	c := *id
	c.Capabilities = append([]string(nil), id.Capabilities...)
	c.Address = id.Address.Clone()
	c.Preferences.Custom = cloneStringMap(id.Preferences.Custom)
	c.Security.Roles = append([]string(nil), id.Security.Roles...)
	return &c
}
