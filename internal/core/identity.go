package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calder-labs/hypermem/internal/model"
)

// IdentityParams holds parameters for creating an identity. ID is
// optional; one is generated when absent.
type IdentityParams struct {
	ID           string
	Name         string
	Type         model.IdentityType
	Capabilities []string
	Preferences  model.Preferences
	Security     model.SecurityConfig
}

// IdentityUpdate carries the mutable identity fields; nil means leave
// unchanged. ID and Address are immutable and have no update path.
type IdentityUpdate struct {
	Name         *string
	Capabilities []string
	Preferences  *model.Preferences
	Security     *model.SecurityConfig
}

// CreateIdentity registers a new identity and assigns its hyperbolic
// address. Supplying an id that exists, or was ever deleted, fails
// with a duplicate-id error; a derivation clash fails with an address
// collision. Nothing is mutated on failure.
func (c *Core) CreateIdentity(p IdentityParams) (*model.Identity, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: identity name is required", model.ErrValidation)
	}
	if p.Type == "" {
		p.Type = model.IdentityAI
	}
	if !model.ValidIdentityTypes[p.Type] {
		return nil, fmt.Errorf("%w: identity type %q", model.ErrValidation, p.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := c.state.Identities[id]; ok {
		return nil, fmt.Errorf("%w: identity %q", model.ErrDuplicateID, id)
	}
	if c.state.Tombstones[id] {
		return nil, fmt.Errorf("%w: identity %q was deleted and ids are never reused", model.ErrDuplicateID, id)
	}

	addr, err := c.deriver.GetOrAssign(id)
	if err != nil {
		return nil, err
	}
	if err := c.index.Insert(id, addr.Point); err != nil {
		c.deriver.Release(id)
		return nil, fmt.Errorf("index identity: %w", err)
	}

	now := time.Now().UTC()
	ident := &model.Identity{
		ID:           id,
		Name:         p.Name,
		Type:         p.Type,
		Capabilities: append([]string(nil), p.Capabilities...),
		Preferences:  p.Preferences,
		Address:      addr,
		Security:     p.Security,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.state.Identities[id] = ident
	c.log.Info("identity created", zap.String("id", id), zap.String("type", string(p.Type)))
	return ident.Clone(), nil
}

// GetIdentity returns the identity with the given id.
func (c *Core) GetIdentity(id string) (*model.Identity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ident, ok := c.state.Identities[id]
	if !ok {
		return nil, fmt.Errorf("%w: identity %q", model.ErrNotFound, id)
	}
	return ident.Clone(), nil
}

// UpdateIdentity applies the partial update to the mutable fields.
func (c *Core) UpdateIdentity(id string, upd IdentityUpdate) (*model.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ident, ok := c.state.Identities[id]
	if !ok {
		return nil, fmt.Errorf("%w: identity %q", model.ErrNotFound, id)
	}
	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, fmt.Errorf("%w: identity name cannot be empty", model.ErrValidation)
		}
		ident.Name = *upd.Name
	}
	if upd.Capabilities != nil {
		ident.Capabilities = append([]string(nil), upd.Capabilities...)
	}
	if upd.Preferences != nil {
		ident.Preferences = *upd.Preferences
	}
	if upd.Security != nil {
		ident.Security = *upd.Security
	}
	ident.UpdatedAt = time.Now().UTC()
	return ident.Clone(), nil
}

// DeleteIdentity tombstones the identity. The id can never be
// recreated.
func (c *Core) DeleteIdentity(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.Identities[id]; !ok {
		return fmt.Errorf("%w: identity %q", model.ErrNotFound, id)
	}
	if err := c.index.Remove(id); err != nil {
		return fmt.Errorf("unindex identity: %w", err)
	}
	c.deriver.Release(id)
	delete(c.state.Identities, id)
	c.state.Tombstones[id] = true
	c.log.Info("identity deleted", zap.String("id", id))
	return nil
}
