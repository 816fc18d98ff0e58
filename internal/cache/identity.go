package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"imagevault/internal/model"
)

// IdentityTTL bounds how long an email to owner mapping may be served stale.
const IdentityTTL = 5 * time.Minute

// CachedIdentity is the subset of an identity that is safe to keep outside
// the database. Secrets never leave MySQL.
type CachedIdentity struct {
	ID        uuid.UUID  `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
}

// IdentityCache keeps identities keyed by email.
type IdentityCache struct {
	store Store
	ttl   time.Duration
}

// NewIdentityCache wraps store. A nil store disables caching.
func NewIdentityCache(store Store) *IdentityCache {
	return &IdentityCache{store: store, ttl: IdentityTTL}
}

// Get returns the cached identity for email, or nil on a miss.
func (c *IdentityCache) Get(ctx context.Context, email string) *CachedIdentity {
	if c == nil || c.store == nil {
		return nil
	}
	data, _ := c.store.Get(ctx, identityKey(email))
	if data == nil {
		return nil
	}
	var ci CachedIdentity
	if err := json.Unmarshal(data, &ci); err != nil {
		return nil
	}
	return &ci
}

// Put caches the non-secret fields of identity.
func (c *IdentityCache) Put(ctx context.Context, identity *model.Identity) {
	if c == nil || c.store == nil || identity == nil {
		return
	}
	payload, err := json.Marshal(FromIdentity(identity))
	if err != nil {
		return
	}
	_ = c.store.Set(ctx, identityKey(identity.Email), payload, c.ttl)
}

// Evict drops any cached entry for email.
func (c *IdentityCache) Evict(ctx context.Context, email string) {
	if c == nil || c.store == nil {
		return
	}
	_ = c.store.Delete(ctx, identityKey(email))
}

// FromIdentity copies the cacheable fields of identity.
func FromIdentity(identity *model.Identity) CachedIdentity {
	return CachedIdentity{
		ID:        identity.ID,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Email:     identity.Email,
		Role:      identity.Role,
	}
}

func identityKey(email string) string {
	return "identity:" + email
}
