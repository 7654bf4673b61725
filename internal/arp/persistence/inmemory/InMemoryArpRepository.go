package persistence_inmemory

import (
	"sync"

	"github.com/internet2/shibboleth-go-components/internal/arp"
)

// InMemoryArpRepository is a map-backed policy store. It is the reference
// backend for tests and single-node deployments; policies do not survive a
// restart.
type InMemoryArpRepository struct {
	mu     sync.RWMutex
	site   *arp.Arp
	byUser map[string]*arp.Arp
}

// NewInMemoryArpRepository creates an empty in-memory policy store.
func NewInMemoryArpRepository() *InMemoryArpRepository {
	return &InMemoryArpRepository{byUser: make(map[string]*arp.Arp)}
}

// AllPolicies returns the site policy followed by the principal's policy.
func (r *InMemoryArpRepository) AllPolicies(principal string) ([]*arp.Arp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var policies []*arp.Arp
	if r.site != nil {
		policies = append(policies, r.site)
	}
	if user, ok := r.byUser[principal]; ok {
		policies = append(policies, user)
	}
	return policies, nil
}

// UserPolicy returns the policy owned by the principal, or nil.
func (r *InMemoryArpRepository) UserPolicy(principal string) (*arp.Arp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[principal], nil
}

// SitePolicy returns the site-wide policy, or nil.
func (r *InMemoryArpRepository) SitePolicy() (*arp.Arp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.site, nil
}

// Update inserts or replaces a policy.
func (r *InMemoryArpRepository) Update(policy *arp.Arp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if policy.IsSitePolicy() {
		r.site = policy
		return nil
	}
	r.byUser[policy.Principal()] = policy
	return nil
}

// Remove deletes a policy from the store.
func (r *InMemoryArpRepository) Remove(policy *arp.Arp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if policy.IsSitePolicy() {
		r.site = nil
		return nil
	}
	delete(r.byUser, policy.Principal())
	return nil
}

// Destroy clears the store.
func (r *InMemoryArpRepository) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.site = nil
	r.byUser = make(map[string]*arp.Arp)
}
