package arp

// Repository is the pluggable store for attribute release policies. A store
// holds at most one site-wide policy plus one policy per principal.
//
// AllPolicies returns every policy applicable to the principal: the site
// policy (if any) and the principal's own policy, in that order. A missing
// policy is not an error; implementations return what exists. Storage-level
// failures wrap ErrRepository.
type Repository interface {
	// AllPolicies returns the site policy plus the principal's policy.
	AllPolicies(principal string) ([]*Arp, error)

	// UserPolicy returns the policy owned by the principal, or nil.
	UserPolicy(principal string) (*Arp, error)

	// SitePolicy returns the site-wide policy, or nil.
	SitePolicy() (*Arp, error)

	// Update inserts or replaces a policy, keyed by its principal or site
	// scope.
	Update(policy *Arp) error

	// Remove deletes a policy from the store. Removing a policy that does
	// not exist is not an error.
	Remove(policy *Arp) error

	// Destroy releases any resources held by the store.
	Destroy()
}
