// Package resolver implements the attribute resolver: a directed graph of
// pluggable data connectors and attribute definitions that computes attribute
// values for a principal, with per-request memoization and TTL-based
// cross-request caching.
package resolver

// RawAttributes is the unprocessed, directory-style attribute set produced by
// a data connector: attribute name to ordered values.
type RawAttributes map[string][]string

// ResolverAttribute is one attribute under resolution. It is created fresh
// per request, populated by the attribute definition plug-in registered under
// its name, and discarded after the request unless cached.
type ResolverAttribute struct {
	name           string
	lifetime       int64
	resolved       bool
	dependencyOnly bool
	values         []string

	// ValueHandler optionally post-formats values on read, e.g. for
	// type-specific serialization. Nil means values pass through as-is.
	ValueHandler func(value string) string
}

// NewResolverAttribute creates an unresolved attribute with the given name.
func NewResolverAttribute(name string) *ResolverAttribute {
	return &ResolverAttribute{name: name}
}

func newDependencyOnlyAttribute(name string) *ResolverAttribute {
	return &ResolverAttribute{name: name, dependencyOnly: true}
}

// Name returns the attribute's name, which is also the id of the definition
// plug-in that resolves it.
func (a *ResolverAttribute) Name() string { return a.name }

// Lifetime returns the attribute's cache lifetime in seconds.
func (a *ResolverAttribute) Lifetime() int64 { return a.lifetime }

// SetLifetime sets the attribute's cache lifetime in seconds.
func (a *ResolverAttribute) SetLifetime(seconds int64) { a.lifetime = seconds }

// Resolved reports whether resolution has completed for this attribute.
// Callers may pre-populate an attribute and mark it resolved to bypass the
// resolver.
func (a *ResolverAttribute) Resolved() bool { return a.resolved }

// SetResolved marks the attribute as resolved.
func (a *ResolverAttribute) SetResolved() { a.resolved = true }

// DependencyOnly reports whether the attribute exists solely because another
// attribute depends on it. Dependency-only attributes are never visible in
// resolution output.
func (a *ResolverAttribute) DependencyOnly() bool { return a.dependencyOnly }

// AddValue appends a value, preserving insertion order.
func (a *ResolverAttribute) AddValue(value string) {
	a.values = append(a.values, value)
}

// Values returns the attribute's values in order, formatted through the
// value handler when one is registered.
func (a *ResolverAttribute) Values() []string {
	if a.ValueHandler == nil {
		return a.values
	}
	out := make([]string, len(a.values))
	for i, v := range a.values {
		out[i] = a.ValueHandler(v)
	}
	return out
}

// resolveFromCached copies a previously resolved attribute's state into this
// one.
func (a *ResolverAttribute) resolveFromCached(cached *ResolverAttribute) {
	a.lifetime = cached.lifetime
	a.values = append([]string(nil), cached.values...)
	a.ValueHandler = cached.ValueHandler
	a.resolved = true
}

// AttributeSet is an ordered set of attributes keyed by name.
type AttributeSet struct {
	order  []string
	byName map[string]*ResolverAttribute
}

// NewAttributeSet creates a set containing one unresolved attribute per
// given name.
func NewAttributeSet(names ...string) *AttributeSet {
	s := &AttributeSet{byName: make(map[string]*ResolverAttribute, len(names))}
	for _, name := range names {
		s.Add(NewResolverAttribute(name))
	}
	return s
}

// Add inserts an attribute; an attribute with the same name is replaced in
// place, keeping its position.
func (s *AttributeSet) Add(attr *ResolverAttribute) {
	if _, ok := s.byName[attr.Name()]; !ok {
		s.order = append(s.order, attr.Name())
	}
	s.byName[attr.Name()] = attr
}

// Get returns the attribute with the given name, or nil.
func (s *AttributeSet) Get(name string) *ResolverAttribute {
	return s.byName[name]
}

// Remove deletes the attribute with the given name.
func (s *AttributeSet) Remove(name string) {
	if _, ok := s.byName[name]; !ok {
		return
	}
	delete(s.byName, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Names returns the attribute names in order.
func (s *AttributeSet) Names() []string {
	return append([]string(nil), s.order...)
}

// ToMap flattens the set into name-to-values form for policy filtering.
func (s *AttributeSet) ToMap() map[string][]string {
	out := make(map[string][]string, len(s.order))
	for _, name := range s.order {
		out[name] = append([]string(nil), s.byName[name].Values()...)
	}
	return out
}

// Dependencies bundles the already-resolved results a plug-in declared it
// needs. It is built bottom-up by the resolver and immutable once handed to
// a plug-in's Resolve call.
type Dependencies struct {
	connectors map[string]RawAttributes
	attributes map[string]*ResolverAttribute
}

func newDependencies() *Dependencies {
	return &Dependencies{
		connectors: make(map[string]RawAttributes),
		attributes: make(map[string]*ResolverAttribute),
	}
}

func (d *Dependencies) addConnector(id string, raw RawAttributes) {
	d.connectors[id] = raw
}

func (d *Dependencies) addAttribute(id string, attr *ResolverAttribute) {
	d.attributes[id] = attr
}

// ConnectorResolution returns the raw attribute set produced by the data
// connector dependency with the given id, or nil.
func (d *Dependencies) ConnectorResolution(id string) RawAttributes {
	return d.connectors[id]
}

// AttributeResolution returns the resolved attribute produced by the
// attribute definition dependency with the given id, or nil.
func (d *Dependencies) AttributeResolution(id string) *ResolverAttribute {
	return d.attributes[id]
}

// ConnectorIDs returns the ids of all connector results in the bundle.
func (d *Dependencies) ConnectorIDs() []string {
	out := make([]string, 0, len(d.connectors))
	for id := range d.connectors {
		out = append(out, id)
	}
	return out
}
