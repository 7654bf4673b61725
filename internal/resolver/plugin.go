package resolver

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for the resolver layer.
var (
	// ErrConfiguration indicates an unusable resolver configuration.
	ErrConfiguration = errors.New("resolver configuration error")

	// ErrResolution indicates a plug-in failed while resolving. The failure
	// is isolated to the attribute being resolved, never the whole request.
	ErrResolution = errors.New("resolution plug-in failure")
)

// PlugInKind discriminates the two node roles in the dependency graph. The
// resolver's graph walk switches on this tag; no runtime type tests are
// involved.
type PlugInKind int

const (
	// KindAttributeDefinition marks a plug-in that derives the values of one
	// named attribute, possibly from other plug-ins' results.
	KindAttributeDefinition PlugInKind = iota

	// KindDataConnector marks a plug-in that fetches a raw attribute set for
	// a principal from an external source.
	KindDataConnector
)

func (k PlugInKind) String() string {
	switch k {
	case KindAttributeDefinition:
		return "attribute definition"
	case KindDataConnector:
		return "data connector"
	default:
		return "unknown"
	}
}

// ResolutionPlugIn is the contract every node in the dependency graph
// fulfills: identity, cache lifetime, failure policy, and the ids of the
// plug-ins it depends on.
type ResolutionPlugIn interface {
	// ID returns the plug-in's unique id. For attribute definitions the id
	// is the name of the attribute it resolves.
	ID() string

	// Kind returns the plug-in's role in the graph.
	Kind() PlugInKind

	// TTL returns the cache lifetime of this plug-in's results in seconds.
	// Zero or negative disables caching.
	TTL() int64

	// PropagateErrors reports whether a failure of this plug-in aborts
	// resolution of its dependents. When false a failure degrades to an
	// empty result.
	PropagateErrors() bool

	// AttributeDefinitionDependencyIDs lists the attribute definitions this
	// plug-in needs resolved first.
	AttributeDefinitionDependencyIDs() []string

	// DataConnectorDependencyIDs lists the data connectors this plug-in
	// needs resolved first.
	DataConnectorDependencyIDs() []string
}

// DataConnectorPlugIn produces a raw attribute set for a principal.
type DataConnectorPlugIn interface {
	ResolutionPlugIn

	// FailoverDependencyID names the connector consulted when this one
	// fails, or empty for none.
	FailoverDependencyID() string

	// Resolve fetches the principal's raw attributes. The depends bundle
	// holds this connector's own declared dependencies, fully resolved.
	Resolve(principal, requester string, depends *Dependencies) (RawAttributes, error)
}

// AttributeDefinitionPlugIn populates the values of one named attribute in
// place.
type AttributeDefinitionPlugIn interface {
	ResolutionPlugIn

	// Resolve fills in the attribute's values from the depends bundle.
	Resolve(attribute *ResolverAttribute, principal, requester string, depends *Dependencies) error
}

// BasePlugIn carries the configuration-derived metadata shared by every
// plug-in implementation; providers embed it.
type BasePlugIn struct {
	id              string
	kind            PlugInKind
	ttl             int64
	propagateErrors bool
	attributeDeps   []string
	connectorDeps   []string
}

// NewBasePlugIn builds plug-in metadata from a parsed configuration entry.
func NewBasePlugIn(cfg PlugInConfig, kind PlugInKind) BasePlugIn {
	return BasePlugIn{
		id:              cfg.ID,
		kind:            kind,
		ttl:             cfg.TTL,
		propagateErrors: cfg.PropagateErrors,
		attributeDeps:   append([]string(nil), cfg.AttributeDependencyIDs...),
		connectorDeps:   append([]string(nil), cfg.ConnectorDependencyIDs...),
	}
}

func (b *BasePlugIn) ID() string                                 { return b.id }
func (b *BasePlugIn) Kind() PlugInKind                           { return b.kind }
func (b *BasePlugIn) TTL() int64                                 { return b.ttl }
func (b *BasePlugIn) PropagateErrors() bool                      { return b.propagateErrors }
func (b *BasePlugIn) AttributeDefinitionDependencyIDs() []string { return b.attributeDeps }
func (b *BasePlugIn) DataConnectorDependencyIDs() []string       { return b.connectorDeps }

// ProviderFactory constructs a plug-in from its parsed configuration.
type ProviderFactory func(cfg PlugInConfig) (ResolutionPlugIn, error)

// ProviderRegistry maps provider kind strings, the element names of the
// resolver configuration, to plug-in constructors. All supported kinds are
// registered explicitly at startup.
type ProviderRegistry struct {
	mu        sync.Mutex
	factories map[string]ProviderFactory
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{factories: make(map[string]ProviderFactory)}
}

// Register binds a factory to a provider kind, replacing any previous
// binding.
func (r *ProviderRegistry) Register(kind string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// New constructs the plug-in described by cfg. An unregistered kind is a
// configuration error.
func (r *ProviderRegistry) New(cfg PlugInConfig) (ResolutionPlugIn, error) {
	r.mu.Lock()
	factory, ok := r.factories[cfg.Kind]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown plug-in kind %q", ErrConfiguration, cfg.Kind)
	}
	return factory(cfg)
}
