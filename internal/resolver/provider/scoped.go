package provider

import (
	"fmt"

	"github.com/internet2/shibboleth-go-components/internal/resolver"
)

// ScopedAttributeDefinition copies values from its dependencies and attaches
// a fixed scope, producing values of the form value@scope.
type ScopedAttributeDefinition struct {
	resolver.BasePlugIn
	sourceName string
	scope      string
}

// NewScopedAttributeDefinition builds the definition from its declaration.
// The scope is required.
func NewScopedAttributeDefinition(cfg resolver.PlugInConfig) (resolver.ResolutionPlugIn, error) {
	if cfg.Scope == "" {
		return nil, fmt.Errorf("%w: scoped attribute definition (%s) requires a scope", resolver.ErrConfiguration, cfg.ID)
	}
	sourceName := cfg.SourceName
	if sourceName == "" {
		sourceName = cfg.ID
	}
	return &ScopedAttributeDefinition{
		BasePlugIn: resolver.NewBasePlugIn(cfg, resolver.KindAttributeDefinition),
		sourceName: sourceName,
		scope:      cfg.Scope,
	}, nil
}

// Resolve gathers the source values and registers a handler that appends the
// scope on read.
func (d *ScopedAttributeDefinition) Resolve(attribute *resolver.ResolverAttribute, principal, requester string, depends *resolver.Dependencies) error {
	for _, value := range sourceValues(d, d.sourceName, depends) {
		attribute.AddValue(value)
	}
	scope := d.scope
	attribute.ValueHandler = func(value string) string {
		return value + "@" + scope
	}
	return nil
}
