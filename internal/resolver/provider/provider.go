// Package provider contains the built-in plug-in implementations of the
// attribute resolver and the registry wiring them to their configuration
// element names.
package provider

import (
	"database/sql"

	"github.com/internet2/shibboleth-go-components/internal/resolver"
)

// Configuration element names of the built-in providers.
const (
	KindStaticDataConnector             = "StaticDataConnector"
	KindRelationalDatabaseDataConnector = "RelationalDatabaseDataConnector"
	KindSimpleAttributeDefinition       = "SimpleAttributeDefinition"
	KindScopedAttributeDefinition       = "ScopedAttributeDefinition"
	KindRegexAttributeDefinition        = "RegexAttributeDefinition"
)

// DefaultRegistry returns a registry with every built-in provider bound to
// its element name. The database handle backs relational data connectors and
// may be nil when the configuration declares none.
func DefaultRegistry(db *sql.DB) *resolver.ProviderRegistry {
	registry := resolver.NewProviderRegistry()
	registry.Register(KindStaticDataConnector, NewStaticDataConnector)
	registry.Register(KindRelationalDatabaseDataConnector, func(cfg resolver.PlugInConfig) (resolver.ResolutionPlugIn, error) {
		return NewRelationalDatabaseDataConnector(cfg, db)
	})
	registry.Register(KindSimpleAttributeDefinition, NewSimpleAttributeDefinition)
	registry.Register(KindScopedAttributeDefinition, NewScopedAttributeDefinition)
	registry.Register(KindRegexAttributeDefinition, NewRegexAttributeDefinition)
	return registry
}
