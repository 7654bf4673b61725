package provider

import (
	"github.com/internet2/shibboleth-go-components/internal/resolver"
)

// SimpleAttributeDefinition copies values verbatim from its dependencies.
// The sourceName declaration selects which raw attribute to read from
// connector results; it defaults to the plug-in's own id.
type SimpleAttributeDefinition struct {
	resolver.BasePlugIn
	sourceName string
}

// NewSimpleAttributeDefinition builds the definition from its declaration.
func NewSimpleAttributeDefinition(cfg resolver.PlugInConfig) (resolver.ResolutionPlugIn, error) {
	sourceName := cfg.SourceName
	if sourceName == "" {
		sourceName = cfg.ID
	}
	return &SimpleAttributeDefinition{
		BasePlugIn: resolver.NewBasePlugIn(cfg, resolver.KindAttributeDefinition),
		sourceName: sourceName,
	}, nil
}

// Resolve gathers the source attribute's values from every dependency in
// declaration order.
func (d *SimpleAttributeDefinition) Resolve(attribute *resolver.ResolverAttribute, principal, requester string, depends *resolver.Dependencies) error {
	for _, value := range sourceValues(d, d.sourceName, depends) {
		attribute.AddValue(value)
	}
	return nil
}

// sourceValues collects the named attribute's values from the plug-in's
// connector dependencies, then from its attribute dependencies.
func sourceValues(plugIn resolver.ResolutionPlugIn, sourceName string, depends *resolver.Dependencies) []string {
	var values []string
	for _, connectorID := range plugIn.DataConnectorDependencyIDs() {
		raw := depends.ConnectorResolution(connectorID)
		if raw == nil {
			continue
		}
		values = append(values, raw[sourceName]...)
	}
	for _, attributeID := range plugIn.AttributeDefinitionDependencyIDs() {
		dep := depends.AttributeResolution(attributeID)
		if dep == nil {
			continue
		}
		values = append(values, dep.Values()...)
	}
	return values
}
