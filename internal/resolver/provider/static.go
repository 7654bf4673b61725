package provider

import (
	"fmt"

	"github.com/internet2/shibboleth-go-components/internal/resolver"
)

// StaticDataConnector serves a fixed attribute set straight from its
// configuration, independent of the principal. Useful for organization-wide
// constants and as a failover target.
type StaticDataConnector struct {
	resolver.BasePlugIn
	failoverID string
	attributes resolver.RawAttributes
}

// NewStaticDataConnector builds the connector from its declaration. At least
// one attribute must be configured.
func NewStaticDataConnector(cfg resolver.PlugInConfig) (resolver.ResolutionPlugIn, error) {
	if len(cfg.StaticAttributes) == 0 {
		return nil, fmt.Errorf("%w: static data connector (%s) declares no attributes", resolver.ErrConfiguration, cfg.ID)
	}
	attributes := make(resolver.RawAttributes, len(cfg.StaticAttributes))
	for _, attr := range cfg.StaticAttributes {
		attributes[attr.Name] = append(attributes[attr.Name], attr.Values...)
	}
	return &StaticDataConnector{
		BasePlugIn: resolver.NewBasePlugIn(cfg, resolver.KindDataConnector),
		failoverID: cfg.FailoverID,
		attributes: attributes,
	}, nil
}

func (c *StaticDataConnector) FailoverDependencyID() string { return c.failoverID }

// Resolve returns a copy of the configured attribute set.
func (c *StaticDataConnector) Resolve(principal, requester string, depends *resolver.Dependencies) (resolver.RawAttributes, error) {
	out := make(resolver.RawAttributes, len(c.attributes))
	for name, values := range c.attributes {
		out[name] = append([]string(nil), values...)
	}
	return out, nil
}
