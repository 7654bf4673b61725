package provider

import (
	"fmt"
	"regexp"

	"github.com/internet2/shibboleth-go-components/internal/resolver"
)

// RegexAttributeDefinition rewrites the source values through a regular
// expression. Values the pattern does not match at all are dropped; matching
// values are expanded through the replacement template, so capture groups
// can extract substrings.
type RegexAttributeDefinition struct {
	resolver.BasePlugIn
	sourceName  string
	pattern     *regexp.Regexp
	replacement string
}

// NewRegexAttributeDefinition builds the definition from its declaration,
// compiling the pattern up front so a bad expression surfaces at load time.
func NewRegexAttributeDefinition(cfg resolver.PlugInConfig) (resolver.ResolutionPlugIn, error) {
	if cfg.Pattern == "" {
		return nil, fmt.Errorf("%w: regex attribute definition (%s) requires a pattern", resolver.ErrConfiguration, cfg.ID)
	}
	pattern, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: regex attribute definition (%s): %v", resolver.ErrConfiguration, cfg.ID, err)
	}
	sourceName := cfg.SourceName
	if sourceName == "" {
		sourceName = cfg.ID
	}
	return &RegexAttributeDefinition{
		BasePlugIn:  resolver.NewBasePlugIn(cfg, resolver.KindAttributeDefinition),
		sourceName:  sourceName,
		pattern:     pattern,
		replacement: cfg.Replacement,
	}, nil
}

// Resolve filters and rewrites the source values.
func (d *RegexAttributeDefinition) Resolve(attribute *resolver.ResolverAttribute, principal, requester string, depends *resolver.Dependencies) error {
	for _, value := range sourceValues(d, d.sourceName, depends) {
		match := d.pattern.FindStringSubmatchIndex(value)
		if match == nil {
			continue
		}
		if d.replacement == "" {
			attribute.AddValue(value)
			continue
		}
		attribute.AddValue(string(d.pattern.ExpandString(nil, d.replacement, value, match)))
	}
	return nil
}
