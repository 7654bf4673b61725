/*******************************************************************************
* Copyright (C) 2025 the Shibboleth Go Components Authors
*
* Permission is hereby granted, free of charge, to any person obtaining
* a copy of this software and associated documentation files (the
* "Software"), to deal in the Software without restriction, including
* without limitation the rights to use, copy, modify, merge, publish,
* distribute, sublicense, and/or sell copies of the Software, and to
* permit persons to whom the Software is furnished to do so, subject to
* the following conditions:
*
* The above copyright notice and this permission notice shall be
* included in all copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
* EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
* MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
* NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE
* LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION
* OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION
* WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*
* SPDX-License-Identifier: MIT
******************************************************************************/

package resolver

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Namespace is the XML namespace of resolver configuration documents.
const Namespace = "urn:mace:shibboleth:resolver:1.0"

// StaticAttributeConfig is one attribute of a static data connector
// declaration.
type StaticAttributeConfig struct {
	Name   string
	Values []string
}

// PlugInConfig is one parsed plug-in declaration. Kind is the declaration's
// element name and selects the provider; the remaining fields are the
// superset of attributes the built-in providers understand, so a provider
// reads only what applies to it.
type PlugInConfig struct {
	Kind            string
	ID              string
	TTL             int64
	PropagateErrors bool
	FailoverID      string

	AttributeDependencyIDs []string
	ConnectorDependencyIDs []string

	// Provider-specific settings.
	SourceName       string
	Scope            string
	Pattern          string
	Replacement      string
	Table            string
	PrincipalColumn  string
	NameColumn       string
	ValueColumn      string
	StaticAttributes []StaticAttributeConfig
}

// XML shapes of a plug-in declaration. Every kind shares the same superset
// shape; the element name carries the provider kind.

type plugInElement struct {
	ID              string `xml:"id,attr"`
	CacheTime       int64  `xml:"cacheTime,attr"`
	PropagateErrors bool   `xml:"propagateErrors,attr"`
	Failover        string `xml:"failover,attr"`

	SourceName      string `xml:"sourceName,attr"`
	Scope           string `xml:"scope,attr"`
	Pattern         string `xml:"pattern,attr"`
	Replacement     string `xml:"replacement,attr"`
	Table           string `xml:"table,attr"`
	PrincipalColumn string `xml:"principalColumn,attr"`
	NameColumn      string `xml:"nameColumn,attr"`
	ValueColumn     string `xml:"valueColumn,attr"`

	AttributeDeps []dependencyElement      `xml:"AttributeDependency"`
	ConnectorDeps []dependencyElement      `xml:"DataConnectorDependency"`
	Attributes    []staticAttributeElement `xml:"Attribute"`
}

type dependencyElement struct {
	Requires string `xml:"requires,attr"`
}

type staticAttributeElement struct {
	Name   string   `xml:"name,attr"`
	Values []string `xml:"Value"`
}

// ParseResolverConfig reads an AttributeResolver document and returns its
// plug-in declarations in document order. Structural XML errors are fatal;
// semantic validation of individual declarations is left to the provider
// factories and the resolver's consistency pass.
func ParseResolverConfig(data []byte) ([]PlugInConfig, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(data)))

	// Locate the document root.
	var root xml.StartElement
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: no AttributeResolver root element", ErrConfiguration)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			root = start
			break
		}
	}
	if root.Name.Local != "AttributeResolver" {
		return nil, fmt.Errorf("%w: unexpected root element %q", ErrConfiguration, root.Name.Local)
	}

	var configs []PlugInConfig
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var el plugInElement
		if err := decoder.DecodeElement(&el, &start); err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %v", ErrConfiguration, start.Name.Local, err)
		}
		configs = append(configs, plugInConfigFromElement(start.Name.Local, el))
	}
	return configs, nil
}

func plugInConfigFromElement(kind string, el plugInElement) PlugInConfig {
	cfg := PlugInConfig{
		Kind:            kind,
		ID:              el.ID,
		TTL:             el.CacheTime,
		PropagateErrors: el.PropagateErrors,
		FailoverID:      el.Failover,
		SourceName:      el.SourceName,
		Scope:           el.Scope,
		Pattern:         el.Pattern,
		Replacement:     el.Replacement,
		Table:           el.Table,
		PrincipalColumn: el.PrincipalColumn,
		NameColumn:      el.NameColumn,
		ValueColumn:     el.ValueColumn,
	}
	for _, dep := range el.AttributeDeps {
		cfg.AttributeDependencyIDs = append(cfg.AttributeDependencyIDs, dep.Requires)
	}
	for _, dep := range el.ConnectorDeps {
		cfg.ConnectorDependencyIDs = append(cfg.ConnectorDependencyIDs, dep.Requires)
	}
	for _, attr := range el.Attributes {
		cfg.StaticAttributes = append(cfg.StaticAttributes, StaticAttributeConfig{
			Name:   attr.Name,
			Values: append([]string(nil), attr.Values...),
		})
	}
	return cfg
}
