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

// Package arp implements the attribute release policy model and engine. A
// policy decides, per requesting relying party and resource, which attribute
// names and values an identity provider may disclose about a principal.
package arp

import (
	"encoding/xml"
	"fmt"
	"log"
	"net/url"
	"regexp"
)

// Namespace is the XML namespace of attribute release policy documents.
const Namespace = "urn:mace:shibboleth:arp:1.0"

// ReleaseMode is a permit or deny directive carried by a value-release rule.
type ReleaseMode string

const (
	ReleasePermit ReleaseMode = "permit"
	ReleaseDeny   ReleaseMode = "deny"
)

// Matcher pairs a configured value with the identifier of the match function
// used to compare it against request input.
type Matcher struct {
	Value       string
	FunctionURI string
}

// Target describes which (requester, resource) pairs a rule applies to. A
// wildcard target matches everything; otherwise the requester matcher is
// mandatory and a nil resource matcher means "any resource".
type Target struct {
	AnyTarget bool
	Requester *Matcher
	Resource  *Matcher
}

// AttributeValueRule is a release directive for one specific attribute value.
type AttributeValueRule struct {
	Value   string
	Release ReleaseMode
}

// AttributeRule carries the release directives of one attribute within a
// rule: an optional any-value directive plus explicit per-value directives.
type AttributeRule struct {
	Name     string
	AnyValue ReleaseMode // empty when no AnyValue directive is present
	Values   []AttributeValueRule
}

// ReleaseAnyValue reports whether the rule carries an any-value permit
// directive. A deny directive takes the distinct DenyAnyValue path.
func (a *AttributeRule) ReleaseAnyValue() bool {
	return a.AnyValue == ReleasePermit
}

// DenyAnyValue reports whether the rule carries an any-value deny directive.
func (a *AttributeRule) DenyAnyValue() bool {
	return a.AnyValue == ReleaseDeny
}

// Rule is one target plus the attribute directives released (or denied) when
// the target matches. Rules are immutable after unmarshalling.
type Rule struct {
	Description string
	Target      Target
	Attributes  []*AttributeRule
}

// MatchesRequest reports whether this rule's target covers the given
// requester and resource. Evaluation fails closed: an unknown match function
// or a match error is logged and treated as non-match, never raised to the
// caller.
func (r *Rule) MatchesRequest(functions *MatchFunctionRegistry, requester, resource string) bool {
	if r.Target.AnyTarget {
		return true
	}
	if r.Target.Requester == nil {
		return false
	}

	fn := functions.Lookup(r.Target.Requester.FunctionURI)
	if fn == nil {
		log.Printf("🧩 [ARP] Warning: no match function registered for %q, treating rule as non-matching", r.Target.Requester.FunctionURI)
		return false
	}
	ok, err := fn.Match(r.Target.Requester.Value, requester)
	if err != nil {
		log.Printf("🧩 [ARP] Warning: requester match failed (configured=%q requester=%q): %v", r.Target.Requester.Value, requester, err)
		return false
	}
	if !ok {
		return false
	}

	if r.Target.Resource == nil {
		return true
	}
	fn = functions.Lookup(r.Target.Resource.FunctionURI)
	if fn == nil {
		log.Printf("🧩 [ARP] Warning: no match function registered for %q, treating rule as non-matching", r.Target.Resource.FunctionURI)
		return false
	}
	ok, err = fn.Match(r.Target.Resource.Value, resource)
	if err != nil {
		log.Printf("🧩 [ARP] Warning: resource match failed (configured=%q resource=%q): %v", r.Target.Resource.Value, resource, err)
		return false
	}
	return ok
}

// Arp is one attribute release policy: a set of rules scoped either to a
// single principal or to the whole site. A policy is never both
// principal-scoped and site-scoped.
type Arp struct {
	principal  string
	sitePolicy bool

	Description string
	rules       []*Rule
}

// NewArp creates a policy scoped to the given principal.
func NewArp(principal string) *Arp {
	return &Arp{principal: principal}
}

// NewSiteArp creates the site-wide policy.
func NewSiteArp() *Arp {
	return &Arp{sitePolicy: true}
}

// Principal returns the owning principal, or the empty string for the site
// policy.
func (a *Arp) Principal() string { return a.principal }

// IsSitePolicy reports whether this is the site-wide policy.
func (a *Arp) IsSitePolicy() bool { return a.sitePolicy }

// SetPrincipal scopes the policy to a principal, clearing the site flag.
func (a *Arp) SetPrincipal(principal string) {
	a.principal = principal
	a.sitePolicy = false
}

// SetSitePolicy marks the policy as site-wide, clearing the principal.
func (a *Arp) SetSitePolicy() {
	a.sitePolicy = true
	a.principal = ""
}

// AddRule appends a rule to the policy.
func (a *Arp) AddRule(r *Rule) {
	a.rules = append(a.rules, r)
}

// Rules returns the policy's rules in order.
func (a *Arp) Rules() []*Rule { return a.rules }

// MatchingRules collects the rules whose targets cover the given requester
// and resource. A rule instance appears at most once even if the policy
// defensively holds it twice.
func (a *Arp) MatchingRules(functions *MatchFunctionRegistry, requester, resource string) []*Rule {
	seen := make(map[*Rule]bool, len(a.rules))
	var matches []*Rule
	for _, r := range a.rules {
		if seen[r] {
			continue
		}
		if r.MatchesRequest(functions, requester, resource) {
			seen[r] = true
			matches = append(matches, r)
		}
	}
	return matches
}

// XML document shapes for urn:mace:shibboleth:arp:1.0.

type arpDocument struct {
	XMLName     xml.Name      `xml:"urn:mace:shibboleth:arp:1.0 AttributeReleasePolicy"`
	Description string        `xml:"Description,omitempty"`
	Rules       []ruleElement `xml:"Rule"`
}

type ruleElement struct {
	Description string             `xml:"Description,omitempty"`
	Target      targetElement      `xml:"Target"`
	Attributes  []attributeElement `xml:"Attribute"`
}

type targetElement struct {
	AnyTarget   *struct{}       `xml:"AnyTarget"`
	Requester   *matcherElement `xml:"Requester"`
	Resource    *matcherElement `xml:"Resource"`
	AnyResource *struct{}       `xml:"AnyResource"`
}

type matcherElement struct {
	MatchFunction string `xml:"matchFunction,attr,omitempty"`
	Value         string `xml:",chardata"`
}

type attributeElement struct {
	Name     string           `xml:"name,attr"`
	AnyValue *anyValueElement `xml:"AnyValue"`
	Values   []valueElement   `xml:"Value"`
}

type anyValueElement struct {
	Release string `xml:"release,attr,omitempty"`
}

type valueElement struct {
	Release string `xml:"release,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// UnmarshalArpDocument parses an AttributeReleasePolicy document into a
// policy. Malformed targets, unknown release modes, invalid regular
// expressions and non-URL resource values fail here, at load time, with an
// error wrapping ErrMarshalling.
func UnmarshalArpDocument(data []byte) (*Arp, error) {
	var doc arpDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarshalling, err)
	}

	a := &Arp{Description: doc.Description}
	for i, re := range doc.Rules {
		rule, err := unmarshalRule(re)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		a.AddRule(rule)
	}
	return a, nil
}

func unmarshalRule(re ruleElement) (*Rule, error) {
	rule := &Rule{Description: re.Description}

	switch {
	case re.Target.AnyTarget != nil:
		rule.Target = Target{AnyTarget: true}
	case re.Target.Requester != nil:
		requester, err := unmarshalMatcher(re.Target.Requester, ExactSharFunction)
		if err != nil {
			return nil, err
		}
		var resource *Matcher
		if re.Target.Resource != nil && re.Target.AnyResource == nil {
			resource, err = unmarshalMatcher(re.Target.Resource, ResourceTreeFunction)
			if err != nil {
				return nil, err
			}
		}
		rule.Target = Target{Requester: requester, Resource: resource}
	default:
		return nil, fmt.Errorf("%w: target must carry AnyTarget or a Requester", ErrMarshalling)
	}

	for _, ae := range re.Attributes {
		attr, err := unmarshalAttribute(ae)
		if err != nil {
			return nil, err
		}
		rule.Attributes = append(rule.Attributes, attr)
	}
	return rule, nil
}

func unmarshalMatcher(me *matcherElement, defaultFunction string) (*Matcher, error) {
	m := &Matcher{Value: me.Value, FunctionURI: me.MatchFunction}
	if m.FunctionURI == "" {
		m.FunctionURI = defaultFunction
	}

	// Validate configured values that would otherwise fail at match time.
	switch m.FunctionURI {
	case RegexFunction:
		if _, err := regexp.Compile(m.Value); err != nil {
			return nil, fmt.Errorf("%w: invalid match expression %q: %v", ErrMarshalling, m.Value, err)
		}
	case ResourceTreeFunction:
		if u, err := url.Parse(m.Value); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: resource %q is not a valid URL", ErrMarshalling, m.Value)
		}
	}
	return m, nil
}

func unmarshalAttribute(ae attributeElement) (*AttributeRule, error) {
	if ae.Name == "" {
		return nil, fmt.Errorf("%w: attribute without a name", ErrMarshalling)
	}
	attr := &AttributeRule{Name: ae.Name}

	if ae.AnyValue != nil {
		mode, err := unmarshalReleaseMode(ae.AnyValue.Release)
		if err != nil {
			return nil, err
		}
		attr.AnyValue = mode
	}
	for _, ve := range ae.Values {
		mode, err := unmarshalReleaseMode(ve.Release)
		if err != nil {
			return nil, err
		}
		attr.Values = append(attr.Values, AttributeValueRule{Value: ve.Value, Release: mode})
	}
	return attr, nil
}

func unmarshalReleaseMode(raw string) (ReleaseMode, error) {
	switch ReleaseMode(raw) {
	case "", ReleasePermit:
		return ReleasePermit, nil
	case ReleaseDeny:
		return ReleaseDeny, nil
	default:
		return "", fmt.Errorf("%w: unknown release mode %q", ErrMarshalling, raw)
	}
}

// MarshalArpDocument serializes a policy back into its XML document form for
// persistence.
func MarshalArpDocument(a *Arp) ([]byte, error) {
	doc := arpDocument{Description: a.Description}
	for _, rule := range a.rules {
		re := ruleElement{Description: rule.Description}

		if rule.Target.AnyTarget {
			re.Target.AnyTarget = &struct{}{}
		} else if rule.Target.Requester != nil {
			re.Target.Requester = &matcherElement{
				MatchFunction: rule.Target.Requester.FunctionURI,
				Value:         rule.Target.Requester.Value,
			}
			if rule.Target.Resource != nil {
				re.Target.Resource = &matcherElement{
					MatchFunction: rule.Target.Resource.FunctionURI,
					Value:         rule.Target.Resource.Value,
				}
			} else {
				re.Target.AnyResource = &struct{}{}
			}
		}

		for _, attr := range rule.Attributes {
			ae := attributeElement{Name: attr.Name}
			if attr.AnyValue != "" {
				ae.AnyValue = &anyValueElement{Release: string(attr.AnyValue)}
			}
			for _, v := range attr.Values {
				ae.Values = append(ae.Values, valueElement{Release: string(v.Release), Value: v.Value})
			}
			re.Attributes = append(re.Attributes, ae)
		}
		doc.Rules = append(doc.Rules, re)
	}

	out, err := xml.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarshalling, err)
	}
	return append([]byte(xml.Header), out...), nil
}
