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

package arp

import (
	"fmt"
	"sort"
)

// Engine evaluates attribute release policies. It owns its match function
// registry and the repository the policies come from; no global state is
// involved, so independent engines can coexist.
type Engine struct {
	repository Repository
	functions  *MatchFunctionRegistry
}

// NewEngine creates an engine over the given policy repository.
func NewEngine(repository Repository) *Engine {
	return &Engine{
		repository: repository,
		functions:  NewMatchFunctionRegistry(),
	}
}

// MatchFunctions exposes the engine's registry so deployments can register
// additional match functions.
func (e *Engine) MatchFunctions() *MatchFunctionRegistry { return e.functions }

// CreateEffectiveArp merges the matching rules of every policy applicable to
// the principal (site policy plus the principal's own policies, per the
// repository contract) into one ephemeral policy for the given requester and
// resource. Repository failures surface as errors wrapping ErrProcessing.
func (e *Engine) CreateEffectiveArp(principal, requester, resource string) (*Arp, error) {
	policies, err := e.repository.AllPolicies(principal)
	if err != nil {
		return nil, fmt.Errorf("%w: loading policies for %q: %v", ErrProcessing, principal, err)
	}

	effective := NewArp(principal)
	effective.Description = "effective ARP"
	for _, policy := range policies {
		if policy == nil {
			continue
		}
		for _, rule := range policy.MatchingRules(e.functions, requester, resource) {
			effective.AddRule(rule)
		}
	}
	return effective, nil
}

// ListPossibleReleaseAttributes derives, ahead of any value resolution, the
// set of attribute names that could possibly be released for the given
// request: a name qualifies if any matching rule permits any value of it or
// explicitly permits at least one value. The result is sorted; rule order
// does not influence it.
func (e *Engine) ListPossibleReleaseAttributes(principal, requester, resource string) ([]string, error) {
	effective, err := e.CreateEffectiveArp(principal, requester, resource)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool)
	for _, rule := range effective.Rules() {
		for _, attr := range rule.Attributes {
			if names[attr.Name] {
				continue
			}
			if attr.ReleaseAnyValue() {
				names[attr.Name] = true
				continue
			}
			for _, v := range attr.Values {
				if v.Release == ReleasePermit {
					names[attr.Name] = true
					break
				}
			}
		}
	}

	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// FilterAttributes applies the effective policy to a set of resolved
// attribute values and returns what may actually be disclosed. For each
// value the directives of all matching rules are merged: an explicit permit
// or an any-value permit releases the value, and an explicit deny for that
// exact value beats any any-value permit. Attributes left without permitted
// values are absent from the result.
func (e *Engine) FilterAttributes(attributes map[string][]string, principal, requester, resource string) (map[string][]string, error) {
	effective, err := e.CreateEffectiveArp(principal, requester, resource)
	if err != nil {
		return nil, err
	}

	released := make(map[string][]string, len(attributes))
	for name, values := range attributes {
		var kept []string
		for _, value := range values {
			if valueReleased(effective, name, value) {
				kept = append(kept, value)
			}
		}
		if len(kept) > 0 {
			released[name] = kept
		}
	}
	return released, nil
}

// valueReleased merges the directives of every rule in the effective policy
// governing the given attribute value. Explicit beats general: one specific
// deny vetoes the value no matter how many rules permit it.
func valueReleased(effective *Arp, name, value string) bool {
	permitted := false
	for _, rule := range effective.Rules() {
		for _, attr := range rule.Attributes {
			if attr.Name != name {
				continue
			}
			if attr.DenyAnyValue() {
				return false
			}
			if attr.ReleaseAnyValue() {
				permitted = true
			}
			for _, v := range attr.Values {
				if v.Value != value {
					continue
				}
				if v.Release == ReleaseDeny {
					return false
				}
				permitted = true
			}
		}
	}
	return permitted
}
