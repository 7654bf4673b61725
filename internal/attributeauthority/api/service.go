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

// Package api implements the attribute authority HTTP surface: resolving a
// principal's attributes through the resolver graph and filtering them
// through the attribute release policies before disclosure.
package api

import (
	"fmt"

	"github.com/internet2/shibboleth-go-components/internal/arp"
	"github.com/internet2/shibboleth-go-components/internal/attributeauthority/logger"
	"github.com/internet2/shibboleth-go-components/internal/resolver"
)

// AttributeAuthorityService answers attribute queries. Every released value
// has passed the effective release policy for the requesting party.
type AttributeAuthorityService struct {
	engine   *arp.Engine
	resolver *resolver.AttributeResolver
}

// NewAttributeAuthorityService wires the policy engine and the resolver
// together.
func NewAttributeAuthorityService(engine *arp.Engine, res *resolver.AttributeResolver) *AttributeAuthorityService {
	return &AttributeAuthorityService{engine: engine, resolver: res}
}

// ReleaseAttributes resolves and filters the principal's attributes for the
// given requester and resource. An empty names slice means "everything the
// policy could possibly release"; explicit names are still policy-filtered.
func (s *AttributeAuthorityService) ReleaseAttributes(principal, requester, resource string, names []string) (map[string][]string, error) {
	if principal == "" {
		return nil, fmt.Errorf("principal must not be empty")
	}

	if len(names) == 0 {
		possible, err := s.engine.ListPossibleReleaseAttributes(principal, requester, resource)
		if err != nil {
			return nil, err
		}
		names = possible
	}
	if len(names) == 0 {
		logger.LogInfo(fmt.Sprintf("no releasable attributes for principal (%s) and requester (%s)", principal, requester))
		return map[string][]string{}, nil
	}

	requested := resolver.NewAttributeSet(names...)
	s.resolver.ResolveAttributes(requested, principal, requester)

	released, err := s.engine.FilterAttributes(requested.ToMap(), principal, requester, resource)
	if err != nil {
		return nil, err
	}
	return released, nil
}
