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
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// Well-known match function identifiers. Targets that name no function fall
// back to ExactSharFunction for requesters and ResourceTreeFunction for
// resources.
const (
	ExactSharFunction    = "urn:mace:shibboleth:arp:matchFunction:exactShar"
	ResourceTreeFunction = "urn:mace:shibboleth:arp:matchFunction:resourceTree"
	RegexFunction        = "urn:mace:shibboleth:arp:matchFunction:regexMatch"
)

// MatchFunction compares a value configured in a policy target against the
// value supplied by the request.
type MatchFunction interface {
	// Match reports whether request satisfies configured. Malformed input
	// yields an error wrapping ErrMatching.
	Match(configured, request string) (bool, error)
}

// MatchFunctionRegistry maps match function identifiers to lazily constructed
// implementations. Lookups and registrations are safe for concurrent use.
type MatchFunctionRegistry struct {
	mu           sync.Mutex
	constructors map[string]func() MatchFunction
	instances    map[string]MatchFunction
}

// NewMatchFunctionRegistry returns a registry pre-populated with the built-in
// exact-SHAR, resource-tree and regex functions.
func NewMatchFunctionRegistry() *MatchFunctionRegistry {
	r := &MatchFunctionRegistry{
		constructors: make(map[string]func() MatchFunction),
		instances:    make(map[string]MatchFunction),
	}
	r.Register(ExactSharFunction, func() MatchFunction { return exactSharMatchFunction{} })
	r.Register(ResourceTreeFunction, func() MatchFunction { return resourceTreeMatchFunction{} })
	r.Register(RegexFunction, func() MatchFunction { return regexMatchFunction{} })
	return r
}

// Register binds a constructor to a match function identifier, replacing any
// previous binding.
func (r *MatchFunctionRegistry) Register(uri string, constructor func() MatchFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[uri] = constructor
	delete(r.instances, uri)
}

// Lookup returns the match function registered under the given identifier,
// instantiating it on first use. An unknown identifier yields nil; the caller
// treats that as a configuration error for the rule at hand.
func (r *MatchFunctionRegistry) Lookup(uri string) MatchFunction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn, ok := r.instances[uri]; ok {
		return fn
	}
	constructor, ok := r.constructors[uri]
	if !ok {
		return nil
	}
	fn := constructor()
	r.instances[uri] = fn
	return fn
}

// exactSharMatchFunction matches when the requester identifier equals the
// configured value. Comparison is case-sensitive.
type exactSharMatchFunction struct{}

func (exactSharMatchFunction) Match(configured, request string) (bool, error) {
	return configured == request, nil
}

// resourceTreeMatchFunction matches when the request resource equals the
// configured URL or sits hierarchically under it. The comparison is
// path-segment aware: a configured path of /foo matches /foo and /foo/bar but
// never /foobar.
type resourceTreeMatchFunction struct{}

func (resourceTreeMatchFunction) Match(configured, request string) (bool, error) {
	configuredURL, err := parseResourceURL(configured)
	if err != nil {
		return false, err
	}
	requestURL, err := parseResourceURL(request)
	if err != nil {
		return false, err
	}

	if !strings.EqualFold(configuredURL.Scheme, requestURL.Scheme) {
		return false, nil
	}
	if !strings.EqualFold(configuredURL.Host, requestURL.Host) {
		return false, nil
	}

	configuredPath := strings.TrimSuffix(configuredURL.Path, "/")
	requestPath := strings.TrimSuffix(requestURL.Path, "/")
	if configuredPath == "" {
		return true, nil
	}
	if requestPath == configuredPath {
		return true, nil
	}
	return strings.HasPrefix(requestPath, configuredPath+"/"), nil
}

func parseResourceURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: resource %q is not a valid URL", ErrMatching, raw)
	}
	return u, nil
}

// regexMatchFunction matches when the request value contains a match of the
// configured expression. The match is partial: anchor the expression with
// ^ and $ to require a full match.
type regexMatchFunction struct{}

func (regexMatchFunction) Match(configured, request string) (bool, error) {
	re, err := regexp.Compile(configured)
	if err != nil {
		return false, fmt.Errorf("%w: invalid expression %q: %v", ErrMatching, configured, err)
	}
	return re.MatchString(request), nil
}
