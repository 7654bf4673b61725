package resolver

import (
	"fmt"
	"log"
)

// AttributeResolver evaluates the plug-in dependency graph to compute
// attribute values for a principal. The graph is fixed at construction;
// resolution is safe for concurrent use.
type AttributeResolver struct {
	plugIns map[string]ResolutionPlugIn
	cache   *ResolverCache
}

// NewAttributeResolver parses the configuration document, instantiates its
// plug-ins through the provider registry and validates the resulting graph.
// Declarations that are inconsistent, duplicated or cyclic are dropped with
// a logged warning; an empty graph is an error. The cache sweeper starts
// immediately, so callers must Close the resolver when done.
func NewAttributeResolver(configData []byte, providers *ProviderRegistry) (*AttributeResolver, error) {
	configs, err := ParseResolverConfig(configData)
	if err != nil {
		return nil, err
	}

	plugIns := make([]ResolutionPlugIn, 0, len(configs))
	for _, cfg := range configs {
		plugIn, err := providers.New(cfg)
		if err != nil {
			log.Printf("🧰 [AttributeResolver] Warning: skipping plug-in (%s): %v", cfg.ID, err)
			continue
		}
		plugIns = append(plugIns, plugIn)
	}
	return NewAttributeResolverWithPlugIns(plugIns)
}

// NewAttributeResolverWithPlugIns builds a resolver over pre-constructed
// plug-ins, bypassing configuration parsing.
func NewAttributeResolverWithPlugIns(plugIns []ResolutionPlugIn) (*AttributeResolver, error) {
	byID := make(map[string]ResolutionPlugIn, len(plugIns))
	for _, plugIn := range plugIns {
		if plugIn.ID() == "" {
			log.Printf("🧰 [AttributeResolver] Warning: skipping %s with empty id", plugIn.Kind())
			continue
		}
		if _, exists := byID[plugIn.ID()]; exists {
			log.Printf("🧰 [AttributeResolver] Warning: duplicate plug-in id (%s), keeping the first declaration", plugIn.ID())
			continue
		}
		byID[plugIn.ID()] = plugIn
	}

	pruneInconsistent(byID)
	pruneCyclic(byID)

	if len(byID) == 0 {
		return nil, fmt.Errorf("%w: no usable plug-ins in resolver configuration", ErrConfiguration)
	}

	resolver := &AttributeResolver{plugIns: byID, cache: NewResolverCache()}
	resolver.cache.Start()
	return resolver, nil
}

// pruneInconsistent drops plug-ins whose declared dependencies do not exist
// or have the wrong role, repeating until the graph is stable since each
// removal can invalidate dependents.
func pruneInconsistent(byID map[string]ResolutionPlugIn) {
	for {
		removed := false
		for id, plugIn := range byID {
			if reason := inconsistency(byID, plugIn); reason != "" {
				log.Printf("🧰 [AttributeResolver] Warning: dropping plug-in (%s): %s", id, reason)
				delete(byID, id)
				removed = true
			}
		}
		if !removed {
			return
		}
	}
}

func inconsistency(byID map[string]ResolutionPlugIn, plugIn ResolutionPlugIn) string {
	for _, depID := range plugIn.AttributeDefinitionDependencyIDs() {
		dep, ok := byID[depID]
		if !ok {
			return fmt.Sprintf("unknown attribute dependency (%s)", depID)
		}
		if dep.Kind() != KindAttributeDefinition {
			return fmt.Sprintf("attribute dependency (%s) is not an attribute definition", depID)
		}
	}
	for _, depID := range plugIn.DataConnectorDependencyIDs() {
		dep, ok := byID[depID]
		if !ok {
			return fmt.Sprintf("unknown connector dependency (%s)", depID)
		}
		if dep.Kind() != KindDataConnector {
			return fmt.Sprintf("connector dependency (%s) is not a data connector", depID)
		}
	}
	if connector, ok := plugIn.(DataConnectorPlugIn); ok {
		if failoverID := connector.FailoverDependencyID(); failoverID != "" {
			failover, ok := byID[failoverID]
			if !ok {
				return fmt.Sprintf("unknown failover connector (%s)", failoverID)
			}
			if failover.Kind() != KindDataConnector {
				return fmt.Sprintf("failover dependency (%s) is not a data connector", failoverID)
			}
		}
	}
	return ""
}

// pruneCyclic removes every plug-in that participates in or depends on a
// dependency cycle, then re-checks consistency for dependents of the removed
// nodes.
func pruneCyclic(byID map[string]ResolutionPlugIn) {
	const (
		visiting = 1
		clean    = 2
		cyclic   = 3
	)
	state := make(map[string]int, len(byID))

	// visit reports whether id sits on or depends on a cycle. A node found in
	// the visiting state closes a cycle, and the result propagates back along
	// the path so the whole cycle is marked.
	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting, cyclic:
			return true
		case clean:
			return false
		}
		state[id] = visiting
		plugIn := byID[id]
		deps := append(append([]string(nil), plugIn.AttributeDefinitionDependencyIDs()...),
			plugIn.DataConnectorDependencyIDs()...)
		bad := false
		for _, depID := range deps {
			if _, ok := byID[depID]; !ok {
				continue
			}
			if visit(depID) {
				bad = true
			}
		}
		if bad {
			state[id] = cyclic
			return true
		}
		state[id] = clean
		return false
	}

	for id := range byID {
		visit(id)
	}
	removed := false
	for id, s := range state {
		if s == cyclic {
			log.Printf("🧰 [AttributeResolver] Warning: dropping plug-in (%s): dependency cycle", id)
			delete(byID, id)
			removed = true
		}
	}
	if removed {
		pruneInconsistent(byID)
	}
}

// Close stops the cache sweeper. The resolver must not be used afterwards.
func (r *AttributeResolver) Close() {
	r.cache.Stop()
}

// PlugInIDs returns the ids of all plug-ins that survived validation.
func (r *AttributeResolver) PlugInIDs() []string {
	ids := make([]string, 0, len(r.plugIns))
	for id := range r.plugIns {
		ids = append(ids, id)
	}
	return ids
}

// resolutionRequest carries the per-request memoization tables. Results land
// here at most once per plug-in regardless of how many dependents share
// them.
type resolutionRequest struct {
	principal  string
	requester  string
	requested  *AttributeSet
	attributes map[string]*ResolverAttribute
	connectors map[string]RawAttributes
}

// ResolveAttributes resolves every unresolved attribute in the set. A
// plug-in failure removes the affected attribute from the set and is logged;
// it never aborts the remaining attributes.
func (r *AttributeResolver) ResolveAttributes(requested *AttributeSet, principal, requester string) {
	req := &resolutionRequest{
		principal:  principal,
		requester:  requester,
		requested:  requested,
		attributes: make(map[string]*ResolverAttribute),
		connectors: make(map[string]RawAttributes),
	}

	for _, name := range requested.Names() {
		attribute := requested.Get(name)
		if attribute.Resolved() {
			continue
		}
		if _, err := r.resolveAttribute(name, req); err != nil {
			log.Printf("🧰 [AttributeResolver] Warning: could not resolve attribute (%s) for principal (%s): %v", name, principal, err)
			requested.Remove(name)
		}
	}

	// Attributes pulled in purely as dependencies never appear in output,
	// and neither do attributes that resolved to no values.
	for _, name := range requested.Names() {
		attribute := requested.Get(name)
		if attribute.DependencyOnly() || len(attribute.Values()) == 0 {
			requested.Remove(name)
		}
	}
}

func (r *AttributeResolver) resolveAttribute(id string, req *resolutionRequest) (*ResolverAttribute, error) {
	if attribute := req.requested.Get(id); attribute != nil && attribute.Resolved() {
		return attribute, nil
	}
	if attribute, ok := req.attributes[id]; ok {
		return attribute, nil
	}

	attribute := req.requested.Get(id)
	if attribute == nil {
		attribute = newDependencyOnlyAttribute(id)
	}

	if cached := r.cache.ResolvedAttribute(req.principal, id); cached != nil {
		attribute.resolveFromCached(cached)
		if attribute.DependencyOnly() {
			req.attributes[id] = attribute
		}
		return attribute, nil
	}

	plugIn, ok := r.plugIns[id]
	if !ok {
		return nil, fmt.Errorf("%w: no attribute definition registered for (%s)", ErrResolution, id)
	}
	definition, ok := plugIn.(AttributeDefinitionPlugIn)
	if !ok {
		return nil, fmt.Errorf("%w: plug-in (%s) is not an attribute definition", ErrResolution, id)
	}

	depends, err := r.resolveDependencies(plugIn, req)
	if err != nil {
		return nil, err
	}

	if err := definition.Resolve(attribute, req.principal, req.requester, depends); err != nil {
		if definition.PropagateErrors() {
			return nil, fmt.Errorf("%w: attribute definition (%s): %v", ErrResolution, id, err)
		}
		log.Printf("🧰 [AttributeResolver] Warning: attribute definition (%s) failed for principal (%s), returning no values: %v", id, req.principal, err)
	}

	attribute.SetLifetime(definition.TTL())
	attribute.SetResolved()
	if attribute.DependencyOnly() {
		req.attributes[id] = attribute
	}
	r.cache.CacheAttributeResolution(req.principal, attribute)
	return attribute, nil
}

func (r *AttributeResolver) resolveConnector(id string, req *resolutionRequest) (RawAttributes, error) {
	if raw, ok := req.connectors[id]; ok {
		return raw, nil
	}
	if raw := r.cache.ResolvedConnector(req.principal, id); raw != nil {
		req.connectors[id] = raw
		return raw, nil
	}

	plugIn, ok := r.plugIns[id]
	if !ok {
		return nil, fmt.Errorf("%w: no data connector registered for (%s)", ErrResolution, id)
	}
	connector, ok := plugIn.(DataConnectorPlugIn)
	if !ok {
		return nil, fmt.Errorf("%w: plug-in (%s) is not a data connector", ErrResolution, id)
	}

	depends, err := r.resolveDependencies(plugIn, req)
	if err != nil {
		return nil, err
	}

	raw, resolveErr := connector.Resolve(req.principal, req.requester, depends)
	if resolveErr != nil {
		if failoverID := connector.FailoverDependencyID(); failoverID != "" {
			log.Printf("🧰 [AttributeResolver] Warning: data connector (%s) failed for principal (%s), failing over to (%s): %v", id, req.principal, failoverID, resolveErr)
			raw, err := r.resolveConnector(failoverID, req)
			if err != nil {
				return nil, err
			}
			req.connectors[id] = raw
			return raw, nil
		}
		if connector.PropagateErrors() {
			return nil, fmt.Errorf("%w: data connector (%s): %v", ErrResolution, id, resolveErr)
		}
		log.Printf("🧰 [AttributeResolver] Warning: data connector (%s) failed for principal (%s), returning no attributes: %v", id, req.principal, resolveErr)
		raw = RawAttributes{}
	}
	if raw == nil {
		raw = RawAttributes{}
	}

	r.cache.CacheConnectorResolution(req.principal, id, connector.TTL(), raw)
	req.connectors[id] = raw
	return raw, nil
}

func (r *AttributeResolver) resolveDependencies(plugIn ResolutionPlugIn, req *resolutionRequest) (*Dependencies, error) {
	depends := newDependencies()
	for _, depID := range plugIn.AttributeDefinitionDependencyIDs() {
		attribute, err := r.resolveAttribute(depID, req)
		if err != nil {
			return nil, err
		}
		depends.addAttribute(depID, attribute)
	}
	for _, depID := range plugIn.DataConnectorDependencyIDs() {
		raw, err := r.resolveConnector(depID, req)
		if err != nil {
			return nil, err
		}
		depends.addConnector(depID, raw)
	}
	return depends, nil
}
