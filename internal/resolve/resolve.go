// Package resolve computes effective permissions (spec §4.7): for a
// (user, asset) pair, the union of privileges granted through any
// chain of group membership plus direct or default policies, along
// with a deduplicated list of human-readable reasons.
//
// Grounded on spec.md §4.7 directly (no single teacher file owns this
// shape); the cache-per-pass/invalidate-on-mutation contract mirrors
// the teacher's internal/cache package's explicit-invalidation style.
package resolve

import (
	"fmt"
	"sync"

	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// EffectivePermission is the resolver's output for one (user, asset)
// pair (spec §4.7).
type EffectivePermission struct {
	Privileges model.StringSet
	Reasons    []string
}

func newEffectivePermission() *EffectivePermission {
	return &EffectivePermission{Privileges: model.NewStringSet(), Reasons: nil}
}

func (e *EffectivePermission) addReason(r string) {
	for _, existing := range e.Reasons {
		if existing == r {
			return
		}
	}
	e.Reasons = append(e.Reasons, r)
}

type pairKey struct {
	user  model.NodeName
	asset model.NodeName
}

// Resolver computes and caches effective permissions for one graph.
// The cache is invalidated wholesale by Invalidate, which callers
// should call after any graph mutation (spec §4.7: "cache is
// invalidated by any graph mutation").
type Resolver struct {
	graph *graphstore.Graph

	mu    sync.Mutex
	cache map[pairKey]*EffectivePermission
}

// New returns a Resolver over graph with an empty cache.
func New(graph *graphstore.Graph) *Resolver {
	return &Resolver{graph: graph, cache: make(map[pairKey]*EffectivePermission)}
}

// Invalidate clears the resolver's cache; call after any AddNode or
// AddEdge on the underlying graph.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[pairKey]*EffectivePermission)
}

// Resolve computes the effective permission for (user, asset),
// applying the inheritance order of spec §4.7: direct policies on the
// asset, then default policies anchored at ancestors, then
// group-mediated versions of both, following the membership
// transitive closure. Results are cached until Invalidate is called.
func (r *Resolver) Resolve(user, asset model.NodeName) (*EffectivePermission, error) {
	key := pairKey{user: user, asset: asset}

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	userH, ok := r.graph.GetHandle(user)
	if !ok {
		return nil, fmt.Errorf("resolve: unknown user %s", user)
	}
	assetH, ok := r.graph.GetHandle(asset)
	if !ok {
		return nil, fmt.Errorf("resolve: unknown asset %s", asset)
	}

	grantorSet := groupClosure(r.graph, userH)

	result := newEffectivePermission()
	r.applyDirectPolicies(assetH, grantorSet, result)
	r.applyDefaultPolicies(assetH, grantorSet, result)

	r.mu.Lock()
	r.cache[key] = result
	r.mu.Unlock()
	return result, nil
}

// groupClosure returns every handle (the user itself plus every group
// it is a transitive MemberOf) that can stand in as a policy grantee
// for userH.
func groupClosure(g *graphstore.Graph, userH graphstore.Handle) map[graphstore.Handle]struct{} {
	visited := map[graphstore.Handle]struct{}{userH: {}}
	queue := []graphstore.Handle{userH}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.OutEdges(cur) {
			if e.Kind != model.EdgeMemberOf {
				continue
			}
			if _, ok := visited[e.To]; ok {
				continue
			}
			visited[e.To] = struct{}{}
			queue = append(queue, e.To)
		}
	}
	return visited
}

// applyDirectPolicies walks Asset -GovernedBy-> Policy -GrantedTo->
// Agent -Includes-> grantee for every Policy node (not DefaultPolicy)
// governing assetH, unioning privileges for every policy whose agent
// includes a handle in grantorSet (spec §4.7 rule 1 and its
// group-mediated form, rule 3).
func (r *Resolver) applyDirectPolicies(assetH graphstore.Handle, grantorSet map[graphstore.Handle]struct{}, result *EffectivePermission) {
	for _, governs := range r.graph.OutEdges(assetH) {
		if governs.Kind != model.EdgeGovernedBy {
			continue
		}
		policyNode, ok := r.graph.Node(governs.To).(*model.PolicyNode)
		if !ok {
			continue
		}
		if !r.policyGrantsToAny(governs.To, grantorSet) {
			continue
		}
		result.Privileges = result.Privileges.Union(policyNode.Privileges)
		result.addReason(fmt.Sprintf("direct policy on %s granting %v", policyNode.Asset, policyNode.Privileges.Slice()))
	}
}

// applyDefaultPolicies walks every ancestor of assetH via ChildOf
// edges, checking each DefaultPolicy node governing that ancestor for
// a wildcard_path/target_types match, then applies spec §4.7's
// specificity tie-break across the matching candidates: `*` beats
// `**`; ties break by ancestor distance (closer wins); true ties union
// privileges and retain all reasons (DESIGN.md, Open Question (b)).
func (r *Resolver) applyDefaultPolicies(assetH graphstore.Handle, grantorSet map[graphstore.Handle]struct{}, result *EffectivePermission) {
	assetNode, ok := r.graph.Node(assetH).(*model.AssetNode)
	if !ok {
		return
	}

	type candidate struct {
		node     *model.DefaultPolicyNode
		distance int
	}
	var candidates []candidate

	cur := assetH
	distance := 0
	visitedAncestors := map[graphstore.Handle]struct{}{}
	for {
		distance++
		parentH, ok := parentOf(r.graph, cur)
		if !ok {
			break
		}
		if _, loop := visitedAncestors[parentH]; loop {
			break
		}
		visitedAncestors[parentH] = struct{}{}

		for _, governs := range r.graph.OutEdges(parentH) {
			if governs.Kind != model.EdgeGovernedBy {
				continue
			}
			dp, ok := r.graph.Node(governs.To).(*model.DefaultPolicyNode)
			if !ok {
				continue
			}
			if !wildcardMatches(dp.WildcardPath, distance) {
				continue
			}
			if !targetTypeMatches(dp.TargetTypes, assetNode.AssetType) {
				continue
			}
			if !r.policyGrantsToAny(governs.To, grantorSet) {
				continue
			}
			candidates = append(candidates, candidate{node: dp, distance: distance})
		}
		cur = parentH
	}

	if len(candidates) == 0 {
		return
	}

	// Tie-break (spec §4.7, DESIGN.md Open Question (b)): more
	// specific wildcard wins first ("*" beats "**"), then shorter
	// ancestor distance; a true tie on both unions privileges and
	// retains every contributing reason instead of picking one.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if specificityRank(c.node.WildcardPath) < specificityRank(best.node.WildcardPath) {
			best = c
			continue
		}
		if specificityRank(c.node.WildcardPath) == specificityRank(best.node.WildcardPath) && c.distance < best.distance {
			best = c
		}
	}

	for _, c := range candidates {
		if specificityRank(c.node.WildcardPath) != specificityRank(best.node.WildcardPath) || c.distance != best.distance {
			continue
		}
		result.Privileges = result.Privileges.Union(c.node.Privileges)
		result.addReason(fmt.Sprintf("default policy anchored at %s (%s, distance %d) granting %v",
			c.node.Anchor, c.node.WildcardPath, c.distance, c.node.Privileges.Slice()))
	}
}

// specificityRank ranks "*" above "**" (lower rank wins) per spec §4.7.
func specificityRank(wildcardPath string) int {
	if wildcardPath == "*" {
		return 0
	}
	return 1
}

func wildcardMatches(path string, distance int) bool {
	switch path {
	case "*":
		return distance == 1
	case "**":
		return distance >= 1
	default:
		return false
	}
}

func targetTypeMatches(targetTypes []string, assetType string) bool {
	if len(targetTypes) == 0 {
		return true
	}
	for _, t := range targetTypes {
		if t == assetType {
			return true
		}
	}
	return false
}

func parentOf(g *graphstore.Graph, h graphstore.Handle) (graphstore.Handle, bool) {
	for _, e := range g.OutEdges(h) {
		if e.Kind == model.EdgeChildOf {
			return e.To, true
		}
	}
	return graphstore.Handle(0), false
}

// policyGrantsToAny reports whether the policy (or default policy) at
// policyH grants to a PolicyAgent whose Includes edges reach any
// handle in grantorSet.
func (r *Resolver) policyGrantsToAny(policyH graphstore.Handle, grantorSet map[graphstore.Handle]struct{}) bool {
	for _, granted := range r.graph.OutEdges(policyH) {
		if granted.Kind != model.EdgeGrantedTo {
			continue
		}
		for _, includes := range r.graph.OutEdges(granted.To) {
			if includes.Kind != model.EdgeIncludes {
				continue
			}
			if _, ok := grantorSet[includes.To]; ok {
				return true
			}
		}
	}
	return false
}
