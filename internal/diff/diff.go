// Package diff's computation logic (spec §4.9): project the graph's
// observed policy/default-policy/membership/identity state into the
// same keyed shape internal/configparser produces for desired state,
// then take set differences.
//
// Grounded on spec.md §4.9 directly; the observed/desired set-diff
// shape is patterned after the teacher's internal/graph/issue_linker.go
// matching style (build two keyed maps, diff by key presence).
package diff

import (
	"github.com/jettylabs/jetty-access-control/internal/configparser"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// Compute produces the full GlobalDiff between the graph's observed
// state and desired (spec §4.9). Non-deterministic fields (there are
// none tracked in this model — no timestamps or server ids are kept on
// Policy/DefaultPolicy/Group nodes) are excluded from comparison simply
// by never reading them.
func Compute(g *graphstore.Graph, desired *configparser.ParsedConfig) *GlobalDiff {
	observedPolicies, observedDefaults := projectObserved(g)

	return &GlobalDiff{
		Policies:        diffPolicies(observedPolicies, desired.State.Policies),
		DefaultPolicies: diffDefaultPolicies(observedDefaults, desired.State.DefaultPolicies),
		Memberships:     diffMemberships(g, desired),
		Identities:      diffIdentities(g, desired),
	}
}

type observedPolicy struct {
	grantees         []model.NodeName
	privileges       model.StringSet
	connectorManaged bool
}

// projectObserved walks every Policy and DefaultPolicy node in the
// graph, reading its grantee set through its PolicyAgent's Includes
// edges (spec §4.4 step 4's agent-indirection).
func projectObserved(g *graphstore.Graph) (map[model.PolicyRef]observedPolicy, map[model.DefaultPolicyRef]observedPolicy) {
	policies := make(map[model.PolicyRef]observedPolicy)
	defaults := make(map[model.DefaultPolicyRef]observedPolicy)

	for _, n := range g.Nodes() {
		switch node := n.(type) {
		case *model.PolicyNode:
			h, ok := g.GetHandle(node.Name())
			if !ok {
				continue
			}
			ref := model.PolicyRef{Asset: node.Asset, AgentKind: node.AgentKind, AgentKey: node.AgentKey}
			policies[ref] = observedPolicy{
				grantees:         granteesOf(g, h),
				privileges:       node.Privileges,
				connectorManaged: node.ConnectorManaged,
			}
		case *model.DefaultPolicyNode:
			h, ok := g.GetHandle(node.Name())
			if !ok {
				continue
			}
			ref := model.DefaultPolicyRef{Anchor: node.Anchor, WildcardPath: node.WildcardPath, TargetTypes: model.Fingerprint(node.TargetTypes)}
			defaults[ref] = observedPolicy{
				grantees:         granteesOf(g, h),
				privileges:       node.Privileges,
				connectorManaged: node.ConnectorManaged,
			}
		}
	}
	return policies, defaults
}

// granteesOf walks policyH -GrantedTo-> Agent -Includes-> grantee.
func granteesOf(g *graphstore.Graph, policyH graphstore.Handle) []model.NodeName {
	var out []model.NodeName
	for _, granted := range g.OutEdges(policyH) {
		if granted.Kind != model.EdgeGrantedTo {
			continue
		}
		for _, includes := range g.OutEdges(granted.To) {
			if includes.Kind != model.EdgeIncludes {
				continue
			}
			out = append(out, g.Node(includes.To).Name())
		}
	}
	return out
}

func diffPolicies(observed map[model.PolicyRef]observedPolicy, desired map[model.PolicyRef]configparser.PolicyState) []PolicyChange {
	var out []PolicyChange

	for ref, d := range desired {
		o, exists := observed[ref]
		key := PolicyKey{Asset: ref.Asset, AgentKind: ref.AgentKind, AgentKey: ref.AgentKey}
		if !exists {
			// Spec §4.9.1: only connector-managed entities are eligible to be added.
			if !d.ConnectorManaged {
				continue
			}
			out = append(out, PolicyChange{Key: key, Op: OpAddAgent, Grantees: d.Grantees, AddPrivileges: d.Privileges, ConnectorManaged: true})
			continue
		}
		add := setDiff(d.Privileges, o.privileges)
		remove := setDiff(o.privileges, d.Privileges)
		if len(add) > 0 || len(remove) > 0 {
			out = append(out, PolicyChange{Key: key, Op: OpModifyAgent, Grantees: d.Grantees, AddPrivileges: add, RemovePrivileges: remove, ConnectorManaged: o.connectorManaged})
		}
	}

	for ref, o := range observed {
		if _, stillDesired := desired[ref]; stillDesired {
			continue
		}
		// Spec §4.9.1: removal skips entities that are not
		// connector-managed (hand-granted, observed-only privileges).
		if !o.connectorManaged {
			continue
		}
		key := PolicyKey{Asset: ref.Asset, AgentKind: ref.AgentKind, AgentKey: ref.AgentKey}
		out = append(out, PolicyChange{Key: key, Op: OpRemoveAgent, Grantees: o.grantees, RemovePrivileges: o.privileges, ConnectorManaged: true})
	}
	return out
}

func diffDefaultPolicies(observed map[model.DefaultPolicyRef]observedPolicy, desired map[model.DefaultPolicyRef]configparser.DefaultPolicyState) []DefaultPolicyChange {
	var out []DefaultPolicyChange

	for ref, d := range desired {
		o, exists := observed[ref]
		key := DefaultPolicyKey{Anchor: ref.Anchor, WildcardPath: ref.WildcardPath, TargetTypes: ref.TargetTypes}
		if !exists {
			if !d.ConnectorManaged {
				continue
			}
			out = append(out, DefaultPolicyChange{Key: key, Op: OpAddAgent, Grantees: d.Grantees, AddPrivileges: d.Privileges, ConnectorManaged: true})
			continue
		}
		add := setDiff(d.Privileges, o.privileges)
		remove := setDiff(o.privileges, d.Privileges)
		managedTransition := ManagedUnchanged
		if o.connectorManaged != d.ConnectorManaged {
			managedTransition = ManagedChanged
		}
		if len(add) > 0 || len(remove) > 0 || managedTransition == ManagedChanged {
			out = append(out, DefaultPolicyChange{
				Key: key, Op: OpModifyAgent, Grantees: d.Grantees, AddPrivileges: add, RemovePrivileges: remove,
				ManagedTransition: managedTransition, ConnectorManaged: d.ConnectorManaged,
			})
		}
	}

	for ref, o := range observed {
		if _, stillDesired := desired[ref]; stillDesired {
			continue
		}
		if !o.connectorManaged {
			continue
		}
		key := DefaultPolicyKey{Anchor: ref.Anchor, WildcardPath: ref.WildcardPath, TargetTypes: ref.TargetTypes}
		out = append(out, DefaultPolicyChange{Key: key, Op: OpRemoveAgent, Grantees: o.grantees, RemovePrivileges: o.privileges, ConnectorManaged: true})
	}
	return out
}

// setDiff returns the members of a not present in b.
func setDiff(a, b model.StringSet) model.StringSet {
	out := model.NewStringSet()
	for k := range a {
		if !b.Has(k) {
			out.Add(k)
		}
	}
	return out
}

// diffMemberships compares, for every declared group with a connector
// mapping, its desired direct user/group members against the graph's
// observed Includes edges for that (name, namespace) GroupNode
// (spec §4.9.3).
func diffMemberships(g *graphstore.Graph, desired *configparser.ParsedConfig) []MembershipChange {
	declByName := make(map[string]configparser.ResolvedGroup, len(desired.Groups))
	for _, decl := range desired.Groups {
		declByName[decl.Name] = decl
	}

	var out []MembershipChange
	for _, decl := range desired.Groups {
		for namespace, localName := range decl.Connectors {
			groupName := model.GroupNodeName(localName, namespace)
			h, ok := g.GetHandle(groupName)

			observedUsers := model.NewStringSet()
			observedGroups := model.NewStringSet()
			observedGroupNames := make(map[string]model.GroupName)
			if ok {
				for _, e := range g.OutEdges(h) {
					if e.Kind != model.EdgeIncludes {
						continue
					}
					switch member := g.Node(e.To).(type) {
					case *model.UserNode:
						observedUsers.Add(member.Email)
					case *model.GroupNode:
						key := member.Name().String()
						observedGroups.Add(key)
						observedGroupNames[key] = model.GroupName{Name: member.GroupName, Origin: member.Origin}
					}
				}
			}

			desiredUsers := model.NewStringSet()
			for _, u := range desired.Users {
				for _, gname := range u.Groups {
					if gname == decl.Name {
						desiredUsers.Add(u.Email)
					}
				}
			}
			desiredGroups := model.NewStringSet()
			var desiredGroupNames []model.GroupName
			for _, memberName := range decl.MemberGroups {
				memberDecl, ok := declByName[memberName]
				if !ok {
					continue
				}
				memberLocal, ok := memberDecl.Connectors[namespace]
				if !ok {
					continue
				}
				mn := model.GroupName{Name: memberLocal, Origin: namespace}
				desiredGroups.Add(model.GroupNodeName(memberLocal, namespace).String())
				desiredGroupNames = append(desiredGroupNames, mn)
			}

			addUsers := setDiff(desiredUsers, observedUsers).Slice()
			removeUsers := setDiff(observedUsers, desiredUsers).Slice()
			addGroupStrs := setDiff(desiredGroups, observedGroups).Slice()
			removeGroupStrs := setDiff(observedGroups, desiredGroups).Slice()

			if len(addUsers) == 0 && len(removeUsers) == 0 && len(addGroupStrs) == 0 && len(removeGroupStrs) == 0 {
				continue
			}

			var removeGroups []model.GroupName
			for _, key := range removeGroupStrs {
				removeGroups = append(removeGroups, observedGroupNames[key])
			}

			out = append(out, MembershipChange{
				Group:        model.GroupName{Name: localName, Origin: namespace},
				AddUsers:     addUsers,
				RemoveUsers:  removeUsers,
				AddGroups:    filterGroupNames(desiredGroupNames, addGroupStrs),
				RemoveGroups: removeGroups,
			})
		}
	}
	return out
}

func filterGroupNames(candidates []model.GroupName, wantStrings []string) []model.GroupName {
	if len(wantStrings) == 0 {
		return nil
	}
	want := model.NewStringSet(wantStrings...)
	var out []model.GroupName
	for _, c := range candidates {
		if want.Has(model.GroupNodeName(c.Name, c.Origin).String()) {
			out = append(out, c)
		}
	}
	return out
}

// diffIdentities compares each desired user's per-connector identifier
// map against the graph's observed UserNode.PlatformIDs (spec §4.9.4).
func diffIdentities(g *graphstore.Graph, desired *configparser.ParsedConfig) []IdentityChange {
	var out []IdentityChange
	for _, u := range desired.Users {
		h, ok := g.GetHandle(model.UserName(u.Email))
		if !ok {
			continue
		}
		userNode, ok := g.Node(h).(*model.UserNode)
		if !ok {
			continue
		}

		addPlatform := make(map[string]string)
		removePlatform := make(map[string]string)
		for ns, id := range u.Identifiers {
			if observedID, ok := userNode.PlatformIDs[ns]; !ok || observedID != id {
				addPlatform[ns] = id
			}
		}
		for ns, id := range userNode.PlatformIDs {
			if _, stillDesired := u.Identifiers[ns]; !stillDesired {
				removePlatform[ns] = id
			}
		}
		if len(addPlatform) == 0 && len(removePlatform) == 0 {
			continue
		}
		out = append(out, IdentityChange{Email: u.Email, AddPlatform: addPlatform, RemovePlatform: removePlatform})
	}
	return out
}
