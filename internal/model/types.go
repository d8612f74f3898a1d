package model

import "sort"

// StringSet is a set of strings, represented as a map for O(1)
// membership and union. Exported as a named type so node structs read
// clearly.
type StringSet map[string]struct{}

// NewStringSet builds a StringSet from a slice.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

// Slice returns the set's members, sorted for deterministic output.
func (s StringSet) Slice() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports set membership.
func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Add inserts item, mutating the set in place.
func (s StringSet) Add(item string) { s[item] = struct{}{} }

// Union returns a new set containing members of both s and other.
func (s StringSet) Union(other StringSet) StringSet {
	out := make(StringSet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Node is implemented by every node payload type. Name returns the
// node's globally-unique NodeName (spec §3 invariant 2).
type Node interface {
	Name() NodeName
}

// User node (spec §3). ConnectorsSeen records every connector
// namespace that has reported this user.
type UserNode struct {
	Email          string
	FirstName      string
	LastName       string
	PlatformIDs    map[string]string // connector namespace -> platform id
	OtherNames     StringSet
	ConnectorsSeen StringSet
	Metadata       map[string]string
}

func (u *UserNode) Name() NodeName { return UserName(u.Email) }

// Group node. Origin distinguishes same-named groups across connectors
// (spec §3 invariant 5); they never auto-merge.
type GroupNode struct {
	GroupName      string
	Origin         string
	ConnectorsSeen StringSet
	Metadata       map[string]string
}

func (g *GroupNode) Name() NodeName { return GroupNodeName(g.GroupName, g.Origin) }

// Asset node.
type AssetNode struct {
	CUAL       string
	AssetType  string
	Connectors StringSet
	Metadata   map[string]string
}

func (a *AssetNode) Name() NodeName { return AssetName(a.CUAL) }

// Policy node, governing a single asset via a synthesized grantee
// agent (spec §4.4 step 4).
type PolicyNode struct {
	Asset            string
	AgentKind        string
	AgentKey         string
	Privileges       StringSet
	ConnectorManaged bool
	Metadata         map[string]string
}

func (p *PolicyNode) Name() NodeName { return PolicyName(p.Asset, p.AgentKind, p.AgentKey) }

// DefaultPolicyNode is a policy anchored at a container asset that
// applies to descendants matching WildcardPath and TargetTypes
// (spec §3 invariant 6).
type DefaultPolicyNode struct {
	Anchor           string
	WildcardPath     string
	TargetTypes      []string
	Privileges       StringSet
	ConnectorManaged bool
	Metadata         map[string]string
}

func (d *DefaultPolicyNode) Name() NodeName {
	return DefaultPolicyName(d.Anchor, d.WildcardPath, d.TargetTypes)
}

// TagNode.
type TagNode struct {
	TagName     string
	PassesValue bool
	Description string
	Metadata    map[string]string
}

func (t *TagNode) Name() NodeName { return TagName(t.TagName) }

// PolicyAgentNode aggregates the grantees of one policy so that the
// asset keeps a 1:1 (asset, privilege-set) mapping even when many
// users/groups share a grant (Glossary: Policy agent).
type PolicyAgentNode struct {
	PolicyKind   string
	GranteeNames []string
}

func (p *PolicyAgentNode) Name() NodeName { return PolicyAgentName(p.PolicyKind, p.GranteeNames) }
