// Package model implements the access graph's tagged-variant node and
// typed-edge data model (spec §3) plus the node-merge protocol
// (spec §4.2).
package model

import (
	"fmt"
	"sort"
	"strings"
)

// Kind discriminates a NodeName's variant. NodeName equality is
// structural (spec §3): two NodeName values with the same Kind and
// the same payload fields are the same node everywhere in the graph.
type Kind int

const (
	KindUser Kind = iota
	KindGroup
	KindAsset
	KindPolicy
	KindDefaultPolicy
	KindTag
	KindPolicyAgent
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "User"
	case KindGroup:
		return "Group"
	case KindAsset:
		return "Asset"
	case KindPolicy:
		return "Policy"
	case KindDefaultPolicy:
		return "DefaultPolicy"
	case KindTag:
		return "Tag"
	case KindPolicyAgent:
		return "PolicyAgent"
	default:
		return "Unknown"
	}
}

// GroupName carries a group's origin (connector namespace) so two
// same-named groups from different connectors never collide
// (spec §3 invariant 5).
type GroupName struct {
	Name   string
	Origin string
}

// PolicyRef identifies an ordinary policy by the asset it governs and
// the synthesized agent it grants to (spec §4.4 step 4).
type PolicyRef struct {
	Asset     string // CUAL string
	AgentKind string
	AgentKey  string // canonical, sorted grantee-set fingerprint
}

// DefaultPolicyRef identifies a default (wildcard) policy by its
// anchor asset, wildcard path, and target asset types (spec §4.8's
// (asset, path, types) key).
type DefaultPolicyRef struct {
	Anchor       string // CUAL string of the anchor asset
	WildcardPath string
	TargetTypes  string // sorted, comma-joined asset type list
}

// PolicyAgentRef identifies the synthetic grantee-aggregation node for
// one (policy-kind, grantee-set) pair (spec §4.4 step 4 / Glossary).
type PolicyAgentRef struct {
	PolicyKind string
	Grantees   string // canonical, sorted member-NodeName fingerprint
}

// NodeName is the tagged identifier described in spec §3. Only one
// payload field is meaningful per Kind; the rest are zero values.
// All fields are comparable, so NodeName is usable as a map key,
// which is what gives the graph store its global NodeName uniqueness
// guarantee (spec §3 invariant 2).
type NodeName struct {
	Kind          Kind
	User          string
	Group         GroupName
	Asset         string
	Policy        PolicyRef
	DefaultPolicy DefaultPolicyRef
	Tag           string
	PolicyAgent   PolicyAgentRef
}

func (n NodeName) String() string {
	switch n.Kind {
	case KindUser:
		return fmt.Sprintf("User(%s)", n.User)
	case KindGroup:
		return fmt.Sprintf("Group(%s@%s)", n.Group.Name, n.Group.Origin)
	case KindAsset:
		return fmt.Sprintf("Asset(%s)", n.Asset)
	case KindPolicy:
		return fmt.Sprintf("Policy(%s/%s/%s)", n.Policy.Asset, n.Policy.AgentKind, n.Policy.AgentKey)
	case KindDefaultPolicy:
		return fmt.Sprintf("DefaultPolicy(%s%s/%s)", n.DefaultPolicy.Anchor, n.DefaultPolicy.WildcardPath, n.DefaultPolicy.TargetTypes)
	case KindTag:
		return fmt.Sprintf("Tag(%s)", n.Tag)
	case KindPolicyAgent:
		return fmt.Sprintf("PolicyAgent(%s/%s)", n.PolicyAgent.PolicyKind, n.PolicyAgent.Grantees)
	default:
		return "Unknown"
	}
}

// UserName builds a User NodeName.
func UserName(email string) NodeName { return NodeName{Kind: KindUser, User: email} }

// GroupNodeName builds a Group NodeName.
func GroupNodeName(name, origin string) NodeName {
	return NodeName{Kind: KindGroup, Group: GroupName{Name: name, Origin: origin}}
}

// AssetName builds an Asset NodeName from a rendered CUAL string.
func AssetName(cual string) NodeName { return NodeName{Kind: KindAsset, Asset: cual} }

// TagName builds a Tag NodeName.
func TagName(name string) NodeName { return NodeName{Kind: KindTag, Tag: name} }

// PolicyName builds a Policy NodeName.
func PolicyName(asset, agentKind, agentKey string) NodeName {
	return NodeName{Kind: KindPolicy, Policy: PolicyRef{Asset: asset, AgentKind: agentKind, AgentKey: agentKey}}
}

// DefaultPolicyName builds a DefaultPolicy NodeName.
func DefaultPolicyName(anchor, wildcardPath string, targetTypes []string) NodeName {
	return NodeName{Kind: KindDefaultPolicy, DefaultPolicy: DefaultPolicyRef{
		Anchor: anchor, WildcardPath: wildcardPath, TargetTypes: Fingerprint(targetTypes),
	}}
}

// PolicyAgentName builds a synthetic PolicyAgent NodeName from a
// policy kind and the sorted fingerprint of its grantee NodeNames.
func PolicyAgentName(policyKind string, granteeNames []string) NodeName {
	return NodeName{Kind: KindPolicyAgent, PolicyAgent: PolicyAgentRef{
		PolicyKind: policyKind, Grantees: Fingerprint(granteeNames),
	}}
}

// Fingerprint canonicalizes a string set into a stable, order-
// independent key (sorted, comma-joined). Used for grantee sets and
// target-type sets so that structurally-equal sets produce identical
// NodeName payloads regardless of input order (spec §3 invariant 2).
func Fingerprint(items []string) string {
	cp := append([]string(nil), items...)
	sort.Strings(cp)
	return strings.Join(cp, ",")
}
