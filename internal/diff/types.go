// Package diff computes the four diff kinds of spec §4.9 (policy,
// default-policy, membership, user-identity) between the graph's
// observed state and a desired CombinedPolicyState from
// internal/configparser, then splits a global diff into each
// connector's local diff (SplitAndTranslate, using internal/translate's
// Translator for the id lookups) (spec §4.5, §4.10).
package diff

import "github.com/jettylabs/jetty-access-control/internal/model"

// ChangeOp is the shape shared by every diff kind's three operations
// (spec §4.9): Add, Remove, Modify.
type ChangeOp int

const (
	OpAddAgent ChangeOp = iota
	OpRemoveAgent
	OpModifyAgent
)

func (o ChangeOp) String() string {
	switch o {
	case OpAddAgent:
		return "AddAgent"
	case OpRemoveAgent:
		return "RemoveAgent"
	case OpModifyAgent:
		return "ModifyAgent"
	default:
		return "Unknown"
	}
}

// PolicyKey identifies an ordinary policy diff entry: per (asset, agent).
type PolicyKey struct {
	Asset     string
	AgentKind string
	AgentKey  string
}

// PolicyChange is one policy-diff entry (spec §4.9.1). Grantees is the
// post-change grantee set (desired grantees for Add/Modify, observed
// grantees for Remove) — the apply orchestrator translates each
// NodeName to a connector-local id before handing it to a connector.
type PolicyChange struct {
	Key              PolicyKey
	Op               ChangeOp
	Grantees         []model.NodeName
	AddPrivileges    model.StringSet
	RemovePrivileges model.StringSet
	ConnectorManaged bool
}

// ManagedTransition captures the connector_managed transition a
// default-policy Modify can also carry (spec §4.9.2).
type ManagedTransition int

const (
	ManagedUnchanged ManagedTransition = iota
	ManagedChanged
)

// DefaultPolicyKey identifies a default-policy diff entry: per
// (asset, path, types).
type DefaultPolicyKey struct {
	Anchor       string
	WildcardPath string
	TargetTypes  string // model.Fingerprint of the target type set
}

// DefaultPolicyChange is one default-policy diff entry (spec §4.9.2).
type DefaultPolicyChange struct {
	Key               DefaultPolicyKey
	Op                ChangeOp
	Grantees          []model.NodeName
	AddPrivileges     model.StringSet
	RemovePrivileges  model.StringSet
	ManagedTransition ManagedTransition
	ConnectorManaged  bool // the target value when ManagedTransition == ManagedChanged
}

// MembershipChange is one group's membership diff entry (spec §4.9.3).
type MembershipChange struct {
	Group        model.GroupName
	AddUsers     []string // emails
	RemoveUsers  []string
	AddGroups    []model.GroupName
	RemoveGroups []model.GroupName
}

// IdentityChange reconciles a user's identifier sets across configs
// (spec §4.9.4).
type IdentityChange struct {
	Email          string
	AddOtherNames  []string
	RemovePlatform map[string]string // connector -> platform id to drop
	AddPlatform    map[string]string
}

// GlobalDiff is the full, connector-agnostic diff produced by
// internal/diff before it gets split and translated per namespace
// (spec §4.9's "result is split by connector").
type GlobalDiff struct {
	Policies        []PolicyChange
	DefaultPolicies []DefaultPolicyChange
	Memberships     []MembershipChange
	Identities      []IdentityChange
}

// IsEmpty reports whether the diff carries no changes at all — used
// by the apply orchestrator's re-fetch/re-diff residual check
// (spec §4.10, invariant 6).
func (d GlobalDiff) IsEmpty() bool {
	return len(d.Policies) == 0 && len(d.DefaultPolicies) == 0 &&
		len(d.Memberships) == 0 && len(d.Identities) == 0
}

// LocalDiff is a GlobalDiff whose NodeNames have been translated to a
// single connector's local identifiers (spec §4.5's "Local diff").
type LocalDiff struct {
	Namespace       string
	Policies        []LocalPolicyChange
	DefaultPolicies []LocalDefaultPolicyChange
	Memberships     []LocalMembershipChange
	Identities      []LocalIdentityChange
}

// IsEmpty reports whether this connector has nothing to apply.
func (d LocalDiff) IsEmpty() bool {
	return len(d.Policies) == 0 && len(d.DefaultPolicies) == 0 &&
		len(d.Memberships) == 0 && len(d.Identities) == 0
}

type LocalPolicyChange struct {
	AssetLocalID     string
	AgentKind        string
	AgentLocalIDs    []string
	Op               ChangeOp
	AddPrivileges    []string
	RemovePrivileges []string
}

type LocalDefaultPolicyChange struct {
	AnchorLocalID    string
	WildcardPath     string
	TargetTypes      []string
	AgentLocalIDs    []string
	Op               ChangeOp
	AddPrivileges    []string
	RemovePrivileges []string
	Skip             bool // true when a Modify's managed-target is false (spec §4.9.2)
}

type LocalMembershipChange struct {
	GroupLocalID        string
	AddUserLocalIDs     []string
	RemoveUserLocalIDs  []string
	AddGroupLocalIDs    []string
	RemoveGroupLocalIDs []string
}

type LocalIdentityChange struct {
	UserLocalID    string
	AddOtherNames  []string
	AddPlatform    map[string]string
	RemovePlatform map[string]string
}

// ApplyReport has the same fields as connector.ApplyReport, which is
// the type Connector.ApplyChanges returns (spec §4.11); nothing in this
// module builds a diff.ApplyReport.
type ApplyReport struct {
	Applied int
	Skipped []SkipReason
	Errors  []error
}

// SkipReason records why one change was not applied, e.g. the
// connector-managed gating of spec §4.9.1/S4.
type SkipReason struct {
	Reason string
	Detail string
}
