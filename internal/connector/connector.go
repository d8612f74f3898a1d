// Package connector defines the capability interface every data
// platform adapter implements (spec §4.11). Concrete network clients
// (REST/JWT/SQL-over-HTTPS) are out of scope (spec §1); this package
// owns only the interface, the raw data shape connectors hand back to
// the builder, and the manifest contract used to validate both
// observed and desired privileges.
package connector

import "context"

// AssetPrivileges maps an asset type to the privilege strings that
// connector allows on it (spec §3 invariant 7, §4.11).
type AssetPrivileges map[string]map[string]struct{}

// Allows reports whether privilege is a legal grant on assetType.
func (a AssetPrivileges) Allows(assetType, privilege string) bool {
	set, ok := a[assetType]
	if !ok {
		return false
	}
	_, ok = set[privilege]
	return ok
}

// Capability flags a connector-specific feature, e.g. "default_policies"
// or "lineage".
type Capability string

// Manifest is returned by Connector.Manifest and consulted both during
// build (to validate observed data) and during config parsing (to
// validate desired state) — spec §4.11.
type Manifest struct {
	Namespace       string
	Kind            string
	AssetPrivileges AssetPrivileges
	Capabilities    map[Capability]struct{}
}

// HasCapability reports whether the connector supports cap.
func (m Manifest) HasCapability(cap Capability) bool {
	_, ok := m.Capabilities[cap]
	return ok
}

// UserRecord is one connector-local user observation.
type UserRecord struct {
	LocalID    string
	Email      string
	FirstName  string
	LastName   string
	OtherNames []string
	PlatformID string
	Metadata   map[string]string
}

// GroupRecord is one connector-local group observation. MemberUserIDs
// and MemberGroupIDs are connector-local ids of direct members.
type GroupRecord struct {
	LocalID        string
	Name           string
	MemberUserIDs  []string
	MemberGroupIDs []string
	Metadata       map[string]string
}

// AssetRecord is one connector-local asset observation.
// ParentLocalID is empty at the hierarchy root. DerivedFromLocalIDs
// names upstream assets for lineage edges (spec §4.4 step 3).
type AssetRecord struct {
	LocalID             string
	PathSegments        []string
	AssetType           string
	ParentLocalID       string
	DerivedFromLocalIDs []string
	EmbeddedSQL         string // non-empty for transform models; fed to C13
	SQLDialect          string
	Metadata            map[string]string
}

// PolicyRecord is one connector-local ordinary policy observation
// (spec §4.4 step 4).
type PolicyRecord struct {
	LocalID          string
	AssetLocalID     string
	Privileges       []string
	GranteeLocalIDs  []string // user or group local ids
	ConnectorManaged bool
	Metadata         map[string]string
}

// DefaultPolicyRecord is one connector-local default (wildcard) policy
// observation (spec §4.4 step 5).
type DefaultPolicyRecord struct {
	LocalID          string
	AnchorLocalID    string
	WildcardPath     string
	TargetTypes      []string
	Privileges       []string
	GranteeLocalIDs  []string
	ConnectorManaged bool
}

// TagRecord is one connector-local tag declaration plus its
// applications and explicit removals (spec §4.4 step 6).
type TagRecord struct {
	Name                     string
	PassesValue              bool
	Description              string
	AppliedToAssetLocalIDs   []string
	RemovedFromAssetLocalIDs []string
}

// EffectivePermissionRecord is a connector-reported (user, asset) grant,
// used only as lineage/cross-check input, never authoritative
// (spec §4.4's ConnectorData.effective_permissions field).
type EffectivePermissionRecord struct {
	UserLocalID  string
	AssetLocalID string
	Privileges   []string
}

// Data is everything one connector hands the builder for one fetch
// (spec §4.4).
type Data struct {
	Namespace            string
	Users                []UserRecord
	Groups               []GroupRecord
	Assets               []AssetRecord
	Policies             []PolicyRecord
	DefaultPolicies      []DefaultPolicyRecord
	Tags                 []TagRecord
	EffectivePermissions []EffectivePermissionRecord
}

// Connector is the capability abstraction every platform adapter
// implements (spec §4.11); concrete adapters register one vtable per
// connector kind at startup (spec §9).
type Connector interface {
	GetData(ctx context.Context) (*Data, error)
	ApplyChanges(ctx context.Context, diff LocalDiffApplier) (*ApplyReport, error)
	Manifest() Manifest
}

// LocalDiffApplier is satisfied by diff.LocalDiff; declared here as a
// narrow interface so this package never imports internal/diff back
// (ApplyReport is also declared in this package below for the same
// reason).
type LocalDiffApplier interface {
	IsEmpty() bool
}

// ApplyReport has the same fields as diff.ApplyReport but is a separate
// type: connectors return this one, and internal/apply hands it to its
// callers as is, with no conversion.
type ApplyReport struct {
	Applied int
	Skipped []SkipReason
	Errors  []error
}

// SkipReason records why a change was not applied (e.g. not
// connector-managed, spec S4).
type SkipReason struct {
	Reason string
	Detail string
}
