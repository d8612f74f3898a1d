package model

// EdgeKind enumerates the typed, directed edge kinds of spec §3. Every
// kind has an Inverse(); insertion always adds both directions
// atomically (invariant 1).
type EdgeKind int

const (
	EdgeMemberOf EdgeKind = iota
	EdgeIncludes
	EdgeChildOf
	EdgeParentOf
	EdgeDerivedFrom
	EdgeDerivedTo
	EdgeGovernedBy
	EdgeGoverns
	EdgeAppliesTo
	EdgeGrantedTo
	EdgeTaggedAs
	EdgeAppliedTo
	EdgeRemovedFrom
	EdgeRemovedFromInverse
)

// Inverse returns the symmetric counterpart of a given edge kind.
func (k EdgeKind) Inverse() EdgeKind {
	switch k {
	case EdgeMemberOf:
		return EdgeIncludes
	case EdgeIncludes:
		return EdgeMemberOf
	case EdgeChildOf:
		return EdgeParentOf
	case EdgeParentOf:
		return EdgeChildOf
	case EdgeDerivedFrom:
		return EdgeDerivedTo
	case EdgeDerivedTo:
		return EdgeDerivedFrom
	case EdgeGovernedBy:
		return EdgeGoverns
	case EdgeGoverns:
		return EdgeGovernedBy
	case EdgeAppliesTo:
		return EdgeGrantedTo
	case EdgeGrantedTo:
		return EdgeAppliesTo
	case EdgeTaggedAs:
		return EdgeAppliedTo
	case EdgeAppliedTo:
		return EdgeTaggedAs
	case EdgeRemovedFrom:
		return EdgeRemovedFromInverse
	case EdgeRemovedFromInverse:
		return EdgeRemovedFrom
	default:
		return k
	}
}

func (k EdgeKind) String() string {
	switch k {
	case EdgeMemberOf:
		return "MemberOf"
	case EdgeIncludes:
		return "Includes"
	case EdgeChildOf:
		return "ChildOf"
	case EdgeParentOf:
		return "ParentOf"
	case EdgeDerivedFrom:
		return "DerivedFrom"
	case EdgeDerivedTo:
		return "DerivedTo"
	case EdgeGovernedBy:
		return "GovernedBy"
	case EdgeGoverns:
		return "Governs"
	case EdgeAppliesTo:
		return "AppliesTo"
	case EdgeGrantedTo:
		return "GrantedTo"
	case EdgeTaggedAs:
		return "TaggedAs"
	case EdgeAppliedTo:
		return "AppliedTo"
	case EdgeRemovedFrom:
		return "RemovedFrom"
	case EdgeRemovedFromInverse:
		return "RemovedFromInverse"
	default:
		return "Unknown"
	}
}
