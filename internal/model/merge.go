package model

import (
	"fmt"

	jettyerrors "github.com/jettylabs/jetty-access-control/internal/errors"
)

// mergeMetadata implements spec §4.2's map-typed metadata merge:
// equal values are kept, a value present on only one side is taken,
// and any genuine conflict is fatal — it is never silently overwritten.
func mergeMetadata(a, b map[string]string, name fmt.Stringer) (map[string]string, error) {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; ok && existing != v {
			return nil, jettyerrors.MergeConflict(
				"%s: metadata key %q conflicts (%q vs %q)", name, k, existing, v)
		}
		out[k] = v
	}
	return out, nil
}

func mustEqual(field, a, b string, name fmt.Stringer) error {
	if a != "" && b != "" && a != b {
		return jettyerrors.MergeConflict("%s: field %q conflicts (%q vs %q)", name, field, a, b)
	}
	return nil
}

// Merge reconciles two nodes with the same NodeName (spec §4.2).
// Variant mismatch is always fatal. The incoming node's union/merge
// result is returned; the caller upserts it in place of both inputs.
func Merge(existing, incoming Node) (Node, error) {
	name := existing.Name()
	if existing.Name() != incoming.Name() {
		return nil, jettyerrors.MergeConflict("merge called on mismatched names: %s vs %s", existing.Name(), incoming.Name())
	}

	switch e := existing.(type) {
	case *UserNode:
		i, ok := incoming.(*UserNode)
		if !ok {
			return nil, variantMismatch(name)
		}
		return mergeUsers(e, i)
	case *GroupNode:
		i, ok := incoming.(*GroupNode)
		if !ok {
			return nil, variantMismatch(name)
		}
		return mergeGroups(e, i)
	case *AssetNode:
		i, ok := incoming.(*AssetNode)
		if !ok {
			return nil, variantMismatch(name)
		}
		return mergeAssets(e, i)
	case *PolicyNode:
		i, ok := incoming.(*PolicyNode)
		if !ok {
			return nil, variantMismatch(name)
		}
		return mergePolicies(e, i)
	case *DefaultPolicyNode:
		i, ok := incoming.(*DefaultPolicyNode)
		if !ok {
			return nil, variantMismatch(name)
		}
		return mergeDefaultPolicies(e, i)
	case *TagNode:
		i, ok := incoming.(*TagNode)
		if !ok {
			return nil, variantMismatch(name)
		}
		return mergeTags(e, i)
	case *PolicyAgentNode:
		i, ok := incoming.(*PolicyAgentNode)
		if !ok {
			return nil, variantMismatch(name)
		}
		return e, nilIfSameGrantees(e, i)
	default:
		return nil, jettyerrors.MergeConflict("merge: unknown node variant for %s", name)
	}
}

func variantMismatch(name fmt.Stringer) error {
	return jettyerrors.MergeConflict("%s: merge called with mismatched node variants", name)
}

func nilIfSameGrantees(e, i *PolicyAgentNode) error {
	if e.Name() != i.Name() {
		return jettyerrors.MergeConflict("%s: policy agent grantee mismatch", e.Name())
	}
	return nil
}

func mergeUsers(e, i *UserNode) (*UserNode, error) {
	name := e.Name()
	if err := mustEqual("first_name", e.FirstName, i.FirstName, name); err != nil {
		return nil, err
	}
	if err := mustEqual("last_name", e.LastName, i.LastName, name); err != nil {
		return nil, err
	}
	meta, err := mergeMetadata(e.Metadata, i.Metadata, name)
	if err != nil {
		return nil, err
	}
	platformIDs := make(map[string]string, len(e.PlatformIDs)+len(i.PlatformIDs))
	for k, v := range e.PlatformIDs {
		platformIDs[k] = v
	}
	for k, v := range i.PlatformIDs {
		if existing, ok := platformIDs[k]; ok && existing != v {
			return nil, jettyerrors.MergeConflict("%s: platform id for %q conflicts (%q vs %q)", name, k, existing, v)
		}
		platformIDs[k] = v
	}
	return &UserNode{
		Email:          e.Email,
		FirstName:      firstNonEmpty(e.FirstName, i.FirstName),
		LastName:       firstNonEmpty(e.LastName, i.LastName),
		PlatformIDs:    platformIDs,
		OtherNames:     e.OtherNames.Union(i.OtherNames),
		ConnectorsSeen: e.ConnectorsSeen.Union(i.ConnectorsSeen),
		Metadata:       meta,
	}, nil
}

func mergeGroups(e, i *GroupNode) (*GroupNode, error) {
	name := e.Name()
	meta, err := mergeMetadata(e.Metadata, i.Metadata, name)
	if err != nil {
		return nil, err
	}
	return &GroupNode{
		GroupName:      e.GroupName,
		Origin:         e.Origin,
		ConnectorsSeen: e.ConnectorsSeen.Union(i.ConnectorsSeen),
		Metadata:       meta,
	}, nil
}

func mergeAssets(e, i *AssetNode) (*AssetNode, error) {
	name := e.Name()
	if err := mustEqual("asset_type", e.AssetType, i.AssetType, name); err != nil {
		return nil, err
	}
	meta, err := mergeMetadata(e.Metadata, i.Metadata, name)
	if err != nil {
		return nil, err
	}
	return &AssetNode{
		CUAL:       e.CUAL,
		AssetType:  firstNonEmpty(e.AssetType, i.AssetType),
		Connectors: e.Connectors.Union(i.Connectors),
		Metadata:   meta,
	}, nil
}

func mergePolicies(e, i *PolicyNode) (*PolicyNode, error) {
	name := e.Name()
	if e.ConnectorManaged != i.ConnectorManaged {
		return nil, jettyerrors.MergeConflict("%s: connector_managed conflicts (%v vs %v)", name, e.ConnectorManaged, i.ConnectorManaged)
	}
	meta, err := mergeMetadata(e.Metadata, i.Metadata, name)
	if err != nil {
		return nil, err
	}
	return &PolicyNode{
		Asset:            e.Asset,
		AgentKind:        e.AgentKind,
		AgentKey:         e.AgentKey,
		Privileges:       e.Privileges.Union(i.Privileges),
		ConnectorManaged: e.ConnectorManaged,
		Metadata:         meta,
	}, nil
}

func mergeDefaultPolicies(e, i *DefaultPolicyNode) (*DefaultPolicyNode, error) {
	name := e.Name()
	if e.ConnectorManaged != i.ConnectorManaged {
		return nil, jettyerrors.MergeConflict("%s: connector_managed conflicts (%v vs %v)", name, e.ConnectorManaged, i.ConnectorManaged)
	}
	meta, err := mergeMetadata(e.Metadata, i.Metadata, name)
	if err != nil {
		return nil, err
	}
	return &DefaultPolicyNode{
		Anchor:           e.Anchor,
		WildcardPath:     e.WildcardPath,
		TargetTypes:      e.TargetTypes,
		Privileges:       e.Privileges.Union(i.Privileges),
		ConnectorManaged: e.ConnectorManaged,
		Metadata:         meta,
	}, nil
}

func mergeTags(e, i *TagNode) (*TagNode, error) {
	name := e.Name()
	if e.PassesValue != i.PassesValue {
		return nil, jettyerrors.MergeConflict("%s: value_pass_through conflicts", name)
	}
	meta, err := mergeMetadata(e.Metadata, i.Metadata, name)
	if err != nil {
		return nil, err
	}
	return &TagNode{
		TagName:     e.TagName,
		PassesValue: e.PassesValue,
		Description: firstNonEmpty(e.Description, i.Description),
		Metadata:    meta,
	}, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
