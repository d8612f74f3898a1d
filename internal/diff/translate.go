package diff

import (
	"github.com/jettylabs/jetty-access-control/internal/cual"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// localTranslator is the narrow surface diff.SplitAndTranslate needs
// from *translate.Translator.
type localTranslator interface {
	ToLocal(namespace string, name model.NodeName) (string, error)
}

// SplitAndTranslate splits global by connector namespace (derived from
// each change's asset/anchor CUAL scheme, or a group's Origin, or an
// identity change's per-namespace platform maps) and translates every
// NodeName to that connector's local id, producing one LocalDiff per
// namespace with a non-empty result (spec §4.9's "split by connector",
// §4.5's local-diff shape).
//
// A TranslationError for one namespace does not affect others — the
// caller receives a partial map plus a map of per-namespace errors
// (spec §7: "fatal to apply for that connector only", scenario S6).
func SplitAndTranslate(global *GlobalDiff, t localTranslator) (map[string]*LocalDiff, map[string]error) {
	diffs := make(map[string]*LocalDiff)
	errs := make(map[string]error)

	get := func(ns string) *LocalDiff {
		d, ok := diffs[ns]
		if !ok {
			d = &LocalDiff{Namespace: ns}
			diffs[ns] = d
		}
		return d
	}

	fail := func(ns string, err error) {
		if _, already := errs[ns]; already {
			return
		}
		errs[ns] = err
		delete(diffs, ns)
	}

	for _, pc := range global.Policies {
		ns := namespaceOf(pc.Key.Asset)
		if _, failed := errs[ns]; failed {
			continue
		}
		assetLocal, err := t.ToLocal(ns, model.AssetName(pc.Key.Asset))
		if err != nil {
			fail(ns, err)
			continue
		}
		agentIDs, err := translateGrantees(ns, pc.Grantees, t)
		if err != nil {
			fail(ns, err)
			continue
		}
		d := get(ns)
		d.Policies = append(d.Policies, LocalPolicyChange{
			AssetLocalID: assetLocal, AgentKind: pc.Key.AgentKind, AgentLocalIDs: agentIDs,
			Op: pc.Op, AddPrivileges: pc.AddPrivileges.Slice(), RemovePrivileges: pc.RemovePrivileges.Slice(),
		})
	}

	for _, dc := range global.DefaultPolicies {
		ns := namespaceOf(dc.Key.Anchor)
		if _, failed := errs[ns]; failed {
			continue
		}
		anchorLocal, err := t.ToLocal(ns, model.AssetName(dc.Key.Anchor))
		if err != nil {
			fail(ns, err)
			continue
		}
		agentIDs, err := translateGrantees(ns, dc.Grantees, t)
		if err != nil {
			fail(ns, err)
			continue
		}
		skip := dc.Op == OpModifyAgent && dc.ManagedTransition == ManagedChanged && !dc.ConnectorManaged
		d := get(ns)
		d.DefaultPolicies = append(d.DefaultPolicies, LocalDefaultPolicyChange{
			AnchorLocalID: anchorLocal, WildcardPath: dc.Key.WildcardPath, AgentLocalIDs: agentIDs,
			Op: dc.Op, AddPrivileges: dc.AddPrivileges.Slice(), RemovePrivileges: dc.RemovePrivileges.Slice(),
			Skip: skip,
		})
	}

	for _, mc := range global.Memberships {
		ns := mc.Group.Origin
		if _, failed := errs[ns]; failed {
			continue
		}
		groupLocal, err := t.ToLocal(ns, model.GroupNodeName(mc.Group.Name, mc.Group.Origin))
		if err != nil {
			fail(ns, err)
			continue
		}
		addUserIDs, err := translateEmails(ns, mc.AddUsers, t)
		if err != nil {
			fail(ns, err)
			continue
		}
		removeUserIDs, err := translateEmails(ns, mc.RemoveUsers, t)
		if err != nil {
			fail(ns, err)
			continue
		}
		addGroupIDs, err := translateGroupNames(ns, mc.AddGroups, t)
		if err != nil {
			fail(ns, err)
			continue
		}
		removeGroupIDs, err := translateGroupNames(ns, mc.RemoveGroups, t)
		if err != nil {
			fail(ns, err)
			continue
		}
		d := get(ns)
		d.Memberships = append(d.Memberships, LocalMembershipChange{
			GroupLocalID: groupLocal, AddUserLocalIDs: addUserIDs, RemoveUserLocalIDs: removeUserIDs,
			AddGroupLocalIDs: addGroupIDs, RemoveGroupLocalIDs: removeGroupIDs,
		})
	}

	for _, ic := range global.Identities {
		for ns := range unionKeys(ic.AddPlatform, ic.RemovePlatform) {
			if _, failed := errs[ns]; failed {
				continue
			}
			userLocal, err := t.ToLocal(ns, model.UserName(ic.Email))
			if err != nil {
				fail(ns, err)
				continue
			}
			d := get(ns)
			d.Identities = append(d.Identities, LocalIdentityChange{
				UserLocalID:    userLocal,
				AddPlatform:    map[string]string{ns: ic.AddPlatform[ns]},
				RemovePlatform: map[string]string{ns: ic.RemovePlatform[ns]},
			})
		}
	}

	for ns, d := range diffs {
		if d.IsEmpty() {
			delete(diffs, ns)
		}
	}
	return diffs, errs
}

func translateGrantees(ns string, grantees []model.NodeName, t localTranslator) ([]string, error) {
	out := make([]string, 0, len(grantees))
	for _, g := range grantees {
		id, err := t.ToLocal(ns, g)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func translateEmails(ns string, emails []string, t localTranslator) ([]string, error) {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		id, err := t.ToLocal(ns, model.UserName(e))
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func translateGroupNames(ns string, names []model.GroupName, t localTranslator) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		id, err := t.ToLocal(ns, model.GroupNodeName(n.Name, n.Origin))
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func unionKeys(a, b map[string]string) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// namespaceOf recovers the connector namespace that produced an asset
// CUAL (builder/assets.go renders assets with namespace as scheme).
func namespaceOf(assetCUAL string) string {
	c, err := cual.Parse(assetCUAL)
	if err != nil {
		return ""
	}
	return c.Scheme()
}
