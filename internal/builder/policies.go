package builder

import (
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// buildPolicies emits one Policy node per connector policy record and
// synthesizes a PolicyAgent node per unique (policy-kind, grantees-set)
// so privilege-sets stay 1:1 with assets even when many grantees share
// a grant (spec §4.4 step 4). Wiring is
// Asset —GovernedBy→ Policy —GrantedTo→ Agent —Includes→ (User|Group).
func (b *Builder) buildPolicies(inputs []Input, stats *Stats) error {
	for _, in := range inputs {
		for _, rec := range in.Data.Policies {
			assetName, ok := b.translator.ToGlobal(in.Namespace, "asset", rec.AssetLocalID)
			if !ok {
				continue
			}

			granteeNodeNames := b.resolveGrantees(in.Namespace, rec.GranteeLocalIDs)
			if len(granteeNodeNames) == 0 {
				continue
			}
			granteeNames := make([]string, len(granteeNodeNames))
			for i, n := range granteeNodeNames {
				granteeNames[i] = n.String()
			}

			agentName := model.PolicyAgentName("ordinary", granteeNames)
			agentNode := &model.PolicyAgentNode{PolicyKind: "ordinary", GranteeNames: granteeNames}
			if _, err := b.graph.AddNode(agentNode); err != nil {
				return mustNotFatal(err, in.Namespace, "build_policies.agent")
			}

			policyNode := &model.PolicyNode{
				Asset:            assetName.Asset,
				AgentKind:        "ordinary",
				AgentKey:         model.Fingerprint(granteeNames),
				Privileges:       model.NewStringSet(rec.Privileges...),
				ConnectorManaged: rec.ConnectorManaged,
				Metadata:         cloneMetadata(rec.Metadata),
			}
			if _, err := b.graph.AddNode(policyNode); err != nil {
				return mustNotFatal(err, in.Namespace, "build_policies.policy")
			}
			stats.Policies++
			stats.PolicyAgents++
			policyName := policyNode.Name()

			if err := addEdgeCounted(b.graph, assetName, policyName, model.EdgeGovernedBy, stats); err != nil {
				return err
			}
			if err := addEdgeCounted(b.graph, policyName, agentName, model.EdgeGrantedTo, stats); err != nil {
				return err
			}
			for _, granteeNodeName := range granteeNodeNames {
				if err := addEdgeCounted(b.graph, agentName, granteeNodeName, model.EdgeIncludes, stats); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// resolveGrantees translates connector-local grantee ids (which may
// be users or groups) to their global NodeNames, skipping any the
// builder hasn't seen yet rather than failing the whole policy. An id
// that resolves to neither a user nor a group is left out of the
// result; no error or deferred edge is reported for it.
func (b *Builder) resolveGrantees(namespace string, localIDs []string) []model.NodeName {
	var names []model.NodeName
	for _, id := range localIDs {
		if name, ok := b.translator.ToGlobal(namespace, "user", id); ok {
			names = append(names, name)
			continue
		}
		if name, ok := b.translator.ToGlobal(namespace, "group", id); ok {
			names = append(names, name)
		}
	}
	return names
}
