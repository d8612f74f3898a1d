package builder

import (
	"github.com/jettylabs/jetty-access-control/internal/logging"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// buildDefaultPolicies emits default (wildcard) policy nodes rooted at
// their anchor asset, validating wildcard_path before wiring it in
// (spec §4.4 step 5). An invalid wildcard path is a per-step
// collectible, not a fatal error — it means one connector's default
// policy is dropped, not that the whole build aborts.
func (b *Builder) buildDefaultPolicies(inputs []Input, stats *Stats) error {
	for _, in := range inputs {
		for _, rec := range in.Data.DefaultPolicies {
			anchorName, ok := b.translator.ToGlobal(in.Namespace, "asset", rec.AnchorLocalID)
			if !ok {
				continue
			}
			if err := validateWildcardPath(rec.WildcardPath); err != nil {
				logging.Warn("dropping default policy with invalid wildcard_path", "anchor", anchorName.String(), "namespace", in.Namespace, "error", err.Error())
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

			agentName := model.PolicyAgentName("default", granteeNames)
			agentNode := &model.PolicyAgentNode{PolicyKind: "default", GranteeNames: granteeNames}
			if _, err := b.graph.AddNode(agentNode); err != nil {
				return mustNotFatal(err, in.Namespace, "build_default_policies.agent")
			}

			policyNode := &model.DefaultPolicyNode{
				Anchor:           anchorName.Asset,
				WildcardPath:     rec.WildcardPath,
				TargetTypes:      rec.TargetTypes,
				Privileges:       model.NewStringSet(rec.Privileges...),
				ConnectorManaged: rec.ConnectorManaged,
				Metadata:         map[string]string{},
			}
			if _, err := b.graph.AddNode(policyNode); err != nil {
				return mustNotFatal(err, in.Namespace, "build_default_policies.policy")
			}
			stats.DefaultPolicies++
			policyName := policyNode.Name()

			if err := addEdgeCounted(b.graph, anchorName, policyName, model.EdgeGovernedBy, stats); err != nil {
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

// validateWildcardPath accepts "*" (direct children only) and "**"
// (all descendants); anything else is malformed (spec §4.7's
// specificity tie-break presumes exactly these two forms).
func validateWildcardPath(path string) error {
	switch path {
	case "*", "**":
		return nil
	default:
		return &invalidWildcardError{path: path}
	}
}

type invalidWildcardError struct{ path string }

func (e *invalidWildcardError) Error() string {
	return "invalid wildcard_path " + e.path + ", expected \"*\" or \"**\""
}
