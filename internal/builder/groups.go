package builder

import (
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// buildGroups emits one Group node per connector group record (origin
// qualifies the name so two connectors' "admins" groups stay
// distinct), then adds MemberOf/Includes edges for direct user and
// group members (spec §4.4 step 2).
func (b *Builder) buildGroups(inputs []Input, stats *Stats) error {
	for _, in := range inputs {
		for _, rec := range in.Data.Groups {
			name := model.GroupNodeName(rec.Name, in.Namespace)
			node := &model.GroupNode{
				GroupName:      rec.Name,
				Origin:         in.Namespace,
				ConnectorsSeen: model.NewStringSet(in.Namespace),
				Metadata:       cloneMetadata(rec.Metadata),
			}
			if _, err := b.graph.AddNode(node); err != nil {
				return mustNotFatal(err, in.Namespace, "build_groups")
			}
			stats.Groups++

			if err := b.translator.Record(in.Namespace, "group", rec.LocalID, name); err != nil {
				return err
			}
		}
	}

	for _, in := range inputs {
		for _, rec := range in.Data.Groups {
			groupName, ok := b.translator.ToGlobal(in.Namespace, "group", rec.LocalID)
			if !ok {
				continue
			}
			for _, memberLocalID := range rec.MemberUserIDs {
				userName, ok := b.translator.ToGlobal(in.Namespace, "user", memberLocalID)
				if !ok {
					continue
				}
				if err := addEdgeCounted(b.graph, userName, groupName, model.EdgeMemberOf, stats); err != nil {
					return err
				}
			}
			for _, memberLocalID := range rec.MemberGroupIDs {
				memberGroupName, ok := b.translator.ToGlobal(in.Namespace, "group", memberLocalID)
				if !ok {
					continue
				}
				if err := addEdgeCounted(b.graph, memberGroupName, groupName, model.EdgeMemberOf, stats); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// addEdgeCounted wraps Graph.AddEdge, treating a DeferredEdgeError as
// a recoverable per-step collectible (spec §4.4) instead of aborting
// the build.
func addEdgeCounted(graph edgeAdder, from, to model.NodeName, kind model.EdgeKind, stats *Stats) error {
	err := graph.AddEdge(from, to, kind)
	if err == nil {
		stats.Edges++
		return nil
	}
	return collectDeferred(err, stats)
}

// edgeAdder is the narrow surface builder step files need from
// *graphstore.Graph.
type edgeAdder interface {
	AddEdge(from, to model.NodeName, kind model.EdgeKind) error
}
