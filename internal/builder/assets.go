package builder

import (
	"github.com/jettylabs/jetty-access-control/internal/cual"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// buildAssets emits one Asset node per connector asset record, keyed
// on its rendered CUAL (namespace as scheme, rec.LocalID as authority,
// rec.PathSegments as path), then adds ChildOf/ParentOf
// hierarchy edges and DerivedFrom/DerivedTo lineage edges from
// connector-reported upstream references (spec §4.4 step 3).
func (b *Builder) buildAssets(inputs []Input, stats *Stats) error {
	for _, in := range inputs {
		for _, rec := range in.Data.Assets {
			c := cual.New(in.Namespace, rec.LocalID, rec.PathSegments...)
			name := model.AssetName(c.Render())

			node := &model.AssetNode{
				CUAL:       c.Render(),
				AssetType:  rec.AssetType,
				Connectors: model.NewStringSet(in.Namespace),
				Metadata:   cloneMetadata(rec.Metadata),
			}
			if _, err := b.graph.AddNode(node); err != nil {
				return mustNotFatal(err, in.Namespace, "build_assets")
			}
			stats.Assets++

			if err := b.translator.Record(in.Namespace, "asset", rec.LocalID, name); err != nil {
				return err
			}
		}
	}

	for _, in := range inputs {
		for _, rec := range in.Data.Assets {
			childName, ok := b.translator.ToGlobal(in.Namespace, "asset", rec.LocalID)
			if !ok {
				continue
			}
			if rec.ParentLocalID != "" {
				parentName, ok := b.translator.ToGlobal(in.Namespace, "asset", rec.ParentLocalID)
				if ok {
					if err := addEdgeCounted(b.graph, childName, parentName, model.EdgeChildOf, stats); err != nil {
						return err
					}
				}
			}
			for _, upstreamLocalID := range rec.DerivedFromLocalIDs {
				upstreamName, ok := b.translator.ToGlobal(in.Namespace, "asset", upstreamLocalID)
				if !ok {
					continue
				}
				if err := addEdgeCounted(b.graph, childName, upstreamName, model.EdgeDerivedFrom, stats); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
