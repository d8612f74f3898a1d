package builder

import (
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// buildTags emits one Tag node per distinct tag name (a tag declared
// by more than one connector merges via model.Merge's scalar-equality
// rule), then applies TaggedAs/AppliedTo edges for every asset the tag
// covers, and explicit RemovedFrom edges for exceptions carved out of
// an otherwise-applied tag (spec §4.4 step 6).
func (b *Builder) buildTags(inputs []Input, stats *Stats) error {
	for _, in := range inputs {
		for _, rec := range in.Data.Tags {
			node := &model.TagNode{
				TagName:     rec.Name,
				PassesValue: rec.PassesValue,
				Description: rec.Description,
				Metadata:    map[string]string{},
			}
			if _, err := b.graph.AddNode(node); err != nil {
				return mustNotFatal(err, in.Namespace, "build_tags")
			}
			stats.Tags++
		}
	}

	for _, in := range inputs {
		for _, rec := range in.Data.Tags {
			tagName := model.TagName(rec.Name)
			for _, assetLocalID := range rec.AppliedToAssetLocalIDs {
				assetName, ok := b.translator.ToGlobal(in.Namespace, "asset", assetLocalID)
				if !ok {
					continue
				}
				if err := addEdgeCounted(b.graph, tagName, assetName, model.EdgeTaggedAs, stats); err != nil {
					return err
				}
			}
			for _, assetLocalID := range rec.RemovedFromAssetLocalIDs {
				assetName, ok := b.translator.ToGlobal(in.Namespace, "asset", assetLocalID)
				if !ok {
					continue
				}
				if err := addEdgeCounted(b.graph, tagName, assetName, model.EdgeRemovedFrom, stats); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
