package main

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jettylabs/jetty-access-control/internal/cual"
	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// The shapes below mirror internal/configparser's on-disk YAML layout
// field-for-field (groupDecl, userFile, assetFile, tagDecl) so a file
// bootstrap writes round-trips straight back through configparser.Parse.
// configparser's own structs are unexported, so these are re-declared
// here rather than reused.

type bootstrapGroupsFile struct {
	Groups []bootstrapGroupDecl `yaml:"groups"`
}

type bootstrapGroupDecl struct {
	Name         string            `yaml:"name"`
	Connectors   map[string]string `yaml:"connectors"`
	MemberGroups []string          `yaml:"member_groups,omitempty"`
}

type bootstrapUserFile struct {
	Name        string            `yaml:"name,omitempty"`
	Email       string            `yaml:"email"`
	Identifiers map[string]string `yaml:"identifiers,omitempty"`
	Groups      []string          `yaml:"groups,omitempty"`
}

type bootstrapAssetFile struct {
	Identifier bootstrapAssetIdentifier `yaml:"identifier"`
	AssetType  string                   `yaml:"asset_type,omitempty"`
}

type bootstrapAssetIdentifier struct {
	Connector string   `yaml:"connector"`
	Authority string   `yaml:"authority"`
	Path      []string `yaml:"path,omitempty"`
}

type bootstrapTagsFile struct {
	Tags []bootstrapTagDecl `yaml:"tags"`
}

type bootstrapTagDecl struct {
	Name        string   `yaml:"name"`
	PassesValue bool     `yaml:"passes_value"`
	Description string   `yaml:"description,omitempty"`
	AppliedTo   []string `yaml:"applied_to,omitempty"`
	RemovedFrom []string `yaml:"removed_from,omitempty"`
}

// groupKey is the composite name a bootstrapped groups.yaml uses to
// disambiguate same-named groups from different connectors
// (spec §3 invariant 5: same-named groups from different connectors
// never auto-merge), and the key renderUsers cross-references so a
// user's "groups" list lines up with what renderGroups just wrote.
func groupKey(name, origin string) string { return name + "@" + origin }

func renderGroups(graph *graphstore.Graph) []byte {
	var out bootstrapGroupsFile
	for _, n := range graph.Nodes() {
		g, ok := n.(*model.GroupNode)
		if !ok {
			continue
		}
		h, _ := graph.GetHandle(g.Name())
		var memberGroups []string
		for _, e := range graph.OutEdges(h) {
			if e.Kind != model.EdgeIncludes {
				continue
			}
			if member, ok := graph.Node(e.To).(*model.GroupNode); ok {
				memberGroups = append(memberGroups, groupKey(member.GroupName, member.Origin))
			}
		}
		sort.Strings(memberGroups)
		out.Groups = append(out.Groups, bootstrapGroupDecl{
			Name:         groupKey(g.GroupName, g.Origin),
			Connectors:   map[string]string{g.Origin: g.GroupName},
			MemberGroups: memberGroups,
		})
	}
	sort.Slice(out.Groups, func(i, j int) bool { return out.Groups[i].Name < out.Groups[j].Name })
	return mustMarshalYAML(out)
}

func renderUsers(graph *graphstore.Graph) map[string][]byte {
	files := make(map[string][]byte)
	for _, n := range graph.Nodes() {
		u, ok := n.(*model.UserNode)
		if !ok {
			continue
		}
		h, _ := graph.GetHandle(u.Name())
		var groups []string
		for _, e := range graph.OutEdges(h) {
			if e.Kind != model.EdgeMemberOf {
				continue
			}
			if g, ok := graph.Node(e.To).(*model.GroupNode); ok {
				groups = append(groups, groupKey(g.GroupName, g.Origin))
			}
		}
		sort.Strings(groups)

		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		doc := bootstrapUserFile{
			Name:        name,
			Email:       u.Email,
			Identifiers: u.PlatformIDs,
			Groups:      groups,
		}
		files[sanitizeFilename(u.Email)] = mustMarshalYAML(doc)
	}
	return files
}

// renderAssets seeds identity/structure only (spec §4.4's connector
// CUAL + asset_type), never policies: inferring a desired policy set
// from what's merely observed would hand back every existing grant as
// something the config now "wants", which defeats diff's whole point
// of surfacing drift.
func renderAssets(graph *graphstore.Graph) map[string][]byte {
	files := make(map[string][]byte)
	for _, n := range graph.Nodes() {
		a, ok := n.(*model.AssetNode)
		if !ok {
			continue
		}
		parsed, err := cual.Parse(a.CUAL)
		if err != nil {
			continue
		}
		doc := bootstrapAssetFile{
			Identifier: bootstrapAssetIdentifier{
				Connector: parsed.Scheme(),
				Authority: parsed.Authority(),
				Path:      parsed.Path(),
			},
			AssetType: a.AssetType,
		}
		name := strings.Join(append([]string{parsed.Authority()}, parsed.Path()...), "-")
		files[sanitizeFilename(name)] = mustMarshalYAML(doc)
	}
	return files
}

// renderTags walks each Tag node's outgoing TaggedAs/RemovedFrom edges
// to recover which assets it applies to and which are carved out as
// exceptions (spec §4.4 step 6). Tags are observation/config-only here
// (see DESIGN.md's C9 entry) so this is purely descriptive output.
func renderTags(graph *graphstore.Graph) []byte {
	var out bootstrapTagsFile
	for _, n := range graph.Nodes() {
		t, ok := n.(*model.TagNode)
		if !ok {
			continue
		}
		h, _ := graph.GetHandle(t.Name())
		var appliedTo, removedFrom []string
		for _, e := range graph.OutEdges(h) {
			asset, ok := graph.Node(e.To).(*model.AssetNode)
			if !ok {
				continue
			}
			switch e.Kind {
			case model.EdgeTaggedAs:
				appliedTo = append(appliedTo, asset.CUAL)
			case model.EdgeRemovedFrom:
				removedFrom = append(removedFrom, asset.CUAL)
			}
		}
		sort.Strings(appliedTo)
		sort.Strings(removedFrom)
		out.Tags = append(out.Tags, bootstrapTagDecl{
			Name:        t.TagName,
			PassesValue: t.PassesValue,
			Description: t.Description,
			AppliedTo:   appliedTo,
			RemovedFrom: removedFrom,
		})
	}
	sort.Slice(out.Tags, func(i, j int) bool { return out.Tags[i].Name < out.Tags[j].Name })
	return mustMarshalYAML(out)
}

func mustMarshalYAML(v any) []byte {
	data, err := yaml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// sanitizeFilename keeps a bootstrapped file name filesystem-safe
// without losing readability: everything that isn't alphanumeric,
// dot, dash, or underscore becomes an underscore.
func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
