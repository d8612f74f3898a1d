// Package configparser reads the four YAML surfaces of spec §6 —
// groups/groups.yaml, assets/**/*.yml, users/**/*.yml, tags.yaml —
// into a CombinedPolicyState the diff engine compares against the
// graph's observed state (spec §4.8).
//
// Grounded on original_source/rusty_jetty/jetty_core/src/write/assets/parser.rs
// (directory walk + per-doc validation shape); directory walking uses
// path/filepath.WalkDir and YAML decoding uses gopkg.in/yaml.v3, both
// already used the same way by the teacher's internal/config package.
package configparser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jettylabs/jetty-access-control/internal/connector"
	"github.com/jettylabs/jetty-access-control/internal/cual"
	"github.com/jettylabs/jetty-access-control/internal/errors"
	"github.com/jettylabs/jetty-access-control/internal/model"
)

// ResolvedGroup is a groups.yaml entry after member-group name
// validation (spec §6: "group names that do not appear in groups.yaml
// anywhere ... are a parse error").
type ResolvedGroup struct {
	Name         string
	Connectors   map[string]string
	MemberGroups []string
}

// ResolvedUser is one users/**/*.yaml document.
type ResolvedUser struct {
	Name        string
	Email       string
	Identifiers map[string]string
	Groups      []string
}

// PolicyState is one desired (asset, agent) entry of CombinedPolicyState
// (spec §4.8, §4.9.1).
type PolicyState struct {
	Namespace        string
	Grantees         []model.NodeName
	Privileges       model.StringSet
	ConnectorManaged bool
}

// DefaultPolicyState is one desired (asset, path, types) entry
// (spec §4.8, §4.9.2).
type DefaultPolicyState struct {
	Namespace        string
	Grantees         []model.NodeName
	Privileges       model.StringSet
	ConnectorManaged bool
}

// CombinedPolicyState is C8's output (spec §4.8's exact shape).
type CombinedPolicyState struct {
	Policies        map[model.PolicyRef]PolicyState
	DefaultPolicies map[model.DefaultPolicyRef]DefaultPolicyState
}

// ParsedConfig is everything the three YAML surfaces yield: the
// CombinedPolicyState plus the group/user declarations the membership
// and identity diffs (spec §4.9.3, §4.9.4) need as desired state.
type ParsedConfig struct {
	Groups []ResolvedGroup
	Users  []ResolvedUser
	State  CombinedPolicyState
}

// Parse reads groupsPath, usersDir, assetsDir and tagsPath (all
// relative to a project root — callers resolve these from
// config.ProjectConfig's on-disk layout) and validates privileges
// against manifests, one per connector namespace.
func Parse(groupsPath, usersDir, assetsDir, tagsPath string, manifests map[string]connector.Manifest) (*ParsedConfig, error) {
	groups, groupByName, err := parseGroups(groupsPath)
	if err != nil {
		return nil, err
	}

	users, err := parseUsers(usersDir)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		for _, g := range u.Groups {
			if _, ok := groupByName[g]; !ok {
				return nil, errors.ConfigError("user %q references undeclared group %q", u.Email, g)
			}
		}
	}

	state := CombinedPolicyState{
		Policies:        make(map[model.PolicyRef]PolicyState),
		DefaultPolicies: make(map[model.DefaultPolicyRef]DefaultPolicyState),
	}
	if err := parseAssets(assetsDir, groupByName, manifests, &state); err != nil {
		return nil, err
	}

	if tagsPath != "" {
		if _, err := parseTags(tagsPath, groupByName); err != nil {
			return nil, err
		}
	}

	return &ParsedConfig{Groups: groups, Users: users, State: state}, nil
}

func parseGroups(path string) ([]ResolvedGroup, map[string]groupDecl, error) {
	var file groupsFile
	if err := decodeYAMLFile(path, &file); err != nil {
		return nil, nil, err
	}

	byName := make(map[string]groupDecl, len(file.Groups))
	for _, g := range file.Groups {
		byName[g.Name] = g
	}
	for _, g := range file.Groups {
		for _, member := range g.MemberGroups {
			if _, ok := byName[member]; !ok {
				return nil, nil, errors.ConfigError("group %q declares undeclared member_group %q", g.Name, member)
			}
		}
	}

	out := make([]ResolvedGroup, 0, len(file.Groups))
	for _, g := range file.Groups {
		out = append(out, ResolvedGroup{Name: g.Name, Connectors: g.Connectors, MemberGroups: g.MemberGroups})
	}
	return out, byName, nil
}

func parseUsers(dir string) ([]ResolvedUser, error) {
	docs, err := walkYAMLDocs(dir, func(data []byte, path string) (any, error) {
		var f userFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, errors.ConfigError("parse %s: %v", path, err)
		}
		if f.Email == "" {
			return nil, errors.ConfigError("%s: user document missing required field: email", path)
		}
		return ResolvedUser{Name: f.Name, Email: f.Email, Identifiers: f.Identifiers, Groups: f.Groups}, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]ResolvedUser, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.(ResolvedUser))
	}
	return out, nil
}

func parseAssets(dir string, groupByName map[string]groupDecl, manifests map[string]connector.Manifest, state *CombinedPolicyState) error {
	_, err := walkYAMLDocs(dir, func(data []byte, path string) (any, error) {
		var f assetFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, errors.ConfigError("parse %s: %v", path, err)
		}
		if f.Identifier.Connector == "" {
			return nil, errors.ConfigError("%s: asset document missing required field: identifier.connector", path)
		}
		namespace := f.Identifier.Connector
		manifest, ok := manifests[namespace]
		if !ok {
			return nil, errors.ConfigError("%s: asset references unknown connector namespace %q", path, namespace)
		}

		// Scheme is the connector namespace, matching how the builder
		// renders observed asset CUALs (internal/builder/assets.go),
		// not the connector kind — two connectors of the same kind
		// must still produce distinct CUALs.
		assetCUAL := cual.New(namespace, f.Identifier.Authority, f.Identifier.Path...).Render()

		for _, p := range f.Policies {
			if err := validatePrivileges(manifest, f.AssetType, p.Privileges); err != nil {
				return nil, errors.ConfigError("%s: %v", path, err)
			}
			grantees, err := resolveGrantees(namespace, p.Grantees, groupByName)
			if err != nil {
				return nil, errors.ConfigError("%s: %v", path, err)
			}
			granteeNames := nodeNameStrings(grantees)
			ref := model.PolicyRef{Asset: assetCUAL, AgentKind: "ordinary", AgentKey: model.Fingerprint(granteeNames)}
			state.Policies[ref] = PolicyState{
				Namespace:        namespace,
				Grantees:         grantees,
				Privileges:       model.NewStringSet(p.Privileges...),
				ConnectorManaged: p.ConnectorManaged,
			}
		}

		for _, dp := range f.DefaultPolicies {
			if err := validateWildcardPath(dp.WildcardPath); err != nil {
				return nil, errors.ConfigError("%s: %v", path, err)
			}
			if len(dp.TargetTypes) == 0 {
				return nil, errors.ConfigError("%s: default_policies entry missing required field: target_types", path)
			}
			for _, t := range dp.TargetTypes {
				if err := validatePrivileges(manifest, t, dp.Privileges); err != nil {
					return nil, errors.ConfigError("%s: %v", path, err)
				}
			}
			grantees, err := resolveGrantees(namespace, dp.Grantees, groupByName)
			if err != nil {
				return nil, errors.ConfigError("%s: %v", path, err)
			}
			ref := model.DefaultPolicyRef{Anchor: assetCUAL, WildcardPath: dp.WildcardPath, TargetTypes: model.Fingerprint(dp.TargetTypes)}
			state.DefaultPolicies[ref] = DefaultPolicyState{
				Namespace:        namespace,
				Grantees:         grantees,
				Privileges:       model.NewStringSet(dp.Privileges...),
				ConnectorManaged: dp.ConnectorManaged,
			}
		}

		return nil, nil
	})
	return err
}

func parseTags(path string, groupByName map[string]groupDecl) ([]tagDecl, error) {
	var file tagsFile
	if err := decodeYAMLFile(path, &file); err != nil {
		return nil, err
	}
	return file.Tags, nil
}

// resolveGrantees turns config grantee references (an email, or a
// group name declared in groups.yaml) into NodeNames anchored to
// namespace. A group reference resolves to the name that namespace's
// connector reports for it (spec §3 invariant 5); a group with no
// mapping for namespace is a config error, not a silent skip
// (spec §7: "never silently drop").
func resolveGrantees(namespace string, refs []string, groupByName map[string]groupDecl) ([]model.NodeName, error) {
	out := make([]model.NodeName, 0, len(refs))
	for _, ref := range refs {
		if decl, ok := groupByName[ref]; ok {
			localName, ok := decl.Connectors[namespace]
			if !ok {
				return nil, fmt.Errorf("group %q has no connector mapping for namespace %q", ref, namespace)
			}
			out = append(out, model.GroupNodeName(localName, namespace))
			continue
		}
		if strings.Contains(ref, "@") {
			out = append(out, model.UserName(ref))
			continue
		}
		return nil, fmt.Errorf("grantee %q is neither a declared group nor an email address", ref)
	}
	return out, nil
}

func nodeNameStrings(names []model.NodeName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return out
}

func validatePrivileges(manifest connector.Manifest, assetType string, privileges []string) error {
	for _, p := range privileges {
		if !manifest.AssetPrivileges.Allows(assetType, p) {
			return fmt.Errorf("privilege %q is not allowed on asset type %q by connector %q", p, assetType, manifest.Namespace)
		}
	}
	return nil
}

// validateWildcardPath enforces spec §3.6: only "*" (direct children)
// or "**" (all descendants) are legal wildcard path segments.
func validateWildcardPath(path string) error {
	if path != "*" && path != "**" {
		return fmt.Errorf("illegal wildcard path %q: must be \"*\" or \"**\"", path)
	}
	return nil
}

func decodeYAMLFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.ConfigError("read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.ConfigError("parse %s: %v", path, err)
	}
	return nil
}

// walkYAMLDocs walks dir for *.yml/*.yaml files (spec §6's "**/*.y?ml"
// glob) and decodes each through decode, skipping entirely when dir
// does not exist (a project with no per-asset or per-user docs is
// valid).
func walkYAMLDocs(dir string, decode func(data []byte, path string) (any, error)) ([]any, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var out []any
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return errors.ConfigError("read %s: %v", path, readErr)
		}
		doc, decodeErr := decode(data, path)
		if decodeErr != nil {
			return decodeErr
		}
		if doc != nil {
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
