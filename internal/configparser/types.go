package configparser

// groupsFile is the parsed shape of groups/groups.yaml: a flat list of
// group declarations, each carrying the name that connector reports
// for it plus any nested member groups (spec §6).
type groupsFile struct {
	Groups []groupDecl `yaml:"groups"`
}

type groupDecl struct {
	Name string `yaml:"name"`
	// Connectors maps a connector namespace to the group name that
	// connector's GetData reports for this logical group (builder
	// keys GroupNode on exactly that name, so no further translation
	// is needed — spec §3 invariant 5).
	Connectors   map[string]string `yaml:"connectors"`
	MemberGroups []string          `yaml:"member_groups"`
}

// userFile is one users/**/*.yaml document.
type userFile struct {
	Name        string            `yaml:"name"`
	Email       string            `yaml:"email"`
	Identifiers map[string]string `yaml:"identifiers"`
	Groups      []string          `yaml:"groups"`
}

// assetFile is one assets/**/*.yaml document.
type assetFile struct {
	Identifier      assetIdentifier     `yaml:"identifier"`
	AssetType       string              `yaml:"asset_type"`
	Policies        []policyDecl        `yaml:"policies"`
	DefaultPolicies []defaultPolicyDecl `yaml:"default_policies"`
}

type assetIdentifier struct {
	Connector string   `yaml:"connector"`
	Authority string   `yaml:"authority"`
	Path      []string `yaml:"path"`
}

type policyDecl struct {
	Grantees         []string `yaml:"grantees"`
	Privileges       []string `yaml:"privileges"`
	ConnectorManaged bool     `yaml:"connector_managed"`
}

type defaultPolicyDecl struct {
	WildcardPath     string   `yaml:"path"`
	TargetTypes      []string `yaml:"target_types"`
	Grantees         []string `yaml:"grantees"`
	Privileges       []string `yaml:"privileges"`
	ConnectorManaged bool     `yaml:"connector_managed"`
}

// tagsFile is tags.yaml.
type tagsFile struct {
	Tags []tagDecl `yaml:"tags"`
}

type tagDecl struct {
	Name        string   `yaml:"name"`
	PassesValue bool     `yaml:"passes_value"`
	Description string   `yaml:"description"`
	AppliedTo   []string `yaml:"applied_to"`
	RemovedFrom []string `yaml:"removed_from"`
}
