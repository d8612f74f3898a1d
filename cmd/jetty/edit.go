package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jettylabs/jetty-access-control/internal/cual"
)

// add/remove/rename operate on the desired-state YAML surfaces
// directly (spec §6's trailing `add | remove <node_type> <name> |
// rename <node_type> <old> <new>`), not the observed graph — they are
// a convenience over hand-editing groups.yaml/users/**/assets/**/
// tags.yaml, the same four surfaces `jetty bootstrap` seeds.

var addCmd = &cobra.Command{
	Use:   "add <node_type> <name>",
	Short: "Add a group or tag declaration (users/assets: use bootstrap or hand-edit)",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove <node_type> <name>",
	Short: "Remove a group, user, asset, or tag declaration",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemove,
}

var renameCmd = &cobra.Command{
	Use:   "rename <node_type> <old> <new>",
	Short: "Rename a group or tag declaration",
	Args:  cobra.ExactArgs(3),
	RunE:  runRename,
}

func runAdd(cmd *cobra.Command, args []string) error {
	nodeType, name := args[0], args[1]
	switch nodeType {
	case "group":
		file, err := loadGroupsFile()
		if err != nil {
			return err
		}
		for _, g := range file.Groups {
			if g.Name == name {
				return fmt.Errorf("group %q already declared", name)
			}
		}
		file.Groups = append(file.Groups, bootstrapGroupDecl{Name: name, Connectors: map[string]string{}})
		return saveGroupsFile(file)
	case "tag":
		file, err := loadTagsFile()
		if err != nil {
			return err
		}
		for _, t := range file.Tags {
			if t.Name == name {
				return fmt.Errorf("tag %q already declared", name)
			}
		}
		file.Tags = append(file.Tags, bootstrapTagDecl{Name: name})
		return saveTagsFile(file)
	case "user":
		path := filepath.Join(usersDir(), sanitizeFilename(name)+".yaml")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("user file %s already exists", path)
		}
		if err := ensureParentDir(path); err != nil {
			return err
		}
		return writeYAMLDoc(path, bootstrapUserFile{Email: name})
	case "asset":
		parsed, err := cual.Parse(name)
		if err != nil {
			return fmt.Errorf("add asset: %w", err)
		}
		fname := strings.Join(append([]string{parsed.Authority()}, parsed.Path()...), "-")
		path := filepath.Join(assetsDir(), sanitizeFilename(fname)+".yaml")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("asset file %s already exists", path)
		}
		if err := ensureParentDir(path); err != nil {
			return err
		}
		doc := bootstrapAssetFile{Identifier: bootstrapAssetIdentifier{
			Connector: parsed.Scheme(), Authority: parsed.Authority(), Path: parsed.Path(),
		}}
		return writeYAMLDoc(path, doc)
	default:
		return fmt.Errorf("unknown node_type %q (want group/user/asset/tag)", nodeType)
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	nodeType, name := args[0], args[1]
	switch nodeType {
	case "group":
		file, err := loadGroupsFile()
		if err != nil {
			return err
		}
		out := file.Groups[:0]
		found := false
		for _, g := range file.Groups {
			if g.Name == name {
				found = true
				continue
			}
			out = append(out, g)
		}
		if !found {
			return fmt.Errorf("group %q not declared", name)
		}
		file.Groups = out
		return saveGroupsFile(file)
	case "tag":
		file, err := loadTagsFile()
		if err != nil {
			return err
		}
		out := file.Tags[:0]
		found := false
		for _, t := range file.Tags {
			if t.Name == name {
				found = true
				continue
			}
			out = append(out, t)
		}
		if !found {
			return fmt.Errorf("tag %q not declared", name)
		}
		file.Tags = out
		return saveTagsFile(file)
	case "user":
		return removeMatchingDoc(usersDir(), func(doc bootstrapUserFile) bool { return doc.Email == name })
	case "asset":
		return removeMatchingAssetDoc(name)
	default:
		return fmt.Errorf("unknown node_type %q (want group/user/asset/tag)", nodeType)
	}
}

func runRename(cmd *cobra.Command, args []string) error {
	nodeType, oldName, newName := args[0], args[1], args[2]
	switch nodeType {
	case "group":
		file, err := loadGroupsFile()
		if err != nil {
			return err
		}
		found := false
		for i := range file.Groups {
			if file.Groups[i].Name == oldName {
				file.Groups[i].Name = newName
				found = true
			}
			for j, m := range file.Groups[i].MemberGroups {
				if m == oldName {
					file.Groups[i].MemberGroups[j] = newName
				}
			}
		}
		if !found {
			return fmt.Errorf("group %q not declared", oldName)
		}
		if err := saveGroupsFile(file); err != nil {
			return err
		}
		return renameGroupReferences(oldName, newName)
	case "tag":
		file, err := loadTagsFile()
		if err != nil {
			return err
		}
		found := false
		for i := range file.Tags {
			if file.Tags[i].Name == oldName {
				file.Tags[i].Name = newName
				found = true
			}
		}
		if !found {
			return fmt.Errorf("tag %q not declared", oldName)
		}
		return saveTagsFile(file)
	default:
		return fmt.Errorf("rename supports group/tag only (users/assets: remove then add)")
	}
}

// renameGroupReferences keeps users/**/*.yaml's "groups" lists in sync
// with a renamed group declaration.
func renameGroupReferences(oldName, newName string) error {
	return filepath.WalkDir(usersDir(), func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isYAMLFile(path) {
			return err
		}
		var doc bootstrapUserFile
		if err := readYAMLDoc(path, &doc); err != nil {
			return err
		}
		changed := false
		for i, g := range doc.Groups {
			if g == oldName {
				doc.Groups[i] = newName
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return writeYAMLDoc(path, doc)
	})
}

func isYAMLFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

func loadGroupsFile() (*bootstrapGroupsFile, error) {
	var file bootstrapGroupsFile
	if err := readYAMLDoc(groupsPath(), &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func saveGroupsFile(file *bootstrapGroupsFile) error {
	return writeYAMLDoc(groupsPath(), file)
}

func loadTagsFile() (*bootstrapTagsFile, error) {
	var file bootstrapTagsFile
	if err := readYAMLDoc(tagsPath(), &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func saveTagsFile(file *bootstrapTagsFile) error {
	return writeYAMLDoc(tagsPath(), file)
}

func readYAMLDoc(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeYAMLDoc(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func removeMatchingDoc(dir string, match func(bootstrapUserFile) bool) error {
	found := false
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isYAMLFile(path) {
			return err
		}
		var doc bootstrapUserFile
		if err := readYAMLDoc(path, &doc); err != nil {
			return err
		}
		if !match(doc) {
			return nil
		}
		found = true
		return os.Remove(path)
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no matching document found under %s", dir)
	}
	return nil
}

func removeMatchingAssetDoc(cualStr string) error {
	parsed, err := cual.Parse(cualStr)
	if err != nil {
		return fmt.Errorf("remove asset: %w", err)
	}
	found := false
	err = filepath.WalkDir(assetsDir(), func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isYAMLFile(path) {
			return err
		}
		var doc bootstrapAssetFile
		if err := readYAMLDoc(path, &doc); err != nil {
			return err
		}
		if doc.Identifier.Connector != parsed.Scheme() || doc.Identifier.Authority != parsed.Authority() {
			return nil
		}
		if strings.Join(doc.Identifier.Path, "/") != strings.Join(parsed.Path(), "/") {
			return nil
		}
		found = true
		return os.Remove(path)
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no asset document found for %s", cualStr)
	}
	return nil
}
