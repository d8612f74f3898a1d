package main

import "path/filepath"

// Project layout (spec §6): every command resolves these relative to
// --project, never hardcoding "."  so commands work from a parent
// directory too.
func groupsPath() string  { return filepath.Join(projectDir, "groups", "groups.yaml") }
func usersDir() string    { return filepath.Join(projectDir, "users") }
func assetsDir() string   { return filepath.Join(projectDir, "assets") }
func tagsPath() string    { return filepath.Join(projectDir, "tags.yaml") }
func dataDir() string     { return filepath.Join(projectDir, ".data") }
func graphDBPath() string { return filepath.Join(dataDir(), "graph.bin") }
func projectConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(projectDir, "jetty_config.yaml")
}
