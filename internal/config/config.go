// Package config implements the two-layer configuration surface: a
// Config struct with typed sub-sections and hard-coded defaults,
// optionally overridden by a project's .symgraph.kdl file.
package config

import (
	"path/filepath"
	"runtime"
)

// Config is the fully-resolved configuration for one project.
type Config struct {
	Project     Project
	Index       Index
	Performance Performance
	Domains     Domains
}

// Project names the root the indexer walks and an optional display name.
type Project struct {
	Root string
	Name string
}

// Index governs file discovery: include/exclude globs (matched with
// doublestar against slash-normalized relative paths), the per-file size
// limit, and whether .gitignore patterns are honored in addition to
// Exclude. MaxFileCount and FollowSymlinks are merged and validated but
// the indexer's discovery walk does not consult them.
type Index struct {
	Include          []string
	Exclude          []string
	MaxFileSize      int64
	MaxFileCount     int
	FollowSymlinks   bool
	RespectGitignore bool

	// followSymlinksSet/respectGitignoreSet distinguish "the .symgraph.kdl
	// file explicitly set this bool" from "left at its zero value" during
	// mergeConfigs, since bool has no unset state of its own.
	followSymlinksSet   bool
	respectGitignoreSet bool
}

// Performance governs the indexer's worker pool. 0 means auto-detect
// off runtime.NumCPU, applied by Validator.ValidateAndSetDefaults.
type Performance struct {
	MaxGoroutines int
}

// DependencyRoot is one additional source tree indexed under the
// dependency domain, alongside an optional sibling XML doc root
// consumed by C4. This generalizes spec.md's single-root Index
// description to a real .NET solution's multiple NuGet decompilation
// trees. The indexer does not read these roots itself; each one is
// indexed only when a caller passes it to C5's Index(root, domain).
type DependencyRoot struct {
	Path       string
	XMLDocPath string
}

// Domains lists the additional dependency/builtin roots beyond Project.Root.
type Domains struct {
	Dependencies []DependencyRoot
	BuiltinRoots []DependencyRoot
}

// defaultConfig returns the hard-coded baseline every project starts
// from before any .symgraph.kdl overrides are applied.
func defaultConfig(root string) *Config {
	return &Config{
		Project: Project{Root: root},
		Index: Index{
			Include:          []string{"**/*.cs"},
			Exclude:          []string{"**/bin/**", "**/obj/**", "**/.git/**", "**/*Test.cs", "**/*Tests.cs"},
			MaxFileSize:      10 * 1024 * 1024,
			MaxFileCount:     100000,
			FollowSymlinks:   false,
			RespectGitignore: true,
		},
		Performance: Performance{
			MaxGoroutines: 0,
		},
	}
}

// Load resolves configuration for the project rooted at projectRoot: it
// starts from defaultConfig, overlays a .symgraph.kdl file if present,
// then validates and fills in any zero-valued fields with smart
// defaults.
func Load(projectRoot string) (*Config, error) {
	abs, err := absOrSelf(projectRoot)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig(abs)

	kdlCfg, err := LoadKDL(abs)
	if err != nil {
		return nil, err
	}
	if kdlCfg != nil {
		cfg = mergeConfigs(cfg, kdlCfg)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func absOrSelf(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

// mergeConfigs overlays override onto base: any non-zero field on
// override replaces base's, and Exclude patterns are unioned rather
// than replaced so a project's .symgraph.kdl only adds exclusions.
func mergeConfigs(base, override *Config) *Config {
	merged := *base

	if override.Project.Root != "" {
		merged.Project.Root = override.Project.Root
	}
	if override.Project.Name != "" {
		merged.Project.Name = override.Project.Name
	}

	if len(override.Index.Include) > 0 {
		merged.Index.Include = override.Index.Include
	}
	if len(override.Index.Exclude) > 0 {
		merged.Index.Exclude = unionPatterns(base.Index.Exclude, override.Index.Exclude)
	}
	if override.Index.MaxFileSize > 0 {
		merged.Index.MaxFileSize = override.Index.MaxFileSize
	}
	if override.Index.MaxFileCount > 0 {
		merged.Index.MaxFileCount = override.Index.MaxFileCount
	}
	if override.Index.followSymlinksSet {
		merged.Index.FollowSymlinks = override.Index.FollowSymlinks
	}
	if override.Index.respectGitignoreSet {
		merged.Index.RespectGitignore = override.Index.RespectGitignore
	}

	if override.Performance.MaxGoroutines > 0 {
		merged.Performance.MaxGoroutines = override.Performance.MaxGoroutines
	}

	if len(override.Domains.Dependencies) > 0 {
		merged.Domains.Dependencies = override.Domains.Dependencies
	}
	if len(override.Domains.BuiltinRoots) > 0 {
		merged.Domains.BuiltinRoots = override.Domains.BuiltinRoots
	}

	return &merged
}

func unionPatterns(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, p := range append(append([]string{}, a...), b...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func numCPU() int {
	return runtime.NumCPU()
}
