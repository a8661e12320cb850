package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoKDLFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.NotEmpty(t, cfg.Index.Include)
	require.Contains(t, cfg.Index.Exclude, "**/bin/**")
	require.Contains(t, cfg.Index.Exclude, "**/obj/**")
	require.Greater(t, cfg.Performance.MaxGoroutines, 0)
}

func TestLoadKDLOverridesAndUnionsExclude(t *testing.T) {
	dir := t.TempDir()
	kdl := `
project {
    name "Widgets"
}
index {
    max_file_count 500
}
performance {
    max_goroutines 2
}
exclude {
    "**/Generated/**"
}
dependency "vendor/Newtonsoft.Json" {
    xmldoc "vendor/Newtonsoft.Json.xml"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".symgraph.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "Widgets", cfg.Project.Name)
	require.Equal(t, 500, cfg.Index.MaxFileCount)
	require.Equal(t, 2, cfg.Performance.MaxGoroutines)
	require.Contains(t, cfg.Index.Exclude, "**/bin/**")
	require.Contains(t, cfg.Index.Exclude, "**/Generated/**")
	require.Len(t, cfg.Domains.Dependencies, 1)
	require.Equal(t, "vendor/Newtonsoft.Json", cfg.Domains.Dependencies[0].Path)
	require.Equal(t, "vendor/Newtonsoft.Json.xml", cfg.Domains.Dependencies[0].XMLDocPath)
}

func TestLoadKDLUnsetBoolFieldsPreserveDefaults(t *testing.T) {
	dir := t.TempDir()
	kdl := `
index {
    max_file_count 10
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".symgraph.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.True(t, cfg.Index.RespectGitignore, "unset respect_gitignore must keep the default, not reset to false")
	require.False(t, cfg.Index.FollowSymlinks)
}

func TestLoadKDLExplicitFalseOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	kdl := `
index {
    respect_gitignore false
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".symgraph.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.False(t, cfg.Index.RespectGitignore)
}

func TestValidateRejectsEmptyRoot(t *testing.T) {
	cfg := &Config{}
	err := ValidateConfig(cfg)
	require.Error(t, err)
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"1024":  1024,
		"10KB":  10 * 1024,
		"5MB":   5 * 1024 * 1024,
		"1GB":   1024 * 1024 * 1024,
		"100 B": 100,
	}
	for in, want := range cases {
		got, err := parseSize(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}
