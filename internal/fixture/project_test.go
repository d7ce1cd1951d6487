package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/loom-data/loomtest/internal/config"
)

func loadYAML(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, yaml.Unmarshal(data, &out))
	return out
}

func TestScaffoldMinimal(t *testing.T) {
	cfg := config.Default()
	p := Scaffold(t, cfg, Opts{})

	assert.DirExists(t, p.Root)
	assert.DirExists(t, p.ProfilesDir)
	assert.DirExists(t, p.LogsDir)
	assert.Equal(t, "test", p.Name)
	assert.Equal(t, "loom", p.Database)
	assert.True(t, IsHarnessSchema(p.Schema))
	assert.Equal(t, p.Schema+"_alt", p.AltSchema())
	assert.Equal(t, p.ProfilesDir, os.Getenv(ProfilesEnvVar))

	project := loadYAML(t, filepath.Join(p.Root, "loom_project.yml"))
	assert.Equal(t, 2, project["config-version"])
	assert.Equal(t, "test", project["name"])
	assert.Equal(t, "0.1.0", project["version"])
	assert.Equal(t, "test", project["profile"])
}

func TestScaffoldProfiles(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Host = "dbhost"
	cfg.Database.Port = 6543
	p := Scaffold(t, cfg, Opts{})

	profiles := loadYAML(t, filepath.Join(p.ProfilesDir, "profiles.yml"))
	test, ok := profiles["test"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "default", test["target"])

	outputs := test["outputs"].(map[string]any)
	def := outputs["default"].(map[string]any)
	assert.Equal(t, "postgres", def["type"])
	assert.Equal(t, "dbhost", def["host"])
	assert.Equal(t, 6543, def["port"])
	assert.Equal(t, p.Schema, def["schema"])

	alt := outputs["other_schema"].(map[string]any)
	assert.Equal(t, p.AltSchema(), alt["schema"])
	assert.Equal(t, "noaccess", alt["user"])

	cfgSection := profiles["config"].(map[string]any)
	assert.Equal(t, false, cfgSection["send_anonymous_usage_stats"])
}

func TestScaffoldConfigUpdate(t *testing.T) {
	p := Scaffold(t, config.Default(), Opts{
		ConfigUpdate: map[string]any{
			"seed-paths": []string{"seeds"},
			"quoting":    map[string]any{"database": true, "schema": true, "identifier": true},
		},
	})

	project := loadYAML(t, filepath.Join(p.Root, "loom_project.yml"))
	quoting := project["quoting"].(map[string]any)
	assert.Equal(t, true, quoting["schema"])
	// Base keys survive the merge.
	assert.Equal(t, "test", project["profile"])
}

func TestScaffoldFileTrees(t *testing.T) {
	p := Scaffold(t, config.Default(), Opts{
		Models: FileTree{
			"descendant_model.sql": "select * from {{ source('test_source', 'test_table') }}",
			"schema.yml":           "version: 2\n",
		},
		Seeds:  FileTree{"source.csv": "id,updated_at\n1,2016-09-19 14:45:51\n"},
		Macros: FileTree{"vacuum.sql": "{% macro vacuum_source(source_name, table_name) %}{% endmacro %}"},
	})

	assert.FileExists(t, filepath.Join(p.Root, "models", "descendant_model.sql"))
	assert.FileExists(t, filepath.Join(p.Root, "models", "schema.yml"))
	assert.FileExists(t, filepath.Join(p.Root, "seeds", "source.csv"))
	assert.FileExists(t, filepath.Join(p.Root, "macros", "vacuum.sql"))
	assert.NoDirExists(t, filepath.Join(p.Root, "snapshots"))
}

func TestScaffoldPackagesAndSelectors(t *testing.T) {
	p := Scaffold(t, config.Default(), Opts{
		Packages:  "packages:\n- local: ../dep\n",
		Selectors: map[string]any{"selectors": []any{map[string]any{"name": "nightly"}}},
	})

	data, err := os.ReadFile(filepath.Join(p.Root, "packages.yml"))
	require.NoError(t, err)
	assert.Equal(t, "packages:\n- local: ../dep\n", string(data))

	selectors := loadYAML(t, filepath.Join(p.Root, "selectors.yml"))
	assert.Contains(t, selectors, "selectors")
}

func TestScaffoldCustomName(t *testing.T) {
	p := Scaffold(t, config.Default(), Opts{Name: "jaffle_shop"})
	project := loadYAML(t, filepath.Join(p.Root, "loom_project.yml"))
	assert.Equal(t, "jaffle_shop", project["name"])
}
