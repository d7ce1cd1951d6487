package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/loom-data/loomtest/internal/config"
)

// ProfilesEnvVar points loom at the scaffolded profiles directory.
const ProfilesEnvVar = "LOOM_PROFILES_DIR"

// Project is a fully scaffolded loom project on disk: a temp project root,
// a temp profiles directory with profiles.yml, and a unique schema name the
// database side of the harness builds on.
type Project struct {
	Root        string
	ProfilesDir string
	LogsDir     string
	Name        string
	Schema      string
	Database    string
}

// AltSchema returns the secondary schema name used by suites that need a
// second namespace next to the primary one.
func (p *Project) AltSchema() string {
	return p.Schema + "_alt"
}

// Opts controls project scaffolding. The zero value produces a minimal but
// valid project named "test" with no models.
type Opts struct {
	// Name is the project name written to loom_project.yml. Default "test".
	Name string
	// ConfigUpdate is merged over the generated loom_project.yml mapping.
	ConfigUpdate map[string]any
	// Packages and Selectors are written to packages.yml / selectors.yml
	// when non-nil. A string is written verbatim, anything else is
	// marshaled as YAML.
	Packages  any
	Selectors any

	Models    FileTree
	Macros    FileTree
	Seeds     FileTree
	Snapshots FileTree
	Tests     FileTree
}

// Scaffold creates a project under tb's temp directory. The profiles env
// var is set for the duration of the test, and everything on disk is
// removed by the testing framework's temp dir cleanup.
func Scaffold(tb testing.TB, cfg *config.Config, opts Opts) *Project {
	tb.Helper()

	p, err := Write(tb.TempDir(), cfg, SchemaName(), opts)
	if err != nil {
		tb.Fatalf("scaffold project: %v", err)
	}
	tb.Setenv(ProfilesEnvVar, p.ProfilesDir)
	return p
}

// Write scaffolds a project with the given schema under base and returns
// it. Unlike Scaffold it has no testing dependencies, so the CLI can reuse
// it.
func Write(base string, cfg *config.Config, schema string, opts Opts) (*Project, error) {
	name := opts.Name
	if name == "" {
		name = "test"
	}

	p := &Project{
		Root:        filepath.Join(base, "project"),
		ProfilesDir: filepath.Join(base, "profiles"),
		LogsDir:     filepath.Join(base, "logs"),
		Name:        name,
		Schema:      schema,
		Database:    cfg.Database.DBName,
	}
	for _, dir := range []string{p.Root, p.ProfilesDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	profiles := ProfileData(cfg, schema)
	if err := WriteTree(p.ProfilesDir, FileTree{"profiles.yml": profiles}); err != nil {
		return nil, fmt.Errorf("write profiles.yml: %w", err)
	}

	projectYML := map[string]any{
		"config-version": 2,
		"name":           name,
		"version":        "0.1.0",
		"profile":        "test",
		"log-path":       p.LogsDir,
	}
	for k, v := range opts.ConfigUpdate {
		projectYML[k] = v
	}
	tree := FileTree{"loom_project.yml": projectYML}
	if opts.Packages != nil {
		tree["packages.yml"] = opts.Packages
	}
	if opts.Selectors != nil {
		tree["selectors.yml"] = opts.Selectors
	}
	for dir, sub := range map[string]FileTree{
		"models":    opts.Models,
		"macros":    opts.Macros,
		"seeds":     opts.Seeds,
		"snapshots": opts.Snapshots,
		"tests":     opts.Tests,
	} {
		if len(sub) > 0 {
			tree[dir] = sub
		}
	}
	if err := WriteTree(p.Root, tree); err != nil {
		return nil, fmt.Errorf("write project files: %w", err)
	}
	return p, nil
}

// ProfileData builds the profiles.yml mapping for the configured database.
// It mirrors what the tool expects: a "test" profile with a default output
// on the unique schema and an "other_schema" output on its _alt variant.
func ProfileData(cfg *config.Config, schema string) map[string]any {
	db := cfg.Database
	output := func(user, pass, schema string) map[string]any {
		return map[string]any{
			"type":    "postgres",
			"threads": 4,
			"host":    db.Host,
			"port":    db.Port,
			"user":    user,
			"pass":    pass,
			"dbname":  db.DBName,
			"schema":  schema,
		}
	}
	return map[string]any{
		"config": map[string]any{
			"send_anonymous_usage_stats": false,
		},
		"test": map[string]any{
			"target": "default",
			"outputs": map[string]any{
				"default":      output(db.User, db.Password, schema),
				"other_schema": output("noaccess", "password", schema+"_alt"),
			},
		},
	}
}
