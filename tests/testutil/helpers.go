// Package testutil wires the harness pieces together for the functional
// suites: configuration from the environment, a scaffolded project, a live
// schema, and a runner bound to the loom binary under test.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loom-data/loomtest/internal/config"
	"github.com/loom-data/loomtest/internal/db"
	"github.com/loom-data/loomtest/internal/fixture"
	"github.com/loom-data/loomtest/internal/freshness"
	"github.com/loom-data/loomtest/internal/history"
	"github.com/loom-data/loomtest/internal/runner"
)

// Harness is everything a functional test needs: the scaffolded project,
// a pooled connection to the test database with the project schema already
// created, and a runner pointed at the project root.
type Harness struct {
	T       *testing.T
	Cfg     *config.Config
	Project *fixture.Project
	DB      *db.DB
	Runner  *runner.Runner

	// lastLoadedAt tracks the updated_at of the newest row inserted by
	// SetLastLoadedAt, starting from the canned dataset's high-water mark.
	lastLoadedAt time.Time
	nextID       int
}

// Setup scaffolds a project, creates its schema, and returns a ready
// harness. It skips the test when no loom binary is configured or when
// running in short mode, so unit-test runs never require a live database.
func Setup(t *testing.T, opts fixture.Opts) *Harness {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping functional test in short mode")
	}
	cfg := config.FromEnv()
	if cfg.Tool.Bin == "" {
		t.Skipf("%sBIN not set, skipping functional test", config.EnvPrefix)
	}

	project := fixture.Scaffold(t, cfg, opts)

	ctx := context.Background()
	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("connect to test database: %v", err)
	}
	t.Cleanup(conn.Close)

	if err := db.CreateSchema(ctx, conn.Pool, project.Schema); err != nil {
		t.Fatalf("create schema %s: %v", project.Schema, err)
	}
	if !cfg.Harness.KeepSchemas {
		t.Cleanup(func() {
			if err := db.DropSchema(context.Background(), conn.Pool, project.Schema); err != nil {
				t.Logf("drop schema %s: %v", project.Schema, err)
			}
		})
	}

	store, err := history.Open(cfg.Harness.HistoryPath)
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := &Harness{
		T:       t,
		Cfg:     cfg,
		Project: project,
		DB:      conn,
		Runner: &runner.Runner{
			Bin:         cfg.Tool.Bin,
			Dir:         project.Root,
			ProfilesDir: project.ProfilesDir,
			Env:         append([]string{}, cfg.Tool.Env...),
			Timeout:     cfg.Tool.Timeout,
			Vars: map[string]any{
				"test_run_schema": project.Schema,
				"test_loaded_at":  db.QuoteIdent("updated_at"),
			},
			Schema:   project.Schema,
			Recorder: store,
		},
		lastLoadedAt: initialLoadedAt,
		nextID:       101,
	}
	return h
}

// CreateAltSchema creates the secondary schema next to the primary one and
// registers its teardown.
func (h *Harness) CreateAltSchema() string {
	h.T.Helper()

	alt := h.Project.AltSchema()
	if err := db.CreateSchema(context.Background(), h.DB.Pool, alt); err != nil {
		h.T.Fatalf("create schema %s: %v", alt, err)
	}
	if !h.Cfg.Harness.KeepSchemas {
		h.T.Cleanup(func() {
			if err := db.DropSchema(context.Background(), h.DB.Pool, alt); err != nil {
				h.T.Logf("drop schema %s: %v", alt, err)
			}
		})
	}
	return alt
}

// Run invokes the tool and fails the test unless it exits zero.
func (h *Harness) Run(args ...string) *runner.Invocation {
	h.T.Helper()
	return h.RunExpect(true, args...)
}

// RunExpect invokes the tool and fails the test when the exit state does
// not match expectPass.
func (h *Harness) RunExpect(expectPass bool, args ...string) *runner.Invocation {
	h.T.Helper()

	inv, err := h.Runner.RunExpect(context.Background(), expectPass, args...)
	if err != nil {
		h.T.Fatalf("loom %v: %v", args, err)
	}
	return inv
}

// RunCounted invokes the tool expecting success and returns how many node
// results it reported, the count the original suites assert on after
// nearly every invocation.
func (h *Harness) RunCounted(args ...string) int {
	h.T.Helper()

	h.Run(args...)
	rr, err := runner.LoadRunResults(h.Project.Root)
	if err != nil {
		h.T.Fatalf("load run results: %v", err)
	}
	return rr.Len()
}

// RunResults loads the artifact written by the last run, test or seed.
func (h *Harness) RunResults() *runner.RunResults {
	h.T.Helper()

	rr, err := runner.LoadRunResults(h.Project.Root)
	if err != nil {
		h.T.Fatalf("load run results: %v", err)
	}
	return rr
}

// ExecSQL runs a statement against the project schema after {schema} and
// {database} substitution.
func (h *Harness) ExecSQL(sql string) {
	h.T.Helper()

	if err := db.RunSQL(context.Background(), h.DB.Pool, sql, h.Project.Schema, h.Project.Database); err != nil {
		h.T.Fatalf("exec sql: %v", err)
	}
}

// RowCount returns the row count of a relation in the project schema.
func (h *Harness) RowCount(table string) int64 {
	h.T.Helper()

	n, err := db.TableRowCount(context.Background(), h.DB.Pool, h.Project.Schema, table)
	if err != nil {
		h.T.Fatalf("count rows: %v", err)
	}
	return n
}

// AssertTableExists fails the test unless the relation exists in the
// project schema.
func (h *Harness) AssertTableExists(table string) {
	h.T.Helper()

	ok, err := db.TableExists(context.Background(), h.DB.Pool, h.Project.Schema, table)
	if err != nil {
		h.T.Fatalf("check table %s: %v", table, err)
	}
	if !ok {
		h.T.Errorf("table %s.%s does not exist", h.Project.Schema, table)
	}
}

// AssertTableNotExists fails the test when the relation exists in the
// project schema.
func (h *Harness) AssertTableNotExists(table string) {
	h.T.Helper()

	ok, err := db.TableExists(context.Background(), h.DB.Pool, h.Project.Schema, table)
	if err != nil {
		h.T.Fatalf("check table %s: %v", table, err)
	}
	if ok {
		h.T.Errorf("table %s.%s exists but should not", h.Project.Schema, table)
	}
}

// AssertTablesMatch fails the test unless two relations in the project
// schema hold identical row sets.
func (h *Harness) AssertTablesMatch(tableA, tableB string) {
	h.T.Helper()

	err := db.TablesMatch(context.Background(), h.DB.Pool,
		h.Project.Schema, tableA, h.Project.Schema, tableB)
	if err != nil {
		h.T.Error(err)
	}
}

// AssertManyTablesMatch fails the test unless every named relation matches
// the first one.
func (h *Harness) AssertManyTablesMatch(tables ...string) {
	h.T.Helper()

	if err := db.ManyTablesMatch(context.Background(), h.DB.Pool, h.Project.Schema, tables...); err != nil {
		h.T.Error(err)
	}
}

// Freshness runs `source freshness` with extra args, writing the report to
// a temp path, and returns the parsed report with the invocation. The exit
// state is not checked; freshness exits non-zero on error statuses, so
// callers assert on the report instead.
func (h *Harness) Freshness(extraArgs ...string) (*freshness.Report, *runner.Invocation) {
	h.T.Helper()
	return h.FreshnessCmd("freshness", extraArgs...)
}

// FreshnessCmd is Freshness with an explicit subcommand, for the deprecated
// snapshot-freshness alias.
func (h *Harness) FreshnessCmd(subcommand string, extraArgs ...string) (*freshness.Report, *runner.Invocation) {
	h.T.Helper()

	out := h.ReportPath("sources.json")
	args := append([]string{"source", subcommand, "-o", out}, extraArgs...)
	inv, err := h.Runner.Run(context.Background(), args...)
	if err != nil {
		h.T.Fatalf("loom %v: %v", args, err)
	}

	r, err := freshness.Load(out)
	if err != nil {
		h.T.Fatalf("load freshness report: %v\nstdout: %s\nstderr: %s", err, inv.Stdout, inv.Stderr)
	}
	return r, inv
}

// ReportPath returns a path under the project's target directory for a
// report artifact, mirroring where the tool writes its own. The directory
// is created so the tool never has to.
func (h *Harness) ReportPath(name string) string {
	h.T.Helper()

	dir := filepath.Join(h.Project.Root, "target")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.T.Fatalf("create target dir: %v", err)
	}
	return filepath.Join(dir, name)
}
