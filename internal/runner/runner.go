// Package runner invokes the loom binary under test and captures the
// outcome of each invocation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/loom-data/loomtest/internal/history"
)

// ProfilesEnvVar mirrors fixture.ProfilesEnvVar without importing it; the
// runner only needs the name.
const ProfilesEnvVar = "LOOM_PROFILES_DIR"

// Recorder receives a history entry for every completed invocation.
// *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Runner shells out to the tool under test. The zero value is not usable;
// Bin is required.
type Runner struct {
	// Bin is the loom executable to invoke.
	Bin string
	// Dir is the working directory, normally the scaffolded project root.
	Dir string
	// ProfilesDir, when set, is exported to the child via LOOM_PROFILES_DIR.
	ProfilesDir string
	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string
	// Timeout bounds each invocation. Zero means no bound beyond ctx.
	Timeout time.Duration
	// Vars is rendered to YAML and appended as `--vars <yaml>` on every
	// invocation, the way the tool's own suites thread schema names and
	// quoted column names through.
	Vars map[string]any
	// Schema is recorded with each history entry for correlation.
	Schema string
	// Recorder, when set, receives every invocation. Recording failures
	// are logged, never fatal.
	Recorder Recorder
}

// Invocation is the captured outcome of one tool run.
type Invocation struct {
	ID         string
	Args       []string
	ExitCode   int
	Stdout     string
	Stderr     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Passed reports whether the tool exited zero.
func (inv *Invocation) Passed() bool {
	return inv.ExitCode == 0
}

// Duration returns the invocation wall time.
func (inv *Invocation) Duration() time.Duration {
	return inv.FinishedAt.Sub(inv.StartedAt)
}

// BuildArgs returns the full argv (minus the binary) for the given
// command, including the rendered --vars flag when Vars is set.
func (r *Runner) BuildArgs(args []string) ([]string, error) {
	full := append([]string{}, args...)
	if len(r.Vars) > 0 {
		data, err := yaml.Marshal(r.Vars)
		if err != nil {
			return nil, fmt.Errorf("marshal vars: %w", err)
		}
		full = append(full, "--vars", string(data))
	}
	return full, nil
}

// Run invokes the tool and returns the captured invocation. A non-zero
// exit is not an error; failing to start the process, or the context or
// timeout expiring, is.
func (r *Runner) Run(ctx context.Context, args ...string) (*Invocation, error) {
	if r.Bin == "" {
		return nil, errors.New("runner: no tool binary configured")
	}
	full, err := r.BuildArgs(args)
	if err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Bin, full...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)
	if r.ProfilesDir != "" {
		cmd.Env = append(cmd.Env, ProfilesEnvVar+"="+r.ProfilesDir)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	inv := &Invocation{
		ID:        uuid.NewString(),
		Args:      full,
		StartedAt: time.Now(),
	}
	runErr := cmd.Run()
	inv.FinishedAt = time.Now()
	inv.Stdout = stdout.String()
	inv.Stderr = stderr.String()

	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			inv.ExitCode = -1
			r.record(inv)
			return inv, fmt.Errorf("tool invocation %v: %w", args, ctx.Err())
		case errors.As(runErr, &exitErr):
			inv.ExitCode = exitErr.ExitCode()
		default:
			return nil, fmt.Errorf("invoke %s: %w", r.Bin, runErr)
		}
	}

	r.record(inv)
	return inv, nil
}

// RunExpect runs the tool and verifies the exit state, mirroring the
// expect_pass flag the tool's own suites use everywhere.
func (r *Runner) RunExpect(ctx context.Context, expectPass bool, args ...string) (*Invocation, error) {
	inv, err := r.Run(ctx, args...)
	if err != nil {
		return inv, err
	}
	if inv.Passed() != expectPass {
		return inv, fmt.Errorf("tool exit state did not match expected: exit %d with args %v\nstderr: %s",
			inv.ExitCode, inv.Args, inv.Stderr)
	}
	return inv, nil
}

func (r *Runner) record(inv *Invocation) {
	if r.Recorder == nil {
		return
	}
	// Recording must not inherit a cancelled run context.
	err := r.Recorder.Record(context.Background(), history.Entry{
		ID:         inv.ID,
		Args:       inv.Args,
		ExitCode:   inv.ExitCode,
		Schema:     r.Schema,
		StartedAt:  inv.StartedAt,
		FinishedAt: inv.FinishedAt,
		Stdout:     inv.Stdout,
		Stderr:     inv.Stderr,
	})
	if err != nil {
		slog.Warn("record invocation", "id", inv.ID, "error", err)
	}
}
