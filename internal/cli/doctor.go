package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/loom-data/loomtest/internal/config"
	"github.com/loom-data/loomtest/internal/db"
)

// check is one doctor probe outcome.
type check struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok, fail, skip
	Detail string `json:"detail,omitempty"`
}

func newDoctorCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify the harness can reach the tool binary and database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			checks := runChecks(ctx, cfg)
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(checks); err != nil {
					return err
				}
			} else {
				printChecks(cmd, checks)
			}

			for _, c := range checks {
				if c.Status == "fail" {
					return fmt.Errorf("%d of %d checks failed", countFailed(checks), len(checks))
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall probe timeout")
	return cmd
}

func runChecks(ctx context.Context, cfg *config.Config) []check {
	return []check{
		checkBinary(cfg),
		checkDatabase(ctx, cfg),
		checkHistoryPath(cfg),
	}
}

func checkBinary(cfg *config.Config) check {
	c := check{Name: "tool binary"}
	if cfg.Tool.Bin == "" {
		c.Status = "skip"
		c.Detail = "LOOM_TEST_BIN not set; functional suites will skip"
		return c
	}
	path, err := exec.LookPath(cfg.Tool.Bin)
	if err != nil {
		c.Status = "fail"
		c.Detail = err.Error()
		return c
	}
	c.Status = "ok"
	c.Detail = path
	return c
}

func checkDatabase(ctx context.Context, cfg *config.Config) check {
	c := check{Name: "database"}
	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		c.Status = "fail"
		c.Detail = err.Error()
		return c
	}
	defer conn.Close()

	c.Status = "ok"
	c.Detail = fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	return c
}

func checkHistoryPath(cfg *config.Config) check {
	c := check{Name: "history path"}
	dir := filepath.Dir(cfg.Harness.HistoryPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.Status = "fail"
		c.Detail = err.Error()
		return c
	}
	c.Status = "ok"
	c.Detail = cfg.Harness.HistoryPath
	return c
}

func printChecks(cmd *cobra.Command, checks []check) {
	color := isatty.IsTerminal(os.Stdout.Fd())
	for _, c := range checks {
		mark := statusMark(c.Status, color)
		if c.Detail != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s\n", mark, c.Name, c.Detail)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, c.Name)
		}
	}
}

func statusMark(status string, color bool) string {
	mark := map[string]string{"ok": "✓", "fail": "✗", "skip": "-"}[status]
	if !color {
		return mark
	}
	switch status {
	case "ok":
		return "\033[32m" + mark + "\033[0m"
	case "fail":
		return "\033[31m" + mark + "\033[0m"
	default:
		return "\033[33m" + mark + "\033[0m"
	}
}

func countFailed(checks []check) int {
	n := 0
	for _, c := range checks {
		if c.Status == "fail" {
			n++
		}
	}
	return n
}
