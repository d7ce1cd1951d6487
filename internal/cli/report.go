package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loom-data/loomtest/internal/freshness"
)

func newReportCmd() *cobra.Command {
	var probePath string

	cmd := &cobra.Command{
		Use:   "report <sources.json>",
		Short: "Validate and summarize a source freshness report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := freshness.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if probePath != "" {
				res := r.Probe(probePath)
				if !res.Exists() {
					return fmt.Errorf("path %q not found in report", probePath)
				}
				fmt.Fprintln(out, res.String())
				return nil
			}

			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summarize(r))
			}

			fmt.Fprintf(out, "generated %s by loom %s (invocation %s)\n",
				r.Metadata.GeneratedAt.Format(time.RFC3339),
				r.Metadata.ToolVersion, r.Metadata.InvocationID)
			for _, res := range r.Results {
				fmt.Fprintf(out, "%-13s %s\n", res.Status, res.UniqueID)
			}
			fmt.Fprintf(out, "%d sources checked in %.2fs, worst status: %s\n",
				len(r.Results), r.ElapsedTime, r.Worst())

			if r.Worst().Failed() {
				return fmt.Errorf("freshness status %s", r.Worst())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&probePath, "path", "", "print a single value by gjson path (e.g. results.0.status)")
	return cmd
}

// summary is the JSON shape of `loomtest report --json`.
type summary struct {
	GeneratedAt  time.Time                   `json:"generated_at"`
	ToolVersion  string                      `json:"tool_version"`
	InvocationID string                      `json:"invocation_id"`
	ElapsedTime  float64                     `json:"elapsed_time"`
	Worst        freshness.Status            `json:"worst"`
	Statuses     map[freshness.Status]int    `json:"statuses"`
	Sources      map[string]freshness.Status `json:"sources"`
}

func summarize(r *freshness.Report) summary {
	s := summary{
		GeneratedAt:  r.Metadata.GeneratedAt,
		ToolVersion:  r.Metadata.ToolVersion,
		InvocationID: r.Metadata.InvocationID,
		ElapsedTime:  r.ElapsedTime,
		Worst:        r.Worst(),
		Statuses:     map[freshness.Status]int{},
		Sources:      map[string]freshness.Status{},
	}
	for _, res := range r.Results {
		s.Statuses[res.Status]++
		s.Sources[res.UniqueID] = res.Status
	}
	return s
}
