package cli

import (
	"fmt"
	"os"
	"path"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/loom-data/loomtest/internal/fixture"
)

func newScaffoldCmd() *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "scaffold <manifest.yml> [dir]",
		Short: "Write a fixture project tree from a YAML manifest",
		Long: `Scaffold reads a manifest with the same shape as the fixture file
trees used by the functional suites (file keys map to contents, directory
keys to nested mappings) and writes it to disk.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}
			tree, err := fixture.TreeFromYAML(data)
			if err != nil {
				return err
			}

			if only != "" {
				tree, err = filterTree(tree, only)
				if err != nil {
					return err
				}
			}

			dir := "."
			if len(args) == 2 {
				dir = args[1]
			}
			if err := fixture.WriteTree(dir, tree); err != nil {
				return err
			}
			if verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d top-level entries to %s\n", len(tree), dir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&only, "only", "", "doublestar glob selecting which files to write (e.g. 'models/**')")
	return cmd
}

// filterTree keeps only the files whose slash-separated path matches the
// glob. Directories that end up empty are dropped.
func filterTree(tree fixture.FileTree, pattern string) (fixture.FileTree, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob %q", pattern)
	}
	out, err := filterTreeAt(tree, pattern, "")
	if err != nil {
		return nil, err
	}
	return out, nil
}

func filterTreeAt(tree fixture.FileTree, pattern, prefix string) (fixture.FileTree, error) {
	out := fixture.FileTree{}
	for name, value := range tree {
		full := path.Join(prefix, name)
		switch v := value.(type) {
		case fixture.FileTree:
			sub, err := filterTreeAt(v, pattern, full)
			if err != nil {
				return nil, err
			}
			if len(sub) > 0 {
				out[name] = sub
			}
		case map[string]any:
			sub, err := filterTreeAt(fixture.FileTree(v), pattern, full)
			if err != nil {
				return nil, err
			}
			if len(sub) > 0 {
				out[name] = sub
			}
		default:
			match, err := doublestar.Match(pattern, full)
			if err != nil {
				return nil, fmt.Errorf("match %q against %q: %w", full, pattern, err)
			}
			if match {
				out[name] = value
			}
		}
	}
	return out, nil
}
