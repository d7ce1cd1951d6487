package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RunResult is one node outcome from the tool's run_results.json artifact.
type RunResult struct {
	UniqueID      string  `json:"unique_id"`
	Status        string  `json:"status"`
	Message       string  `json:"message"`
	ExecutionTime float64 `json:"execution_time"`
}

// RunResults is the artifact written by `loom run`, `loom test` and
// `loom seed` under target/.
type RunResults struct {
	Metadata    map[string]any `json:"metadata"`
	Results     []RunResult    `json:"results"`
	ElapsedTime float64        `json:"elapsed_time"`
}

// Len returns the number of node results, the count the original suites
// assert on after nearly every invocation.
func (rr *RunResults) Len() int {
	return len(rr.Results)
}

// ByUniqueID returns the result for one node.
func (rr *RunResults) ByUniqueID(id string) (*RunResult, bool) {
	for i := range rr.Results {
		if rr.Results[i].UniqueID == id {
			return &rr.Results[i], true
		}
	}
	return nil, false
}

// LoadRunResults reads target/run_results.json relative to the project
// root.
func LoadRunResults(projectRoot string) (*RunResults, error) {
	path := filepath.Join(projectRoot, "target", "run_results.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run results: %w", err)
	}
	var rr RunResults
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("decode run results %s: %w", path, err)
	}
	return &rr, nil
}
