package freshness

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/tidwall/gjson"
)

// SchemaVersion is the artifact schema URL stamped into every sources
// report this harness understands.
const SchemaVersion = "https://schemas.getloom.dev/loom/sources/v3.json"

// Threshold is a freshness bound: a count of periods.
type Threshold struct {
	Count  int    `json:"count"`
	Period string `json:"period"`
}

// Criteria holds the configured freshness thresholds for one source.
// WarnAfter or ErrorAfter may be null when the source overrides only one
// of them; Filter is null unless the source configures a row filter.
type Criteria struct {
	Filter     *string    `json:"filter"`
	WarnAfter  *Threshold `json:"warn_after"`
	ErrorAfter *Threshold `json:"error_after"`
}

// Timing records one named step of the check.
type Timing struct {
	Name        string    `json:"name"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Result is the freshness outcome for a single source table.
type Result struct {
	UniqueID          string         `json:"unique_id"`
	MaxLoadedAt       time.Time      `json:"max_loaded_at"`
	SnapshottedAt     time.Time      `json:"snapshotted_at"`
	MaxLoadedAtAgoSec float64        `json:"max_loaded_at_time_ago_in_s"`
	Status            Status         `json:"status"`
	Criteria          Criteria       `json:"criteria"`
	AdapterResponse   map[string]any `json:"adapter_response"`
	ThreadID          string         `json:"thread_id"`
	ExecutionTime     float64        `json:"execution_time"`
	Timing            []Timing       `json:"timing"`
}

// Metadata describes the invocation that produced a report.
type Metadata struct {
	GeneratedAt   time.Time         `json:"generated_at"`
	SchemaVersion string            `json:"loom_schema_version"`
	ToolVersion   string            `json:"loom_version"`
	InvocationID  string            `json:"invocation_id"`
	Env           map[string]string `json:"env"`
}

// Report is the top-level sources artifact written by `loom source
// freshness -o <path>`.
type Report struct {
	Metadata    Metadata `json:"metadata"`
	Results     []Result `json:"results"`
	ElapsedTime float64  `json:"elapsed_time"`

	// raw keeps the undecoded document for gjson probing.
	raw []byte
}

// Load reads and validates a report file.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates report JSON.
func Parse(data []byte) (*Report, error) {
	if err := checkTopLevelKeys(data); err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	r.raw = data
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// checkTopLevelKeys enforces the exact top-level shape: metadata, results
// and elapsed_time, nothing more and nothing less.
func checkTopLevelKeys(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	want := []string{"elapsed_time", "metadata", "results"}
	got := make([]string, 0, len(top))
	for k := range top {
		got = append(got, k)
	}
	sort.Strings(got)
	if len(got) != len(want) {
		return fmt.Errorf("report has keys %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("report has keys %v, want %v", got, want)
		}
	}
	return nil
}

// Validate checks report invariants that hold for every loom version this
// harness supports.
func (r *Report) Validate() error {
	if r.Metadata.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema version %q, want %q", r.Metadata.SchemaVersion, SchemaVersion)
	}
	if r.Metadata.GeneratedAt.IsZero() {
		return fmt.Errorf("metadata.generated_at is missing")
	}
	if r.Metadata.InvocationID == "" {
		return fmt.Errorf("metadata.invocation_id is missing")
	}
	if r.ElapsedTime < 0 {
		return fmt.Errorf("elapsed_time %f is negative", r.ElapsedTime)
	}
	for i, res := range r.Results {
		if res.UniqueID == "" {
			return fmt.Errorf("results[%d]: unique_id is missing", i)
		}
		if !res.Status.Known() {
			return fmt.Errorf("results[%d] (%s): unknown status %q", i, res.UniqueID, res.Status)
		}
		if res.ExecutionTime < 0 {
			return fmt.Errorf("results[%d] (%s): negative execution_time", i, res.UniqueID)
		}
		for _, tm := range res.Timing {
			if tm.CompletedAt.Before(tm.StartedAt) {
				return fmt.Errorf("results[%d] (%s): timing %q completed before it started",
					i, res.UniqueID, tm.Name)
			}
		}
	}
	return nil
}

// ResultByUniqueID returns the result for a source unique id.
func (r *Report) ResultByUniqueID(id string) (*Result, bool) {
	for i := range r.Results {
		if r.Results[i].UniqueID == id {
			return &r.Results[i], true
		}
	}
	return nil, false
}

// Statuses returns the status of every result, in report order.
func (r *Report) Statuses() []Status {
	out := make([]Status, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Status
	}
	return out
}

// Worst returns the most severe status in the report.
func (r *Report) Worst() Status {
	return Worst(r.Statuses()...)
}

// Probe evaluates a gjson path against the raw report document. Handy for
// one-off assertions on fields the typed model does not pin down.
func (r *Report) Probe(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}
