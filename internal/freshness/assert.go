package freshness

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Expect pins down the deterministic fields of a freshness result. Zero
// fields are not checked, in the same spirit as the "any value of this
// shape" matchers the tool's own suites use for timestamps and thread ids.
type Expect struct {
	UniqueID string
	Status   Status
	// Criteria, when non-nil, must match exactly (including null-ness of
	// the thresholds and filter).
	Criteria *Criteria
	// MaxLoadedAt, when non-zero, must equal the report value.
	MaxLoadedAt time.Time
	// ThreadPrefix, when set, must prefix the result's thread id.
	ThreadPrefix string
}

// Check validates res against want, plus the shape invariants every result
// must satisfy regardless of expectations: a snapshot timestamp, a
// non-negative execution time, and compile/execute timing entries.
func Check(res Result, want Expect) error {
	var errs []error

	if want.UniqueID != "" && res.UniqueID != want.UniqueID {
		errs = append(errs, fmt.Errorf("unique_id = %q, want %q", res.UniqueID, want.UniqueID))
	}
	if want.Status != "" && res.Status != want.Status {
		errs = append(errs, fmt.Errorf("status = %q, want %q", res.Status, want.Status))
	}
	if want.Criteria != nil {
		if err := checkCriteria(res.Criteria, *want.Criteria); err != nil {
			errs = append(errs, err)
		}
	}
	if !want.MaxLoadedAt.IsZero() && !res.MaxLoadedAt.Equal(want.MaxLoadedAt) {
		errs = append(errs, fmt.Errorf("max_loaded_at = %s, want %s",
			res.MaxLoadedAt.Format(time.RFC3339), want.MaxLoadedAt.Format(time.RFC3339)))
	}
	if want.ThreadPrefix != "" && !strings.HasPrefix(res.ThreadID, want.ThreadPrefix) {
		errs = append(errs, fmt.Errorf("thread_id = %q, want prefix %q", res.ThreadID, want.ThreadPrefix))
	}

	// Shape invariants.
	if res.SnapshottedAt.IsZero() {
		errs = append(errs, errors.New("snapshotted_at is missing"))
	}
	if res.MaxLoadedAtAgoSec < 0 {
		errs = append(errs, fmt.Errorf("max_loaded_at_time_ago_in_s = %f, want >= 0", res.MaxLoadedAtAgoSec))
	}
	if res.ThreadID == "" {
		errs = append(errs, errors.New("thread_id is missing"))
	}
	if err := checkTiming(res.Timing); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("result %s: %w", res.UniqueID, errors.Join(errs...))
	}
	return nil
}

func checkCriteria(got, want Criteria) error {
	if !stringPtrEqual(got.Filter, want.Filter) {
		return fmt.Errorf("criteria.filter = %s, want %s", fmtStringPtr(got.Filter), fmtStringPtr(want.Filter))
	}
	if !thresholdEqual(got.WarnAfter, want.WarnAfter) {
		return fmt.Errorf("criteria.warn_after = %s, want %s", fmtThreshold(got.WarnAfter), fmtThreshold(want.WarnAfter))
	}
	if !thresholdEqual(got.ErrorAfter, want.ErrorAfter) {
		return fmt.Errorf("criteria.error_after = %s, want %s", fmtThreshold(got.ErrorAfter), fmtThreshold(want.ErrorAfter))
	}
	return nil
}

// checkTiming requires the compile and execute steps, in order, each with
// a valid start/complete pair.
func checkTiming(timing []Timing) error {
	want := []string{"compile", "execute"}
	if len(timing) != len(want) {
		return fmt.Errorf("timing has %d entries, want %d", len(timing), len(want))
	}
	for i, tm := range timing {
		if tm.Name != want[i] {
			return fmt.Errorf("timing[%d].name = %q, want %q", i, tm.Name, want[i])
		}
		if tm.StartedAt.IsZero() || tm.CompletedAt.IsZero() {
			return fmt.Errorf("timing %q is missing timestamps", tm.Name)
		}
	}
	return nil
}

// GeneratedBetween verifies the report's generated_at stamp falls inside
// [start, end]. Sub-second clock skew between the harness and the tool is
// tolerated by truncating the bounds.
func (r *Report) GeneratedBetween(start, end time.Time) error {
	at := r.Metadata.GeneratedAt
	if at.Before(start.Truncate(time.Second)) {
		return fmt.Errorf("generated_at %s before window start %s", at, start)
	}
	if at.After(end.Add(time.Second)) {
		return fmt.Errorf("generated_at %s after window end %s", at, end)
	}
	return nil
}

// CheckEnv verifies the custom env map captured in metadata.
func (r *Report) CheckEnv(want map[string]string) error {
	if len(r.Metadata.Env) != len(want) {
		return fmt.Errorf("metadata.env = %v, want %v", r.Metadata.Env, want)
	}
	for k, v := range want {
		if r.Metadata.Env[k] != v {
			return fmt.Errorf("metadata.env[%q] = %q, want %q", k, r.Metadata.Env[k], v)
		}
	}
	return nil
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func thresholdEqual(a, b *Threshold) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtStringPtr(p *string) string {
	if p == nil {
		return "null"
	}
	return fmt.Sprintf("%q", *p)
}

func fmtThreshold(t *Threshold) string {
	if t == nil {
		return "null"
	}
	return fmt.Sprintf("{count: %d, period: %s}", t.Count, t.Period)
}
