// Package freshness models the source-freshness reports emitted by loom.
package freshness

// Status is the per-source outcome of a freshness check.
type Status string

const (
	StatusPass  Status = "pass"
	StatusWarn  Status = "warn"
	StatusError Status = "error"
	// StatusRuntimeError is reported when the freshness query itself
	// failed, e.g. the loaded_at column does not exist.
	StatusRuntimeError Status = "runtime error"
)

// Known reports whether s is one of the statuses loom emits.
func (s Status) Known() bool {
	switch s {
	case StatusPass, StatusWarn, StatusError, StatusRuntimeError:
		return true
	}
	return false
}

// severity orders statuses from best to worst.
func (s Status) severity() int {
	switch s {
	case StatusPass:
		return 0
	case StatusWarn:
		return 1
	case StatusError:
		return 2
	case StatusRuntimeError:
		return 3
	}
	return 4
}

// Worst returns the most severe of the given statuses. An empty input
// yields StatusPass.
func Worst(statuses ...Status) Status {
	worst := StatusPass
	for _, s := range statuses {
		if s.severity() > worst.severity() {
			worst = s
		}
	}
	return worst
}

// Failed reports whether the status fails an invocation (loom exits
// non-zero for error and runtime error, but not for warn).
func (s Status) Failed() bool {
	return s == StatusError || s == StatusRuntimeError
}
