package fixture

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// SchemaPrefix marks schemas created by the harness so that cleanup can
// distinguish them from anything else living in the test database.
const SchemaPrefix = "test"

// SchemaName returns a collision-resistant schema name for one test run:
// the prefix, the current unix time in seconds, and a 4-digit random
// suffix. Parallel runs started within the same second still diverge on
// the suffix.
func SchemaName() string {
	return fmt.Sprintf("%s%d%04d", SchemaPrefix, time.Now().Unix(), rand.Intn(10000))
}

// IsHarnessSchema reports whether name looks like a schema produced by
// SchemaName (directly or via the "_alt"/"_other" variants used by some
// suites).
func IsHarnessSchema(name string) bool {
	rest, ok := strings.CutPrefix(name, SchemaPrefix)
	if !ok || rest == "" {
		return false
	}
	rest, _, _ = strings.Cut(rest, "_")
	if len(rest) < 5 {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SchemaCreatedAt extracts the creation time embedded in a harness schema
// name. The second return is false when name is not a harness schema.
func SchemaCreatedAt(name string) (time.Time, bool) {
	if !IsHarnessSchema(name) {
		return time.Time{}, false
	}
	rest, _ := strings.CutPrefix(name, SchemaPrefix)
	rest, _, _ = strings.Cut(rest, "_")
	// The trailing 4 digits are the random suffix.
	secs := rest[:len(rest)-4]
	var unix int64
	for _, r := range secs {
		unix = unix*10 + int64(r-'0')
	}
	return time.Unix(unix, 0), true
}
