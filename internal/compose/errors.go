package compose

import (
	"fmt"
	"sort"
	"strings"
)

// ResolveError reports per-child construction failures. Siblings that
// resolved cleanly are still present in the returned blueprint; the failure
// map names exactly what went wrong where.
type ResolveError struct {
	Failures map[string]error
}

// Error lists every failing child by name.
func (e *ResolveError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	fmt.Fprintf(&sb, "failed to resolve %d child task(s):", len(names))
	for _, name := range names {
		fmt.Fprintf(&sb, "\n- %s: %v", name, e.Failures[name])
	}
	return sb.String()
}
