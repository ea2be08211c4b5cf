// Package pathspec parses sweep-target paths. The canonical form is
// `childA->childB->param.subparam`: every `->` segment except the last names
// a child task hop, and the final segment is a dotted parameter path inside
// that child's settings tree. Parsing is pure; resolution against a live
// child map happens in the iterator before execution begins.
package pathspec

import (
	"fmt"
	"regexp"
	"strings"
)

// segmentRegex validates a single child-hop or parameter-path segment name.
var segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Target is the structured representation of a sweep-target path.
type Target struct {
	// Children are the child-task hops, outermost first. At least one.
	Children []string
	// Params are the dotted parameter path segments inside the final
	// child's settings tree. At least one.
	Params []string
}

// Parse creates a Target from its canonical string representation.
func Parse(raw string) (*Target, error) {
	if raw == "" {
		return nil, fmt.Errorf("sweep target cannot be empty")
	}

	hops := strings.Split(raw, "->")
	if len(hops) < 2 {
		return nil, fmt.Errorf("sweep target %q must name a child and a parameter, e.g. \"child->param\"", raw)
	}

	t := &Target{}
	for _, hop := range hops[:len(hops)-1] {
		if !segmentRegex.MatchString(hop) {
			return nil, fmt.Errorf("invalid child segment %q in sweep target %q", hop, raw)
		}
		t.Children = append(t.Children, hop)
	}

	for _, seg := range strings.Split(hops[len(hops)-1], ".") {
		if !segmentRegex.MatchString(seg) {
			return nil, fmt.Errorf("invalid parameter segment %q in sweep target %q", seg, raw)
		}
		t.Params = append(t.Params, seg)
	}

	return t, nil
}

// ParamPath returns the dotted parameter path inside the target child.
func (t *Target) ParamPath() string {
	return strings.Join(t.Params, ".")
}

// ParamName returns the final parameter segment, used in sweep tags and
// provenance records.
func (t *Target) ParamName() string {
	return t.Params[len(t.Params)-1]
}

// String serializes the Target back into its canonical representation.
func (t *Target) String() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.Children, "->") + "->" + t.ParamPath()
}

// Join builds a canonical target string from a child name and a dotted
// parameter path. The composition service uses it when deriving the
// sweep-target vocabulary.
func Join(child, paramPath string) string {
	return child + "->" + paramPath
}
