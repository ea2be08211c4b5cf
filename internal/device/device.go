// Package device defines the narrow capability interface through which the
// orchestration engine talks to hardware, and the named bindings tasks borrow
// to reach it. Tasks never own instruments; a binding may be shared by
// several sibling tasks, serialized by the single-threaded run order.
package device

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
)

// Instrument is the full capability surface the engine consumes: push
// settings down, read a probe back. Device internals are never inspected.
type Instrument interface {
	// ApplySettings pushes a settings snapshot (a cty object) to the
	// hardware. Blocks until the hardware acknowledges.
	ApplySettings(ctx context.Context, settings cty.Value) error

	// Probe performs one read and returns its data keyed by channel name.
	Probe(ctx context.Context) (map[string]any, error)
}

// Binding is a named handle to an instrument plus the parameter tree that
// configures it.
type Binding struct {
	Name       string
	Instrument Instrument
	Settings   *param.Tree
}

// Apply pushes the binding's current settings tree to the instrument.
func (b *Binding) Apply(ctx context.Context) error {
	if b.Instrument == nil {
		return fmt.Errorf("device %q has no instrument attached", b.Name)
	}
	settings := cty.EmptyObjectVal
	if b.Settings != nil {
		settings = b.Settings.Object()
	}
	if err := b.Instrument.ApplySettings(ctx, settings); err != nil {
		return fmt.Errorf("device %q: apply settings: %w", b.Name, err)
	}
	return nil
}

// Bindings maps binding names to bindings.
type Bindings map[string]*Binding

// Require asserts that every named binding is present. A missing binding is
// a fatal configuration error; all missing names are reported at once.
func (b Bindings) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := b[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required device binding(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// Subset returns the bindings for the given names. Call Require first; an
// absent name is silently skipped here.
func (b Bindings) Subset(names ...string) Bindings {
	out := make(Bindings, len(names))
	for _, name := range names {
		if bind, ok := b[name]; ok {
			out[name] = bind
		}
	}
	return out
}
