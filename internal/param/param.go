// Package param implements the typed, nested, validated parameter trees that
// every task carries as its settings surface. A tree is an ordered mapping
// from name to either a scalar leaf (default, type or enum, description) or a
// nested tree. Values are cty values throughout, so the same machinery that
// decodes experiment files also validates runtime updates.
package param

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Spec describes a single scalar parameter leaf.
type Spec struct {
	Name        string
	Type        cty.Type
	Default     cty.Value
	Enum        []cty.Value
	Description string

	// Validate is an optional extra check applied after type conversion.
	Validate func(cty.Value) error
}

// leaf is a spec plus its current value.
type leaf struct {
	spec  Spec
	value cty.Value
}

// Tree is an ordered collection of named leaves and nested groups. Names are
// unique at each nesting level; insertion order is preserved.
type Tree struct {
	order  []string
	leaves map[string]*leaf
	groups map[string]*Tree
}

// NewTree creates an empty parameter tree.
func NewTree() *Tree {
	return &Tree{
		leaves: make(map[string]*leaf),
		groups: make(map[string]*Tree),
	}
}

// AddLeaf registers a scalar parameter. The default value must satisfy the
// spec's type, enum, and validator.
func (t *Tree) AddLeaf(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	if strings.Contains(spec.Name, ".") {
		return fmt.Errorf("parameter name %q must not contain '.'", spec.Name)
	}
	if t.has(spec.Name) {
		return fmt.Errorf("duplicate parameter name %q", spec.Name)
	}
	val, err := checkValue(spec, spec.Default)
	if err != nil {
		return fmt.Errorf("invalid default for parameter %q: %w", spec.Name, err)
	}
	t.leaves[spec.Name] = &leaf{spec: spec, value: val}
	t.order = append(t.order, spec.Name)
	return nil
}

// MustAddLeaf is AddLeaf for statically-known specs; it panics on error.
func (t *Tree) MustAddLeaf(spec Spec) *Tree {
	if err := t.AddLeaf(spec); err != nil {
		panic(err)
	}
	return t
}

// AddGroup registers a nested parameter tree under the given name.
func (t *Tree) AddGroup(name string, group *Tree) error {
	if name == "" {
		return fmt.Errorf("group name cannot be empty")
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("group name %q must not contain '.'", name)
	}
	if t.has(name) {
		return fmt.Errorf("duplicate parameter name %q", name)
	}
	if group == nil {
		group = NewTree()
	}
	t.groups[name] = group
	t.order = append(t.order, name)
	return nil
}

// MustAddGroup is AddGroup for statically-known groups; it panics on error.
func (t *Tree) MustAddGroup(name string, group *Tree) *Tree {
	if err := t.AddGroup(name, group); err != nil {
		panic(err)
	}
	return t
}

func (t *Tree) has(name string) bool {
	_, l := t.leaves[name]
	_, g := t.groups[name]
	return l || g
}

// Names returns the names at this level in insertion order.
func (t *Tree) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Has reports whether a dotted path resolves to a leaf or group.
func (t *Tree) Has(path string) bool {
	tree, name, err := t.walk(path)
	if err != nil {
		return false
	}
	return tree.has(name)
}

// IsGroup reports whether the dotted path resolves to a nested tree.
func (t *Tree) IsGroup(path string) bool {
	tree, name, err := t.walk(path)
	if err != nil {
		return false
	}
	_, ok := tree.groups[name]
	return ok
}

// walk resolves all but the last segment of a dotted path, returning the
// owning tree and the final segment name.
func (t *Tree) walk(path string) (*Tree, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("parameter path cannot be empty")
	}
	segs := strings.Split(path, ".")
	cur := t
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur.groups[seg]
		if !ok {
			return nil, "", fmt.Errorf("unknown parameter group %q in path %q", seg, path)
		}
		cur = next
	}
	return cur, segs[len(segs)-1], nil
}

// Get returns the current value of the leaf at the dotted path.
func (t *Tree) Get(path string) (cty.Value, error) {
	tree, name, err := t.walk(path)
	if err != nil {
		return cty.NilVal, err
	}
	l, ok := tree.leaves[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("unknown parameter %q", path)
	}
	return l.value, nil
}

// Leaf returns the spec of the leaf at the dotted path.
func (t *Tree) Leaf(path string) (Spec, error) {
	tree, name, err := t.walk(path)
	if err != nil {
		return Spec{}, err
	}
	l, ok := tree.leaves[name]
	if !ok {
		return Spec{}, fmt.Errorf("unknown parameter %q", path)
	}
	return l.spec, nil
}

// Group returns the nested tree at the dotted path.
func (t *Tree) Group(path string) (*Tree, error) {
	tree, name, err := t.walk(path)
	if err != nil {
		return nil, err
	}
	g, ok := tree.groups[name]
	if !ok {
		return nil, fmt.Errorf("unknown parameter group %q", path)
	}
	return g, nil
}

// Set validates the value against the leaf's spec, coercing it to the leaf's
// type where a safe conversion exists, and applies it.
func (t *Tree) Set(path string, v cty.Value) error {
	tree, name, err := t.walk(path)
	if err != nil {
		return err
	}
	l, ok := tree.leaves[name]
	if !ok {
		if _, isGroup := tree.groups[name]; isGroup {
			return fmt.Errorf("parameter %q is a group, not a scalar", path)
		}
		return fmt.Errorf("unknown parameter %q", path)
	}
	val, err := checkValue(l.spec, v)
	if err != nil {
		return fmt.Errorf("parameter %q: %w", path, err)
	}
	l.value = val
	return nil
}

// SetAny converts a native Go value (or a cty.Value) and applies it via Set.
func (t *Tree) SetAny(path string, v any) error {
	tree, name, err := t.walk(path)
	if err != nil {
		return err
	}
	l, ok := tree.leaves[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", path)
	}
	cv, err := toCty(v, l.spec.Type)
	if err != nil {
		return fmt.Errorf("parameter %q: %w", path, err)
	}
	return t.Set(path, cv)
}

// Update applies a batch of changes. Map values recurse into groups and merge
// rather than replace; scalar values are validated exactly as in Set. Unknown
// keys and type mismatches are errors and abort the update at that key.
func (t *Tree) Update(changes map[string]any) error {
	for name, raw := range changes {
		switch {
		case t.IsGroup(name):
			nested, ok := nestedChanges(raw)
			if !ok {
				return fmt.Errorf("parameter group %q requires a nested map, got %T", name, raw)
			}
			g := t.groups[name]
			if err := g.Update(nested); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		default:
			if err := t.SetAny(name, raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// nestedChanges accepts a native nested map or a cty object/map value — the
// latter is how decoded configuration delivers overrides for nested groups.
func nestedChanges(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case cty.Value:
		if v.IsNull() || !v.IsKnown() {
			return nil, false
		}
		if ty := v.Type(); !ty.IsObjectType() && !ty.IsMapType() {
			return nil, false
		}
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, val := it.Element()
			out[key.AsString()] = val
		}
		return out, true
	}
	return nil, false
}

// Clone returns a deep copy of the tree, including current values.
func (t *Tree) Clone() *Tree {
	out := NewTree()
	for _, name := range t.order {
		if l, ok := t.leaves[name]; ok {
			cp := *l
			out.leaves[name] = &cp
			out.order = append(out.order, name)
			continue
		}
		out.groups[name] = t.groups[name].Clone()
		out.order = append(out.order, name)
	}
	return out
}

// Merge appends every entry of other into t, preserving other's order.
// Duplicate names at this level are an error.
func (t *Tree) Merge(other *Tree) error {
	if other == nil {
		return nil
	}
	for _, name := range other.order {
		if l, ok := other.leaves[name]; ok {
			if err := t.AddLeaf(l.spec); err != nil {
				return err
			}
			t.leaves[name].value = l.value
			continue
		}
		if err := t.AddGroup(name, other.groups[name].Clone()); err != nil {
			return err
		}
	}
	return nil
}

// Object snapshots the tree into a cty object value, groups becoming nested
// objects. Used for device settings payloads and sweep provenance.
func (t *Tree) Object() cty.Value {
	attrs := make(map[string]cty.Value, len(t.order))
	for _, name := range t.order {
		if l, ok := t.leaves[name]; ok {
			attrs[name] = l.value
			continue
		}
		attrs[name] = t.groups[name].Object()
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(attrs)
}

// Walk visits every leaf depth-first in insertion order, passing its dotted
// path, spec, and current value.
func (t *Tree) Walk(fn func(path string, spec Spec, value cty.Value)) {
	t.walkPrefix("", fn)
}

func (t *Tree) walkPrefix(prefix string, fn func(string, Spec, cty.Value)) {
	for _, name := range t.order {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if l, ok := t.leaves[name]; ok {
			fn(path, l.spec, l.value)
			continue
		}
		t.groups[name].walkPrefix(path, fn)
	}
}

// NumericPaths returns the dotted path of every number-typed leaf, sorted.
// This is the vocabulary the composition service offers as sweep targets.
func (t *Tree) NumericPaths() []string {
	var out []string
	t.Walk(func(path string, spec Spec, _ cty.Value) {
		if spec.Type == cty.Number {
			out = append(out, path)
		}
	})
	sort.Strings(out)
	return out
}

// checkValue coerces v to the spec's type and runs enum/custom validation.
func checkValue(spec Spec, v cty.Value) (cty.Value, error) {
	if v == cty.NilVal {
		return cty.NilVal, fmt.Errorf("value is unset")
	}
	want := spec.Type
	if want == cty.NilType {
		want = v.Type()
	}
	val, err := convert.Convert(v, want)
	if err != nil {
		return cty.NilVal, fmt.Errorf("expected %s: %w", want.FriendlyName(), err)
	}
	if len(spec.Enum) > 0 {
		found := false
		for _, opt := range spec.Enum {
			if val.RawEquals(opt) {
				found = true
				break
			}
		}
		if !found {
			return cty.NilVal, fmt.Errorf("value %s is not one of the allowed options", valString(val))
		}
	}
	if spec.Validate != nil {
		if err := spec.Validate(val); err != nil {
			return cty.NilVal, err
		}
	}
	return val, nil
}

// toCty converts a native Go value to a cty value of the wanted type. Values
// that are already cty pass through untouched (Set converts them later).
func toCty(v any, want cty.Type) (cty.Value, error) {
	if cv, ok := v.(cty.Value); ok {
		return cv, nil
	}
	if want == cty.NilType {
		want = cty.DynamicPseudoType
	}
	cv, err := gocty.ToCtyValue(v, want)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot represent %T as %s: %w", v, want.FriendlyName(), err)
	}
	return cv, nil
}

func valString(v cty.Value) string {
	if v.Type() == cty.String {
		return fmt.Sprintf("%q", v.AsString())
	}
	return fmt.Sprintf("%v", v.GoString())
}
