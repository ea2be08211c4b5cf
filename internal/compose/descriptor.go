// Package compose synthesizes ready-to-run iterator configurations from
// declarative descriptors. Per the engine's design, no types are generated
// at run time: composition produces a Blueprint — a registered, uniquely
// named bundle of settings schema plus instantiated child map — and the one
// generic Iterator implementation is parameterized by it.
package compose

// Iteration carries the iteration-kind settings of a descriptor. Zero values
// fall back to the schema defaults built by the iterator package.
type Iteration struct {
	// Kind is "loop" or "sweep". Anything else is a fatal configuration
	// error.
	Kind string

	// Loop kind.
	NumLoops    int
	RunAllFirst bool

	// Sweep kind. SweepParam may be empty, in which case the first derived
	// target is preselected.
	SweepParam   string
	MinValue     float64
	MaxValue     float64
	NValueStep   float64
	SteppingMode string
	Randomize    bool

	// Order and Frequency override the per-child scheduling defaults.
	Order     map[string]int
	Frequency map[string]int
}

// ChildSpec names one child of a composed iterator: either a registered
// measurement type or a nested iterator descriptor, resolved depth-first.
type ChildSpec struct {
	Name string

	// Type is a registered measurement type. Mutually exclusive with
	// Iterator.
	Type string

	// Iterator nests another descriptor; it is resolved before the outer
	// type is built, so sweeps of sweeps materialize bottom-up.
	Iterator *Descriptor

	// Settings are applied to the child's settings tree after construction.
	Settings map[string]any
}

// Descriptor is the declarative record the composition service consumes.
type Descriptor struct {
	ClassName          string
	Children           []ChildSpec
	DeviceRequirements []string
	Iteration          Iteration
}
