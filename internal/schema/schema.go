// Package schema defines the HCL block structures of experiment files: the
// experiment header, device bindings, leaf measurement tasks, and iterator
// descriptors.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// SettingsBlock holds the free-form attributes of a 'settings' block. Its
// contents are not fixed; they are validated against the owning parameter
// tree after decoding.
type SettingsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Experiment is the top-level header naming the root iterator to run.
type Experiment struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
	Root        string `hcl:"root"`
}

// Device declares a named instrument binding built from a registered driver.
type Device struct {
	Name     string         `hcl:"name,label"`
	Driver   string         `hcl:"driver"`
	Settings *SettingsBlock `hcl:"settings,block"`
}

// Task declares a leaf measurement instance of a registered type.
type Task struct {
	Name     string         `hcl:"name,label"`
	Type     string         `hcl:"type"`
	Settings *SettingsBlock `hcl:"settings,block"`
}

// ChildRef attaches a task or iterator, by name, as a child of an iterator,
// optionally overriding some of its settings.
type ChildRef struct {
	Name     string         `hcl:"name,label"`
	Settings *SettingsBlock `hcl:"settings,block"`
}

// SweepRange is the value-range block of a sweep-kind iterator.
type SweepRange struct {
	MinValue   float64 `hcl:"min_value"`
	MaxValue   float64 `hcl:"max_value"`
	NValueStep float64 `hcl:"n_value_step"`
	Randomize  *bool   `hcl:"randomize,optional"`
}

// Iterator is the declarative composition descriptor for one iterator type.
type Iterator struct {
	Name     string      `hcl:"name,label"`
	Kind     string      `hcl:"kind"`
	Children []*ChildRef `hcl:"child,block"`
	Devices  []string    `hcl:"devices,optional"`

	// Loop kind.
	NumLoops    *int  `hcl:"num_loops,optional"`
	RunAllFirst *bool `hcl:"run_all_first,optional"`

	// Sweep kind.
	SweepParam   *string     `hcl:"sweep_param,optional"`
	SteppingMode *string     `hcl:"stepping_mode,optional"`
	SweepRange   *SweepRange `hcl:"sweep_range,block"`

	// Per-child scheduling overrides.
	Order     map[string]int `hcl:"order,optional"`
	Frequency map[string]int `hcl:"frequency,optional"`
}

// Config is the top-level structure of an experiment file set.
type Config struct {
	Experiment *Experiment `hcl:"experiment,block"`
	Devices    []*Device   `hcl:"device,block"`
	Tasks      []*Task     `hcl:"task,block"`
	Iterators  []*Iterator `hcl:"iterator,block"`
}
