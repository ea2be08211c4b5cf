package hcl

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/compose"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/schema"
)

// DeviceSpec is a decoded device block: driver name plus its literal
// settings object.
type DeviceSpec struct {
	Name     string
	Driver   string
	Settings cty.Value
}

// Model is the translated form of an experiment file set, ready for the
// composition service.
type Model struct {
	Experiment *schema.Experiment
	Devices    []DeviceSpec
	Descriptor *compose.Descriptor
}

// Translate turns a decoded Config into a Model: device specs plus the root
// iterator's composition descriptor, with nested iterator references
// resolved recursively.
func Translate(cfg *schema.Config) (*Model, error) {
	model := &Model{Experiment: cfg.Experiment}

	for _, dev := range cfg.Devices {
		settings, err := settingsObject(dev.Settings)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", dev.Name, err)
		}
		model.Devices = append(model.Devices, DeviceSpec{
			Name:     dev.Name,
			Driver:   dev.Driver,
			Settings: settings,
		})
	}

	iterators := make(map[string]*schema.Iterator, len(cfg.Iterators))
	for _, it := range cfg.Iterators {
		if _, dup := iterators[it.Name]; dup {
			return nil, fmt.Errorf("duplicate iterator block %q", it.Name)
		}
		iterators[it.Name] = it
	}
	tasks := make(map[string]*schema.Task, len(cfg.Tasks))
	for _, t := range cfg.Tasks {
		if _, dup := tasks[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task block %q", t.Name)
		}
		tasks[t.Name] = t
	}

	root, ok := iterators[cfg.Experiment.Root]
	if !ok {
		return nil, fmt.Errorf("experiment root %q does not name an iterator block", cfg.Experiment.Root)
	}

	desc, err := buildDescriptor(root, iterators, tasks, map[string]bool{})
	if err != nil {
		return nil, err
	}
	model.Descriptor = desc
	return model, nil
}

// buildDescriptor translates one iterator block, recursing into child
// references that name other iterator blocks. The visiting set guards
// against reference cycles.
func buildDescriptor(block *schema.Iterator, iterators map[string]*schema.Iterator, tasks map[string]*schema.Task, visiting map[string]bool) (*compose.Descriptor, error) {
	if visiting[block.Name] {
		return nil, fmt.Errorf("iterator %q references itself, directly or through a cycle", block.Name)
	}
	visiting[block.Name] = true
	defer delete(visiting, block.Name)

	desc := &compose.Descriptor{
		ClassName:          block.Name,
		DeviceRequirements: block.Devices,
		Iteration:          buildIteration(block),
	}

	for _, ref := range block.Children {
		overrides, err := settingsMap(ref.Settings)
		if err != nil {
			return nil, fmt.Errorf("iterator %q, child %q: %w", block.Name, ref.Name, err)
		}

		if inner, ok := iterators[ref.Name]; ok {
			nested, err := buildDescriptor(inner, iterators, tasks, visiting)
			if err != nil {
				return nil, err
			}
			desc.Children = append(desc.Children, compose.ChildSpec{
				Name:     ref.Name,
				Iterator: nested,
				Settings: overrides,
			})
			continue
		}

		taskBlock, ok := tasks[ref.Name]
		if !ok {
			return nil, fmt.Errorf("iterator %q: child %q matches no task or iterator block", block.Name, ref.Name)
		}
		base, err := settingsMap(taskBlock.Settings)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", taskBlock.Name, err)
		}
		// Child-level overrides win over the task block's own settings.
		for k, v := range overrides {
			base[k] = v
		}
		desc.Children = append(desc.Children, compose.ChildSpec{
			Name:     ref.Name,
			Type:     taskBlock.Type,
			Settings: base,
		})
	}

	return desc, nil
}

// buildIteration lifts an iterator block's scalar fields into the
// composition Iteration record.
func buildIteration(block *schema.Iterator) compose.Iteration {
	iter := compose.Iteration{
		Kind:      block.Kind,
		Order:     block.Order,
		Frequency: block.Frequency,
	}
	if block.NumLoops != nil {
		iter.NumLoops = *block.NumLoops
	}
	if block.RunAllFirst != nil {
		iter.RunAllFirst = *block.RunAllFirst
	}
	if block.SweepParam != nil {
		iter.SweepParam = *block.SweepParam
	}
	if block.SteppingMode != nil {
		iter.SteppingMode = *block.SteppingMode
	}
	if rng := block.SweepRange; rng != nil {
		iter.MinValue = rng.MinValue
		iter.MaxValue = rng.MaxValue
		iter.NValueStep = rng.NValueStep
		if rng.Randomize != nil {
			iter.Randomize = *rng.Randomize
		}
	}
	return iter
}

// settingsMap evaluates a settings block's literal attributes into a map of
// cty values, which the parameter tree validates on Update.
func settingsMap(block *schema.SettingsBlock) (map[string]any, error) {
	out := map[string]any{}
	if block == nil {
		return out, nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("reading settings: %w", diags)
	}
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating setting %q: %w", name, diags)
		}
		out[name] = val
	}
	return out, nil
}

// settingsObject evaluates a settings block into a single cty object.
func settingsObject(block *schema.SettingsBlock) (cty.Value, error) {
	m, err := settingsMap(block)
	if err != nil {
		return cty.NilVal, err
	}
	if len(m) == 0 {
		return cty.EmptyObjectVal, nil
	}
	attrs := make(map[string]cty.Value, len(m))
	for name, v := range m {
		attrs[name] = v.(cty.Value)
	}
	return cty.ObjectVal(attrs), nil
}
