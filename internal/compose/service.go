package compose

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/device"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/iterator"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/pathspec"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/registry"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/task"
)

// Blueprint is a synthesized iterator configuration: a uniquely named,
// registered type analogue holding the settings instance and the
// instantiated child map. Children are live task instances, so one blueprint
// backs exactly one runnable iterator tree.
type Blueprint struct {
	// TypeName is globally unique across the service, so repeated
	// descriptors never collide with previously synthesized types.
	TypeName string
	ID       uuid.UUID

	Kind         iterator.Kind
	Settings     *param.Tree
	Children     map[string]task.Runner
	SweepTargets []string

	devices      device.Bindings
	instantiated bool
}

// New instantiates the iterator this blueprint describes. A blueprint is
// single-use: its children carry run state, so a second instance would
// interleave with the first. Compose the descriptor again for another tree.
func (b *Blueprint) New(name string) (*iterator.Iterator, error) {
	if b.instantiated {
		return nil, fmt.Errorf("blueprint %q is already instantiated; compose the descriptor again for another tree", b.TypeName)
	}
	it, err := iterator.New(name, task.Options{
		Settings: b.Settings.Clone(),
		Devices:  b.devices,
		Children: b.Children,
	})
	if err != nil {
		return nil, err
	}
	b.instantiated = true
	return it, nil
}

// Service synthesizes and registers iterator blueprints from descriptors.
type Service struct {
	registry *registry.Registry
	types    map[string]*Blueprint
}

// NewService creates a composition service backed by the given registry.
func NewService(reg *registry.Registry) *Service {
	return &Service{
		registry: reg,
		types:    make(map[string]*Blueprint),
	}
}

// Types returns the blueprints synthesized so far, keyed by unique type name.
func (s *Service) Types() map[string]*Blueprint {
	out := make(map[string]*Blueprint, len(s.types))
	for name, bp := range s.types {
		out[name] = bp
	}
	return out
}

// Compose resolves a descriptor into a registered blueprint. Nested iterator
// descriptors resolve depth-first, so inner sweeps are fully materialized
// before the outer type is built. Per-child failures are collected into a
// ResolveError naming each failing child while unaffected siblings still
// resolve; an unknown iteration kind or missing device requirement fails
// immediately.
func (s *Service) Compose(ctx context.Context, desc *Descriptor, bindings device.Bindings) (*Blueprint, error) {
	logger := ctxlog.FromContext(ctx).With("class", desc.ClassName)

	kind, err := parseKind(desc.Iteration.Kind)
	if err != nil {
		return nil, fmt.Errorf("descriptor %q: %w", desc.ClassName, err)
	}
	if err := bindings.Require(desc.DeviceRequirements...); err != nil {
		return nil, fmt.Errorf("descriptor %q: %w", desc.ClassName, err)
	}
	if len(desc.Children) == 0 {
		return nil, fmt.Errorf("descriptor %q: at least one child task is required", desc.ClassName)
	}

	children := make(map[string]task.Runner, len(desc.Children))
	names := make([]string, 0, len(desc.Children))
	failures := make(map[string]error)

	for _, spec := range desc.Children {
		child, err := s.resolveChild(ctx, spec, bindings)
		if err != nil {
			failures[spec.Name] = err
			continue
		}
		if _, dup := children[spec.Name]; dup {
			failures[spec.Name] = fmt.Errorf("duplicate child name %q", spec.Name)
			continue
		}
		children[spec.Name] = child
		names = append(names, spec.Name)
	}

	var targets []string
	if kind == iterator.KindSweep {
		targets = s.deriveSweepTargets(ctx, names, children)
		if len(targets) == 0 && len(failures) == 0 {
			return nil, fmt.Errorf("descriptor %q: no numeric sweep targets found in any child's settings", desc.ClassName)
		}
	}

	var settings *param.Tree
	if len(failures) == 0 {
		settings, err = iterator.Settings(kind, names, targets)
		if err != nil {
			return nil, fmt.Errorf("descriptor %q: %w", desc.ClassName, err)
		}
		if err := applyIteration(settings, kind, desc.Iteration); err != nil {
			return nil, fmt.Errorf("descriptor %q: %w", desc.ClassName, err)
		}
	}

	bp := &Blueprint{
		ID:           uuid.New(),
		Kind:         kind,
		Settings:     settings,
		Children:     children,
		SweepTargets: targets,
		devices:      bindings.Subset(desc.DeviceRequirements...),
	}
	bp.TypeName = fmt.Sprintf("%s-%s", desc.ClassName, bp.ID.String()[:8])

	if len(failures) > 0 {
		return bp, &ResolveError{Failures: failures}
	}

	s.types[bp.TypeName] = bp
	logger.Debug("Synthesized iterator type.", "type", bp.TypeName, "kind", kind.String(), "children", len(children))
	return bp, nil
}

// resolveChild constructs one child: a nested iterator depth-first, or a
// leaf task from the measurement registry, then applies its settings
// overrides.
func (s *Service) resolveChild(ctx context.Context, spec ChildSpec, bindings device.Bindings) (task.Runner, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("child name cannot be empty")
	}
	if spec.Iterator != nil && spec.Type != "" {
		return nil, fmt.Errorf("child %q: type and nested iterator are mutually exclusive", spec.Name)
	}

	var child task.Runner
	switch {
	case spec.Iterator != nil:
		inner, err := s.Compose(ctx, spec.Iterator, bindings)
		if err != nil {
			return nil, err
		}
		it, err := inner.New(spec.Name)
		if err != nil {
			return nil, err
		}
		child = it
	case spec.Type != "":
		leaf, err := s.registry.NewTask(spec.Name, spec.Type, bindings)
		if err != nil {
			return nil, err
		}
		child = leaf
	default:
		return nil, fmt.Errorf("child %q: neither a measurement type nor a nested iterator given", spec.Name)
	}

	if len(spec.Settings) > 0 {
		if err := child.Settings().Update(spec.Settings); err != nil {
			return nil, fmt.Errorf("child %q: %w", spec.Name, err)
		}
	}
	return child, nil
}

// deriveSweepTargets walks every child's settings schema and collects each
// numeric leaf's path as a candidate sweep target. Non-numeric leaves are
// skipped with a logged note.
func (s *Service) deriveSweepTargets(ctx context.Context, names []string, children map[string]task.Runner) []string {
	logger := ctxlog.FromContext(ctx)

	var targets []string
	for _, name := range names {
		child := children[name]
		child.Settings().Walk(func(path string, spec param.Spec, _ cty.Value) {
			if spec.Type == cty.Number {
				targets = append(targets, pathspec.Join(name, path))
				return
			}
			logger.Debug("Skipping non-numeric leaf as sweep target.", "child", name, "path", path, "type", spec.Type.FriendlyName())
		})
	}
	return targets
}

// applyIteration writes the descriptor's iteration settings over the schema
// defaults.
func applyIteration(settings *param.Tree, kind iterator.Kind, cfg Iteration) error {
	for name, v := range cfg.Order {
		if err := settings.SetAny("experiment_order."+name, v); err != nil {
			return err
		}
	}
	for name, v := range cfg.Frequency {
		if err := settings.SetAny("experiment_execution_freq."+name, v); err != nil {
			return err
		}
	}

	switch kind {
	case iterator.KindLoop:
		if cfg.NumLoops != 0 {
			if err := settings.SetAny("num_loops", cfg.NumLoops); err != nil {
				return err
			}
		}
		if cfg.RunAllFirst {
			if err := settings.SetAny("run_all_first", true); err != nil {
				return err
			}
		}
	case iterator.KindSweep:
		if cfg.SweepParam != "" {
			if err := settings.SetAny("sweep_param", cfg.SweepParam); err != nil {
				return err
			}
		}
		if cfg.SteppingMode != "" {
			if err := settings.SetAny("stepping_mode", cfg.SteppingMode); err != nil {
				return err
			}
		}
		if err := settings.SetAny("sweep_range.min_value", cfg.MinValue); err != nil {
			return err
		}
		if err := settings.SetAny("sweep_range.max_value", cfg.MaxValue); err != nil {
			return err
		}
		if cfg.NValueStep != 0 {
			if err := settings.SetAny("sweep_range.n_value_step", cfg.NValueStep); err != nil {
				return err
			}
		}
		if cfg.Randomize {
			if err := settings.SetAny("sweep_range.randomize", true); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseKind validates the descriptor's iteration kind.
func parseKind(kind string) (iterator.Kind, error) {
	switch kind {
	case "loop":
		return iterator.KindLoop, nil
	case "sweep":
		return iterator.KindSweep, nil
	default:
		return iterator.KindUnknown, fmt.Errorf("unknown iteration kind %q (want \"loop\" or \"sweep\")", kind)
	}
}
