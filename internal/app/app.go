// Package app wires the engine together: logger, module registration,
// experiment loading, composition, and the root run.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/compose"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/device"
	hclload "github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/hcl"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/registry"
)

// App is a configured application instance.
type App struct {
	out      io.Writer
	cfg      *Config
	loader   *hclload.Loader
	registry *registry.Registry
}

// NewApp assembles an App and registers all built-in modules. Registration
// conflicts panic; the CLI boundary recovers them into a clean exit.
func NewApp(outW io.Writer, cfg *Config, loader *hclload.Loader) *App {
	reg := registry.New()
	for _, m := range Modules() {
		m.Register(reg)
	}
	return &App{out: outW, cfg: cfg, loader: loader, registry: reg}
}

// Registry exposes the app's registry, mainly for tests.
func (a *App) Registry() *registry.Registry { return a.registry }

// Run executes the configured experiment end to end.
func (a *App) Run(ctx context.Context) error {
	logger := newLogger(a.cfg.LogLevel, a.cfg.LogFormat, os.Stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	cfg, err := a.loader.Load(ctx, a.cfg.ExperimentPath)
	if err != nil {
		return err
	}
	model, err := hclload.Translate(cfg)
	if err != nil {
		return err
	}
	logger.Info("Experiment loaded.", "experiment", model.Experiment.Name, "devices", len(model.Devices))

	bindings, err := a.buildBindings(ctx, model.Devices)
	if err != nil {
		return err
	}

	svc := compose.NewService(a.registry)
	blueprint, err := svc.Compose(ctx, model.Descriptor, bindings)
	if err != nil {
		return err
	}
	logger.Info("Iterator type synthesized.", "type", blueprint.TypeName, "kind", blueprint.Kind.String())

	root, err := blueprint.New(model.Experiment.Name)
	if err != nil {
		return err
	}

	if a.cfg.DryRun {
		a.printSurface(blueprint)
		return nil
	}

	root.SetObserver(func(name string, pct float64) {
		logger.Debug("Progress.", "task", name, "pct", fmt.Sprintf("%.1f", pct))
	})

	logger.Info("▶️ Starting experiment run.", "root", model.Experiment.Name)
	if err := root.Run(ctx); err != nil {
		return fmt.Errorf("experiment %q failed: %w", model.Experiment.Name, err)
	}
	logger.Info("✅ Experiment run finished.")

	a.printSummary(model.Experiment.Name, root.Data())
	return nil
}

// buildBindings instantiates every declared device through its registered
// driver.
func (a *App) buildBindings(ctx context.Context, specs []hclload.DeviceSpec) (device.Bindings, error) {
	bindings := device.Bindings{}
	for _, spec := range specs {
		instrument, err := a.registry.NewInstrument(ctx, spec.Driver, spec.Settings)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", spec.Name, err)
		}
		bindings[spec.Name] = &device.Binding{Name: spec.Name, Instrument: instrument}
	}
	return bindings, nil
}

// printSurface writes the resolved settings surface of a dry run.
func (a *App) printSurface(bp *compose.Blueprint) {
	fmt.Fprintf(a.out, "type: %s (%s)\n", bp.TypeName, bp.Kind)
	if len(bp.SweepTargets) > 0 {
		fmt.Fprintln(a.out, "sweep targets:")
		for _, target := range bp.SweepTargets {
			fmt.Fprintf(a.out, "  %s\n", target)
		}
	}
	fmt.Fprintln(a.out, "settings:")
	bp.Settings.Walk(func(path string, spec param.Spec, value cty.Value) {
		fmt.Fprintf(a.out, "  %s = %s\n", path, formatValue(value))
	})
}

// printSummary lists the root task's output keys.
func (a *App) printSummary(name string, data map[string]any) {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintf(a.out, "experiment %q produced %d data key(s)\n", name, len(keys))
	for _, key := range keys {
		fmt.Fprintf(a.out, "  %s\n", key)
	}
}

func formatValue(v cty.Value) string {
	switch v.Type() {
	case cty.String:
		return fmt.Sprintf("%q", v.AsString())
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return fmt.Sprintf("%g", f)
	case cty.Bool:
		return fmt.Sprintf("%t", v.True())
	default:
		return v.GoString()
	}
}
