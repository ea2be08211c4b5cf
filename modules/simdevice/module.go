// Package simdevice provides a simulated photon-counter instrument and the
// acquire_counts measurement built on it. It is the in-repo stand-in for
// real hardware: experiments, the CLI, and the test suite all run against it.
package simdevice

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/zclconf/go-cty/cty"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/device"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/registry"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Instrument simulates a counter card: Probe returns a block of count
// samples around the configured rate with multiplicative jitter.
type Instrument struct {
	rate    float64
	samples int
	rng     *rand.Rand
}

// NewInstrument builds a simulated instrument. A non-zero seed makes the
// sample stream deterministic, which the tests rely on.
func NewInstrument(rate float64, samples int, seed int64) *Instrument {
	if samples < 1 {
		samples = 1
	}
	src := rand.NewSource(seed)
	return &Instrument{rate: rate, samples: samples, rng: rand.New(src)}
}

// ApplySettings updates the simulated rate and sample count from a settings
// object; unknown attributes are ignored.
func (d *Instrument) ApplySettings(_ context.Context, settings cty.Value) error {
	if !settings.Type().IsObjectType() {
		return fmt.Errorf("simdevice: settings must be an object, got %s", settings.Type().FriendlyName())
	}
	if settings.Type().HasAttribute("rate") {
		f, _ := settings.GetAttr("rate").AsBigFloat().Float64()
		d.rate = f
	}
	if settings.Type().HasAttribute("samples") {
		n, _ := settings.GetAttr("samples").AsBigFloat().Int64()
		if n >= 1 {
			d.samples = int(n)
		}
	}
	return nil
}

// Probe returns one block of simulated count samples.
func (d *Instrument) Probe(_ context.Context) (map[string]any, error) {
	counts := make([]float64, d.samples)
	for i := range counts {
		jitter := 0.9 + 0.2*d.rng.Float64()
		counts[i] = d.rate * jitter
	}
	return map[string]any{"counts": counts}, nil
}

// acquireSettings is the settings schema of the acquire_counts measurement.
func acquireSettings() *param.Tree {
	t := param.NewTree()
	t.MustAddLeaf(param.Float("integration_time", 0.1, "counting window per sample, seconds"))
	t.MustAddLeaf(param.Int("averages", 1, "number of probe reads averaged into the output"))
	return t
}

// AcquireCounts is the body of the acquire_counts measurement: probe the
// counter `averages` times and store the elementwise mean under "counts".
func AcquireCounts(ctx context.Context, t *task.Task) error {
	logger := ctxlog.FromContext(ctx).With("measurement", "acquire_counts")

	binding, ok := t.Device("daq")
	if !ok {
		return fmt.Errorf("acquire_counts: device binding %q missing", "daq")
	}
	integration, err := t.Settings().GetFloat("integration_time")
	if err != nil {
		return err
	}
	averages, err := t.Settings().GetInt("averages")
	if err != nil {
		return err
	}
	if averages < 1 {
		return fmt.Errorf("acquire_counts: averages must be at least 1, got %d", averages)
	}

	var acc []float64
	completed := 0
	for i := 0; i < averages; i++ {
		if t.Aborted() {
			logger.Warn("Abort observed between probe reads.", "completed", i, "of", averages)
			t.Logf("aborted after %d of %d averages", i, averages)
			break
		}

		block, err := binding.Instrument.Probe(ctx)
		if err != nil {
			return fmt.Errorf("acquire_counts: %w", err)
		}
		counts, ok := toFloats(block["counts"])
		if !ok {
			return fmt.Errorf("acquire_counts: probe returned no usable 'counts' channel")
		}

		if acc == nil {
			acc = make([]float64, len(counts))
		}
		if len(counts) != len(acc) {
			return fmt.Errorf("acquire_counts: probe block length changed from %d to %d", len(acc), len(counts))
		}
		for j, c := range counts {
			acc[j] += c * integration
		}
		completed++
		t.NotifyProgress(100 * float64(i+1) / float64(averages))
	}

	if completed > 0 {
		for j := range acc {
			acc[j] /= float64(completed)
		}
		t.SetData("counts", acc)
	}
	t.Logf("acquired %d of %d averages", completed, averages)
	return nil
}

// toFloats normalizes a probe channel into []float64.
func toFloats(v any) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return s, true
	case []any:
		out := make([]float64, len(s))
		for i, el := range s {
			f, ok := el.(float64)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// Register registers the simulated driver and the acquire_counts measurement.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInstrument("simdevice", func(_ context.Context, cfg cty.Value) (device.Instrument, error) {
		rate := 1000.0
		samples := 16
		var seed int64
		if cfg.Type().IsObjectType() {
			if cfg.Type().HasAttribute("rate") {
				rate, _ = cfg.GetAttr("rate").AsBigFloat().Float64()
			}
			if cfg.Type().HasAttribute("samples") {
				n, _ := cfg.GetAttr("samples").AsBigFloat().Int64()
				samples = int(n)
			}
			if cfg.Type().HasAttribute("seed") {
				seed, _ = cfg.GetAttr("seed").AsBigFloat().Int64()
			}
		}
		return NewInstrument(rate, samples, seed), nil
	})

	r.RegisterMeasurement("acquire_counts", &registry.Measurement{
		Description:    "average repeated counter reads into a single counts trace",
		RequireDevices: []string{"daq"},
		NewSettings:    acquireSettings,
		Body:           AcquireCounts,
	})
}
