package simdevice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/device"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/registry"
)

func TestInstrument_ProbeIsDeterministicPerSeed(t *testing.T) {
	ctx := context.Background()

	a := NewInstrument(1000, 8, 42)
	b := NewInstrument(1000, 8, 42)

	blockA, err := a.Probe(ctx)
	require.NoError(t, err)
	blockB, err := b.Probe(ctx)
	require.NoError(t, err)

	assert.Equal(t, blockA["counts"], blockB["counts"], "equal seeds replay the same stream")

	counts := blockA["counts"].([]float64)
	require.Len(t, counts, 8)
	for _, c := range counts {
		assert.GreaterOrEqual(t, c, 900.0)
		assert.LessOrEqual(t, c, 1100.0)
	}
}

func TestInstrument_ApplySettings(t *testing.T) {
	ctx := context.Background()
	inst := NewInstrument(1000, 4, 1)

	err := inst.ApplySettings(ctx, cty.ObjectVal(map[string]cty.Value{
		"rate":    cty.NumberFloatVal(10),
		"samples": cty.NumberIntVal(2),
	}))
	require.NoError(t, err)

	block, err := inst.Probe(ctx)
	require.NoError(t, err)
	counts := block["counts"].([]float64)
	require.Len(t, counts, 2)
	for _, c := range counts {
		assert.LessOrEqual(t, c, 11.0)
	}

	assert.Error(t, inst.ApplySettings(ctx, cty.StringVal("nope")),
		"settings must be an object")
}

func TestRegister(t *testing.T) {
	reg := registry.New()
	(&Module{}).Register(reg)

	assert.Contains(t, reg.Instruments, "simdevice")
	assert.Contains(t, reg.Measurements, "acquire_counts")

	t.Run("instrument factory honors its configuration", func(t *testing.T) {
		inst, err := reg.NewInstrument(context.Background(), "simdevice", cty.ObjectVal(map[string]cty.Value{
			"rate":    cty.NumberFloatVal(100),
			"samples": cty.NumberIntVal(3),
			"seed":    cty.NumberIntVal(5),
		}))
		require.NoError(t, err)

		block, err := inst.Probe(context.Background())
		require.NoError(t, err)
		assert.Len(t, block["counts"].([]float64), 3)
	})

	t.Run("acquire_counts requires the daq binding", func(t *testing.T) {
		_, err := reg.NewTask("probe", "acquire_counts", device.Bindings{})
		assert.ErrorContains(t, err, "missing required device binding(s): daq")
	})
}

func TestAcquireCounts(t *testing.T) {
	reg := registry.New()
	(&Module{}).Register(reg)

	bindings := device.Bindings{
		"daq": &device.Binding{Name: "daq", Instrument: NewInstrument(1000, 4, 7)},
	}

	t.Run("averages repeated reads scaled by integration time", func(t *testing.T) {
		tk, err := reg.NewTask("probe", "acquire_counts", bindings)
		require.NoError(t, err)
		require.NoError(t, tk.Settings().SetAny("integration_time", 0.5))
		require.NoError(t, tk.Settings().SetAny("averages", 3))

		require.NoError(t, tk.Run(context.Background()))

		counts, ok := tk.Data()["counts"].([]float64)
		require.True(t, ok)
		require.Len(t, counts, 4)
		for _, c := range counts {
			// rate * integration, within the jitter band.
			assert.GreaterOrEqual(t, c, 0.9*1000*0.5)
			assert.LessOrEqual(t, c, 1.1*1000*0.5)
		}
		assert.Equal(t, 100.0, tk.Progress())
		assert.Contains(t, tk.Log(), "acquired 3 of 3 averages")
	})

	t.Run("rejects a non-positive averages setting", func(t *testing.T) {
		tk, err := reg.NewTask("probe", "acquire_counts", bindings)
		require.NoError(t, err)
		require.NoError(t, tk.Settings().SetAny("averages", 0))

		err = tk.Run(context.Background())
		assert.ErrorContains(t, err, "averages must be at least 1")
	})
}
