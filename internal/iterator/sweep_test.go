package iterator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/task"
)

// probeLeaf is a leaf with a numeric integration_time setting whose body
// records the value it ran with.
func probeLeaf(t *testing.T, recorded *[]float64) *task.Task {
	t.Helper()
	settings := param.NewTree()
	settings.MustAddLeaf(param.Float("integration_time", 0.1, ""))
	return newLeaf(t, "probe", settings, func(_ context.Context, tk *task.Task) error {
		v, err := tk.Settings().GetFloat("integration_time")
		if err != nil {
			return err
		}
		*recorded = append(*recorded, v)
		tk.SetData("value", v)
		return nil
	})
}

func TestSweepValues(t *testing.T) {
	testCases := []struct {
		name     string
		min, max float64
		step     float64
		mode     string
		want     []float64
		wantErr  string
	}{
		{
			name: "N mode divides the range inclusively",
			min:  0, max: 10, step: 5, mode: "N",
			want: []float64{0, 2.5, 5, 7.5, 10},
		},
		{
			name: "N mode with a single point sits at min",
			min:  3, max: 10, step: 1, mode: "N",
			want: []float64{3},
		},
		{
			name: "N mode with two points hits both endpoints",
			min:  -1, max: 1, step: 2, mode: "N",
			want: []float64{-1, 1},
		},
		{
			name: "value_step mode walks by step",
			min:  0, max: 1, step: 0.25, mode: "value_step",
			want: []float64{0, 0.25, 0.5, 0.75, 1},
		},
		{
			name: "value_step snaps the final point to max",
			min:  0, max: 1, step: 0.3, mode: "value_step",
			want: []float64{0, 0.3, 0.6, 0.9, 1},
		},
		{
			name: "degenerate range yields one point",
			min:  5, max: 5, step: 1, mode: "value_step",
			want: []float64{5},
		},
		{
			name: "N mode rejects zero points",
			min:  0, max: 1, step: 0, mode: "N",
			wantErr: "at least 1 point",
		},
		{
			name: "value_step rejects a non-positive step",
			min:  0, max: 1, step: 0, mode: "value_step",
			wantErr: "positive step",
		},
		{
			name: "inverted range is rejected",
			min:  10, max: 0, step: 5, mode: "N",
			wantErr: "sweep range is inverted",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var recorded []float64
			probe := probeLeaf(t, &recorded)
			it := newSweep(t, []string{"probe"}, map[string]task.Runner{"probe": probe},
				[]string{"probe->integration_time"}, func(s *param.Tree) {
					setAll(t, s, map[string]any{
						"sweep_range.min_value":    tc.min,
						"sweep_range.max_value":    tc.max,
						"sweep_range.n_value_step": tc.step,
						"stepping_mode":            tc.mode,
					})
				})

			values, sequence, err := it.sweepValues()
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.want, values, 1e-9)
			assert.Equal(t, values, sequence, "without randomize the visit order is the sequence")
		})
	}
}

func TestSweepValues_Randomize(t *testing.T) {
	var recorded []float64
	probe := probeLeaf(t, &recorded)
	it := newSweep(t, []string{"probe"}, map[string]task.Runner{"probe": probe},
		[]string{"probe->integration_time"}, func(s *param.Tree) {
			setAll(t, s, map[string]any{
				"sweep_range.min_value":    0,
				"sweep_range.max_value":    15,
				"sweep_range.n_value_step": 16.0,
				"sweep_range.randomize":    true,
			})
		})

	values, sequence, err := it.sweepValues()
	require.NoError(t, err)

	assert.ElementsMatch(t, sequence, values, "shuffling permutes, never drops or duplicates")
	for i := 1; i < len(sequence); i++ {
		assert.Greater(t, sequence[i], sequence[i-1], "the retained sequence stays in resolution order")
	}
}

func TestSweep_RunWritesEachValueAndRetainsPoints(t *testing.T) {
	var recorded []float64
	probe := probeLeaf(t, &recorded)
	it := newSweep(t, []string{"probe"}, map[string]task.Runner{"probe": probe},
		[]string{"probe->integration_time"}, func(s *param.Tree) {
			setAll(t, s, map[string]any{
				"sweep_range.min_value":    0,
				"sweep_range.max_value":    10,
				"sweep_range.n_value_step": 5.0,
			})
		})

	require.NoError(t, it.Run(context.Background()))

	want := []float64{0, 2.5, 5, 7.5, 10}
	assert.Equal(t, want, recorded, "each resolved value is written before the child runs")
	require.Len(t, it.Data(), len(want), "one retained point per (child, value)")

	for _, v := range want {
		tag := sweepTag("probe", "integration_time", v)
		raw, ok := it.Data()[tag]
		require.True(t, ok, "missing point %q", tag)
		point, ok := raw.(*Point)
		require.True(t, ok)

		assert.Equal(t, v, point.Data["value"], "retained data matches the provenance value")

		setting, err := point.Settings.GetFloat("integration_time")
		require.NoError(t, err)
		assert.Equal(t, v, setting, "the settings snapshot reflects the swept value")

		prov, ok := point.Provenance[1]
		require.True(t, ok, "provenance is keyed by the producing iterator's level")
		assert.Equal(t, "integration_time", prov.Param)
		assert.Equal(t, v, prov.Value)
		assert.Equal(t, want, prov.Sequence)
	}
}

func TestSweep_PointDataIsACopy(t *testing.T) {
	var recorded []float64
	probe := probeLeaf(t, &recorded)
	it := newSweep(t, []string{"probe"}, map[string]task.Runner{"probe": probe},
		[]string{"probe->integration_time"}, func(s *param.Tree) {
			setAll(t, s, map[string]any{
				"sweep_range.min_value":    0,
				"sweep_range.max_value":    1,
				"sweep_range.n_value_step": 2.0,
			})
		})

	require.NoError(t, it.Run(context.Background()))

	first := it.Data()[sweepTag("probe", "integration_time", 0)].(*Point)
	assert.Equal(t, 0.0, first.Data["value"],
		"the point retained at value 0 must not be overwritten by the later run at value 1")
}

func TestSweep_TargetValidation(t *testing.T) {
	targets := []string{
		"probe->integration_time",
		"ghost->integration_time",
		"probe->no_such",
		"probe->tag",
	}

	testCases := []struct {
		name    string
		target  string
		wantErr string
	}{
		{"unknown child hop", "ghost->integration_time", `no child named "ghost"`},
		{"unknown parameter", "probe->no_such", "unknown parameter"},
		{"non-numeric parameter", "probe->tag", "not a numeric parameter"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var recorded []float64
			probe := probeLeaf(t, &recorded)
			it := newSweep(t, []string{"probe"}, map[string]task.Runner{"probe": probe},
				targets, func(s *param.Tree) {
					setAll(t, s, map[string]any{"sweep_param": tc.target})
				})

			err := it.Run(context.Background())
			assert.ErrorContains(t, err, tc.wantErr)
			assert.Empty(t, recorded, "validation fails before any value is written")
		})
	}
}

func TestSweep_NestedSweepLevels(t *testing.T) {
	var recorded []float64
	probe := probeLeaf(t, &recorded)

	innerSettings, err := Settings(KindSweep, []string{"probe"}, []string{"probe->integration_time"})
	require.NoError(t, err)
	inner, err := New("inner", task.Options{Settings: innerSettings, Children: map[string]task.Runner{"probe": probe}})
	require.NoError(t, err)
	setAll(t, inner.Settings(), map[string]any{
		"sweep_range.min_value":    0,
		"sweep_range.max_value":    1,
		"sweep_range.n_value_step": 2.0,
	})
	require.Equal(t, 1, inner.Level())

	// The outer sweep drives the inner sweep's upper endpoint.
	settings, err := Settings(KindSweep, []string{"inner"}, []string{"inner->sweep_range.max_value"})
	require.NoError(t, err)
	outer, err := New("outer", task.Options{Settings: settings, Children: map[string]task.Runner{"inner": inner}})
	require.NoError(t, err)
	setAll(t, outer.Settings(), map[string]any{
		"sweep_range.min_value":    10,
		"sweep_range.max_value":    20,
		"sweep_range.n_value_step": 2.0,
	})
	require.Equal(t, 2, outer.Level())

	require.NoError(t, outer.Run(context.Background()))

	assert.Equal(t, []float64{0, 10, 0, 20}, recorded)

	require.Len(t, outer.Data(), 2)
	for _, endpoint := range []float64{10, 20} {
		raw, ok := outer.Data()[sweepTag("inner", "max_value", endpoint)]
		require.True(t, ok)
		outerPoint := raw.(*Point)

		prov, ok := outerPoint.Provenance[2]
		require.True(t, ok, "the outer sweep records provenance at level 2")
		assert.Equal(t, "max_value", prov.Param)
		assert.Equal(t, endpoint, prov.Value)

		// The retained inner data is itself a set of level-1 points.
		innerRaw, ok := outerPoint.Data[sweepTag("probe", "integration_time", endpoint)]
		require.True(t, ok)
		innerPoint, ok := innerRaw.(*Point)
		require.True(t, ok)
		_, ok = innerPoint.Provenance[1]
		assert.True(t, ok, "inner points carry level-1 provenance")
	}
}

func TestSweep_AbortBetweenPoints(t *testing.T) {
	var it *Iterator
	var recorded []float64
	settings := param.NewTree()
	settings.MustAddLeaf(param.Float("integration_time", 0.1, ""))
	probe := newLeaf(t, "probe", settings, func(_ context.Context, tk *task.Task) error {
		v, err := tk.Settings().GetFloat("integration_time")
		if err != nil {
			return err
		}
		recorded = append(recorded, v)
		tk.SetData("value", v)
		it.Stop()
		return nil
	})

	it = newSweep(t, []string{"probe"}, map[string]task.Runner{"probe": probe},
		[]string{"probe->integration_time"}, func(s *param.Tree) {
			setAll(t, s, map[string]any{
				"sweep_range.min_value":    0,
				"sweep_range.max_value":    10,
				"sweep_range.n_value_step": 5.0,
			})
		})

	require.NoError(t, it.Run(context.Background()))
	assert.Equal(t, []float64{0}, recorded, "the sweep stops at the next point boundary")
	assert.Len(t, it.Data(), 1, "the completed point is still retained")
}
