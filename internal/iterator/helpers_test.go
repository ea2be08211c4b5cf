package iterator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/task"
)

// newLeaf builds a leaf task with the given extra settings and body.
func newLeaf(t *testing.T, name string, settings *param.Tree, body task.Body) *task.Task {
	t.Helper()
	leaf, err := task.NewLeaf(name, task.Options{Settings: settings}, body)
	require.NoError(t, err)
	return leaf
}

// emitLeaf builds a leaf whose body writes the result of emit, invoked with
// the 1-indexed call count.
func emitLeaf(t *testing.T, name string, emit func(call int) map[string]any) *task.Task {
	t.Helper()
	calls := 0
	return newLeaf(t, name, nil, func(_ context.Context, tk *task.Task) error {
		calls++
		for key, v := range emit(calls) {
			tk.SetData(key, v)
		}
		return nil
	})
}

// newLoop builds a loop iterator over the named children. The names slice
// fixes the default execution order.
func newLoop(t *testing.T, names []string, children map[string]task.Runner, numLoops int) *Iterator {
	t.Helper()
	settings, err := Settings(KindLoop, names, nil)
	require.NoError(t, err)
	require.NoError(t, settings.SetAny("num_loops", numLoops))

	it, err := New("scan", task.Options{Settings: settings, Children: children})
	require.NoError(t, err)
	return it
}

// newSweep builds a sweep iterator; configure mutates the settings surface
// after the schema defaults are in place.
func newSweep(t *testing.T, names []string, children map[string]task.Runner, targets []string, configure func(*param.Tree)) *Iterator {
	t.Helper()
	settings, err := Settings(KindSweep, names, targets)
	require.NoError(t, err)
	if configure != nil {
		configure(settings)
	}

	it, err := New("scan", task.Options{Settings: settings, Children: children})
	require.NoError(t, err)
	return it
}

// setAll applies a batch of settings writes, failing the test on any error.
func setAll(t *testing.T, settings *param.Tree, values map[string]any) {
	t.Helper()
	for path, v := range values {
		require.NoError(t, settings.SetAny(path, v))
	}
}
