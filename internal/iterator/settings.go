package iterator

import (
	"fmt"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
)

// Settings builds the iterator settings surface for the given kind and child
// names. Child order in the slice supplies the execution-order defaults; the
// sweep kind additionally needs the target vocabulary derived by the
// composition service.
func Settings(kind Kind, children []string, sweepTargets []string) (*param.Tree, error) {
	t := param.NewTree()

	order := param.NewTree()
	freq := param.NewTree()
	for i, name := range children {
		if err := order.AddLeaf(param.Int(name, int64(i), "execution order; lower runs first")); err != nil {
			return nil, fmt.Errorf("child %q: %w", name, err)
		}
		if err := freq.AddLeaf(param.Int(name, 1, "run every Nth pass; 0 disables the child")); err != nil {
			return nil, fmt.Errorf("child %q: %w", name, err)
		}
	}
	t.MustAddGroup("experiment_order", order)
	t.MustAddGroup("experiment_execution_freq", freq)

	switch kind {
	case KindLoop:
		t.MustAddLeaf(param.Int("num_loops", 1, "number of repetitions to average over"))
		t.MustAddLeaf(param.Bool("run_all_first", false, "gate execution frequency on 0-indexed passes so every child runs on the first pass"))
	case KindSweep:
		if len(sweepTargets) == 0 {
			return nil, fmt.Errorf("sweep iterator requires at least one numeric sweep target")
		}
		t.MustAddLeaf(param.Enum("sweep_param", sweepTargets[0], sweepTargets, "swept parameter, as child->param path"))
		t.MustAddLeaf(param.Enum("stepping_mode", "N", []string{"N", "value_step"}, "interpret n_value_step as a point count or a step size"))

		rng := param.NewTree()
		rng.MustAddLeaf(param.Float("min_value", 0, "first swept value"))
		rng.MustAddLeaf(param.Float("max_value", 1, "last swept value"))
		rng.MustAddLeaf(param.Float("n_value_step", 10, "point count (stepping_mode=N) or step size (stepping_mode=value_step)"))
		rng.MustAddLeaf(param.Bool("randomize", false, "shuffle the visit order; the unshuffled sequence is kept as metadata"))
		t.MustAddGroup("sweep_range", rng)
	default:
		return nil, fmt.Errorf("unknown iteration kind")
	}

	return t, nil
}
