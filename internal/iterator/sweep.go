package iterator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/zclconf/go-cty/cty"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/pathspec"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/task"
)

// Provenance records how one retained sweep point was produced.
type Provenance struct {
	// Param is the swept parameter's name (the final path segment).
	Param string
	// Value is the value the parameter held for this point.
	Value float64
	// Sequence is the full resolved value sequence, pre-shuffle.
	Sequence []float64
}

// Point is one retained sweep result: a deep copy of the child's data and
// settings plus the provenance record, keyed by the producing iterator's
// nesting level so multi-level sweeps reconstruct into N-dimensional
// structure downstream.
type Point struct {
	Data       map[string]any
	Settings   *param.Tree
	Provenance map[int]Provenance
}

// runSweep resolves the value sequence, writes each value into the target
// child's settings, runs the gated children, and retains every executed
// child's result under a tag unique to (child, parameter, value). Nothing is
// averaged.
func (it *Iterator) runSweep(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	rawTarget, err := it.Settings().GetString("sweep_param")
	if err != nil {
		return err
	}
	target, err := pathspec.Parse(rawTarget)
	if err != nil {
		return fmt.Errorf("iterator %q: %w", it.Name(), err)
	}
	child, err := it.resolveTarget(target)
	if err != nil {
		return fmt.Errorf("iterator %q: %w", it.Name(), err)
	}

	values, sequence, err := it.sweepValues()
	if err != nil {
		return fmt.Errorf("iterator %q: %w", it.Name(), err)
	}
	logger.Debug("Sweep value sequence resolved.", "target", target.String(), "points", len(values))

	level := it.Level()
	it.totalPasses = len(values)
	it.ClearData()

	for i, value := range values {
		if it.Aborted() {
			logger.Warn("Abort observed between sweep points.", "completed", i, "of", len(values))
			it.Logf("aborted after %d of %d sweep points", i, len(values))
			break
		}

		if err := child.Settings().Set(target.ParamPath(), cty.NumberFloatVal(value)); err != nil {
			return fmt.Errorf("iterator %q: set %s: %w", it.Name(), target.String(), err)
		}

		it.doneInPass = nil
		suffix := "_" + formatSweepValue(value)
		executed, aborted, err := it.runChildren(ctx, i+1, suffix)
		if err != nil {
			return err
		}

		for _, c := range executed {
			tag := sweepTag(c.Name(), target.ParamName(), value)
			it.SetData(tag, &Point{
				Data:     deepCopyMap(c.Data()),
				Settings: c.Settings().Clone(),
				Provenance: map[int]Provenance{
					level: {Param: target.ParamName(), Value: value, Sequence: sequence},
				},
			})
		}

		it.passesDone = i + 1
		it.doneInPass = nil
		it.currentPct = 0
		it.NotifyProgress(it.estimateProgress())
		if aborted {
			break
		}
	}
	return nil
}

// resolveTarget walks the child hops and verifies the final parameter path
// names a numeric leaf. Validation happens here, before any value is
// written, so a malformed target fails the run up front.
func (it *Iterator) resolveTarget(target *pathspec.Target) (task.Runner, error) {
	var cur task.Runner = it
	for _, hop := range target.Children {
		next, ok := cur.Children()[hop]
		if !ok {
			return nil, fmt.Errorf("sweep target %q: no child named %q under %q", target.String(), hop, cur.Name())
		}
		cur = next
	}

	spec, err := cur.Settings().Leaf(target.ParamPath())
	if err != nil {
		return nil, fmt.Errorf("sweep target %q: %w", target.String(), err)
	}
	if spec.Type != cty.Number {
		return nil, fmt.Errorf("sweep target %q is %s, not a numeric parameter", target.String(), spec.Type.FriendlyName())
	}
	return cur, nil
}

// sweepValues resolves the numeric value sequence from sweep_range settings.
// It returns the visit-order values and the unshuffled sequence retained as
// metadata; the two alias only when randomize is off.
func (it *Iterator) sweepValues() (values, sequence []float64, err error) {
	min, err := it.Settings().GetFloat("sweep_range.min_value")
	if err != nil {
		return nil, nil, err
	}
	max, err := it.Settings().GetFloat("sweep_range.max_value")
	if err != nil {
		return nil, nil, err
	}
	step, err := it.Settings().GetFloat("sweep_range.n_value_step")
	if err != nil {
		return nil, nil, err
	}
	mode, err := it.Settings().GetString("stepping_mode")
	if err != nil {
		return nil, nil, err
	}
	randomize, err := it.Settings().GetBool("sweep_range.randomize")
	if err != nil {
		return nil, nil, err
	}
	if max < min {
		return nil, nil, fmt.Errorf("sweep range is inverted: max_value %v < min_value %v", max, min)
	}

	switch mode {
	case "N":
		n := int(step)
		if n < 1 {
			return nil, nil, fmt.Errorf("stepping_mode \"N\" requires at least 1 point, got %v", step)
		}
		sequence = make([]float64, n)
		if n == 1 {
			sequence[0] = min
		} else {
			width := (max - min) / float64(n-1)
			for i := range sequence {
				sequence[i] = min + float64(i)*width
			}
			sequence[n-1] = max
		}
	case "value_step":
		if step <= 0 {
			return nil, nil, fmt.Errorf("stepping_mode \"value_step\" requires a positive step, got %v", step)
		}
		const eps = 1e-9
		for v := min; v <= max+eps; v += step {
			sequence = append(sequence, v)
		}
		// Both endpoints are included even when the step does not land on
		// max exactly.
		if math.Abs(sequence[len(sequence)-1]-max) > eps {
			sequence = append(sequence, max)
		} else {
			sequence[len(sequence)-1] = max
		}
	default:
		return nil, nil, fmt.Errorf("unknown stepping_mode %q", mode)
	}

	if !randomize {
		return sequence, sequence, nil
	}
	values = make([]float64, len(sequence))
	copy(values, sequence)
	rand.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})
	return values, sequence, nil
}

// sweepTag builds the tag a retained point is stored under, unique per
// (child, parameter, value) within a sweep.
func sweepTag(child, paramName string, value float64) string {
	return child + "_" + paramName + "_" + formatSweepValue(value)
}

// formatSweepValue renders a swept value compactly for tags.
func formatSweepValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
