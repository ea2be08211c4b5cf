package iterator

import (
	"context"
	"fmt"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
)

// runLoop executes the children num_loops times and averages the
// last-executed child's data elementwise into the iterator's own data.
func (it *Iterator) runLoop(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	numLoops, err := it.Settings().GetInt("num_loops")
	if err != nil {
		return err
	}
	if numLoops < 0 {
		return fmt.Errorf("iterator %q: num_loops cannot be negative, got %d", it.Name(), numLoops)
	}
	if numLoops == 0 {
		logger.Info("num_loops is 0; nothing to execute.")
		it.Logf("num_loops is 0; nothing to execute")
		return nil
	}

	it.totalPasses = numLoops
	it.ClearData()
	acc := map[string]any{}
	accumulated := 0
	interrupted := false

	for pass := 1; pass <= numLoops; pass++ {
		if it.Aborted() {
			logger.Warn("Abort observed between loop iterations.", "completed", pass-1, "of", numLoops)
			it.Logf("aborted after %d of %d loops", pass-1, numLoops)
			interrupted = true
			break
		}

		it.doneInPass = nil
		executed, aborted, err := it.runChildren(ctx, pass, fmt.Sprintf("_%d", pass-1))
		if err != nil {
			return err
		}
		if n := len(executed); n > 0 {
			it.accumulate(ctx, acc, executed[n-1].Data())
			accumulated++
		}

		it.passesDone = pass
		it.doneInPass = nil
		it.currentPct = 0
		it.NotifyProgress(it.estimateProgress())
		if aborted {
			interrupted = true
			break
		}
	}

	// A completed run divides by num_loops, so passes whose children were
	// all gated out still dilute the mean. An aborted run divides by the
	// passes actually accumulated so the retained values stay means rather
	// than partial sums.
	if accumulated > 0 {
		divisor := float64(numLoops)
		if interrupted {
			divisor = float64(accumulated)
		}
		divideInPlace(acc, divisor)
		for key, val := range acc {
			it.SetData(key, val)
		}
	}
	return nil
}
