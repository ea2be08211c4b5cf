package iterator

import "time"

// estimateProgress produces the iterator's 0-100 completion estimate.
//
// With exactly one active child the estimate is exact arithmetic over pass
// counts. With several children, whose invocation frequencies and costs
// differ, the estimate leans on the execution history rebuilt each run: the
// average durations of children already completed in the current pass, plus
// the in-flight child's elapsed time, over an estimate of one full pass. An
// undetermined iteration kind yields a fixed midpoint rather than failing.
func (it *Iterator) estimateProgress() float64 {
	if it.Kind() == KindUnknown {
		return progressUnknownKind
	}
	if it.totalPasses <= 0 {
		return 0
	}

	active := it.activeChildren()
	var fraction float64
	if len(active) <= 1 {
		fraction = it.currentPct / 100
	} else {
		fraction = it.passFraction(active)
	}

	pct := 100 * (float64(it.passesDone) + fraction) / float64(it.totalPasses)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// activeChildren returns the ordered children with non-zero frequency.
func (it *Iterator) activeChildren() []string {
	var out []string
	for _, name := range it.orderedNames() {
		if it.frequency(name) != 0 {
			out = append(out, name)
		}
	}
	return out
}

// passFraction estimates how far through the current pass execution is,
// from recorded per-child average durations.
func (it *Iterator) passFraction(active []string) float64 {
	elapsed := it.elapsedInPass()
	passDur := it.estimatePassDuration(active)
	if passDur <= 0 {
		return 0
	}
	frac := float64(elapsed) / float64(passDur)
	if frac > 0.999 {
		frac = 0.999
	}
	return frac
}

// elapsedInPass sums the average durations of the children already completed
// this pass, plus the in-flight child's contribution: its elapsed time when
// it has a duration on record, otherwise its own remaining-time estimate
// added to the elapsed time.
func (it *Iterator) elapsedInPass() time.Duration {
	var total time.Duration
	for _, name := range it.doneInPass {
		total += it.avgDur[name]
	}
	if it.current == "" {
		return total
	}

	elapsed := time.Since(it.currentStart)
	if it.execCount[it.current] > 0 {
		return total + elapsed
	}
	if it.currentPct > 0 {
		remaining := time.Duration(float64(elapsed) * (100 - it.currentPct) / it.currentPct)
		return total + elapsed + remaining
	}
	return total + elapsed
}

// estimatePassDuration estimates the cost of one full pass. Children without
// history are assumed to cost as much as the first child with a recorded
// duration; when nothing has completed yet, the in-flight child's elapsed
// time stands in for every child.
func (it *Iterator) estimatePassDuration(active []string) time.Duration {
	var firstKnown time.Duration
	for _, name := range active {
		if it.execCount[name] > 0 {
			firstKnown = it.avgDur[name]
			break
		}
	}

	if firstKnown == 0 {
		if it.current == "" {
			return 0
		}
		return time.Since(it.currentStart) * time.Duration(len(active))
	}

	var total time.Duration
	for _, name := range active {
		if it.execCount[name] > 0 {
			total += it.avgDur[name]
		} else {
			total += firstKnown
		}
	}
	return total
}
