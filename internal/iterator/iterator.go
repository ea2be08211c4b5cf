// Package iterator implements the composite task type at the heart of the
// engine: a Task that executes its children in a fixed loop with numeric
// result averaging, or under a parameter sweep with per-value result
// retention and provenance tagging. Execution is single-threaded and
// cooperative throughout; children run synchronously, in ascending
// execution-order, gated by per-child execution frequency.
package iterator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/task"
)

// Kind is the iteration kind, derived from the settings surface.
type Kind int

const (
	KindUnknown Kind = iota
	KindLoop
	KindSweep
)

// String returns the kind's settings-surface name.
func (k Kind) String() string {
	switch k {
	case KindLoop:
		return "loop"
	case KindSweep:
		return "sweep"
	default:
		return "unknown"
	}
}

// progressUnknownKind is the fixed midpoint reported when the iteration kind
// cannot be determined; progress estimation never fails the run.
const progressUnknownKind = 50.0

// Iterator is a composite Task that repeats or sweeps its children.
type Iterator struct {
	*task.Task

	// Telemetry, rebuilt at the start of every Run.
	execCount    map[string]int
	avgDur       map[string]time.Duration
	current      string
	currentStart time.Time
	currentPct   float64
	doneInPass   []string
	passesDone   int
	totalPasses  int
}

// New constructs an Iterator. The iteration kind and per-child scheduling
// come entirely from opts.Settings; children may be leaf tasks or nested
// Iterators.
func New(name string, opts task.Options) (*Iterator, error) {
	opts.Body = nil
	base, err := task.New(name, opts)
	if err != nil {
		return nil, err
	}
	it := &Iterator{Task: base}
	it.resetTelemetry()
	return it, nil
}

// Kind derives the iteration kind from the settings surface.
func (it *Iterator) Kind() Kind {
	switch {
	case it.Settings().Has("num_loops"):
		return KindLoop
	case it.Settings().Has("sweep_param"):
		return KindSweep
	default:
		return KindUnknown
	}
}

// Level is the iterator nesting depth: one more than the deepest descendant
// Iterator, or 1 when all children are leaves.
func (it *Iterator) Level() int {
	deepest := 0
	for _, child := range it.Children() {
		if lv, ok := child.(interface{ Level() int }); ok {
			if l := lv.Level(); l > deepest {
				deepest = l
			}
		}
	}
	return deepest + 1
}

// Run dispatches to the loop or sweep algorithm. An unknown kind is a
// configuration error.
func (it *Iterator) Run(ctx context.Context) error {
	ctx = ctxlog.With(ctx, "iterator", it.Name(), "kind", it.Kind().String())
	logger := ctxlog.FromContext(ctx)

	it.BeginRun()
	it.resetTelemetry()
	it.claimObservers()
	logger.Debug("Iterator run started.")

	var err error
	switch it.Kind() {
	case KindLoop:
		err = it.runLoop(ctx)
	case KindSweep:
		err = it.runSweep(ctx)
	default:
		err = fmt.Errorf("iterator %q: cannot determine iteration kind from settings", it.Name())
	}

	it.EndRun(err)
	if err != nil {
		logger.Error("Iterator run failed.", "error", err)
		return err
	}
	logger.Debug("Iterator run finished.")
	return nil
}

// resetTelemetry rebuilds the per-child execution history at the start of a
// run.
func (it *Iterator) resetTelemetry() {
	it.execCount = make(map[string]int)
	it.avgDur = make(map[string]time.Duration)
	it.current = ""
	it.currentPct = 0
	it.doneInPass = nil
	it.passesDone = 0
	it.totalPasses = 0
}

// claimObservers subscribes to every child's progress notifications for the
// duration of this run.
func (it *Iterator) claimObservers() {
	for _, child := range it.Children() {
		child.SetObserver(it.onChildProgress)
	}
}

// orderedNames returns the child names in ascending execution-order value,
// ties broken by name for determinism.
func (it *Iterator) orderedNames() []string {
	names := make([]string, 0, len(it.Children()))
	for name := range it.Children() {
		names = append(names, name)
	}
	order := func(name string) int {
		if v, err := it.Settings().GetInt("experiment_order." + name); err == nil {
			return v
		}
		return 0
	}
	sort.Slice(names, func(i, j int) bool {
		oi, oj := order(names[i]), order(names[j])
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	return names
}

// frequency returns the per-child execution frequency; children without an
// entry run every pass.
func (it *Iterator) frequency(name string) int {
	if v, err := it.Settings().GetInt("experiment_execution_freq." + name); err == nil {
		return v
	}
	return 1
}

// gated reports whether a child with frequency f runs on the given 1-indexed
// pass. run_all_first shifts the gate to 0-indexed passes, so every gated
// child runs on the first pass.
func gated(f, pass int, runAllFirst bool) bool {
	if f == 0 {
		return false
	}
	if runAllFirst {
		pass--
	}
	return pass%f == 0
}

// runAllFirst reads the loop-kind gate mode; sweep kind has no such leaf and
// defaults to false.
func (it *Iterator) runAllFirst() bool {
	v, err := it.Settings().GetBool("run_all_first")
	return err == nil && v
}

// runChildren executes one pass: the gated children in execution order, with
// per-pass tag suffixing, data inheritance, telemetry, and log folding. It
// returns the children that executed and whether the pass observed an abort.
// A child error propagates unmodified.
func (it *Iterator) runChildren(ctx context.Context, pass int, tagSuffix string) (executed []task.Runner, aborted bool, err error) {
	logger := ctxlog.FromContext(ctx)
	runAllFirst := it.runAllFirst()

	var prev task.Runner
	for _, name := range it.orderedNames() {
		if it.Aborted() {
			logger.Warn("Abort observed between children; pass stopped.", "pass", pass)
			return executed, true, nil
		}
		if !gated(it.frequency(name), pass, runAllFirst) {
			continue
		}
		child := it.Children()[name]

		inheritData(prev, child)

		origTag, tagErr := child.Settings().GetString("tag")
		if tagErr == nil {
			// Suffix the child's tag for this pass so retained output
			// stays traceable to the pass that produced it.
			_ = child.Settings().SetAny("tag", origTag+tagSuffix)
		}

		it.current = name
		it.currentPct = 0
		it.currentStart = time.Now()
		runErr := child.Run(ctx)
		dur := time.Since(it.currentStart)
		it.current = ""
		// A completed child counts as a finished slice of the pass; the
		// per-pass reset happens when the pass itself is recorded.
		it.currentPct = 100

		it.recordDuration(name, dur)
		it.foldChildLog(name, child)
		if tagErr == nil {
			_ = child.Settings().SetAny("tag", origTag)
		}
		if runErr != nil {
			return executed, false, runErr
		}

		executed = append(executed, child)
		it.doneInPass = append(it.doneInPass, name)
		prev = child
		it.NotifyProgress(it.estimateProgress())
	}
	return executed, it.Aborted(), nil
}

// recordDuration updates the running-average execution duration for a child.
func (it *Iterator) recordDuration(name string, dur time.Duration) {
	it.execCount[name]++
	n := it.execCount[name]
	avg := it.avgDur[name]
	it.avgDur[name] = avg + (dur-avg)/time.Duration(n)
}

// foldChildLog appends a child's per-run log into this iterator's log.
func (it *Iterator) foldChildLog(name string, child task.Runner) {
	logSource, ok := child.(interface{ Log() []string })
	if !ok {
		return
	}
	for _, line := range logSource.Log() {
		it.AppendLog(name + ": " + line)
	}
}

// inheritData seeds a data-inheriting child with the previous child's values
// for keys the two outputs have in common.
func inheritData(prev, child task.Runner) {
	if prev == nil {
		return
	}
	if inherit, err := child.Settings().GetBool("inherit_data"); err != nil || !inherit {
		return
	}
	prevData := prev.Data()
	childData := child.Data()
	for key := range childData {
		if v, ok := prevData[key]; ok {
			childData[key] = deepCopyValue(v)
		}
	}
}

// onChildProgress intercepts a child's progress notification, recomputes the
// iterator's own estimate, and re-raises it to this iterator's observer.
func (it *Iterator) onChildProgress(_ string, pct float64) {
	it.currentPct = pct
	it.NotifyProgress(it.estimateProgress())
}
