// Package task implements the base executable unit of an experiment: a named
// piece of work with a settings tree, borrowed device bindings, optional
// child tasks, mutable output data, and a cooperative run/stop lifecycle.
//
// Leaf tasks are built factory-style from a registered measurement body
// function; composite behavior lives in the iterator package.
package task

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/device"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
)

// ProgressFunc observes progress notifications (0-100). Delivery is
// synchronous and in-line with execution; a parent iterator intercepts its
// children's notifications and re-raises its own estimate upward.
type ProgressFunc func(name string, pct float64)

// Body is the measurement body of a leaf task. It performs the work and
// writes results into the task's data map. It must poll Aborted at safe
// points and return cleanly when set.
type Body func(ctx context.Context, t *Task) error

// Runner is the executable contract shared by leaf tasks and iterators.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
	Stop()
	Settings() *param.Tree
	Children() map[string]Runner
	Data() map[string]any
	Progress() float64
	SetObserver(fn ProgressFunc)
	Aborted() bool
	Span() (start, end time.Time)
}

// Options configures a new Task.
type Options struct {
	// Settings is merged after the base settings (path, tag, save,
	// inherit_data), so measurement-specific leaves live alongside them.
	Settings *param.Tree

	// Devices are the bindings available to the task.
	Devices device.Bindings

	// RequireDevices names the bindings the task cannot run without.
	// A missing name fails construction.
	RequireDevices []string

	// Children are attached as-is; ordering among them is a concern of the
	// iterator layer.
	Children map[string]Runner

	// Body is the leaf measurement function. Nil for composite tasks.
	Body Body
}

// Task is the base executable unit.
type Task struct {
	name     string
	settings *param.Tree
	devices  device.Bindings
	children map[string]Runner

	data     map[string]any
	progress float64

	startedAt time.Time
	endedAt   time.Time
	running   bool

	abort    atomic.Bool
	observer ProgressFunc
	body     Body
	logbuf   []string

	// PlotFunc is a display hook consumed only by external GUI tooling;
	// nothing in this module calls it.
	PlotFunc func(data map[string]any)
}

// BaseSettings returns the settings leaves every task carries.
func BaseSettings(name string) *param.Tree {
	t := param.NewTree()
	t.MustAddLeaf(param.String("path", "", "storage path for this task's output"))
	t.MustAddLeaf(param.String("tag", name, "traceability tag attached to output"))
	t.MustAddLeaf(param.Bool("save", true, "whether downstream writers persist the output"))
	t.MustAddLeaf(param.Bool("inherit_data", false, "seed this task's output with the previous sibling's matching keys"))
	return t
}

// New constructs a Task. Construction asserts every required device binding
// is present; a missing binding is a configuration error, not a soft failure.
func New(name string, opts Options) (*Task, error) {
	if name == "" {
		return nil, fmt.Errorf("task name cannot be empty")
	}

	devices := opts.Devices
	if devices == nil {
		devices = device.Bindings{}
	}
	if err := devices.Require(opts.RequireDevices...); err != nil {
		return nil, fmt.Errorf("task %q: %w", name, err)
	}

	settings := BaseSettings(name)
	if err := settings.Merge(opts.Settings); err != nil {
		return nil, fmt.Errorf("task %q: settings: %w", name, err)
	}

	children := opts.Children
	if children == nil {
		children = map[string]Runner{}
	}

	return &Task{
		name:     name,
		settings: settings,
		devices:  devices,
		children: children,
		data:     map[string]any{},
		progress: -1,
	}, nil
}

// NewLeaf constructs a leaf measurement task with the given body.
func NewLeaf(name string, opts Options, body Body) (*Task, error) {
	t, err := New(name, opts)
	if err != nil {
		return nil, err
	}
	t.body = body
	return t, nil
}

// Name returns the task's name. Names need not be unique across a tree.
func (t *Task) Name() string { return t.name }

// Settings returns the live settings tree.
func (t *Task) Settings() *param.Tree { return t.settings }

// Devices returns the task's device bindings.
func (t *Task) Devices() device.Bindings { return t.devices }

// Device returns a named binding.
func (t *Task) Device(name string) (*device.Binding, bool) {
	b, ok := t.devices[name]
	return b, ok
}

// Children returns the task's child map.
func (t *Task) Children() map[string]Runner { return t.children }

// Child returns a named child.
func (t *Task) Child(name string) (Runner, bool) {
	c, ok := t.children[name]
	return c, ok
}

// Data returns the live output data map. Mutable by design; each Run
// overwrites it (base behavior) or aggregates into it (iterators).
func (t *Task) Data() map[string]any { return t.data }

// ClearData resets the output map at the start of a run.
func (t *Task) ClearData() { t.data = map[string]any{} }

// SetData writes one output key.
func (t *Task) SetData(key string, v any) { t.data[key] = v }

// Progress returns the last notified progress, or -1 if unset.
func (t *Task) Progress() float64 { return t.progress }

// SetObserver registers the progress observer. Only one observer exists at a
// time; a parent iterator claims its children's observers for the duration
// of its own run.
func (t *Task) SetObserver(fn ProgressFunc) { t.observer = fn }

// NotifyProgress records pct and delivers it synchronously to the observer.
func (t *Task) NotifyProgress(pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	t.progress = pct
	if t.observer != nil {
		t.observer(t.name, pct)
	}
}

// Aborted reports whether Stop has been called since the run began.
func (t *Task) Aborted() bool { return t.abort.Load() }

// Stop sets the abort flag and fans out to every child. Cooperative only:
// bodies observe the flag at their next poll point, and work already
// dispatched to a device runs to completion.
func (t *Task) Stop() {
	t.abort.Store(true)
	for _, child := range t.children {
		child.Stop()
	}
}

// Span returns the last run's start and end timestamps. An end before the
// start means the task never completed a run.
func (t *Task) Span() (start, end time.Time) { return t.startedAt, t.endedAt }

// Running reports whether a run is in flight.
func (t *Task) Running() bool { return t.running }

// Logf appends a line to the per-run log. The log is reset on each Run and
// propagates upward: a parent iterator folds its children's lines into its
// own log after each child run.
func (t *Task) Logf(format string, args ...any) {
	t.logbuf = append(t.logbuf, fmt.Sprintf(format, args...))
}

// Log returns the lines recorded since the run began.
func (t *Task) Log() []string {
	out := make([]string, len(t.logbuf))
	copy(out, t.logbuf)
	return out
}

// AppendLog folds pre-formatted lines (typically a child's log) into this
// task's log.
func (t *Task) AppendLog(lines ...string) {
	t.logbuf = append(t.logbuf, lines...)
}

// BeginRun resets per-run state: log, progress, abort flag, start timestamp.
func (t *Task) BeginRun() {
	t.logbuf = nil
	t.abort.Store(false)
	t.progress = 0
	t.startedAt = time.Now()
	t.running = true
}

// EndRun closes the run. On success progress reaches 100 and is notified.
func (t *Task) EndRun(err error) {
	t.endedAt = time.Now()
	t.running = false
	if err == nil {
		t.NotifyProgress(100)
	}
}

// Run executes the leaf body. Each invocation resets the log and timestamps
// and overwrites data. An error from the body propagates unmodified;
// partially written data is left as-is.
func (t *Task) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("task", t.name)
	t.BeginRun()
	logger.Debug("Task run started.")

	// The body overwrites the keys it produces; values seeded by a parent
	// iterator's data inheritance stay visible to it.
	var err error
	if t.body != nil {
		err = t.body(ctx, t)
	}

	t.EndRun(err)
	if err != nil {
		logger.Error("Task run failed.", "error", err)
		return err
	}
	logger.Debug("Task run finished.")
	return nil
}
