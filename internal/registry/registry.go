// Package registry holds the named building blocks experiments are composed
// from: measurement bodies for leaf tasks and instrument constructors for
// device bindings. Device packages under modules/ register themselves here
// through the Module interface.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zclconf/go-cty/cty"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/device"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/param"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/task"
)

// Module is the interface all device/measurement packages implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Measurement is a registered leaf-task type: its settings schema beyond the
// base leaves, the device bindings it cannot run without, and its body.
type Measurement struct {
	Description    string
	RequireDevices []string

	// NewSettings returns a fresh settings tree for an instance. May be nil
	// for measurements with no extra settings.
	NewSettings func() *param.Tree

	// Body performs the measurement and writes results into the task data.
	Body task.Body
}

// InstrumentFactory constructs an instrument from its configuration object.
type InstrumentFactory func(ctx context.Context, cfg cty.Value) (device.Instrument, error)

// Registry holds all registered measurements and instrument factories for a
// single application instance.
type Registry struct {
	Measurements map[string]*Measurement
	Instruments  map[string]InstrumentFactory
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		Measurements: make(map[string]*Measurement),
		Instruments:  make(map[string]InstrumentFactory),
	}
}

// RegisterMeasurement registers a leaf measurement type under a name.
func (r *Registry) RegisterMeasurement(name string, m *Measurement) {
	if _, exists := r.Measurements[name]; exists {
		panic(fmt.Sprintf("measurement with name '%s' already registered", name))
	}
	slog.Debug("Registering measurement.", "name", name)
	r.Measurements[name] = m
}

// RegisterInstrument registers an instrument constructor under a driver name.
func (r *Registry) RegisterInstrument(name string, factory InstrumentFactory) {
	if _, exists := r.Instruments[name]; exists {
		panic(fmt.Sprintf("instrument driver with name '%s' already registered", name))
	}
	slog.Debug("Registering instrument driver.", "name", name)
	r.Instruments[name] = factory
}

// NewTask instantiates a leaf task of a registered measurement type.
func (r *Registry) NewTask(name, measurementType string, devices device.Bindings) (*task.Task, error) {
	m, ok := r.Measurements[measurementType]
	if !ok {
		return nil, fmt.Errorf("unknown measurement type %q", measurementType)
	}
	var settings *param.Tree
	if m.NewSettings != nil {
		settings = m.NewSettings()
	}
	return task.NewLeaf(name, task.Options{
		Settings:       settings,
		Devices:        devices,
		RequireDevices: m.RequireDevices,
	}, m.Body)
}

// NewInstrument constructs an instrument from a registered driver.
func (r *Registry) NewInstrument(ctx context.Context, driver string, cfg cty.Value) (device.Instrument, error) {
	factory, ok := r.Instruments[driver]
	if !ok {
		return nil, fmt.Errorf("unknown instrument driver %q", driver)
	}
	return factory(ctx, cfg)
}
