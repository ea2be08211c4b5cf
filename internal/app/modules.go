package app

import (
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/registry"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/modules/remote"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/modules/simdevice"
)

// Modules lists the built-in device/measurement modules registered into
// every App instance.
func Modules() []registry.Module {
	return []registry.Module{
		&simdevice.Module{},
		&remote.Module{},
	}
}
