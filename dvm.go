package dvm

import (
	"ergo.services/dvm/vm"
)

// StartVM creates a VM with the framework version set.
func StartVM(options vm.Options) *vm.VM {
	options.Version = FrameworkVersion
	return vm.New(options)
}
