package main

import (
	"fmt"
	"io"

	"ergo.services/dvm/gen"
	"ergo.services/dvm/vm"
)

// host performs the effects nobody handles inside the VM: the input is
// printed and the d-process is resumed with Unit. It also keeps track of the
// deployed processes still alive.
type host struct {
	vm       *vm.VM
	out      io.Writer
	deployed map[gen.DProcessID]string
	running  int
}

func newHost(v *vm.VM, out io.Writer, deployed map[gen.DProcessID]string) *host {
	return &host{
		vm:       v,
		out:      out,
		deployed: deployed,
		running:  len(deployed),
	}
}

// handle returns true once every deployed process has exited.
func (h *host) handle(outputs gen.VMOutputs) bool {
	for _, performed := range outputs.EffectsPerformed() {
		fmt.Fprintf(h.out, "%s: %s\n", h.name(performed.DProcessID), display(performed.Input))
		if err := h.vm.ResumeEffect(performed.DProcessID, gen.Unit); err != nil {
			h.vm.Log().Warning("unable to resume %s: %s", performed.DProcessID, err)
		}
	}

	for _, exited := range outputs.Exited() {
		name, found := h.deployed[exited.DProcessID]
		if found == false {
			continue
		}
		h.vm.Log().Info("process %q exited: %s", name, exited.ExitStatus)
		h.running--
	}
	return h.running <= 0
}

func (h *host) name(id gen.DProcessID) string {
	if name, found := h.deployed[id]; found {
		return name
	}
	return id.String()
}

func display(v gen.Value) string {
	if s, ok := v.(gen.ValueString); ok {
		return string(s)
	}
	return v.String()
}
