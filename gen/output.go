package gen

import "fmt"

// VMOutput is an event the VM reports to its host.
type VMOutput interface {
	isVMOutput()
	String() string
}

// VMOutputEffectPerformed is reported when a d-process performed an effect no
// handler is registered for. The host resumes it with VM.ResumeEffect.
type VMOutputEffectPerformed struct {
	DProcessID DProcessID
	Effect     Effect
	Input      Value
}

// VMOutputProcessExited is reported once per d-process when it reaches a
// terminal status.
type VMOutputProcessExited struct {
	DProcessID DProcessID
	ExitStatus ExitStatus
}

// VMOutputStatusChanged is reported for every committed status change.
type VMOutputStatusChanged struct {
	DProcessID DProcessID
	Status     DProcessStatus
}

func (VMOutputEffectPerformed) isVMOutput() {}
func (VMOutputProcessExited) isVMOutput()   {}
func (VMOutputStatusChanged) isVMOutput()   {}

func (o VMOutputEffectPerformed) String() string {
	return fmt.Sprintf("%s performed %s", o.DProcessID, o.Effect)
}

func (o VMOutputProcessExited) String() string {
	return fmt.Sprintf("%s exited: %s", o.DProcessID, o.ExitStatus)
}

func (o VMOutputStatusChanged) String() string {
	return fmt.Sprintf("%s status: %s", o.DProcessID, o.Status)
}

// VMOutputs is an append-only log of VM events.
type VMOutputs []VMOutput

// Merge appends other to the log.
func (o VMOutputs) Merge(other VMOutputs) VMOutputs {
	return append(o, other...)
}

// Exited returns the exit events only.
func (o VMOutputs) Exited() []VMOutputProcessExited {
	var exited []VMOutputProcessExited
	for _, out := range o {
		if e, ok := out.(VMOutputProcessExited); ok {
			exited = append(exited, e)
		}
	}
	return exited
}

// EffectsPerformed returns the effect events only.
func (o VMOutputs) EffectsPerformed() []VMOutputEffectPerformed {
	var performed []VMOutputEffectPerformed
	for _, out := range o {
		if e, ok := out.(VMOutputEffectPerformed); ok {
			performed = append(performed, e)
		}
	}
	return performed
}
