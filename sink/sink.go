// Package sink consumes the outputs a VM accumulates between flushes.
package sink

import (
	"ergo.services/dvm/gen"
)

// Sink receives the result of every VM.FlushOutputs.
type Sink interface {
	Write(outputs gen.VMOutputs) error
	Close() error
}

// Kind returns the short name of the output kind as it is stored.
func Kind(o gen.VMOutput) string {
	switch o.(type) {
	case gen.VMOutputEffectPerformed:
		return "effect"
	case gen.VMOutputProcessExited:
		return "exit"
	case gen.VMOutputStatusChanged:
		return "status"
	}
	return "unknown"
}

func outputID(o gen.VMOutput) gen.DProcessID {
	switch o := o.(type) {
	case gen.VMOutputEffectPerformed:
		return o.DProcessID
	case gen.VMOutputProcessExited:
		return o.DProcessID
	case gen.VMOutputStatusChanged:
		return o.DProcessID
	}
	return gen.DProcessID{}
}

// CreateLog makes a sink writing every output to the given log. Exits are
// logged with Info level, everything else with Debug.
func CreateLog(log gen.Log) Sink {
	return &logSink{log: log}
}

type logSink struct {
	log gen.Log
}

func (s *logSink) Write(outputs gen.VMOutputs) error {
	for _, o := range outputs {
		if _, exit := o.(gen.VMOutputProcessExited); exit {
			s.log.Info("%s", o)
			continue
		}
		s.log.Debug("%s", o)
	}
	return nil
}

func (s *logSink) Close() error {
	return nil
}
