package gen

import (
	"time"
)

// DProcessManifest is the only input a d-process is built from.
type DProcessManifest struct {
	// Builder builds the interpreter. Required.
	Builder InterpreterBuilder
	// EffectHandlers routes effects performed by the interpreter.
	EffectHandlers EffectHandlers
	// Metadata is the initial scheduling metadata. Spawned is set by the VM.
	Metadata DProcessMetadata
	// Flags are initial flags.
	Flags Flags
}

// DProcessMetadata is the scheduling metadata of a d-process.
type DProcessMetadata struct {
	Spawned       time.Time
	Reductions    uint64
	ReductionTime time.Duration
	LastReduction time.Time
	Resets        uint64
	Labels        map[string]string
}

func (m DProcessMetadata) Copy() DProcessMetadata {
	c := m
	if m.Labels != nil {
		c.Labels = make(map[string]string, len(m.Labels))
		for k, v := range m.Labels {
			c.Labels[k] = v
		}
	}
	return c
}

// Flags
type Flags map[FlagName]Value

func (f Flags) Copy() Flags {
	c := make(Flags, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}
