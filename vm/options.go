package vm

import (
	"time"

	"ergo.services/dvm/gen"
	"ergo.services/dvm/logger"
)

// Options
type Options struct {
	// Name of the VM, used as the log source. Default "dvm".
	Name string
	// Log
	Log LogOptions
	// MigrationLogic attaches d-processes to processors. Without it d-processes
	// stay detached unless attached by the host.
	MigrationLogic MigrationLogic
	// LockOrder enables lock order violation detection.
	LockOrder LockOrderOptions
	// OnOutputs is called by Run with the outputs flushed after every tick.
	OnOutputs func(gen.VMOutputs)
	// Version of the host, reported in the log and Info
	Version gen.Version
}

// LogOptions
type LogOptions struct {
	// Level default logging level for the VM and its d-processes
	Level gen.LogLevel
	// DefaultLogger options
	DefaultLogger logger.ConsoleOptions
	// Loggers add extra loggers on start
	Loggers []Logger
}

// Logger
type Logger struct {
	Name   string
	Logger gen.LoggerBehavior
	// Filter limits the levels delivered to this logger. Empty means all.
	Filter []gen.LogLevel
}

// LockOrderOptions
type LockOrderOptions struct {
	// Enable turns on go-deadlock detection for the locks of every d-process.
	// It slows down locking considerably and is meant for tests and debugging.
	Enable bool
	// Timeout for a lock to be considered a deadlock. Zero disables it.
	Timeout time.Duration
	// OnViolation is called after the violation was logged.
	OnViolation func()
}

const (
	defaultVMName = "dvm"
)
