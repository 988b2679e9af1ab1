package gen

import (
	"errors"
)

var (
	ErrDProcessUnknown    = errors.New("unknown d-process")
	ErrDProcessTerminated = errors.New("d-process terminated")

	ErrProcessorUnknown = errors.New("unknown processor")
	ErrProcessorExist   = errors.New("processor is already exist")

	ErrNameUnknown = errors.New("unknown name")
	ErrTaken       = errors.New("resource is taken")

	ErrTargetUnknown = errors.New("unknown target")
	ErrTargetExist   = errors.New("target is already exist")

	ErrTimerUnknown = errors.New("unknown timer")

	ErrNoEffect     = errors.New("d-process is not suspended with an effect")
	ErrBudgetExceed = errors.New("reduce budget exceeded")
	ErrPanic        = errors.New("panic")

	ErrUnsupported = errors.New("not supported")
	ErrNotAllowed  = errors.New("not allowed")
	ErrIncorrect   = errors.New("incorrect value or argument")
	ErrMalformed   = errors.New("malformed value")

	ErrUnknown = errors.New("unknown")
)
