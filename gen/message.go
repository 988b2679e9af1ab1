package gen

import (
	"fmt"
	"time"
)

// TypeDown is the message type DownMessage is delivered with.
var TypeDown = LabelType("dprocess.down", TraitType("down"))

// TypeHaltDeleted is the halt type of a d-process deleted from the VM before
// it reached a terminal status.
var TypeHaltDeleted = LabelType("dprocess.deleted", TypeUnit)

// DownMessage is delivered exactly once to every monitor of a d-process when it
// reaches a terminal status, or right away if it was terminated already when
// the monitor was requested.
type DownMessage struct {
	From DProcessID
	Exit ExitStatus
}

func (d DownMessage) String() string {
	return fmt.Sprintf("DOWN %s: %s", d.From, d.Exit)
}

// Value returns the message payload delivered under TypeDown.
func (d DownMessage) Value() Value {
	return ValueProduct{
		fieldFrom: ValueString(d.From.String()),
		fieldExit: ExitValue(d.Exit),
	}
}

// ParseDownMessage
func ParseDownMessage(v Value) (DownMessage, error) {
	var d DownMessage
	fields, ok := v.(ValueProduct)
	if ok == false {
		return d, fmt.Errorf("%w: down message %s", ErrMalformed, valueString(v))
	}
	from, _ := fields[fieldFrom].(ValueString)
	id, err := ParseDProcessID(string(from))
	if err != nil {
		return d, err
	}
	exit, err := ParseExitValue(fields[fieldExit])
	if err != nil {
		return d, err
	}
	d.From = id
	d.Exit = exit
	return d, nil
}

// MessageLog
type MessageLog struct {
	Time   time.Time
	Level  LogLevel
	Source any // MessageLogVM, MessageLogDProcess, MessageLogProcessor
	Format string
	Args   []any
	Fields []LogField
}

// MessageLogVM
type MessageLogVM struct {
	Name string
}

// MessageLogDProcess
type MessageLogDProcess struct {
	VM         string
	DProcessID DProcessID
	Name       string
}

// MessageLogProcessor
type MessageLogProcessor struct {
	VM        string
	Processor ProcessorName
}
