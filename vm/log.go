package vm

import (
	"sync"
	"time"

	"ergo.services/dvm/gen"
)

// gen.Log interface implementation

func createLog(level gen.LogLevel, dolog func(gen.MessageLog, string)) *log {
	return &log{
		level: level,
		dolog: dolog,
	}
}

type log struct {
	sync.RWMutex
	level  gen.LogLevel
	logger string
	source any
	fields []gen.LogField
	dolog  func(gen.MessageLog, string)
}

func (l *log) Level() gen.LogLevel {
	l.RLock()
	defer l.RUnlock()
	return l.level
}

func (l *log) SetLevel(level gen.LogLevel) error {
	if level < gen.LogLevelTrace {
		return gen.ErrIncorrect
	}
	if level > gen.LogLevelDisabled {
		return gen.ErrIncorrect
	}
	l.Lock()
	l.level = level
	l.Unlock()
	return nil
}

func (l *log) Logger() string {
	l.RLock()
	defer l.RUnlock()
	return l.logger
}

func (l *log) SetLogger(name string) {
	l.Lock()
	l.logger = name
	l.Unlock()
}

func (l *log) Fields() []gen.LogField {
	l.RLock()
	defer l.RUnlock()
	f := make([]gen.LogField, len(l.fields))
	copy(f, l.fields)
	return f
}

func (l *log) AddFields(fields ...gen.LogField) {
	l.Lock()
	l.fields = append(l.fields, fields...)
	l.Unlock()
}

func (l *log) Trace(format string, args ...any) {
	l.write(gen.LogLevelTrace, format, args)
}

func (l *log) Debug(format string, args ...any) {
	l.write(gen.LogLevelDebug, format, args)
}

func (l *log) Info(format string, args ...any) {
	l.write(gen.LogLevelInfo, format, args)
}

func (l *log) Warning(format string, args ...any) {
	l.write(gen.LogLevelWarning, format, args)
}

func (l *log) Error(format string, args ...any) {
	l.write(gen.LogLevelError, format, args)
}

func (l *log) Panic(format string, args ...any) {
	l.write(gen.LogLevelPanic, format, args)
}

func (l *log) setSource(source any) {
	switch source.(type) {
	case gen.MessageLogVM, gen.MessageLogDProcess, gen.MessageLogProcessor:
	default:
		panic("unknown source type for log interface")
	}
	l.Lock()
	l.source = source
	l.Unlock()
}

func (l *log) write(level gen.LogLevel, format string, args []any) {
	l.RLock()
	if l.level > level {
		l.RUnlock()
		return
	}
	m := gen.MessageLog{
		Time:   time.Now(),
		Level:  level,
		Source: l.source,
		Format: format,
		Args:   args,
		Fields: l.fields,
	}
	logger := l.logger
	l.RUnlock()

	l.dolog(m, logger)
}
