package logger

import (
	"fmt"
	"io"
	"sync"

	"ergo.services/dvm/gen"
	"ergo.services/dvm/lib"

	"github.com/mattn/go-colorable"
)

// ConsoleOptions
type ConsoleOptions struct {
	// Disable makes the VM to disable default logger
	Disable bool
	// TimeFormat enables output time in the defined format. See https://pkg.go.dev/time#pkg-constants
	// Not defined format makes output time as a timestamp in nanoseconds.
	TimeFormat string
	// IncludeFields adds the log fields to the message
	IncludeFields bool
	// NoColor disables ANSI colors
	NoColor bool
	// Output defines output for the log messages. By default it uses the
	// colorable stdout
	Output io.Writer
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// CreateConsole creates the default logger of the VM. Colors are written
// through go-colorable so they work on windows consoles too.
func CreateConsole(options ConsoleOptions) gen.LoggerBehavior {
	c := &console{
		format:        options.TimeFormat,
		includeFields: options.IncludeFields,
		color:         options.NoColor == false,
	}

	switch {
	case options.Output == nil && c.color:
		c.out = colorable.NewColorableStdout()
	case options.Output == nil:
		c.out = colorable.NewNonColorable(colorable.NewColorableStdout())
	case c.color:
		c.out = options.Output
	default:
		c.out = colorable.NewNonColorable(options.Output)
	}
	return c
}

type console struct {
	sync.Mutex
	out           io.Writer
	format        string
	includeFields bool
	color         bool
}

func (c *console) Log(m gen.MessageLog) {
	var t string
	if c.format == "" {
		t = fmt.Sprintf("%d", m.Time.UnixNano())
	} else {
		t = m.Time.Format(c.format)
	}

	src, _ := source(m)
	message := fmt.Sprintf(m.Format, m.Args...)

	level := m.Level.String()
	if c.color {
		level = levelColor(m.Level) + level + colorReset
	}

	b := lib.TakeBuffer()
	defer lib.ReleaseBuffer(b)
	fmt.Fprintf(b, "%s [%s] %s: %s", t, level, src, message)
	if c.includeFields {
		for _, f := range m.Fields {
			fmt.Fprintf(b, " %s=%v", f.Name, f.Value)
		}
	}
	b.AppendByte('\n')

	c.Lock()
	defer c.Unlock()
	if _, err := c.out.Write(b.B); err != nil {
		fmt.Printf("(fallback) %s [%s] %s: %s\n", t, m.Level, src, message)
	}
}

func (c *console) Terminate() {}

func levelColor(level gen.LogLevel) string {
	switch level {
	case gen.LogLevelPanic:
		return colorBold + colorRed
	case gen.LogLevelError:
		return colorRed
	case gen.LogLevelWarning:
		return colorYellow
	case gen.LogLevelInfo:
		return colorBlue
	}
	return colorGray
}
