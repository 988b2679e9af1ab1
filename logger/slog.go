package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"ergo.services/dvm/gen"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// SlogOptions
type SlogOptions struct {
	// Output for the text or JSON handler. Default os.Stderr.
	Output io.Writer
	// JSON makes the handler write JSON instead of text
	JSON bool
	// Journal adds the systemd journal handler. If the journal is not
	// available CreateSlog fails.
	Journal bool
	// Handlers are appended to the fan-out as they are
	Handlers []slog.Handler
}

const (
	slogLevelTrace = slog.LevelDebug - 4
	slogLevelPanic = slog.LevelError + 4
)

// CreateSlog creates a logger writing into a log/slog fan-out of handlers.
func CreateSlog(options SlogOptions) (gen.LoggerBehavior, error) {
	var handlers []slog.Handler

	out := options.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{
		Level:       slogLevelTrace,
		ReplaceAttr: replaceLevel,
	}
	if options.JSON {
		handlers = append(handlers, slog.NewJSONHandler(out, hopts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(out, hopts))
	}

	if options.Journal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			Level:        slogLevelTrace,
			ReplaceGroup: toJournalKey,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			return nil, fmt.Errorf("systemd journal: %w", err)
		}
		handlers = append(handlers, journal)
	}

	handlers = append(handlers, options.Handlers...)
	return &slogLogger{handler: slogmulti.Fanout(handlers...)}, nil
}

type slogLogger struct {
	handler slog.Handler
}

func (l *slogLogger) Log(m gen.MessageLog) {
	ctx := context.Background()
	level := slogLevel(m.Level)
	if l.handler.Enabled(ctx, level) == false {
		return
	}

	src, kind := source(m)
	record := slog.NewRecord(m.Time, level, fmt.Sprintf(m.Format, m.Args...), 0)
	record.AddAttrs(
		slog.String("source", src),
		slog.String("kind", kind),
	)
	for _, f := range m.Fields {
		record.AddAttrs(slog.Any(f.Name, f.Value))
	}
	l.handler.Handle(ctx, record)
}

func (l *slogLogger) Terminate() {}

func slogLevel(level gen.LogLevel) slog.Level {
	switch level {
	case gen.LogLevelTrace:
		return slogLevelTrace
	case gen.LogLevelDebug:
		return slog.LevelDebug
	case gen.LogLevelWarning:
		return slog.LevelWarn
	case gen.LogLevelError:
		return slog.LevelError
	case gen.LogLevelPanic:
		return slogLevelPanic
	}
	return slog.LevelInfo
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	switch a.Value.Any() {
	case slogLevelTrace:
		a.Value = slog.StringValue("TRACE")
	case slogLevelPanic:
		a.Value = slog.StringValue("PANIC")
	}
	return a
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
}
