package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"ergo.services/dvm/gen"
)

func testMessage() gen.MessageLog {
	id, _ := gen.ParseDProcessID("6f1d7a52-4a3b-4f0e-9d55-9a1c0e4b2a11")
	return gen.MessageLog{
		Time:   time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
		Level:  gen.LogLevelWarning,
		Format: "Test message with %s",
		Args:   []any{"arguments"},
		Source: gen.MessageLogDProcess{
			VM:         "dvm",
			DProcessID: id,
			Name:       "worker",
		},
		Fields: []gen.LogField{
			{Name: "key1", Value: "value1"},
			{Name: "key2", Value: 42},
		},
	}
}

func TestConsolePlainText(t *testing.T) {
	var buf bytes.Buffer

	l := CreateConsole(ConsoleOptions{
		TimeFormat:    time.DateTime,
		IncludeFields: true,
		NoColor:       true,
		Output:        &buf,
	})
	l.Log(testMessage())

	output := buf.String()
	expected := "2023-01-01 12:00:00 [warning] 6f1d7a52-4a3b-4f0e-9d55-9a1c0e4b2a11 'worker': Test message with arguments key1=value1 key2=42\n"
	if output != expected {
		t.Fatalf("expected %q, got %q", expected, output)
	}
}

func TestConsoleColor(t *testing.T) {
	var buf bytes.Buffer

	l := CreateConsole(ConsoleOptions{Output: &buf})
	m := testMessage()
	m.Source = gen.MessageLogProcessor{VM: "dvm", Processor: "p1"}
	l.Log(m)

	output := buf.String()
	if strings.Contains(output, colorYellow+"warning"+colorReset) == false {
		t.Fatalf("expected colored level, got %q", output)
	}
	if strings.Contains(output, "dvm/p1: ") == false {
		t.Fatalf("expected processor source, got %q", output)
	}
	if strings.HasPrefix(output, "1672574400000000000 ") == false {
		t.Fatalf("expected nanosecond timestamp, got %q", output)
	}
}

func TestSlogJSON(t *testing.T) {
	var buf bytes.Buffer

	l, err := CreateSlog(SlogOptions{Output: &buf, JSON: true})
	if err != nil {
		t.Fatal(err)
	}
	m := testMessage()
	m.Level = gen.LogLevelTrace
	l.Log(m)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("malformed json %q: %s", buf.String(), err)
	}
	if record["level"] != "TRACE" {
		t.Fatalf("expected TRACE level, got %v", record["level"])
	}
	if record["msg"] != "Test message with arguments" {
		t.Fatalf("unexpected message %v", record["msg"])
	}
	if record["kind"] != "dprocess" {
		t.Fatalf("unexpected kind %v", record["kind"])
	}
	if record["key2"] != float64(42) {
		t.Fatalf("unexpected field %v", record["key2"])
	}
}

func TestSlogFanout(t *testing.T) {
	var text, extra bytes.Buffer

	l, err := CreateSlog(SlogOptions{
		Output: &text,
		Handlers: []slog.Handler{
			slog.NewTextHandler(&extra, nil),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	l.Log(testMessage())

	if strings.Contains(text.String(), "level=WARN") == false {
		t.Fatalf("unexpected text output %q", text.String())
	}
	if strings.Contains(extra.String(), "source=") == false {
		t.Fatalf("extra handler got nothing: %q", extra.String())
	}
}

func TestToJournalKey(t *testing.T) {
	if k := toJournalKey("dprocess.id-1"); k != "DPROCESS_ID_1" {
		t.Fatalf("unexpected key %q", k)
	}
}
