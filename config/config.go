// Package config loads the TOML configuration of a VM host. The document is
// validated against a CUE schema before it is decoded.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"ergo.services/dvm/act"
	"ergo.services/dvm/gen"
	"ergo.services/dvm/logger"
	"ergo.services/dvm/vm"
)

const (
	DefaultTick     = 10 * time.Millisecond
	DefaultMaxMoves = 1

	FormatConsole = "console"
	FormatText    = "text"
	FormatJSON    = "json"

	SchedulerOfficial = "official"

	MigrationFirst       = "first"
	MigrationLeastLoaded = "least_loaded"
	MigrationNone        = "none"
)

// Config
type Config struct {
	VM         VMConfig          `toml:"vm"`
	Log        LogConfig         `toml:"log"`
	Processors []ProcessorConfig `toml:"processor"`
	Migration  MigrationConfig   `toml:"migration"`
	Sink       SinkConfig        `toml:"sink"`
	Processes  []ProcessConfig   `toml:"process"`

	// Dir is the directory relative paths are resolved against. Set by Load.
	Dir string `toml:"-"`
}

// VMConfig
type VMConfig struct {
	Name      string   `toml:"name"`
	Tick      Duration `toml:"tick"`
	LockOrder bool     `toml:"lock_order"`
}

// LogConfig
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Journal    bool   `toml:"journal"`
	NoColor    bool   `toml:"no_color"`
	TimeFormat string `toml:"time_format"`
	Fields     bool   `toml:"fields"`
}

// ProcessorConfig
type ProcessorConfig struct {
	Name      string `toml:"name"`
	Scheduler string `toml:"scheduler"`
}

// MigrationConfig
type MigrationConfig struct {
	Logic    string `toml:"logic"`
	MaxMoves int    `toml:"max_moves"`
}

// SinkConfig
type SinkConfig struct {
	SQLite string `toml:"sqlite"`
	Log    bool   `toml:"log"`
}

// ProcessConfig describes a scripted d-process spawned on start.
type ProcessConfig struct {
	Name      string          `toml:"name"`
	Script    string          `toml:"script"`
	MaxSteps  uint64          `toml:"max_steps"`
	Link      []string        `toml:"link"`
	Monitor   []string        `toml:"monitor"`
	Subscribe []string        `toml:"subscribe"`
	Flags     map[string]any  `toml:"flags"`
	Handlers  []HandlerConfig `toml:"handler"`
}

// HandlerConfig routes the effect Input -> Output.
type HandlerConfig struct {
	Input  string `toml:"input"`
	Output string `toml:"output"`
	Kind   string `toml:"kind"`
	// To names the d-process a delegate handler sends to.
	To string `toml:"to"`
	// Value is the resume value of a constant handler.
	Value any `toml:"value"`
}

// Duration is a time.Duration written as "10ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if c.Dir, err = filepath.Abs(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return c, nil
}

// Parse validates and decodes a TOML document. Defaults are applied to the
// fields left out.
func Parse(data []byte) (*Config, error) {
	document := make(map[string]any)
	if _, err := toml.Decode(string(data), &document); err != nil {
		return nil, fmt.Errorf("%w: %s", gen.ErrMalformed, err)
	}
	if err := Validate(document); err != nil {
		return nil, err
	}

	var c Config
	if _, err := toml.Decode(string(data), &c); err != nil {
		return nil, fmt.Errorf("%w: %s", gen.ErrMalformed, err)
	}

	// Defaults
	if c.VM.Tick == 0 {
		c.VM.Tick = Duration(DefaultTick)
	}
	if c.Log.Format == "" {
		c.Log.Format = FormatConsole
	}
	for i := range c.Processors {
		if c.Processors[i].Scheduler == "" {
			c.Processors[i].Scheduler = SchedulerOfficial
		}
	}
	if c.Migration.Logic == "" {
		c.Migration.Logic = MigrationFirst
	}
	if c.Migration.MaxMoves == 0 {
		c.Migration.MaxMoves = DefaultMaxMoves
	}

	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// check covers what the schema can not express.
func (c *Config) check() error {
	processors := make(map[string]bool)
	for _, p := range c.Processors {
		if processors[p.Name] {
			return fmt.Errorf("%w: processor %q is defined twice", gen.ErrIncorrect, p.Name)
		}
		processors[p.Name] = true
	}

	names := make(map[string]bool)
	for _, p := range c.Processes {
		if names[p.Name] {
			return fmt.Errorf("%w: process %q is defined twice", gen.ErrIncorrect, p.Name)
		}
		names[p.Name] = true
	}

	for _, p := range c.Processes {
		for _, peer := range append(append([]string(nil), p.Link...), p.Monitor...) {
			if names[peer] == false {
				return fmt.Errorf("%w: process %q refers to unknown process %q", gen.ErrIncorrect, p.Name, peer)
			}
		}
		for _, h := range p.Handlers {
			if h.Kind == "delegate" && names[h.To] == false {
				return fmt.Errorf("%w: process %q delegates to unknown process %q", gen.ErrIncorrect, p.Name, h.To)
			}
		}
	}
	return nil
}

// Tick
func (c *Config) Tick() time.Duration {
	return time.Duration(c.VM.Tick)
}

// Path resolves path against the directory of the configuration file.
func (c *Config) Path(path string) string {
	if filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// Options converts the configuration into VM options.
func (c *Config) Options() (vm.Options, error) {
	var options vm.Options
	options.Name = c.VM.Name
	options.LockOrder.Enable = c.VM.LockOrder

	if c.Log.Level != "" {
		level, err := gen.ParseLogLevel(c.Log.Level)
		if err != nil {
			return options, err
		}
		options.Log.Level = level
	}

	options.Log.DefaultLogger = logger.ConsoleOptions{
		Disable:       c.Log.Format != FormatConsole,
		TimeFormat:    c.Log.TimeFormat,
		IncludeFields: c.Log.Fields,
		NoColor:       c.Log.NoColor,
	}
	if c.Log.Format != FormatConsole || c.Log.Journal {
		l, err := logger.CreateSlog(logger.SlogOptions{
			Output:  c.slogOutput(),
			JSON:    c.Log.Format == FormatJSON,
			Journal: c.Log.Journal,
		})
		if err != nil {
			return options, err
		}
		options.Log.Loggers = append(options.Log.Loggers, vm.Logger{Name: "slog", Logger: l})
	}

	logic, err := c.MigrationLogic()
	if err != nil {
		return options, err
	}
	options.MigrationLogic = logic
	return options, nil
}

func (c *Config) slogOutput() io.Writer {
	if c.Log.Format == FormatConsole {
		// console prints already, slog feeds the journal only
		return io.Discard
	}
	return os.Stderr
}

// MigrationLogic returns nil for "none".
func (c *Config) MigrationLogic() (vm.MigrationLogic, error) {
	switch c.Migration.Logic {
	case MigrationFirst, "":
		return act.CreateFirstProcessor(), nil
	case MigrationLeastLoaded:
		return act.CreateLeastLoaded(c.Migration.MaxMoves), nil
	case MigrationNone:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: migration logic %q", gen.ErrIncorrect, c.Migration.Logic)
}

// CreateScheduler creates the scheduler of the processor.
func (p ProcessorConfig) CreateScheduler() (vm.Scheduler, error) {
	switch p.Scheduler {
	case SchedulerOfficial, "":
		return act.CreateOfficialScheduler(), nil
	}
	return nil, fmt.Errorf("%w: scheduler %q", gen.ErrIncorrect, p.Scheduler)
}
