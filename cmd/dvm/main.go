package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ergo.services/dvm"
	"ergo.services/dvm/config"
	"ergo.services/dvm/gen"
	"ergo.services/dvm/sink"
	"ergo.services/dvm/vm"
)

var (
	OptionConfig   string
	OptionTimeout  time.Duration
	OptionSQLite   string
	OptionLogLevel string
	OptionKeep     bool
	OptionVersion  bool
)

func init() {
	flag.StringVar(&OptionConfig, "config", "dvm.toml", "path to the configuration file")
	flag.DurationVar(&OptionTimeout, "timeout", 0, "stop after the given time (0 runs until interrupted)")
	flag.StringVar(&OptionSQLite, "sqlite", "", "store outputs in this SQLite database (overrides [sink] sqlite)")
	flag.StringVar(&OptionLogLevel, "log", "", "log level (overrides [log] level)")
	flag.BoolVar(&OptionKeep, "keep", false, "keep running after every process has exited")
	flag.BoolVar(&OptionVersion, "version", false, "print version and exit")
}

func main() {
	flag.Parse()

	if OptionVersion {
		fmt.Println(dvm.FrameworkVersion)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dvm: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	c, err := config.Load(OptionConfig)
	if err != nil {
		return err
	}
	if OptionLogLevel != "" {
		c.Log.Level = OptionLogLevel
	}
	if OptionSQLite != "" {
		c.Sink.SQLite = OptionSQLite
	}

	options, err := c.Options()
	if err != nil {
		return err
	}
	outputs := make(chan gen.VMOutputs, 64)
	options.OnOutputs = func(o gen.VMOutputs) {
		outputs <- o
	}

	v := dvm.StartVM(options)
	defer v.Stop()

	var sinks []sink.Sink
	if c.Sink.SQLite != "" {
		s, err := sink.OpenSQLite(c.Path(c.Sink.SQLite))
		if err != nil {
			return err
		}
		sinks = append(sinks, s)
	}
	if c.Sink.Log {
		sinks = append(sinks, sink.CreateLog(v.Log()))
	}
	defer func() {
		for _, s := range sinks {
			s.Close()
		}
	}()

	for _, p := range c.Processors {
		scheduler, err := p.CreateScheduler()
		if err != nil {
			return err
		}
		if err := v.AddProcessor(gen.ProcessorName(p.Name), scheduler); err != nil {
			return err
		}
	}

	deployed, err := deploy(v, c)
	if err != nil {
		return err
	}
	v.Log().Info("deployed %d process(es) on %d processor(s)", len(deployed), len(c.Processors))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if OptionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, OptionTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(outputs)
		return v.Run(gctx, c.Tick())
	})
	h := newHost(v, os.Stdout, deployed)
	g.Go(func() error {
		for o := range outputs {
			write(v, sinks, o)
			if h.handle(o) && OptionKeep == false {
				cancel()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && errors.Is(err, context.Canceled) == false {
		return err
	}
	// whatever the last tick left behind
	rest := v.FlushOutputs()
	write(v, sinks, rest)
	h.handle(rest)

	info := v.Info()
	v.Log().Info("uptime %s, %d d-process(es), %d terminated, user time %s, system time %s",
		info.Uptime.Round(time.Millisecond), info.DProcesses, info.Terminated,
		time.Duration(info.UserTime), time.Duration(info.SystemTime))
	return nil
}

func write(v *vm.VM, sinks []sink.Sink, outputs gen.VMOutputs) {
	if len(outputs) == 0 {
		return
	}
	for _, s := range sinks {
		if err := s.Write(outputs); err != nil {
			v.Log().Error("unable to write outputs: %s", err)
		}
	}
}
