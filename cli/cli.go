// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli implements the caliper command line.
//
// A program that registers benchmark suites calls Main from its main
// function:
//
//	func main() {
//		os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
//	}
//
// The same binary serves as the worker: when started with
// CALIPER_WORKER=1, Main runs a single scenario instead of the
// orchestrator.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/config"
	"github.com/peterlynch/caliper/measurer"
	"github.com/peterlynch/caliper/scenario"
	"github.com/peterlynch/caliper/store"
	"github.com/peterlynch/caliper/wire"
	"github.com/peterlynch/caliper/worker"
)

// A UsageError is a bad command line.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

func usageErrorf(format string, args ...any) error {
	return &UsageError{fmt.Sprintf(format, args...)}
}

// Options are the parsed command line flags.
type Options struct {
	Suite      string
	DryRun     bool
	Benchmarks []string
	VMs        []string
	Instrument string
	Trials     int
	Output     string
	Verbose    bool
	Score      bool
	Delimiter  string
	Config     string
	Params     []string
	VMArgs     []string
	Marker     string

	Warmup    time.Duration
	Run       time.Duration
	DebugReps int

	TimeUnit     string
	InstanceUnit string
	MemoryUnit   string
	Format       string

	Parallel    int
	Timeout     time.Duration
	MetricsFile string

	// changed records the flags given explicitly.
	changed map[string]bool
}

// Changed reports whether the named long flag was given.
func (o *Options) Changed(name string) bool {
	return o.changed[name]
}

// Main runs the caliper command line with args, not including the
// program name, and returns the process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	if worker.IsWorker() {
		return worker.Main(args, stdout, stderr)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, _ := newCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "caliper: %v\n", err)
	var ue *UsageError
	var ce *scenario.ConfigError
	if errors.As(err, &ue) || errors.As(err, &ce) {
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return 1
}

// newCommand returns the root command and the Options it fills in.
func newCommand(stdout, stderr io.Writer) (*cobra.Command, *Options) {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "caliper [flags] suite",
		Short: "Run micro-benchmarks in isolated worker processes",
		Long: `Caliper measures every scenario of a benchmark suite in a fresh worker
process and prints a summary table of the medians.

A scenario is one benchmark method with one value for each user
parameter (-D) and VM argument (-J) on one VM (-m). Registered suites: ` + suiteList() + `.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("expected exactly one suite name, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Suite = args[0]
			opts.changed = map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { opts.changed[f.Name] = true })
			return run(cmd.Context(), opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{err.Error()}
	})

	f := cmd.Flags()
	f.SortFlags = false
	f.BoolVarP(&opts.DryRun, "dry-run", "n", false, "run every scenario once in-process instead of measuring")
	f.StringSliceVarP(&opts.Benchmarks, "benchmark", "b", nil, "comma-separated benchmark `methods` to run (default all)")
	f.StringSliceVarP(&opts.VMs, "vm", "m", nil, "comma-separated `VMs` to run on (default this executable)")
	f.StringVarP(&opts.Instrument, "instrument", "i", "micro", "`instrument` to measure with")
	f.IntVarP(&opts.Trials, "trials", "t", 1, "number of `trials` per scenario")
	f.StringVarP(&opts.Output, "output", "o", "", "save results to `dest` (default ./"+store.DefaultDir+"/)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "log progress and show benchmark output")
	f.BoolVarP(&opts.Score, "score", "s", false, "print an aggregate score")
	f.StringVarP(&opts.Delimiter, "delimiter", "d", ",", "`separator` for -D and -J value lists")
	f.StringVarP(&opts.Config, "config", "c", config.DefaultPath(), "configuration `file`")
	f.StringArrayVarP(&opts.Params, "param", "D", nil, "user parameter `name=v1,v2`")
	f.StringArrayVarP(&opts.VMArgs, "vm-arg", "J", nil, "VM argument `name=args1,args2`")
	f.StringVar(&opts.Marker, "marker", wire.DefaultMarker, "result line `marker`")
	f.DurationVar(&opts.Warmup, "warmup", measurer.DefaultWarmup, "time measurer warmup `duration`")
	f.DurationVar(&opts.Run, "run", measurer.DefaultRun, "time measurer run `duration`")
	f.IntVar(&opts.DebugReps, "debug-reps", measurer.DefaultDebugReps, "debug measurer `reps`")
	f.StringVar(&opts.TimeUnit, "time-unit", "", "display times in `unit` (ns, us, ms, s)")
	f.StringVar(&opts.InstanceUnit, "instance-unit", "", "display counts in `unit` (instances, K instances, M instances, B instances)")
	f.StringVar(&opts.MemoryUnit, "memory-unit", "", "display sizes in `unit` (B, KB, MB, GB)")
	f.StringVar(&opts.Format, "format", "text", "report `format` (text, csv)")
	f.IntVar(&opts.Parallel, "parallel", 1, "run up to `n` workers at once")
	f.DurationVar(&opts.Timeout, "timeout", 0, "kill workers after `duration` (0 means no limit)")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to `file`")
	return cmd, opts
}

func suiteList() string {
	names := benchmark.Suites()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
