// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package worker runs exactly one benchmark scenario inside a child
// process and reports its measurements to the parent on stdout.
//
// A binary becomes a worker when the CALIPER_WORKER environment
// variable is "1". Its arguments are then worker flags, not the user
// command line:
//
//	-suite name -benchmark method -measurer kind [-O key=value]...
//	[-D param=value]... [-J vmarg=value]... [-vm name] -marker marker
//
// The worker prints "starting <scenario>" before running user code.
// On success it prints the result line and exits 0. If the scenario
// vetoes itself it exits 0 without a result line. Any other failure
// prints a failure line and exits 1.
package worker

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/internal/countio"
	"github.com/peterlynch/caliper/measurer"
	"github.com/peterlynch/caliper/model"
	"github.com/peterlynch/caliper/scenario"
	"github.com/peterlynch/caliper/wire"
)

// EnvWorker is the environment variable that selects worker mode.
const EnvWorker = "CALIPER_WORKER"

// IsWorker reports whether the current process was started as a
// worker.
func IsWorker() bool {
	return os.Getenv(EnvWorker) == "1"
}

// Args are the parsed worker flags.
type Args struct {
	Suite    string
	Method   string
	Measurer string
	Options  map[string]string
	Params   scenario.Values
	VMArgs   scenario.Values
	VM       string
	Marker   string
	Verbose  bool

	// Logger receives measurer events. It is not a flag.
	Logger *slog.Logger
}

// Flags renders a as a worker command line.
func (a *Args) Flags() []string {
	args := []string{"-suite", a.Suite, "-benchmark", a.Method, "-measurer", a.Measurer}
	for _, k := range sortedKeys(a.Options) {
		args = append(args, "-O", k+"="+a.Options[k])
	}
	for _, name := range a.Params.Names() {
		for _, v := range a.Params.Get(name) {
			args = append(args, "-D", name+"="+v)
		}
	}
	for _, name := range a.VMArgs.Names() {
		for _, v := range a.VMArgs.Get(name) {
			args = append(args, "-J", name+"="+v)
		}
	}
	if a.VM != "" {
		args = append(args, "-vm", a.VM)
	}
	if a.Verbose {
		args = append(args, "-v")
	}
	return append(args, "-marker", a.Marker)
}

// assignFlag collects repeated name=value flags.
type assignFlag struct {
	vals *scenario.Values
}

func (f assignFlag) String() string { return "" }

func (f assignFlag) Set(s string) error {
	name, val, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	f.vals.Add(name, val)
	return nil
}

type optionFlag map[string]string

func (f optionFlag) String() string { return "" }

func (f optionFlag) Set(s string) error {
	name, val, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	f[name] = val
	return nil
}

// ParseArgs parses a worker command line.
func ParseArgs(args []string) (*Args, error) {
	a := &Args{Options: map[string]string{}}
	fs := flag.NewFlagSet("caliper-worker", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&a.Suite, "suite", "", "benchmark suite `name`")
	fs.StringVar(&a.Method, "benchmark", "", "benchmark `method`")
	fs.StringVar(&a.Measurer, "measurer", measurer.KindTime, "measurer `kind`")
	fs.Var(optionFlag(a.Options), "O", "measurer option `key=value`")
	fs.Var(assignFlag{&a.Params}, "D", "user parameter `name=value`")
	fs.Var(assignFlag{&a.VMArgs}, "J", "VM argument `name=value`")
	fs.StringVar(&a.VM, "vm", scenario.DefaultVM.LocalName, "VM local `name`")
	fs.StringVar(&a.Marker, "marker", wire.DefaultMarker, "result line `marker`")
	fs.BoolVar(&a.Verbose, "v", false, "log to stderr")
	if err := fs.Parse(args); err != nil {
		return nil, &scenario.ConfigError{Msg: "worker: " + err.Error()}
	}
	if fs.NArg() != 0 {
		return nil, &scenario.ConfigError{Msg: fmt.Sprintf("worker: unexpected arguments %q", fs.Args())}
	}
	if a.Marker == "" {
		return nil, &scenario.ConfigError{Msg: "worker: empty marker"}
	}
	return a, nil
}

// Main runs a worker with the given arguments and returns the process
// exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	a, err := ParseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		wire.NewWriter(stdout, wire.DefaultMarker).WriteFailure(err)
		return 1
	}
	level := slog.LevelWarn
	if a.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	a.Logger = logger

	lw := &lineWriter{w: stdout}
	w := wire.NewWriter(lw, a.Marker)
	set, err := Run(context.Background(), a, lw, stderr)
	lw.endLine()
	switch {
	case errors.Is(err, benchmark.ErrSkipScenario):
		logger.Debug("scenario vetoed", "suite", a.Suite, "benchmark", a.Method)
		fmt.Fprintln(stdout, "skipping scenario")
		return 0
	case err != nil:
		logger.Debug("scenario failed", "suite", a.Suite, "benchmark", a.Method, "err", err)
		w.WriteFailure(err)
		return 1
	}
	logger.Debug("scenario finished", "suite", a.Suite, "benchmark", a.Method, "measurements", len(set.Measurements))
	if err := w.WriteSet(set); err != nil {
		fmt.Fprintln(stderr, "writing result:", err)
		return 1
	}
	return 0
}

// Run resolves a to exactly one scenario of a registered suite and
// measures it. stdout and stderr are the streams handed to user code.
func Run(ctx context.Context, a *Args, stdout, stderr io.Writer) (model.MeasurementSet, error) {
	suite, ok := benchmark.Lookup(a.Suite)
	if !ok {
		return model.MeasurementSet{}, &scenario.ConfigError{Msg: fmt.Sprintf("worker: no suite %q", a.Suite)}
	}
	s, err := Select(suite, a)
	if err != nil {
		return model.MeasurementSet{}, err
	}
	m, err := measurer.New(a.Measurer, a.Options)
	if err != nil {
		return model.MeasurementSet{}, &scenario.ConfigError{Msg: "worker: " + err.Error()}
	}
	if t, ok := m.(*measurer.Time); ok {
		t.Logger = a.Logger
	}
	fmt.Fprintf(stdout, "starting %s\n", s)
	return Measure(ctx, suite, s, m, stdout, stderr)
}

// Select resolves the scenario described by a. Exactly one scenario
// must result.
func Select(suite *benchmark.Suite, a *Args) (*model.Scenario, error) {
	var methods []string
	if a.Method != "" {
		methods = []string{a.Method}
	}
	methods, params, err := scenario.Resolve(suite, methods, a.Params)
	if err != nil {
		return nil, err
	}
	m, err := scenario.Build(scenario.Selection{
		Methods:        methods,
		VMs:            []model.VM{{LocalName: a.VM, Name: a.VM}},
		UserParameters: params,
		VMArguments:    a.VMArgs,
	})
	if err != nil {
		return nil, err
	}
	if n := len(m.Scenarios); n != 1 {
		return nil, &scenario.ConfigError{Msg: fmt.Sprintf("worker: arguments select %d scenarios, want exactly 1", n)}
	}
	return m.Scenarios[0], nil
}

// Measure runs s with m. The streams handed to user code count what
// the benchmark writes; the counts are added to the returned set.
func Measure(ctx context.Context, suite *benchmark.Suite, s *model.Scenario, m measurer.Measurer, stdout, stderr io.Writer) (model.MeasurementSet, error) {
	out := countio.NewWriter(stdout)
	errw := countio.NewWriter(stderr)
	env := benchmark.Env{
		Params: benchmark.Params(s.UserParameters),
		Stdout: out,
		Stderr: errw,
	}
	ms, err := m.Measure(ctx, func() (benchmark.Instance, error) { return suite.New(env) }, s.BenchmarkMethodName)
	if err != nil {
		return model.MeasurementSet{}, err
	}
	set := model.MeasurementSet{Measurements: ms}
	return set.PlusCharCounts(out.Count(), errw.Count()), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lineWriter remembers whether the last byte written was a newline so
// that protocol lines always start on a fresh line.
type lineWriter struct {
	w       io.Writer
	partial bool
}

func (l *lineWriter) Write(p []byte) (int, error) {
	n, err := l.w.Write(p)
	if n > 0 {
		l.partial = p[n-1] != '\n'
	}
	return n, err
}

func (l *lineWriter) endLine() {
	if l.partial {
		l.Write([]byte{'\n'})
	}
}
