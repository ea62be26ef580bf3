// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/benchunit"
	"github.com/peterlynch/caliper/config"
	"github.com/peterlynch/caliper/measurer"
	"github.com/peterlynch/caliper/model"
	"github.com/peterlynch/caliper/report"
	"github.com/peterlynch/caliper/runner"
	"github.com/peterlynch/caliper/scenario"
	"github.com/peterlynch/caliper/store"
	"github.com/peterlynch/caliper/worker"
)

// dryRunConflicts are the flags that make no sense without
// measurement.
var dryRunConflicts = []string{"trials", "vm", "vm-arg", "output", "score"}

// check validates flag combinations that do not need the suite.
func (o *Options) check() error {
	if o.DryRun {
		for _, name := range dryRunConflicts {
			if o.Changed(name) {
				return usageErrorf("--dry-run is incompatible with --%s", name)
			}
		}
	}
	if o.Trials < 1 {
		return usageErrorf("--trials must be at least 1, got %d", o.Trials)
	}
	if o.Parallel < 1 {
		return usageErrorf("--parallel must be at least 1, got %d", o.Parallel)
	}
	if o.Timeout < 0 {
		return usageErrorf("--timeout must not be negative")
	}
	if o.Changed("marker") {
		if err := config.CheckMarker(o.Marker); err != nil {
			return usageErrorf("--marker: %v", err)
		}
	}
	if o.Delimiter == "" {
		return usageErrorf("--delimiter must not be empty")
	}
	switch o.Format {
	case "text", "csv":
	default:
		return usageErrorf("unknown --format %q (want text or csv)", o.Format)
	}
	for _, u := range o.unitFlags() {
		if u.unit != "" && benchunit.ClassOf(u.unit) != u.class {
			return usageErrorf("--%s: %q is not a %s unit", u.flag, u.unit, u.class)
		}
	}
	return nil
}

type unitFlag struct {
	flag  string
	class benchunit.Class
	unit  string
}

func (o *Options) unitFlags() []unitFlag {
	return []unitFlag{
		{"time-unit", benchunit.Time, o.TimeUnit},
		{"instance-unit", benchunit.Instances, o.InstanceUnit},
		{"memory-unit", benchunit.Memory, o.MemoryUnit},
	}
}

// units returns the display units selected by the unit flags.
func (o *Options) units() map[benchunit.Class]string {
	m := map[benchunit.Class]string{}
	for _, u := range o.unitFlags() {
		if u.unit != "" {
			m[u.class] = u.unit
		}
	}
	return m
}

// measurerOverrides returns the instrument options given as flags.
func (o *Options) measurerOverrides() map[string]string {
	m := map[string]string{}
	if o.Changed("warmup") {
		m["warmup"] = o.Warmup.String()
	}
	if o.Changed("run") {
		m["run"] = o.Run.String()
	}
	if o.Changed("debug-reps") {
		m["reps"] = strconv.Itoa(o.DebugReps)
	}
	return m
}

// assignments parses repeated name=v1,v2 flags. A name may be given
// only once.
func assignments(flag string, list []string, delim string) (scenario.Values, error) {
	var v scenario.Values
	for _, s := range list {
		name, vals, err := scenario.ParseAssignment(s, delim)
		if err != nil {
			return v, usageErrorf("-%s: %v", flag, err)
		}
		if v.Has(name) {
			return v, usageErrorf("-%s: %q given more than once", flag, name)
		}
		v.Set(name, vals...)
	}
	return v, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, o *Options, stdout, stderr io.Writer) error {
	if err := o.check(); err != nil {
		return err
	}
	log := newLogger(stderr, o.Verbose)

	suite, ok := benchmark.Lookup(o.Suite)
	if !ok {
		return usageErrorf("unknown suite %q (registered: %s)", o.Suite, suiteList())
	}
	cfg, err := config.Load(o.Config)
	if err != nil {
		return err
	}
	if o.Changed("config") && cfg.File == "" {
		return usageErrorf("configuration file %s does not exist", o.Config)
	}
	if cfg.File != "" {
		log.Debug("loaded configuration", "file", cfg.File)
	}

	overrides, err := assignments("D", o.Params, o.Delimiter)
	if err != nil {
		return err
	}
	vmArgs, err := assignments("J", o.VMArgs, o.Delimiter)
	if err != nil {
		return err
	}
	methods, params, err := scenario.Resolve(suite, o.Benchmarks, overrides)
	if err != nil {
		return err
	}
	sel := scenario.Selection{
		Methods:        methods,
		UserParameters: params,
		VMArguments:    vmArgs,
		Skip:           scenario.SuiteSkip(suite),
	}
	if o.DryRun {
		m, err := scenario.Build(sel)
		if err != nil {
			return err
		}
		return dryRun(ctx, suite, m, o, stdout, stderr, log)
	}

	inst, err := cfg.Instrument(o.Instrument, o.measurerOverrides())
	if err != nil {
		return err
	}
	trials := cfg.Trials
	if o.Changed("trials") {
		trials = o.Trials
	}
	marker := cfg.Marker
	if o.Changed("marker") {
		marker = o.Marker
	}
	sel.VMs = cfg.ResolveVMs(o.VMs)
	m, err := scenario.Build(sel)
	if err != nil {
		return err
	}
	log.Info("measuring", "suite", suite.Name, "instrument", inst.Name,
		"scenarios", len(m.Scenarios), "skipped", m.Skipped, "trials", trials)

	metrics := runner.NewMetrics()
	ropts := runner.Options{
		Suite:      suite.Name,
		Instrument: inst,
		Marker:     marker,
		Nonce:      true,
		Trials:     trials,
		Parallel:   o.Parallel,
		Timeout:    o.Timeout,
		Verbose:    o.Verbose,
		Logger:     log,
		Metrics:    metrics,
	}
	if o.Verbose {
		ropts.Passthrough = stderr
	}
	bar := newProgress(stderr, len(m.Scenarios)*trials, !o.Verbose)
	if bar != nil {
		ropts.Progress = bar
	}
	start := time.Now()
	out, err := runner.New(ropts).Run(ctx, m)
	bar.finish()
	if err != nil {
		return err
	}
	for _, f := range out.Failures {
		fmt.Fprintf(stderr, "caliper: %v\n", f)
		if o.Verbose && f.Stderr != "" {
			fmt.Fprintf(stderr, "worker stderr:\n%s\n", f.Stderr)
		}
	}
	for _, name := range out.Empty {
		log.Info("scenario produced no measurements", "scenario", name)
	}

	var errs []error
	if len(out.Failures) > 0 {
		errs = append(errs, fmt.Errorf("%d of %d trials failed", len(out.Failures), len(m.Scenarios)*trials))
	}
	if len(out.Results) > 0 {
		if err := writeReport(stdout, inst, m, out, o); err != nil {
			return err
		}
		r := &model.Run{
			ID:          uuid.NewString(),
			Suite:       suite.Name,
			Timestamp:   start,
			Environment: environment(),
			VMs:         m.VMs,
			Instruments: []model.Instrument{inst},
			Scenarios:   m.Scenarios,
			Results:     out.Results,
		}
		if err := save(ctx, o.Output, r, stderr); err != nil {
			errs = append(errs, err)
		}
	} else if len(out.Failures) == 0 {
		fmt.Fprintln(stdout, "No results: every scenario was skipped.")
	}
	if o.MetricsFile != "" {
		if err := metrics.WriteFile(o.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

func writeReport(w io.Writer, inst model.Instrument, m *scenario.Matrix, out *runner.Outcome, o *Options) error {
	b := report.NewBuilder(inst, m.Scenarios, m.VMs)
	for _, r := range out.Results {
		if err := b.Add(r); err != nil {
			return err
		}
	}
	t, err := b.ToTable(report.TableOpts{Units: o.units()})
	if err != nil {
		return err
	}
	if o.Format == "csv" {
		return t.ToCSV(w)
	}
	return t.ToText(w, report.TextOpts{Score: o.Score, OutChars: out.OutChars, ErrChars: out.ErrChars})
}

func save(ctx context.Context, dest string, r *model.Run, stderr io.Writer) error {
	st, err := store.Open(ctx, dest)
	if err != nil {
		return fmt.Errorf("saving results: %w", err)
	}
	defer st.Close()
	where, err := st.Save(ctx, r)
	if err != nil {
		return fmt.Errorf("saving results: %w", err)
	}
	fmt.Fprintf(stderr, "Results saved to %s\n", where)
	return nil
}

// dryRun runs every scenario once in this process with a single rep.
func dryRun(ctx context.Context, suite *benchmark.Suite, m *scenario.Matrix, o *Options, stdout, stderr io.Writer, log *slog.Logger) error {
	out, errw := io.Discard, io.Discard
	if o.Verbose {
		out, errw = stderr, stderr
	}
	debug := &measurer.Debug{Reps: 1}
	ran, vetoed := 0, 0
	for _, s := range m.Scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Debug("dry run", "scenario", s.String())
		_, err := worker.Measure(ctx, suite, s, debug, out, errw)
		switch {
		case errors.Is(err, benchmark.ErrSkipScenario):
			vetoed++
		case err != nil:
			return fmt.Errorf("%s %s: %w", s.LocalName, s, err)
		default:
			ran++
		}
	}
	fmt.Fprintf(stdout, "Dry run: %d scenarios ran, %d skipped.\n", ran, vetoed+m.Skipped)
	return nil
}
