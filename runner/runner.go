// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runner runs a scenario matrix by starting one worker
// process per scenario and trial and collecting their results.
//
// A worker's stdout is scanned line by line for the result line while
// its stderr is drained concurrently, so a chatty benchmark can never
// block on a full pipe. The outcome of a trial is decided as follows:
//
//   - a failure line, a non-zero exit without a result line or a
//     timeout fails the scenario; its remaining trials are not run;
//   - a result line that cannot be decoded fails the scenario as
//     malformed;
//   - a zero exit without a result line produces no measurement and is
//     not an error.
//
// Failures are collected per scenario; they never stop the run.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/peterlynch/caliper/model"
	"github.com/peterlynch/caliper/scenario"
	"github.com/peterlynch/caliper/wire"
	"github.com/peterlynch/caliper/worker"
)

// A Progress is notified after every trial.
type Progress interface {
	Increment()
}

// Options configure a Runner.
type Options struct {
	// Suite is the registered suite name passed to workers.
	Suite string

	// Instrument selects the measurer run by workers.
	Instrument model.Instrument

	// Marker is the result line marker. If Nonce is set, a random
	// suffix unique to this Runner is appended.
	Marker string
	Nonce  bool

	// Trials is the number of times each scenario is run. Values
	// below 1 mean 1.
	Trials int

	// Parallel bounds the number of concurrent workers. Values
	// below 1 mean 1.
	Parallel int

	// Timeout bounds each worker's wall-clock time. Zero means no
	// limit.
	Timeout time.Duration

	// Passthrough receives the workers' ordinary output lines and
	// stderr. Nil discards them.
	Passthrough io.Writer

	// Verbose asks workers to log to their stderr.
	Verbose bool

	// Executable returns the binary used for VMs without an
	// executable. Nil means os.Executable.
	Executable func() (string, error)

	Logger   *slog.Logger
	Metrics  *Metrics
	Progress Progress
}

// A Runner runs scenarios in worker processes.
type Runner struct {
	opts   Options
	marker string
	log    *slog.Logger
	pass   io.Writer
}

// New returns a Runner for opts.
func New(opts Options) *Runner {
	if opts.Marker == "" {
		opts.Marker = wire.DefaultMarker
	}
	if opts.Trials < 1 {
		opts.Trials = 1
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Executable == nil {
		opts.Executable = os.Executable
	}
	r := &Runner{opts: opts, marker: opts.Marker, log: opts.Logger}
	if opts.Nonce {
		r.marker += strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + "/"
	}
	if r.log == nil {
		r.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Passthrough != nil {
		r.pass = &syncWriter{w: opts.Passthrough}
	}
	return r
}

// Marker returns the marker passed to workers.
func (r *Runner) Marker() string {
	return r.marker
}

// An Outcome is the result of running a matrix.
type Outcome struct {
	// Results holds one combined Result per scenario that produced
	// measurements, in scenario order.
	Results []*model.Result
	// Failures holds the failed trials.
	Failures []*WorkerError
	// Empty lists the scenarios that produced no measurement.
	Empty []string
	// OutChars and ErrChars total what benchmarks wrote to their
	// stdout and stderr while measured.
	OutChars, ErrChars int64
}

type job struct {
	s     *model.Scenario
	vm    model.VM
	trial int
}

// Run runs every scenario of m Options.Trials times. The returned error
// is non-nil only if ctx was canceled or a VM is unknown; per-scenario
// failures are reported in the Outcome.
func (r *Runner) Run(ctx context.Context, m *scenario.Matrix) (*Outcome, error) {
	vms := make(map[string]model.VM)
	for _, vm := range m.VMs {
		vms[vm.LocalName] = vm
	}
	var jobs []job
	for trial := 0; trial < r.opts.Trials; trial++ {
		for _, s := range m.Scenarios {
			vm, ok := vms[s.VMLocalName]
			if !ok {
				return nil, fmt.Errorf("scenario %s: unknown VM %q", s.LocalName, s.VMLocalName)
			}
			jobs = append(jobs, job{s, vm, trial})
		}
	}

	var (
		mu       sync.Mutex
		combined = make(map[string]*model.Result)
		failed   = make(map[string]bool)
		out      = new(Outcome)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallel)
	for _, j := range jobs {
		j := j
		mu.Lock()
		skip := failed[j.s.LocalName]
		mu.Unlock()
		if skip {
			r.log.Debug("skipping trial of failed scenario", "scenario", j.s.LocalName, "trial", j.trial)
			r.progress()
			continue
		}
		g.Go(func() error {
			defer r.progress()
			mu.Lock()
			skip := failed[j.s.LocalName]
			mu.Unlock()
			if skip {
				return nil
			}
			r.log.Info("running trial", "scenario", j.s.LocalName, "desc", j.s.String(), "trial", j.trial+1)
			set, err := r.RunTrial(gctx, j.vm, j.s, j.trial)

			mu.Lock()
			defer mu.Unlock()
			var we *WorkerError
			switch {
			case errors.As(err, &we):
				r.log.Warn("trial failed", "scenario", j.s.LocalName, "kind", we.Kind.String(), "err", err)
				failed[j.s.LocalName] = true
				out.Failures = append(out.Failures, we)
				if c := combined[j.s.LocalName]; c != nil {
					c.Messages = append(c.Messages, we.Error())
				}
				return nil
			case err != nil:
				return err
			case set == nil || len(set.Measurements) == 0:
				r.log.Debug("trial produced no measurement", "scenario", j.s.LocalName, "trial", j.trial+1)
				if set != nil {
					out.OutChars += set.OutCharCount
					out.ErrChars += set.ErrCharCount
				}
				return nil
			}
			out.OutChars += set.OutCharCount
			out.ErrChars += set.ErrCharCount
			res := &model.Result{
				ScenarioLocalName:   j.s.LocalName,
				InstrumentLocalName: r.opts.Instrument.LocalName,
				Measurements:        set.Measurements,
			}
			if prev := combined[j.s.LocalName]; prev != nil {
				c, err := prev.Combine(res)
				if err != nil {
					return err
				}
				res = c
			}
			combined[j.s.LocalName] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, s := range m.Scenarios {
		if res := combined[s.LocalName]; res != nil {
			res.LocalName = fmt.Sprintf("result-%d", len(out.Results))
			out.Results = append(out.Results, res)
		} else if !failed[s.LocalName] {
			out.Empty = append(out.Empty, s.LocalName)
		}
	}
	sort.SliceStable(out.Failures, func(i, j int) bool {
		return out.Failures[i].Trial < out.Failures[j].Trial
	})
	return out, nil
}

func (r *Runner) progress() {
	if r.opts.Progress != nil {
		r.opts.Progress.Increment()
	}
}

// envToken matches VM argument tokens that set environment variables.
var envToken = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// Command returns the command that runs scenario s on vm.
//
// The command line is the VM's own arguments, then the non-environment
// tokens of s's VM arguments, then the worker flags. VM argument
// tokens of the form KEY=VALUE are set in the worker's environment.
func (r *Runner) Command(ctx context.Context, vm model.VM, s *model.Scenario) (*exec.Cmd, error) {
	exe := vm.Executable
	if exe == "" {
		var err error
		if exe, err = r.opts.Executable(); err != nil {
			return nil, fmt.Errorf("locating executable: %w", err)
		}
	}
	args := append([]string(nil), vm.Args...)
	var env []string
	wa := &worker.Args{
		Suite:    r.opts.Suite,
		Method:   s.BenchmarkMethodName,
		Measurer: r.opts.Instrument.Measurer,
		Options:  r.opts.Instrument.Options,
		VM:       s.VMLocalName,
		Marker:   r.marker,
		Verbose:  r.opts.Verbose,
	}
	for k, v := range s.UserParameters {
		wa.Params.Add(k, v)
	}
	for _, k := range keys(s.VMArguments) {
		v := s.VMArguments[k]
		wa.VMArgs.Add(k, v)
		for _, tok := range strings.Fields(v) {
			if envToken.MatchString(tok) {
				env = append(env, tok)
			} else {
				args = append(args, tok)
			}
		}
	}
	args = append(args, wa.Flags()...)

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Env = append(append(os.Environ(), env...), worker.EnvWorker+"=1")
	return cmd, nil
}

// RunTrial runs one trial of s on vm. It returns a nil set if the
// worker produced no measurement and a *WorkerError if it failed.
func (r *Runner) RunTrial(ctx context.Context, vm model.VM, s *model.Scenario, trial int) (*model.MeasurementSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tctx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	werr := func(kind Kind, code int, detail string, err error) *WorkerError {
		return &WorkerError{Kind: kind, Scenario: s.LocalName, Desc: s.String(), Trial: trial,
			ExitCode: code, Detail: detail, Err: err}
	}

	cmd, err := r.Command(tctx, vm, s)
	if err != nil {
		return nil, werr(KindStart, -1, "", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, werr(KindStart, -1, "", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, werr(KindStart, -1, "", err)
	}
	r.log.Debug("starting worker", "path", cmd.Path, "args", cmd.Args[1:])
	start := time.Now()
	if err := cmd.Start(); err != nil {
		r.opts.Metrics.observe(r.opts.Instrument.LocalName, "start", 0)
		return nil, werr(KindStart, -1, "", err)
	}

	var (
		out  *wire.Output
		tail = &tailBuffer{max: 4 << 10}
		g    errgroup.Group
	)
	g.Go(func() error {
		var err error
		out, err = wire.Collect(stdout, r.marker, r.pass)
		return err
	})
	g.Go(func() error {
		var w io.Writer = tail
		if r.pass != nil {
			w = io.MultiWriter(tail, r.pass)
		}
		_, err := io.Copy(w, stderr)
		return err
	})
	ioErr := g.Wait()
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	code := 0
	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			code = ee.ExitCode()
		} else {
			code = -1
		}
	}
	fail := func(we *WorkerError) (*model.MeasurementSet, error) {
		r.opts.Metrics.observe(r.opts.Instrument.LocalName, kindLabel(we.Kind), elapsed)
		full := werr(we.Kind, code, we.Detail, we.Err)
		full.Stderr = tail.String()
		return nil, full
	}

	switch {
	case errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return fail(&WorkerError{Kind: KindTimeout, Detail: fmt.Sprintf("killed after %v", r.opts.Timeout), Err: tctx.Err()})
	case ctx.Err() != nil:
		return nil, ctx.Err()
	}
	if we := classify(out, ioErr, waitErr, tail.String()); we != nil {
		return fail(we)
	}
	if out.ExtraResults > 0 {
		r.log.Warn("worker printed extra result lines; ignoring all but the first",
			"scenario", s.LocalName, "extra", out.ExtraResults)
	}
	if waitErr != nil {
		r.log.Warn("worker exited abnormally after reporting a result", "scenario", s.LocalName, "err", waitErr)
	}
	if out.Set == nil {
		r.opts.Metrics.observe(r.opts.Instrument.LocalName, "empty", elapsed)
		return nil, nil
	}
	r.opts.Metrics.observe(r.opts.Instrument.LocalName, "ok", elapsed)
	return out.Set, nil
}

// classify inspects a finished worker's output and exit status. It
// returns nil if the trial produced a result or legitimately produced
// none. Only Kind, Detail and Err are set.
func classify(out *wire.Output, ioErr, waitErr error, stderrTail string) *WorkerError {
	switch {
	case out != nil && out.Failed:
		return &WorkerError{Kind: KindBenchmarkFailed, Detail: out.Failure, Err: waitErr}
	case ioErr != nil:
		return &WorkerError{Kind: KindIO, Err: ioErr}
	case out == nil:
		return &WorkerError{Kind: KindIO, Err: errors.New("no output collected")}
	case out.SetErr != nil:
		return &WorkerError{Kind: KindMalformed, Err: out.SetErr}
	case out.Set == nil && waitErr != nil:
		return &WorkerError{Kind: KindNoMarker, Detail: strings.TrimSpace(lastLine(stderrTail)), Err: waitErr}
	}
	return nil
}

func kindLabel(k Kind) string {
	return strings.ReplaceAll(k.String(), " ", "_")
}

func keys(m map[string]string) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > t.max {
		p = p[len(p)-t.max:]
	}
	if over := t.buf.Len() + len(p) - t.max; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
