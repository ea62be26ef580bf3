// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/model"
	"github.com/peterlynch/caliper/scenario"
	"github.com/peterlynch/caliper/wire"
	"github.com/peterlynch/caliper/worker"
)

// TestMain doubles as the worker binary: the runner re-executes the
// test binary with CALIPER_WORKER=1.
func TestMain(m *testing.M) {
	benchmark.Register(&benchmark.Suite{
		Name:    "RunnerTest",
		Params:  []benchmark.Param{{Name: "size", Values: []string{"1", "2"}}},
		Methods: []string{"Loop", "Fail", "Exit", "Fake", "Sleep", "Env", "Chatty"},
		New: func(env benchmark.Env) (benchmark.Instance, error) {
			size, err := env.Params.Int("size")
			if err != nil {
				return nil, err
			}
			return &benchmark.Funcs{
				Setup: func() error {
					if size == 0 {
						return benchmark.ErrSkipScenario
					}
					return nil
				},
				Methods: map[string]benchmark.Method{
					"Loop": func(reps int) error {
						x := 0
						for i := 0; i < reps*size; i++ {
							x += i
						}
						_ = x
						return nil
					},
					"Fail": func(int) error { return errors.New("boom") },
					"Exit": func(int) error { os.Exit(3); return nil },
					"Fake": func(int) error {
						fmt.Fprintln(env.Stdout, wire.DefaultMarker+"not json")
						return nil
					},
					"Sleep": func(int) error { time.Sleep(time.Minute); return nil },
					"Env": func(int) error {
						if got := os.Getenv("RUNNER_TEST_ENV"); got != "yes" {
							return fmt.Errorf("RUNNER_TEST_ENV=%q", got)
						}
						return nil
					},
					"Chatty": func(int) error {
						fmt.Fprintln(env.Stdout, strings.Repeat("o", 1<<17))
						fmt.Fprintln(env.Stderr, strings.Repeat("e", 1<<17))
						return nil
					},
				},
			}, nil
		},
	})
	if worker.IsWorker() {
		os.Exit(worker.Main(os.Args[1:], os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

var debugInstrument = model.Instrument{LocalName: "debug", Name: "debug", Measurer: "debug", Options: map[string]string{"reps": "2"}}

var timeInstrument = model.Instrument{LocalName: "micro", Name: "micro", Measurer: "time",
	Options: map[string]string{"warmup": "5", "run": "20", "min-sample": "1ms"}}

func matrix(t *testing.T, methods []string, sizes ...string) *scenario.Matrix {
	t.Helper()
	sel := scenario.Selection{Methods: methods}
	sel.UserParameters.Add("size", sizes...)
	m, err := scenario.Build(sel)
	require.NoError(t, err)
	return m
}

type counter struct{ n atomic.Int64 }

func (c *counter) Increment() { c.n.Add(1) }

func TestRunTwoScenarios(t *testing.T) {
	metrics := NewMetrics()
	progress := new(counter)
	r := New(Options{Suite: "RunnerTest", Instrument: timeInstrument, Trials: 1, Nonce: true,
		Metrics: metrics, Progress: progress})
	out, err := r.Run(context.Background(), matrix(t, []string{"Loop"}, "1", "2"))
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Empty(t, out.Failures)
	for i, res := range out.Results {
		assert.Equal(t, fmt.Sprintf("scenario-%d", i), res.ScenarioLocalName)
		assert.Equal(t, "micro", res.InstrumentLocalName)
		require.NotEmpty(t, res.Measurements)
		for _, m := range res.Measurements {
			assert.Equal(t, "ns", m.Unit)
			assert.Greater(t, m.Weight, 0.0)
		}
	}
	assert.Equal(t, int64(2), progress.n.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Trials.WithLabelValues("micro", "ok")))
}

func TestRunTrialsCombine(t *testing.T) {
	instr := model.Instrument{LocalName: "memory", Measurer: "memory", Options: map[string]string{"invocations": "2"}}
	r := New(Options{Suite: "RunnerTest", Instrument: instr, Trials: 3, Parallel: 2})
	out, err := r.Run(context.Background(), matrix(t, []string{"Loop"}, "1"))
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "result-0", out.Results[0].LocalName)
	assert.Len(t, out.Results[0].Measurements, 6)
}

func TestRunFailuresContinue(t *testing.T) {
	var pass bytes.Buffer
	r := New(Options{Suite: "RunnerTest", Instrument: debugInstrument, Trials: 2, Passthrough: &pass})
	out, err := r.Run(context.Background(), matrix(t, []string{"Fail", "Exit", "Fake", "Loop"}, "1"))
	require.NoError(t, err)

	kinds := map[string]Kind{}
	for _, f := range out.Failures {
		kinds[f.Scenario] = f.Kind
	}
	assert.Equal(t, map[string]Kind{
		"scenario-0": KindBenchmarkFailed,
		"scenario-1": KindNoMarker,
		"scenario-2": KindMalformed,
	}, kinds)
	// Failed scenarios are not retried.
	assert.Len(t, out.Failures, 3)
	for _, f := range out.Failures {
		if f.Kind == KindNoMarker {
			assert.Equal(t, 3, f.ExitCode)
		}
		if f.Kind == KindBenchmarkFailed {
			assert.Contains(t, f.Error(), "boom")
		}
	}
	// The debug measurer takes no measurements.
	assert.Empty(t, out.Results)
	assert.Equal(t, []string{"scenario-3"}, out.Empty)
	assert.Contains(t, pass.String(), "starting {benchmark=Loop")
}

func TestRunNonceDefeatsFakeMarker(t *testing.T) {
	r := New(Options{Suite: "RunnerTest", Instrument: debugInstrument, Nonce: true})
	assert.True(t, strings.HasPrefix(r.Marker(), wire.DefaultMarker))
	assert.NotEqual(t, wire.DefaultMarker, r.Marker())
	out, err := r.Run(context.Background(), matrix(t, []string{"Fake"}, "1"))
	require.NoError(t, err)
	assert.Empty(t, out.Failures)
	assert.Equal(t, []string{"scenario-0"}, out.Empty)
	assert.Greater(t, out.OutChars, int64(0))
}

func TestRunSkippedInWorker(t *testing.T) {
	r := New(Options{Suite: "RunnerTest", Instrument: timeInstrument})
	out, err := r.Run(context.Background(), matrix(t, []string{"Loop"}, "0", "1"))
	require.NoError(t, err)
	assert.Empty(t, out.Failures)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "scenario-1", out.Results[0].ScenarioLocalName)
	assert.Equal(t, []string{"scenario-0"}, out.Empty)
}

func TestRunTimeout(t *testing.T) {
	r := New(Options{Suite: "RunnerTest", Instrument: debugInstrument, Timeout: 500 * time.Millisecond})
	out, err := r.Run(context.Background(), matrix(t, []string{"Sleep"}, "1"))
	require.NoError(t, err)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, KindTimeout, out.Failures[0].Kind)
}

func TestRunVMArgs(t *testing.T) {
	sel := scenario.Selection{Methods: []string{"Env"}}
	sel.UserParameters.Add("size", "1")
	sel.VMArguments.Add("env", "RUNNER_TEST_ENV=yes")
	m, err := scenario.Build(sel)
	require.NoError(t, err)
	r := New(Options{Suite: "RunnerTest", Instrument: debugInstrument})
	out, err := r.Run(context.Background(), m)
	require.NoError(t, err)
	assert.Empty(t, out.Failures)
	assert.Equal(t, []string{"scenario-0"}, out.Empty)
}

func TestRunChattyDoesNotDeadlock(t *testing.T) {
	r := New(Options{Suite: "RunnerTest", Instrument: debugInstrument})
	out, err := r.Run(context.Background(), matrix(t, []string{"Chatty"}, "1"))
	require.NoError(t, err)
	assert.Empty(t, out.Failures)
	assert.Equal(t, int64(2*(1<<17+1)), out.OutChars)
	assert.Equal(t, int64(2*(1<<17+1)), out.ErrChars)
}

func TestRunStartFailure(t *testing.T) {
	sel := scenario.Selection{Methods: []string{"Loop"}, VMs: []model.VM{{LocalName: "missing", Executable: "/nonexistent/caliper-vm"}}}
	sel.UserParameters.Add("size", "1")
	m, err := scenario.Build(sel)
	require.NoError(t, err)
	out, err := New(Options{Suite: "RunnerTest", Instrument: debugInstrument}).Run(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, KindStart, out.Failures[0].Kind)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{Suite: "RunnerTest", Instrument: debugInstrument}).Run(ctx, matrix(t, []string{"Loop"}, "1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCommand(t *testing.T) {
	r := New(Options{Suite: "S", Instrument: debugInstrument, Marker: "//m/",
		Executable: func() (string, error) { return "/bin/self", nil }})
	s := &model.Scenario{
		LocalName:           "scenario-0",
		BenchmarkMethodName: "Loop",
		VMLocalName:         "go",
		UserParameters:      map[string]string{"size": "1"},
		VMArguments:         map[string]string{"gc": "GOGC=50 -race", "procs": "GOMAXPROCS=2"},
	}
	cmd, err := r.Command(context.Background(), model.VM{LocalName: "go", Args: []string{"-x"}}, s)
	require.NoError(t, err)
	assert.Equal(t, "/bin/self", cmd.Path)
	assert.Equal(t, []string{"/bin/self", "-x", "-race",
		"-suite", "S", "-benchmark", "Loop", "-measurer", "debug", "-O", "reps=2",
		"-D", "size=1", "-J", "gc=GOGC=50 -race", "-J", "procs=GOMAXPROCS=2", "-vm", "go", "-marker", "//m/"}, cmd.Args)
	env := strings.Join(cmd.Env, "\n")
	assert.Contains(t, env, "\nGOGC=50\n")
	assert.Contains(t, env, "\nGOMAXPROCS=2\n")
	assert.True(t, strings.HasSuffix(env, "\n"+worker.EnvWorker+"=1"))
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{max: 4}
	tb.Write([]byte("ab"))
	tb.Write([]byte("cdef"))
	assert.Equal(t, "cdef", tb.String())
	tb.Write([]byte("0123456789"))
	assert.Equal(t, "6789", tb.String())
	tb.Write([]byte("x"))
	assert.Equal(t, "789x", tb.String())
}

func TestWorkerErrorString(t *testing.T) {
	e := &WorkerError{Kind: KindNoMarker, Scenario: "scenario-1", Desc: "{benchmark=A, vm=default}", Trial: 0, ExitCode: 2, Detail: "panic"}
	assert.Equal(t, "scenario-1 {benchmark=A, vm=default} trial 1: no result (exit status 2): panic", e.Error())
}

func TestClassifyReadError(t *testing.T) {
	// The worker exits 0, but its stdout breaks mid-stream.
	broken := errors.New("pipe broken")
	r := io.MultiReader(strings.NewReader("starting scenario-0\n"), iotest.ErrReader(broken))
	out, ioErr := wire.Collect(r, wire.DefaultMarker, nil)
	require.NotNil(t, out)
	require.ErrorIs(t, ioErr, broken)

	we := classify(out, ioErr, nil, "")
	require.NotNil(t, we)
	assert.Equal(t, KindIO, we.Kind)
	assert.ErrorIs(t, we, broken)
}

func TestClassify(t *testing.T) {
	exit := errors.New("exit status 1")
	set := &model.MeasurementSet{}
	check := func(name string, out *wire.Output, ioErr, waitErr error, want Kind) {
		t.Helper()
		we := classify(out, ioErr, waitErr, "last line\n")
		if want == 0 {
			assert.Nil(t, we, name)
			return
		}
		if assert.NotNil(t, we, name) {
			assert.Equal(t, want, we.Kind, name)
		}
	}
	check("ok", &wire.Output{Set: set}, nil, nil, 0)
	check("empty", &wire.Output{}, nil, nil, 0)
	check("result then bad exit", &wire.Output{Set: set}, nil, exit, 0)
	check("failure line", &wire.Output{Failed: true, Failure: "boom"}, nil, exit, KindBenchmarkFailed)
	check("read error", &wire.Output{Set: set}, errors.New("EIO"), nil, KindIO)
	check("no output", nil, nil, nil, KindIO)
	check("malformed", &wire.Output{SetErr: errors.New("bad json")}, nil, nil, KindMalformed)
	check("no marker", &wire.Output{}, nil, exit, KindNoMarker)

	we := classify(&wire.Output{}, nil, exit, "first\nlast line\n")
	assert.Equal(t, "last line", we.Detail)
}
