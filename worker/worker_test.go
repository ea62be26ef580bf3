// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package worker

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/scenario"
	"github.com/peterlynch/caliper/wire"
)

func init() {
	benchmark.Register(&benchmark.Suite{
		Name:    "WorkerTest",
		Params:  []benchmark.Param{{Name: "n", Values: []string{"1", "2"}}},
		Methods: []string{"Echo", "Fail"},
		New: func(env benchmark.Env) (benchmark.Instance, error) {
			n, err := env.Params.Int("n")
			if err != nil {
				return nil, err
			}
			return &benchmark.Funcs{
				Setup: func() error {
					if n == 0 {
						return benchmark.ErrSkipScenario
					}
					return nil
				},
				Methods: map[string]benchmark.Method{
					"Echo": func(reps int) error {
						fmt.Fprint(env.Stdout, "hi")
						fmt.Fprint(env.Stderr, "!")
						return nil
					},
					"Fail": func(reps int) error { return errors.New("boom") },
				},
			}, nil
		},
	})
}

func run(t *testing.T, args ...string) (int, *wire.Output, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Main(args, &stdout, &stderr)
	out, err := wire.Collect(&stdout, wire.DefaultMarker, nil)
	require.NoError(t, err)
	return code, out, stderr.String()
}

func TestMainSuccess(t *testing.T) {
	code, out, stderr := run(t, "-suite", "WorkerTest", "-benchmark", "Echo", "-D", "n=2",
		"-measurer", "debug", "-O", "reps=3", "-marker", wire.DefaultMarker)
	require.Equal(t, 0, code, stderr)
	require.NotNil(t, out.Set)
	assert.Empty(t, out.Set.Measurements)
	assert.Equal(t, int64(6), out.Set.OutCharCount)
	assert.Equal(t, int64(3), out.Set.ErrCharCount)
	assert.Equal(t, "!!!", stderr)
	assert.False(t, out.Failed)
}

func TestMainSkip(t *testing.T) {
	code, out, _ := run(t, "-suite", "WorkerTest", "-benchmark", "Echo", "-D", "n=0", "-measurer", "debug")
	assert.Equal(t, 0, code)
	assert.Nil(t, out.Set)
	assert.False(t, out.Failed)
}

func TestMainFailure(t *testing.T) {
	code, out, _ := run(t, "-suite", "WorkerTest", "-benchmark", "Fail", "-D", "n=1", "-measurer", "debug")
	assert.Equal(t, 1, code)
	assert.Nil(t, out.Set)
	assert.True(t, out.Failed)
	assert.Contains(t, out.Failure, "boom")
}

func TestMainWrongScenarioCount(t *testing.T) {
	// Without -D the declared defaults select two scenarios.
	code, out, _ := run(t, "-suite", "WorkerTest", "-benchmark", "Echo", "-measurer", "debug")
	assert.Equal(t, 1, code)
	assert.True(t, out.Failed)
	assert.Contains(t, out.Failure, "2 scenarios")

	code, out, _ = run(t, "-suite", "WorkerTest", "-benchmark", "Echo", "-D", "n=1", "-D", "n=2")
	assert.Equal(t, 1, code)
	assert.True(t, out.Failed)

	code, _, _ = run(t, "-suite", "Nope", "-benchmark", "Echo")
	assert.Equal(t, 1, code)

	code, _, stderr := run(t, "-bogus")
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, stderr)
}

func TestArgsFlags(t *testing.T) {
	a := &Args{
		Suite:    "WorkerTest",
		Method:   "Echo",
		Measurer: "time",
		Options:  map[string]string{"warmup": "10", "run": "20"},
		VM:       "go",
		Marker:   "//m/",
	}
	a.Params.Add("n", "1")
	a.VMArgs.Add("gc", "GOGC=50")
	flags := a.Flags()
	assert.Equal(t, "-suite WorkerTest -benchmark Echo -measurer time -O run=20 -O warmup=10 -D n=1 -J gc=GOGC=50 -vm go -marker //m/",
		strings.Join(flags, " "))

	b, err := ParseArgs(flags)
	require.NoError(t, err)
	assert.Equal(t, a.Options, b.Options)
	assert.Equal(t, []string{"GOGC=50"}, b.VMArgs.Get("gc"))
	assert.Equal(t, "//m/", b.Marker)

	s, err := Select(mustSuite(t), b)
	require.NoError(t, err)
	assert.Equal(t, "go", s.VMLocalName)
	assert.Equal(t, map[string]string{"n": "1"}, s.UserParameters)
}

func TestParseArgsErrors(t *testing.T) {
	var ce *scenario.ConfigError
	_, err := ParseArgs([]string{"-D", "novalue"})
	assert.True(t, errors.As(err, &ce))
	_, err = ParseArgs([]string{"extra"})
	assert.True(t, errors.As(err, &ce))
	_, err = ParseArgs([]string{"-marker", ""})
	assert.True(t, errors.As(err, &ce))
}

func mustSuite(t *testing.T) *benchmark.Suite {
	s, ok := benchmark.Lookup("WorkerTest")
	require.True(t, ok)
	return s
}

func TestMainVerboseLogsMeasurerEvents(t *testing.T) {
	args := []string{"-suite", "WorkerTest", "-benchmark", "Echo", "-D", "n=1", "-measurer", "time",
		"-O", "warmup=1ms", "-O", "run=2ms", "-O", "min-sample=1ms"}
	code, out, stderr := run(t, append(args, "-v")...)
	require.Equal(t, 0, code, stderr)
	require.NotNil(t, out.Set)
	assert.Contains(t, stderr, `msg="warmup starting"`)
	assert.Contains(t, stderr, `msg="measurement starting"`)
	assert.Contains(t, stderr, "msg=measurement ")

	code, _, stderr = run(t, args...)
	require.Equal(t, 0, code, stderr)
	assert.NotContains(t, stderr, "warmup starting")
}
