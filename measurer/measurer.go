// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package measurer implements the strategies that turn invocations of
// a benchmark method into measurements.
//
// Each Measurer builds one benchmark Instance, sets it up, invokes the
// method according to its strategy and tears the instance down. The
// harness picks a Measurer once, from the instrument configuration,
// before any benchmark code runs.
package measurer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/model"
)

// A Factory builds a fresh benchmark Instance.
type Factory func() (benchmark.Instance, error)

// A Measurer measures one method of one benchmark instance.
type Measurer interface {
	// Measure returns the measurements taken. A measurer that only
	// exercises the code returns no measurements.
	Measure(ctx context.Context, newInstance Factory, method string) ([]model.Measurement, error)
}

// Measurer kinds accepted by New.
const (
	KindTime      = "time"
	KindInstances = "instances"
	KindMemory    = "memory"
	KindDebug     = "debug"
)

// Kinds lists the measurer kinds in a stable order.
var Kinds = []string{KindTime, KindInstances, KindMemory, KindDebug}

// New returns the measurer of the given kind configured with opts.
//
// Recognized options are "warmup", "run" and "min-sample" for time,
// "invocations" for instances and memory, and "reps" for debug.
// Durations are Go durations or a plain number of milliseconds.
// Unknown options are an error.
func New(kind string, opts map[string]string) (Measurer, error) {
	o := options(opts)
	var m Measurer
	switch kind {
	case KindTime:
		t := &Time{}
		t.Warmup = o.duration("warmup", DefaultWarmup)
		t.Run = o.duration("run", DefaultRun)
		t.MinSample = o.duration("min-sample", DefaultMinSample)
		m = t
	case KindInstances:
		m = &Instances{Invocations: o.int("invocations", DefaultInvocations)}
	case KindMemory:
		m = &Memory{Invocations: o.int("invocations", DefaultInvocations)}
	case KindDebug:
		m = &Debug{Reps: o.int("reps", DefaultDebugReps)}
	default:
		return nil, fmt.Errorf("unknown measurer %q", kind)
	}
	if o.err != nil {
		return nil, fmt.Errorf("measurer %s: %w", kind, o.err)
	}
	for name := range o.unused {
		return nil, fmt.Errorf("measurer %s: unknown option %q", kind, name)
	}
	return m, nil
}

type optionParser struct {
	vals   map[string]string
	unused map[string]bool
	err    error
}

func options(vals map[string]string) *optionParser {
	o := &optionParser{vals: vals, unused: map[string]bool{}}
	for k := range vals {
		o.unused[k] = true
	}
	return o
}

func (o *optionParser) duration(name string, def time.Duration) time.Duration {
	v, ok := o.vals[name]
	if !ok {
		return def
	}
	delete(o.unused, name)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		o.fail(fmt.Errorf("bad duration %s=%q", name, v))
		return def
	}
	return d
}

func (o *optionParser) int(name string, def int) int {
	v, ok := o.vals[name]
	if !ok {
		return def
	}
	delete(o.unused, name)
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		o.fail(fmt.Errorf("bad count %s=%q", name, v))
		return def
	}
	return n
}

func (o *optionParser) fail(err error) {
	if o.err == nil {
		o.err = err
	}
}

// withMethod builds an instance, sets it up, runs body with the named
// method and tears the instance down. The first error wins.
func withMethod(newInstance Factory, method string, body func(benchmark.Method) error) error {
	var inst benchmark.Instance
	err := benchmark.Call(benchmark.PhaseNew, "", func() error {
		var err error
		inst, err = newInstance()
		return err
	})
	if err != nil {
		return err
	}
	m, ok := inst.Method(method)
	if !ok {
		return fmt.Errorf("benchmark has no method %q", method)
	}
	if err := benchmark.Call(benchmark.PhaseSetUp, "", inst.SetUp); err != nil {
		return err
	}
	err = body(m)
	if terr := benchmark.Call(benchmark.PhaseTearDown, "", inst.TearDown); err == nil {
		err = terr
	}
	return err
}

func invoke(m benchmark.Method, name string, reps int) error {
	return benchmark.Call(benchmark.PhaseRun, name, func() error { return m(reps) })
}
