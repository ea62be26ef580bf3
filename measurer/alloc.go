// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package measurer

import (
	"context"
	"runtime"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/model"
)

// DefaultInvocations is the number of measured invocations of the
// allocation measurers.
const DefaultInvocations = 5

// AllocStats are cumulative allocation counters.
type AllocStats struct {
	Objects uint64
	Bytes   uint64
}

// An AllocCounter reports cumulative allocation counters for the
// process.
type AllocCounter interface {
	ReadAllocs() AllocStats
}

// RuntimeAllocCounter reads the Go runtime's heap allocation counters.
type RuntimeAllocCounter struct{}

// ReadAllocs reads runtime.MemStats.
func (RuntimeAllocCounter) ReadAllocs() AllocStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return AllocStats{Objects: ms.Mallocs, Bytes: ms.TotalAlloc}
}

// Instances measures the number of heap objects allocated by one
// repetition of a method.
type Instances struct {
	Invocations int
	Counter     AllocCounter // nil means RuntimeAllocCounter
}

// Measure returns one measurement of allocated objects per invocation.
func (a *Instances) Measure(ctx context.Context, newInstance Factory, method string) ([]model.Measurement, error) {
	return measureAllocs(ctx, newInstance, method, a.Invocations, a.Counter, func(d AllocStats) model.Measurement {
		return model.Measurement{Value: float64(d.Objects), Weight: 1, Unit: "instances", Description: "objects allocated"}
	})
}

// Memory measures the number of heap bytes allocated by one
// repetition of a method.
type Memory struct {
	Invocations int
	Counter     AllocCounter // nil means RuntimeAllocCounter
}

// Measure returns one measurement of allocated bytes per invocation.
func (a *Memory) Measure(ctx context.Context, newInstance Factory, method string) ([]model.Measurement, error) {
	return measureAllocs(ctx, newInstance, method, a.Invocations, a.Counter, func(d AllocStats) model.Measurement {
		return model.Measurement{Value: float64(d.Bytes), Weight: 1, Unit: "B", Description: "bytes allocated"}
	})
}

// measureAllocs invokes the method once to warm it up and then n more
// times with one repetition each, recording the counter delta of every
// measured invocation.
func measureAllocs(ctx context.Context, newInstance Factory, method string, n int, c AllocCounter, mk func(AllocStats) model.Measurement) ([]model.Measurement, error) {
	if c == nil {
		c = RuntimeAllocCounter{}
	}
	if n < 1 {
		n = DefaultInvocations
	}
	var ms []model.Measurement
	err := withMethod(newInstance, method, func(m benchmark.Method) error {
		if err := invoke(m, method, 1); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			before := c.ReadAllocs()
			if err := invoke(m, method, 1); err != nil {
				return err
			}
			after := c.ReadAllocs()
			ms = append(ms, mk(AllocStats{
				Objects: after.Objects - before.Objects,
				Bytes:   after.Bytes - before.Bytes,
			}))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ms, nil
}
