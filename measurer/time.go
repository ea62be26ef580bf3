// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package measurer

import (
	"context"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/model"
)

// Defaults for the time measurer's options.
const (
	// DefaultWarmup is how long invocations run before measuring.
	DefaultWarmup = 3000 * time.Millisecond
	// DefaultRun is how long the measurement window lasts.
	DefaultRun = 1000 * time.Millisecond
	// DefaultMinSample is the shortest timed invocation recorded
	// without doubling the repetition count.
	DefaultMinSample = 10 * time.Millisecond

	maxReps = math.MaxInt32
)

// Time measures wall-clock time per repetition.
//
// During the warmup window it doubles the repetition count until one
// timed invocation lasts at least MinSample; warmup measurements are
// discarded. During the run window every timed invocation is recorded
// as one measurement in nanoseconds with Weight equal to its
// repetition count. At least one measurement is always taken.
type Time struct {
	Warmup    time.Duration
	Run       time.Duration
	MinSample time.Duration

	// Logger receives warmup and measurement events at Debug level.
	// Nil discards them.
	Logger *slog.Logger

	now func() time.Time // for testing
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func (t *Time) log() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return discard
}

func (t *Time) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Measure warms the method up, then times it until the run window
// closes.
func (t *Time) Measure(ctx context.Context, newInstance Factory, method string) ([]model.Measurement, error) {
	log := t.log()
	var ms []model.Measurement
	err := withMethod(newInstance, method, func(m benchmark.Method) error {
		timed := func(reps int) (time.Duration, error) {
			start := t.clock()
			err := invoke(m, method, reps)
			return t.clock().Sub(start), err
		}

		reps := 1
		log.Debug("warmup starting", "method", method, "warmup", t.Warmup, "min-sample", t.MinSample)
		deadline := t.clock().Add(t.Warmup)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := timed(reps)
			if err != nil {
				return err
			}
			short := d < t.MinSample && reps < maxReps
			if short {
				reps = grow(reps)
			}
			if !short && !t.clock().Before(deadline) {
				break
			}
		}

		log.Debug("measurement starting", "method", method, "reps", reps, "run", t.Run)
		deadline = t.clock().Add(t.Run)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := timed(reps)
			if err != nil {
				return err
			}
			ms = append(ms, model.Measurement{
				Value:       float64(d.Nanoseconds()),
				Weight:      float64(reps),
				Unit:        "ns",
				Description: "linear runtime",
			})
			log.Debug("measurement", "method", method, "reps", reps, "ns", d.Nanoseconds())
			if d < t.MinSample && reps < maxReps {
				reps = grow(reps)
			}
			if !t.clock().Before(deadline) {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ms, nil
}

func grow(reps int) int {
	if reps > maxReps/2 {
		return maxReps
	}
	return reps * 2
}
