// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package measurer

import (
	"context"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/model"
)

// DefaultDebugReps is the number of invocations of the debug measurer.
const DefaultDebugReps = 1000

// Debug invokes a method Reps times with one repetition each and takes
// no measurements. It is useful under a debugger or profiler.
type Debug struct {
	Reps int
}

// Measure invokes the method and returns no measurements.
func (d *Debug) Measure(ctx context.Context, newInstance Factory, method string) ([]model.Measurement, error) {
	reps := d.Reps
	if reps < 1 {
		reps = DefaultDebugReps
	}
	err := withMethod(newInstance, method, func(m benchmark.Method) error {
		for i := 0; i < reps; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := invoke(m, method, 1); err != nil {
				return err
			}
		}
		return nil
	})
	return nil, err
}
