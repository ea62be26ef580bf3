// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"github.com/peterlynch/caliper/model"
)

// A ProcessedResult summarizes the normalized measurements of one
// scenario.
type ProcessedResult struct {
	Values                 []float64
	Min, Max, Median, Mean float64
	Unit, Description      string
}

// Process summarizes r. All of r's measurements must share one unit.
func Process(r *model.Result) (*ProcessedResult, error) {
	if len(r.Measurements) == 0 {
		return nil, fmt.Errorf("result %s has no measurements", r.LocalName)
	}
	first := r.Measurements[0]
	p := &ProcessedResult{
		Values:      make([]float64, len(r.Measurements)),
		Unit:        first.Unit,
		Description: first.Description,
	}
	for i, m := range r.Measurements {
		if m.Unit != first.Unit {
			return nil, fmt.Errorf("result %s mixes units %q and %q", r.LocalName, first.Unit, m.Unit)
		}
		p.Values[i] = m.Normalized()
	}
	p.Min, p.Max = stats.Bounds(p.Values)
	p.Mean = stats.Mean(p.Values)
	p.Median = Median(p.Values)
	return p, nil
}

// Median returns the middle value of xs, or the mean of the two middle
// values if len(xs) is even. xs is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
