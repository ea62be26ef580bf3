// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"unicode/utf8"

	"github.com/peterlynch/caliper/model"
)

// MaxParamWidth is the widest a parameter column may be. Longer values
// are truncated with a trailing "+".
const MaxParamWidth = 30

// An Axis is a scenario variable and the values it takes in a table,
// in observation order.
type Axis struct {
	Name   string
	Values []string

	// Variance is the variance, across Values, of the sum of the
	// medians of the rows with each value. Higher variance means
	// the axis explains more of the spread of the results.
	Variance float64

	// Width is the width of this axis's column.
	Width int

	order map[string]int
	get   func(*model.Scenario) string
}

func newAxis(name string, get func(*model.Scenario) string) *Axis {
	return &Axis{Name: name, order: make(map[string]int), get: get}
}

// observe records s's value for this axis.
func (a *Axis) observe(s *model.Scenario) {
	v := a.get(s)
	if _, ok := a.order[v]; !ok {
		a.order[v] = len(a.Values)
		a.Values = append(a.Values, v)
	}
}

// Value returns s's value for this axis.
func (a *Axis) Value(s *model.Scenario) string {
	return a.get(s)
}

// Index returns the position of s's value in Values.
func (a *Axis) Index(s *model.Scenario) int {
	return a.order[a.get(s)]
}

// IsSingleton reports whether the axis has only one value.
func (a *Axis) IsSingleton() bool {
	return len(a.Values) == 1
}

func (a *Axis) computeWidth() {
	w := utf8.RuneCountInString(a.Name)
	for _, v := range a.Values {
		if n := utf8.RuneCountInString(v); n > w {
			w = n
		}
	}
	a.Width = min(w, MaxParamWidth)
}

// computeVariance sets a.Variance from the rows' medians.
func (a *Axis) computeVariance(rows []*Row) {
	sums := make([]float64, len(a.Values))
	var total float64
	for _, r := range rows {
		sums[a.Index(r.Scenario)] += r.Median
		total += r.Median
	}
	mean := total / float64(len(sums))
	var v float64
	for _, s := range sums {
		d := s - mean
		v += d * d
	}
	a.Variance = v / float64(len(sums))
}

// truncate shortens s to at most n runes, marking truncation with "+".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "+"
}
