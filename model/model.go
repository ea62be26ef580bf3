// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model defines the data exchanged between a benchmark worker,
// the parent orchestrator and the report engine.
//
// A worker produces a MeasurementSet for exactly one Scenario. The
// parent wraps each MeasurementSet in a Result, combines the Results of
// repeated trials of the same Scenario, and records everything that was
// run in a Run.
//
// All types here serialize to JSON with lower camel case field names.
// That encoding is the payload of the worker's marker line and the
// format of persisted runs.
package model

import (
	"fmt"
	"math"
)

// A Measurement is a single raw observation taken by a measurer.
//
// Value is the total observed over Weight repetitions, so the
// per-repetition value is Value/Weight.
type Measurement struct {
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
	Unit        string  `json:"unit"`
	Description string  `json:"description"`
}

// Normalized returns the per-repetition value of m.
func (m Measurement) Normalized() float64 {
	return m.Value / m.Weight
}

// Validate reports whether m can be normalized.
func (m Measurement) Validate() error {
	if !(m.Weight > 0) || math.IsInf(m.Weight, 0) {
		return fmt.Errorf("measurement weight must be positive, got %v", m.Weight)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fmt.Errorf("measurement value must be finite, got %v", m.Value)
	}
	return nil
}

// A MeasurementSet is the output of one measurer run.
//
// OutCharCount and ErrCharCount are the number of bytes the benchmark
// itself wrote to its stdout and stderr while it was being measured.
type MeasurementSet struct {
	Measurements []Measurement `json:"measurements"`
	OutCharCount int64         `json:"outCharCount"`
	ErrCharCount int64         `json:"errCharCount"`
}

// PlusCharCounts returns a copy of s with out and err added to its
// character counts. The receiver is not modified.
func (s MeasurementSet) PlusCharCounts(out, err int64) MeasurementSet {
	ms := make([]Measurement, len(s.Measurements))
	copy(ms, s.Measurements)
	return MeasurementSet{
		Measurements: ms,
		OutCharCount: s.OutCharCount + out,
		ErrCharCount: s.ErrCharCount + err,
	}
}

// Validate checks every measurement in s.
func (s MeasurementSet) Validate() error {
	for i, m := range s.Measurements {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("measurement %d: %w", i, err)
		}
	}
	return nil
}
