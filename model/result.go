// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"
	"time"
)

// A Result is a set of measurements of one Scenario using one
// Instrument.
type Result struct {
	LocalName           string        `json:"localName"`
	ScenarioLocalName   string        `json:"scenarioLocalName"`
	InstrumentLocalName string        `json:"instrumentLocalName"`
	Measurements        []Measurement `json:"measurements"`
	Messages            []string      `json:"messages,omitempty"`
}

// A MismatchError is returned when combining Results of different
// scenarios or instruments.
type MismatchError struct {
	Field string
	A, B  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("cannot combine results: %s %q != %q", e.Field, e.A, e.B)
}

// Combine returns a new Result holding the measurements and messages of
// r followed by those of o. r's LocalName is kept. r and o must refer to
// the same scenario and instrument.
func (r *Result) Combine(o *Result) (*Result, error) {
	if r.ScenarioLocalName != o.ScenarioLocalName {
		return nil, &MismatchError{"scenario", r.ScenarioLocalName, o.ScenarioLocalName}
	}
	if r.InstrumentLocalName != o.InstrumentLocalName {
		return nil, &MismatchError{"instrument", r.InstrumentLocalName, o.InstrumentLocalName}
	}
	c := &Result{
		LocalName:           r.LocalName,
		ScenarioLocalName:   r.ScenarioLocalName,
		InstrumentLocalName: r.InstrumentLocalName,
	}
	c.Measurements = append(append(c.Measurements, r.Measurements...), o.Measurements...)
	c.Messages = append(append(c.Messages, r.Messages...), o.Messages...)
	return c, nil
}

// A Run is the complete record of one invocation of the orchestrator.
type Run struct {
	ID          string            `json:"id"`
	Suite       string            `json:"suite"`
	Timestamp   time.Time         `json:"timestamp"`
	Environment map[string]string `json:"environment,omitempty"`
	VMs         []VM              `json:"vms"`
	Instruments []Instrument      `json:"instruments"`
	Scenarios   []*Scenario       `json:"scenarios"`
	Results     []*Result         `json:"results"`
}
