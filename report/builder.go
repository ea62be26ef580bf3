// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report turns benchmark Results into a console table.
//
// A Builder collects the Results of one instrument, combining repeated
// trials of the same scenario. ToTable then summarizes every scenario,
// finds the scenario variables that actually vary, ranks them by how
// much of the spread they explain and sorts the rows accordingly.
package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/peterlynch/caliper/benchunit"
	"github.com/peterlynch/caliper/model"
)

// A Builder collects Results for one instrument.
type Builder struct {
	instrument model.Instrument
	scenarios  []*model.Scenario
	byName     map[string]*model.Scenario
	vmNames    map[string]string
	results    map[string]*model.Result
}

// NewBuilder returns a Builder for results of instrument over
// scenarios. vms gives the display names of the scenarios' VMs.
func NewBuilder(instrument model.Instrument, scenarios []*model.Scenario, vms []model.VM) *Builder {
	b := &Builder{
		instrument: instrument,
		scenarios:  scenarios,
		byName:     make(map[string]*model.Scenario),
		vmNames:    make(map[string]string),
		results:    make(map[string]*model.Result),
	}
	for _, s := range scenarios {
		b.byName[s.LocalName] = s
	}
	for _, vm := range vms {
		name := vm.Name
		if name == "" {
			name = vm.LocalName
		}
		b.vmNames[vm.LocalName] = name
	}
	return b
}

// Add adds r to the builder, combining it with any earlier Result for
// the same scenario.
func (b *Builder) Add(r *model.Result) error {
	if r.InstrumentLocalName != b.instrument.LocalName {
		return &model.MismatchError{Field: "instrument", A: b.instrument.LocalName, B: r.InstrumentLocalName}
	}
	if _, ok := b.byName[r.ScenarioLocalName]; !ok {
		return fmt.Errorf("result %s refers to unknown scenario %q", r.LocalName, r.ScenarioLocalName)
	}
	if prev, ok := b.results[r.ScenarioLocalName]; ok {
		c, err := prev.Combine(r)
		if err != nil {
			return err
		}
		r = c
	}
	b.results[r.ScenarioLocalName] = r
	return nil
}

// TableOpts are options for building a Table.
type TableOpts struct {
	// Units maps a unit class to the unit medians are displayed
	// in. Classes without an entry are shown in the measured unit.
	Units map[benchunit.Class]string
}

// ToTable summarizes the collected results. It fails if there are no
// results or they disagree on their unit.
func (b *Builder) ToTable(opts TableOpts) (*Table, error) {
	t := &Table{Instrument: b.instrument}
	for _, s := range b.scenarios {
		r, ok := b.results[s.LocalName]
		if !ok || len(r.Measurements) == 0 {
			continue
		}
		p, err := Process(r)
		if err != nil {
			return nil, err
		}
		if len(t.Rows) == 0 {
			t.Unit, t.Description = p.Unit, p.Description
		} else if p.Unit != t.Unit {
			return nil, fmt.Errorf("scenarios %s and %s use different units %q and %q",
				t.Rows[0].Scenario.LocalName, s.LocalName, t.Unit, p.Unit)
		}
		t.Rows = append(t.Rows, &Row{Scenario: s, Result: p, Messages: r.Messages, Median: p.Median})
	}
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("no results for instrument %s", b.instrument.Name)
	}

	// Score is computed in the measured unit.
	t.Score = score(t.Rows)

	t.measuredUnit = t.Unit
	if to, ok := opts.Units[benchunit.ClassOf(t.Unit)]; ok && to != t.Unit {
		if _, err := benchunit.Factor(t.Unit, to); err != nil {
			return nil, err
		}
		t.Unit = to
		for _, r := range t.Rows {
			r.Median = t.convert(r.Median)
		}
	}
	t.Min, t.Max = math.Inf(1), math.Inf(-1)
	for _, r := range t.Rows {
		t.Min = math.Min(t.Min, r.Median)
		t.Max = math.Max(t.Max, r.Median)
	}

	t.Axes = b.axes(t.Rows)
	for _, a := range t.Axes {
		a.computeWidth()
		a.computeVariance(t.Rows)
	}
	sort.SliceStable(t.Axes, func(i, j int) bool {
		return t.Axes[i].Variance > t.Axes[j].Variance
	})
	sort.SliceStable(t.Rows, func(i, j int) bool {
		si, sj := t.Rows[i].Scenario, t.Rows[j].Scenario
		for _, a := range t.Axes {
			if d := a.Index(si) - a.Index(sj); d != 0 {
				return d < 0
			}
		}
		return false
	})
	return t, nil
}

// axes returns one Axis per scenario variable, with values observed in
// row order: the method, the VM, then user parameters and VM
// arguments by name.
func (b *Builder) axes(rows []*Row) []*Axis {
	axes := []*Axis{
		newAxis("benchmark", func(s *model.Scenario) string { return s.BenchmarkMethodName }),
		newAxis("vm", func(s *model.Scenario) string {
			if name, ok := b.vmNames[s.VMLocalName]; ok {
				return name
			}
			return s.VMLocalName
		}),
	}
	seen := map[string]bool{"benchmark": true, "vm": true}
	var user, vmArgs []string
	for _, r := range rows {
		for k := range r.Scenario.UserParameters {
			if !seen[k] {
				seen[k] = true
				user = append(user, k)
			}
		}
		for k := range r.Scenario.VMArguments {
			if !seen[k] {
				seen[k] = true
				vmArgs = append(vmArgs, k)
			}
		}
	}
	sort.Strings(user)
	sort.Strings(vmArgs)
	for _, k := range append(user, vmArgs...) {
		k := k
		axes = append(axes, newAxis(k, func(s *model.Scenario) string {
			if v, ok := s.UserParameters[k]; ok {
				return v
			}
			return s.VMArguments[k]
		}))
	}
	for _, a := range axes {
		for _, r := range rows {
			a.observe(r.Scenario)
		}
	}
	return axes
}
