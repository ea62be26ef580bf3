// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scenario expands a benchmark selection into the matrix of
// concrete scenarios to run.
//
// The matrix is the cross product of the VMs, the selected methods,
// every user parameter's values and every VM argument's values. User
// parameters and VM arguments share one namespace: a name may appear in
// at most one of them.
package scenario

import (
	"fmt"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/model"
)

// Reserved names cannot be used as parameter or VM argument names
// because the report uses them as axis names.
var Reserved = []string{"benchmark", "vm"}

// DefaultVM is the VM used when a selection names none. Its empty
// Executable means the current process.
var DefaultVM = model.VM{LocalName: "default", Name: "default"}

// A ConfigError reports an invalid benchmark selection.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{fmt.Sprintf(format, args...)}
}

// A Selection describes what to run.
type Selection struct {
	Methods        []string
	VMs            []model.VM
	UserParameters Values
	VMArguments    Values

	// Skip, if non-nil, vetoes a scenario before it is run.
	Skip func(*model.Scenario) bool
}

// A Matrix is the result of expanding a Selection.
type Matrix struct {
	Scenarios []*model.Scenario
	VMs       []model.VM
	// Skipped is the number of scenarios vetoed by Selection.Skip.
	Skipped int
}

// Build expands sel into its scenarios.
//
// Scenarios are generated with VMs outermost, then methods, then user
// parameters in name order and VM arguments in name order, with the
// last name varying fastest. Local names are assigned by position
// among the scenarios that survive the skip hook, so the same
// selection always produces the same names.
func Build(sel Selection) (*Matrix, error) {
	if len(sel.Methods) == 0 {
		return nil, configErrorf("no benchmark methods selected")
	}
	vms := sel.VMs
	if len(vms) == 0 {
		vms = []model.VM{DefaultVM}
	}
	seenVM := map[string]bool{}
	for _, vm := range vms {
		if vm.LocalName == "" {
			return nil, configErrorf("VM %q has no local name", vm.Name)
		}
		if seenVM[vm.LocalName] {
			return nil, configErrorf("duplicate VM %q", vm.LocalName)
		}
		seenVM[vm.LocalName] = true
	}
	for _, name := range sel.UserParameters.Names() {
		if sel.VMArguments.Has(name) {
			return nil, configErrorf("name %q is both a user parameter and a VM argument", name)
		}
	}
	for _, vals := range []*Values{&sel.UserParameters, &sel.VMArguments} {
		for _, name := range vals.Names() {
			if contains(Reserved, name) {
				return nil, configErrorf("%q is a reserved name", name)
			}
			if len(vals.Get(name)) == 0 {
				return nil, configErrorf("%q has no values", name)
			}
		}
	}

	userCombos := product(&sel.UserParameters)
	vmCombos := product(&sel.VMArguments)
	m := &Matrix{VMs: vms}
	for _, vm := range vms {
		for _, method := range sel.Methods {
			for _, user := range userCombos {
				for _, vmArgs := range vmCombos {
					s := &model.Scenario{
						BenchmarkMethodName: method,
						VMLocalName:         vm.LocalName,
						UserParameters:      user,
						VMArguments:         vmArgs,
					}
					if sel.Skip != nil && sel.Skip(s) {
						m.Skipped++
						continue
					}
					s.LocalName = fmt.Sprintf("scenario-%d", len(m.Scenarios))
					m.Scenarios = append(m.Scenarios, s)
				}
			}
		}
	}
	if len(m.Scenarios) == 0 {
		return nil, configErrorf("no valid scenarios (%d skipped)", m.Skipped)
	}
	return m, nil
}

// product returns every combination of one value per name. It returns
// a single empty combination for empty v.
func product(v *Values) []map[string]string {
	out := []map[string]string{{}}
	for _, name := range v.Names() {
		var next []map[string]string
		for _, prefix := range out {
			for _, val := range v.Get(name) {
				c := make(map[string]string, len(prefix)+1)
				for k, x := range prefix {
					c[k] = x
				}
				c[name] = val
				next = append(next, c)
			}
		}
		out = next
	}
	return out
}

// Resolve applies command line overrides to suite's declared
// parameters and method list.
//
// Every declared parameter starts with its default values; overrides
// replace them. Overriding an undeclared parameter, selecting an
// unknown method or leaving a parameter without values is a
// ConfigError. An empty methods list selects all of suite's methods.
func Resolve(suite *benchmark.Suite, methods []string, overrides Values) ([]string, Values, error) {
	var params Values
	for _, p := range suite.Params {
		params.Add(p.Name, p.Values...)
	}
	for _, name := range overrides.Names() {
		if _, ok := suite.Param(name); !ok {
			return nil, Values{}, configErrorf("suite %s has no parameter %q", suite.Name, name)
		}
		params.Set(name, overrides.Get(name)...)
	}
	for _, name := range params.Names() {
		if len(params.Get(name)) == 0 {
			return nil, Values{}, configErrorf("parameter %q of suite %s has no values", name, suite.Name)
		}
	}
	if len(methods) == 0 {
		methods = suite.Methods
	}
	var sel []string
	for _, m := range methods {
		if !suite.HasMethod(m) {
			return nil, Values{}, configErrorf("suite %s has no method %q", suite.Name, m)
		}
		if !contains(sel, m) {
			sel = append(sel, m)
		}
	}
	return sel, params, nil
}

// SuiteSkip adapts suite's Skip hook to a Selection.Skip function.
func SuiteSkip(suite *benchmark.Suite) func(*model.Scenario) bool {
	if suite.Skip == nil {
		return nil
	}
	return func(s *model.Scenario) bool {
		return suite.Skip(benchmark.Params(s.UserParameters))
	}
}
