// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"
	"sort"
	"strings"
)

// A Scenario is one point in the benchmark matrix: a method, a VM and
// one value for every user parameter and every VM argument.
//
// Scenarios are immutable once built.
type Scenario struct {
	LocalName           string            `json:"localName"`
	BenchmarkMethodName string            `json:"benchmarkMethodName"`
	VMLocalName         string            `json:"vmLocalName"`
	UserParameters      map[string]string `json:"userParameters"`
	VMArguments         map[string]string `json:"vmArguments"`
}

// String returns a compact, deterministic description of s, such as
// "{benchmark=Append, vm=go, length=10}".
func (s *Scenario) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{benchmark=%s, vm=%s", s.BenchmarkMethodName, s.VMLocalName)
	for _, m := range []map[string]string{s.UserParameters, s.VMArguments} {
		for _, k := range sortedKeys(m) {
			fmt.Fprintf(&b, ", %s=%s", k, m[k])
		}
	}
	b.WriteString("}")
	return b.String()
}

// A VM is a target binary that runs the worker.
//
// An empty Executable means the current process's executable.
type VM struct {
	LocalName  string   `json:"localName"`
	Name       string   `json:"name"`
	Executable string   `json:"executable,omitempty"`
	Args       []string `json:"args,omitempty"`
}

// An Instrument names a measurer configuration.
type Instrument struct {
	LocalName string            `json:"localName"`
	Name      string            `json:"name"`
	Measurer  string            `json:"measurer"`
	Options   map[string]string `json:"options,omitempty"`
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
