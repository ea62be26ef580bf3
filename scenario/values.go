// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scenario

import (
	"sort"
	"strings"
)

// Values is an ordered multimap from parameter names to candidate
// values. Names iterate in natural (sorted) order; each name's values
// keep the order they were added in, without duplicates.
//
// The zero Values is empty and ready to use.
type Values struct {
	vals map[string][]string
}

// Add appends vals to name's values, skipping values already present.
// Adding no values still records name.
func (v *Values) Add(name string, vals ...string) {
	if v.vals == nil {
		v.vals = make(map[string][]string)
	}
	cur := v.vals[name]
	if cur == nil {
		cur = []string{}
	}
	for _, x := range vals {
		if !contains(cur, x) {
			cur = append(cur, x)
		}
	}
	v.vals[name] = cur
}

// Set replaces name's values.
func (v *Values) Set(name string, vals ...string) {
	if v.vals != nil {
		delete(v.vals, name)
	}
	v.Add(name, vals...)
}

// Get returns name's values in insertion order.
func (v *Values) Get(name string) []string {
	return v.vals[name]
}

// Has reports whether name has been added.
func (v *Values) Has(name string) bool {
	_, ok := v.vals[name]
	return ok
}

// Names returns the parameter names in sorted order.
func (v *Values) Names() []string {
	names := make([]string, 0, len(v.vals))
	for name := range v.vals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of parameter names.
func (v *Values) Len() int {
	return len(v.vals)
}

// ParseAssignment parses "name=v1<delim>v2..." as used by the -D and
// -J flags. An empty delimiter means ",".
func ParseAssignment(s, delim string) (name string, vals []string, err error) {
	if delim == "" {
		delim = ","
	}
	name, rest, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, &ConfigError{"expected name=value, got " + s}
	}
	return name, strings.Split(rest, delim), nil
}

func contains(xs []string, x string) bool {
	for _, y := range xs {
		if x == y {
			return true
		}
	}
	return false
}
