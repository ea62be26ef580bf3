// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchmark defines the interface between user benchmark code
// and the harness.
//
// A Suite is the unit a user registers: it declares parameters with
// their default values, the names of its timed methods and a factory
// that builds an Instance for one resolved set of parameter values.
//
//	benchmark.Register(&benchmark.Suite{
//		Name:    "Strings",
//		Params:  []benchmark.Param{{Name: "length", Values: []string{"10", "1000"}}},
//		Methods: []string{"Concat", "Builder"},
//		New: func(env benchmark.Env) (benchmark.Instance, error) {
//			n, err := env.Params.Int("length")
//			...
//		},
//	})
//
// A method receives a repetition count and must perform the measured
// operation exactly that many times.
package benchmark

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ErrSkipScenario may be returned by Instance.SetUp to veto the
// current scenario. A vetoed scenario produces no measurement and is
// not an error.
var ErrSkipScenario = errors.New("skip this scenario")

// A Method performs the measured operation reps times.
type Method func(reps int) error

// An Instance is a benchmark configured for one scenario.
type Instance interface {
	SetUp() error
	// Method returns the timed method with the given name.
	Method(name string) (Method, bool)
	TearDown() error
}

// A Param declares a user parameter and its default values.
type Param struct {
	Name   string
	Values []string
}

// Env is what the harness hands to a Suite's factory.
//
// Stdout and Stderr are the streams benchmark code should write to.
// The harness counts the bytes written to them while measuring.
type Env struct {
	Params Params
	Stdout io.Writer
	Stderr io.Writer
}

// A Suite is a registered benchmark.
type Suite struct {
	Name string

	// Params are the declared parameters. Their Values are used
	// unless overridden on the command line.
	Params []Param

	// Methods lists the timed method names in declaration order.
	Methods []string

	// New returns an Instance for env.Params.
	New func(env Env) (Instance, error)

	// Skip, if non-nil, is consulted for every scenario before it
	// is run. Returning true drops the scenario.
	Skip func(p Params) bool
}

// Param returns the declared parameter with the given name.
func (s *Suite) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// HasMethod reports whether s declares the named method.
func (s *Suite) HasMethod(name string) bool {
	for _, m := range s.Methods {
		if m == name {
			return true
		}
	}
	return false
}

// Params holds the resolved value of every user parameter of a
// scenario.
type Params map[string]string

// String returns the raw value of parameter name.
func (p Params) String(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", fmt.Errorf("no parameter %q", name)
	}
	return v, nil
}

// Int parses parameter name as an int.
func (p Params) Int(name string) (int, error) {
	v, err := p.String(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return n, nil
}

// Float parses parameter name as a float64.
func (p Params) Float(name string) (float64, error) {
	v, err := p.String(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return f, nil
}

// Bool parses parameter name with strconv.ParseBool.
func (p Params) Bool(name string) (bool, error) {
	v, err := p.String(name)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parameter %s: %w", name, err)
	}
	return b, nil
}

// Duration parses parameter name with time.ParseDuration.
func (p Params) Duration(name string) (time.Duration, error) {
	v, err := p.String(name)
	if err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return d, nil
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Suite{}
)

// Register makes s available by name to the command line and to
// workers. It panics if s is invalid or its name is already taken.
func Register(s *Suite) {
	if err := validate(s); err != nil {
		panic("benchmark: " + err.Error())
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[s.Name]; dup {
		panic("benchmark: Register called twice for suite " + s.Name)
	}
	registry[s.Name] = s
}

func validate(s *Suite) error {
	if s == nil || s.Name == "" {
		return errors.New("suite has no name")
	}
	if s.New == nil {
		return fmt.Errorf("suite %s has no factory", s.Name)
	}
	if len(s.Methods) == 0 {
		return fmt.Errorf("suite %s has no methods", s.Name)
	}
	seen := map[string]bool{}
	for _, p := range s.Params {
		if seen[p.Name] {
			return fmt.Errorf("suite %s declares parameter %s twice", s.Name, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Lookup returns the registered suite with the given name.
func Lookup(name string) (*Suite, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

// Suites returns the names of all registered suites, sorted.
func Suites() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
