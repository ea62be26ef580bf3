// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchmark

import (
	"errors"
	"fmt"
)

// A Phase is a step of running user benchmark code.
type Phase string

const (
	PhaseNew      Phase = "new"
	PhaseSetUp    Phase = "setUp"
	PhaseRun      Phase = "run"
	PhaseTearDown Phase = "tearDown"
)

// A UserCodeError reports a failure inside user benchmark code.
type UserCodeError struct {
	Phase  Phase
	Method string // empty outside PhaseRun
	Err    error
}

func (e *UserCodeError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("benchmark %s %s: %v", e.Phase, e.Method, e.Err)
	}
	return fmt.Sprintf("benchmark %s: %v", e.Phase, e.Err)
}

func (e *UserCodeError) Unwrap() error { return e.Err }

// A PanicError carries a value recovered from a panic in user code.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Call runs fn for phase, converting returned errors and panics into a
// *UserCodeError. ErrSkipScenario is passed through unwrapped.
func Call(phase Phase, method string, fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &UserCodeError{phase, method, &PanicError{v}}
		}
	}()
	if err := fn(); err != nil {
		if errors.Is(err, ErrSkipScenario) {
			return ErrSkipScenario
		}
		return &UserCodeError{phase, method, err}
	}
	return nil
}
