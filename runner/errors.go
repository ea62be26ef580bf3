// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runner

import (
	"fmt"
	"strings"
)

// A Kind classifies a worker failure.
type Kind int

const (
	// KindStart means the worker process could not be started.
	KindStart Kind = iota + 1
	// KindBenchmarkFailed means the worker reported a failure line.
	KindBenchmarkFailed
	// KindNoMarker means the worker exited non-zero without a
	// result line.
	KindNoMarker
	// KindMalformed means the result line could not be decoded.
	KindMalformed
	// KindTimeout means the worker exceeded its time limit.
	KindTimeout
	// KindIO means the worker's output could not be read.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start failed"
	case KindBenchmarkFailed:
		return "benchmark failed"
	case KindNoMarker:
		return "no result"
	case KindMalformed:
		return "malformed result"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "output read failed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// A WorkerError reports a failed trial of one scenario.
type WorkerError struct {
	Kind     Kind
	Scenario string // scenario local name
	Desc     string // human readable scenario description
	Trial    int
	ExitCode int // -1 if the process did not exit normally
	Detail   string
	Stderr   string // tail of the worker's stderr
	Err      error
}

func (e *WorkerError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s trial %d: %s", e.Scenario, e.Desc, e.Trial+1, e.Kind)
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " (exit status %d)", e.ExitCode)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *WorkerError) Unwrap() error { return e.Err }
