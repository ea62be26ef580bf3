// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Caliperdemo runs a few example benchmark suites under caliper.
//
// Usage:
//
//	caliperdemo [flags] suite
//
// For example,
//
//	caliperdemo -D length=10,1000 -J gc=GOGC=50,GOGC=off Strings
//
// measures both string building methods at two lengths with two
// garbage collector settings. See "caliperdemo -h" for the flags.
package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/peterlynch/caliper/benchmark"
	"github.com/peterlynch/caliper/cli"
)

func init() {
	benchmark.Register(&benchmark.Suite{
		Name: "Strings",
		Params: []benchmark.Param{
			{Name: "length", Values: []string{"10", "100"}},
		},
		Methods: []string{"Concat", "Builder", "Buffer"},
		New:     newStrings,
	})
	benchmark.Register(&benchmark.Suite{
		Name: "Demo",
		Params: []benchmark.Param{
			{Name: "string", Values: []string{"abc", "def", "xyz"}},
			{Name: "number", Values: []string{"1", "2"}},
			{Name: "foo", Values: []string{"FOO", "BAR", "BAZ", "QUX"}},
			{Name: "money", Values: []string{"0.00", "123.45"}},
			{Name: "duration", Values: []string{"1ns", "2m"}},
		},
		Methods: []string{"Something", "SomethingElse"},
		New:     newDemo,
	})
}

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}

var sink int

func newStrings(env benchmark.Env) (benchmark.Instance, error) {
	n, err := env.Params.Int("length")
	if err != nil {
		return nil, err
	}
	const piece = "x"
	return &benchmark.Funcs{
		Methods: map[string]benchmark.Method{
			"Concat": func(reps int) error {
				for i := 0; i < reps; i++ {
					s := ""
					for j := 0; j < n; j++ {
						s += piece
					}
					sink += len(s)
				}
				return nil
			},
			"Builder": func(reps int) error {
				for i := 0; i < reps; i++ {
					var b strings.Builder
					for j := 0; j < n; j++ {
						b.WriteString(piece)
					}
					sink += b.Len()
				}
				return nil
			},
			"Buffer": func(reps int) error {
				for i := 0; i < reps; i++ {
					var b bytes.Buffer
					for j := 0; j < n; j++ {
						b.WriteString(piece)
					}
					sink += b.Len()
				}
				return nil
			},
		},
	}, nil
}

func newDemo(env benchmark.Env) (benchmark.Instance, error) {
	s, err := env.Params.String("string")
	if err != nil {
		return nil, err
	}
	number, err := env.Params.Int("number")
	if err != nil {
		return nil, err
	}
	if _, err := env.Params.Float("money"); err != nil {
		return nil, err
	}
	if _, err := env.Params.Duration("duration"); err != nil {
		return nil, err
	}
	switch foo, _ := env.Params.String("foo"); foo {
	case "FOO", "BAR", "BAZ", "QUX":
	default:
		return nil, fmt.Errorf("bad foo %q", foo)
	}
	return &benchmark.Funcs{
		Setup: func() error {
			if s == "abc" && number == 1 {
				return benchmark.ErrSkipScenario
			}
			return nil
		},
		Methods: map[string]benchmark.Method{
			"Something": func(reps int) error {
				dummy := 0
				for i := 0; i < reps; i++ {
					dummy += i
				}
				sink += dummy
				return nil
			},
			"SomethingElse": func(reps int) error {
				dummy := 0
				for i := 0; i < reps; i++ {
					dummy -= i
				}
				sink += dummy
				return nil
			},
		},
	}, nil
}
