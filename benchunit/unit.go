// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchunit converts measurement values between the units
// reported by the measurers and the units requested for display.
//
// Every measurer reports in a base unit: "ns" for time, "instances"
// for allocation counts and "B" for allocated bytes. Each base unit
// has a small family of scaled units, such as "us", "K instances" or
// "MB".
package benchunit

import (
	"fmt"
	"strings"
	"sync"
)

// A Class is a family of units that can be converted into each other.
type Class int

const (
	// Unknown is the class of any unit not listed in this package.
	// Values in unknown units are never converted.
	Unknown Class = iota
	Time
	Instances
	Memory
)

func (c Class) String() string {
	switch c {
	case Time:
		return "time"
	case Instances:
		return "instances"
	case Memory:
		return "memory"
	}
	return "unknown"
}

type unitEntry struct {
	class  Class
	factor float64 // multiplier from this unit to the base unit
}

var units = map[string]unitEntry{
	"ns": {Time, 1},
	"us": {Time, 1e3},
	"ms": {Time, 1e6},
	"s":  {Time, 1e9},

	"instances":   {Instances, 1},
	"k instances": {Instances, 1e3},
	"m instances": {Instances, 1e6},
	"b instances": {Instances, 1e9},

	"b":  {Memory, 1},
	"kb": {Memory, 1 << 10},
	"mb": {Memory, 1 << 20},
	"gb": {Memory, 1 << 30},
}

// Base returns the base unit of class c.
func (c Class) Base() string {
	switch c {
	case Time:
		return "ns"
	case Instances:
		return "instances"
	case Memory:
		return "B"
	}
	return ""
}

// ClassOf returns the class of unit. Unit names are case-insensitive.
func ClassOf(unit string) Class {
	return units[strings.ToLower(unit)].class
}

type factorEntry struct {
	factor float64
	err    error
}

var factorCache sync.Map // "from\x00to" -> *factorEntry

// Factor returns the multiplier that converts a value in unit from to
// a value in unit to. Both units must belong to the same known class.
func Factor(from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	key := from + "\x00" + to
	if fe, ok := factorCache.Load(key); ok {
		fe := fe.(*factorEntry)
		return fe.factor, fe.err
	}
	f, err := factor(from, to)
	factorCache.Store(key, &factorEntry{f, err})
	return f, err
}

func factor(from, to string) (float64, error) {
	fe, te, err := lookup(from, to)
	if err != nil {
		return 0, err
	}
	return fe.factor / te.factor, nil
}

func lookup(from, to string) (fe, te unitEntry, err error) {
	fe, ok := units[strings.ToLower(from)]
	if !ok {
		return fe, te, fmt.Errorf("unknown unit %q", from)
	}
	te, ok = units[strings.ToLower(to)]
	if !ok {
		return fe, te, fmt.Errorf("unknown unit %q", to)
	}
	if fe.class != te.class {
		return fe, te, fmt.Errorf("cannot convert %s unit %q to %s unit %q", fe.class, from, te.class, to)
	}
	return fe, te, nil
}

// Convert converts value from unit from to unit to. It scales through
// the base unit rather than by Factor so that exact conversions stay
// exact.
func Convert(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	fe, te, err := lookup(from, to)
	if err != nil {
		return 0, err
	}
	return value * fe.factor / te.factor, nil
}
