// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementJSON(t *testing.T) {
	set := MeasurementSet{
		Measurements: []Measurement{{Value: 100, Weight: 10, Unit: "ns", Description: "linear runtime"}},
		OutCharCount: 3,
	}
	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `{"measurements":[{"value":100,"weight":10,"unit":"ns","description":"linear runtime"}],"outCharCount":3,"errCharCount":0}`, string(data))
	assert.Equal(t, 10.0, set.Measurements[0].Normalized())
}

func TestMeasurementValidate(t *testing.T) {
	check := func(m Measurement, ok bool) {
		t.Helper()
		err := m.Validate()
		if ok {
			assert.NoError(t, err, "%+v", m)
		} else {
			assert.Error(t, err, "%+v", m)
		}
	}
	check(Measurement{Value: 1, Weight: 1}, true)
	check(Measurement{Value: 0, Weight: 0.5}, true)
	check(Measurement{Value: 1, Weight: 0}, false)
	check(Measurement{Value: 1, Weight: -2}, false)
}

func TestPlusCharCounts(t *testing.T) {
	s := MeasurementSet{Measurements: []Measurement{{Value: 1, Weight: 1}}, OutCharCount: 1, ErrCharCount: 2}
	got := s.PlusCharCounts(10, 20)
	assert.Equal(t, int64(11), got.OutCharCount)
	assert.Equal(t, int64(22), got.ErrCharCount)
	assert.Equal(t, int64(1), s.OutCharCount, "receiver modified")
	got.Measurements[0].Value = 5
	assert.Equal(t, 1.0, s.Measurements[0].Value, "measurements aliased")
}

func TestCombine(t *testing.T) {
	a := &Result{LocalName: "r0", ScenarioLocalName: "s0", InstrumentLocalName: "micro",
		Measurements: []Measurement{{Value: 1, Weight: 1}}, Messages: []string{"a"}}
	b := &Result{LocalName: "r1", ScenarioLocalName: "s0", InstrumentLocalName: "micro",
		Measurements: []Measurement{{Value: 2, Weight: 1}, {Value: 3, Weight: 1}}}

	c, err := a.Combine(b)
	require.NoError(t, err)
	assert.Equal(t, "r0", c.LocalName)
	assert.Len(t, c.Measurements, 3)
	assert.Equal(t, []string{"a"}, c.Messages)
	assert.Len(t, a.Measurements, 1, "receiver modified")

	_, err = a.Combine(&Result{ScenarioLocalName: "s1", InstrumentLocalName: "micro"})
	var me *MismatchError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "scenario", me.Field)

	_, err = a.Combine(&Result{ScenarioLocalName: "s0", InstrumentLocalName: "memory"})
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "instrument", me.Field)
}

func TestScenarioString(t *testing.T) {
	s := &Scenario{
		BenchmarkMethodName: "Append",
		VMLocalName:         "vm-0",
		UserParameters:      map[string]string{"b": "2", "a": "1"},
		VMArguments:         map[string]string{"gc": "GOGC=50"},
	}
	assert.Equal(t, "{benchmark=Append, vm=vm-0, a=1, b=2, gc=GOGC=50}", s.String())
}
