// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterlynch/caliper/model"
)

func TestRoundTrip(t *testing.T) {
	set := model.MeasurementSet{
		Measurements: []model.Measurement{
			{Value: 1200, Weight: 4, Unit: "ns", Description: "linear runtime"},
			{Value: 900, Weight: 3, Unit: "ns", Description: "linear runtime"},
		},
		OutCharCount: 7,
		ErrCharCount: 1,
	}
	var buf bytes.Buffer
	buf.WriteString("starting scenario-0\n")
	require.NoError(t, NewWriter(&buf, DefaultMarker).WriteSet(set))
	buf.WriteString("trailing output\n")

	var pass bytes.Buffer
	out, err := Collect(&buf, DefaultMarker, &pass)
	require.NoError(t, err)
	require.NotNil(t, out.Set)
	assert.Equal(t, set, *out.Set)
	assert.NoError(t, out.SetErr)
	assert.False(t, out.Failed)
	assert.Equal(t, 2, out.TextLines)
	assert.Equal(t, "starting scenario-0\ntrailing output\n", pass.String())
}

func TestRoundTripThreeMeasurements(t *testing.T) {
	set := model.MeasurementSet{
		Measurements: []model.Measurement{
			{Value: 1000, Weight: 10, Unit: "ns", Description: "linear runtime"},
			{Value: 2100, Weight: 20, Unit: "ns", Description: "linear runtime"},
			{Value: 3050, Weight: 30, Unit: "ns", Description: "linear runtime"},
		},
		OutCharCount: 120,
		ErrCharCount: 0,
	}
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, DefaultMarker).WriteSet(set))
	out, err := Collect(&buf, DefaultMarker, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Set)
	assert.Equal(t, set, *out.Set)
	assert.Equal(t, 0, out.TextLines)
}

func TestEmptySet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, DefaultMarker).WriteSet(model.MeasurementSet{}))
	assert.Equal(t, DefaultMarker+`{"measurements":[],"outCharCount":0,"errCharCount":0}`+"\n", buf.String())

	out, err := Collect(&buf, DefaultMarker, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Set)
	assert.Empty(t, out.Set.Measurements)
}

func TestNoMarker(t *testing.T) {
	out, err := Collect(strings.NewReader("a\nb\nc"), DefaultMarker, nil)
	require.NoError(t, err)
	assert.Nil(t, out.Set)
	assert.Nil(t, out.SetErr)
	assert.Equal(t, 3, out.TextLines)
}

func TestMalformed(t *testing.T) {
	check := func(line string) {
		t.Helper()
		out, err := Collect(strings.NewReader("x\n"+line+"\n"), DefaultMarker, nil)
		require.NoError(t, err)
		assert.Nil(t, out.Set)
		var me *MalformedError
		require.True(t, errors.As(out.SetErr, &me), "%q: got %v", line, out.SetErr)
		assert.Equal(t, 2, me.Line)
	}
	check(DefaultMarker + "not json")
	check(DefaultMarker + `{"measurements":[{"value":1,"weight":0}]}`)
	check(DefaultMarker + `{"measurements":[{"value":1,"weight":1}]`)
}

func TestFirstMarkerWins(t *testing.T) {
	in := DefaultMarker + `{"measurements":[{"value":1,"weight":1,"unit":"ns"}]}` + "\n" +
		DefaultMarker + `{"measurements":[{"value":2,"weight":1,"unit":"ns"}]}` + "\n" +
		DefaultMarker + "garbage\n"
	out, err := Collect(strings.NewReader(in), DefaultMarker, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Set)
	assert.Equal(t, 1.0, out.Set.Measurements[0].Value)
	assert.Equal(t, 2, out.ExtraResults)
}

func TestFailureLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, DefaultMarker)
	require.NoError(t, w.WriteFailure(errors.New("benchmark run Op: boom\nsecond line")))
	assert.Equal(t, "!"+DefaultMarker+" benchmark run Op: boom | second line\n", buf.String())

	out, err := Collect(&buf, DefaultMarker, nil)
	require.NoError(t, err)
	assert.True(t, out.Failed)
	assert.Equal(t, "benchmark run Op: boom | second line", out.Failure)
	assert.Nil(t, out.Set)
}

func TestLongLines(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	set := model.MeasurementSet{}
	for i := 0; i < 20000; i++ {
		set.Measurements = append(set.Measurements, model.Measurement{Value: float64(i), Weight: 1, Unit: "ns"})
	}
	var buf bytes.Buffer
	buf.WriteString(long + "\n")
	require.NoError(t, NewWriter(&buf, DefaultMarker).WriteSet(set))
	buf.WriteString(long)

	var pass bytes.Buffer
	out, err := Collect(iotest.HalfReader(&buf), DefaultMarker, &pass)
	require.NoError(t, err)
	require.NotNil(t, out.Set)
	assert.Len(t, out.Set.Measurements, 20000)
	assert.Equal(t, 2, out.TextLines)
	assert.Equal(t, 2<<20+1, pass.Len())
}

func TestReadError(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("a\n"), iotest.ErrReader(boom))
	_, err := Collect(r, DefaultMarker, nil)
	assert.ErrorIs(t, err, boom)
}

func TestNoncedMarker(t *testing.T) {
	marker := DefaultMarker + "3f2a/"
	in := DefaultMarker + `{"measurements":[{"value":1,"weight":1}]}` + "\n" +
		marker + `{"measurements":[{"value":5,"weight":1}]}` + "\n"
	out, err := Collect(strings.NewReader(in), marker, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Set)
	assert.Equal(t, 5.0, out.Set.Measurements[0].Value)
	assert.Equal(t, 1, out.TextLines)
}
