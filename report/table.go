// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/peterlynch/caliper/benchunit"
	"github.com/peterlynch/caliper/model"
)

// BarGraphWidth is the width of the bar graph column.
const BarGraphWidth = 30

// A Table is the summary of one instrument's results.
type Table struct {
	Instrument model.Instrument

	// Unit and Description describe every row's Median.
	Unit, Description string

	// Axes are all scenario variables, most influential first.
	// Singleton axes have no influence and sort last.
	Axes []*Axis

	// Rows are sorted lexicographically by Axes.
	Rows []*Row

	// Min and Max are the extremes of the rows' medians.
	Min, Max float64

	// Score is the log-scale aggregate of the medians in the
	// measured unit, or NaN if any median is not positive.
	Score float64

	measuredUnit string
}

// convert converts x from the measured unit to t.Unit.
func (t *Table) convert(x float64) float64 {
	if t.measuredUnit == "" || t.measuredUnit == t.Unit {
		return x
	}
	y, err := benchunit.Convert(x, t.measuredUnit, t.Unit)
	if err != nil {
		return x
	}
	return y
}

// A Row is one scenario of a Table.
type Row struct {
	Scenario *model.Scenario
	Result   *ProcessedResult
	Messages []string

	// Median is Result.Median converted to the table's unit.
	Median float64
}

// Varying returns the axes with more than one value, in table order.
func (t *Table) Varying() []*Axis {
	var out []*Axis
	for _, a := range t.Axes {
		if !a.IsSingleton() {
			out = append(out, a)
		}
	}
	return out
}

// Singletons returns the axes with exactly one value.
func (t *Table) Singletons() []*Axis {
	var out []*Axis
	for _, a := range t.Axes {
		if a.IsSingleton() {
			out = append(out, a)
		}
	}
	return out
}

// TextOpts are options for ToText.
type TextOpts struct {
	// Score prints the aggregate score after the table.
	Score bool

	// OutChars and ErrChars, if non-zero, print a note that the
	// benchmarks wrote to their output streams.
	OutChars, ErrChars int64
}

// ToText renders t as text. Bars are drawn only when there is more
// than one row.
func (t *Table) ToText(w io.Writer, opts TextOpts) error {
	bw := bufio.NewWriter(w)
	varying := t.Varying()
	showGraphs := len(t.Rows) > 1

	fmt.Fprintf(bw, "Results for %s:\n", t.Instrument.Name)
	for _, a := range varying {
		fmt.Fprintf(bw, "%*s ", a.Width, a.Name)
	}
	width := max(10, len(t.Unit))
	fmt.Fprintf(bw, "%*s", width, t.Unit)
	if showGraphs {
		fmt.Fprintf(bw, " %s", t.Description)
	}
	fmt.Fprintln(bw)

	for _, r := range t.Rows {
		for _, a := range varying {
			fmt.Fprintf(bw, "%*s ", a.Width, truncate(a.Value(r.Scenario), a.Width))
		}
		fmt.Fprintf(bw, "%*.3f", width, r.Median)
		if showGraphs {
			fmt.Fprintf(bw, " %s", t.bar(r.Median))
		}
		fmt.Fprintln(bw)
	}

	if opts.Score {
		if math.IsNaN(t.Score) {
			fmt.Fprintf(bw, "\nScore: n/a (non-positive medians)\n")
		} else {
			fmt.Fprintf(bw, "\nScore: %.3f\n", t.Score)
		}
	}

	fmt.Fprintln(bw)
	for _, a := range t.Singletons() {
		fmt.Fprintf(bw, "%s: %s\n", a.Name, a.Values[0])
	}
	if opts.OutChars > 0 || opts.ErrChars > 0 {
		fmt.Fprintf(bw, "\nNote: benchmarks wrote %d bytes to stdout and %d bytes to stderr; run with --verbose to see them.\n",
			opts.OutChars, opts.ErrChars)
	}
	return bw.Flush()
}

// bar returns the bar graph for value.
func (t *Table) bar(value float64) string {
	if t.Min >= 0 {
		n := 1
		if t.Max > 0 {
			n = int(math.Round(value / t.Max * BarGraphWidth))
		}
		n = max(1, min(BarGraphWidth, n))
		return strings.Repeat("=", n)
	}
	// A diverging chart around the zero column:
	//    ========0
	//       =====0
	//            0========
	zero := BarGraphWidth
	if t.Max > 0 {
		zero = int(math.Round(-t.Min * BarGraphWidth / (t.Max - t.Min)))
		zero = max(0, min(BarGraphWidth, zero))
	}
	if value < 0 {
		n := int(math.Ceil(value / t.Min * float64(zero)))
		n = max(0, min(zero, n))
		return strings.Repeat(" ", zero-n) + strings.Repeat("=", n) + "0"
	}
	n := 0
	if t.Max > 0 {
		n = int(math.Floor(value / t.Max * float64(BarGraphWidth-zero)))
		n = max(0, min(BarGraphWidth-zero, n))
	}
	return strings.Repeat(" ", zero) + "0" + strings.Repeat("=", n)
}

// ToCSV writes t as CSV: one column per axis, then the summary
// statistics in the table's unit.
func (t *Table) ToCSV(w io.Writer) error {
	o := csv.NewWriter(w)
	var hdr []string
	for _, a := range t.Axes {
		hdr = append(hdr, a.Name)
	}
	hdr = append(hdr, "median", "min", "max", "mean", "unit", "samples")
	o.Write(hdr)

	f := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
	for _, r := range t.Rows {
		row := make([]string, 0, len(hdr))
		for _, a := range t.Axes {
			row = append(row, a.Value(r.Scenario))
		}
		p := r.Result
		row = append(row, f(r.Median), f(t.convert(p.Min)), f(t.convert(p.Max)), f(t.convert(p.Mean)), t.Unit, strconv.Itoa(len(p.Values)))
		o.Write(row)
	}
	o.Flush()
	return o.Error()
}
