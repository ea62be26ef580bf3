// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the line protocol between a worker process
// and its parent.
//
// A worker writes any number of ordinary lines followed by at most one
// result line. A result line is the marker immediately followed by the
// JSON encoding of a model.MeasurementSet:
//
//	//ZxJ/{"measurements":[...],"outCharCount":0,"errCharCount":0}
//
// A worker that fails instead writes a failure line, which is "!",
// the marker, a space and a one-line message. Every other line belongs
// to the benchmark and is passed through untouched.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/peterlynch/caliper/model"
)

// DefaultMarker prefixes the result line.
const DefaultMarker = "//ZxJ/"

// FailurePrefix returns the prefix of failure lines for marker.
func FailurePrefix(marker string) string {
	return "!" + marker + " "
}

// A Writer writes protocol lines.
type Writer struct {
	w      io.Writer
	marker string
	buf    bytes.Buffer
}

// NewWriter returns a Writer that writes lines with the given marker
// to w.
func NewWriter(w io.Writer, marker string) *Writer {
	return &Writer{w: w, marker: marker}
}

// WriteSet writes the result line for set. The line is emitted with a
// single Write call.
func (w *Writer) WriteSet(set model.MeasurementSet) error {
	if set.Measurements == nil {
		set.Measurements = []model.Measurement{}
	}
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	w.buf.Reset()
	w.buf.WriteString(w.marker)
	w.buf.Write(data)
	w.buf.WriteByte('\n')
	_, err = w.w.Write(w.buf.Bytes())
	return err
}

// WriteFailure writes a failure line carrying err's message. Line
// breaks in the message are replaced with " | ".
func (w *Writer) WriteFailure(err error) error {
	msg := strings.ReplaceAll(err.Error(), "\r", "")
	msg = strings.ReplaceAll(msg, "\n", " | ")
	_, werr := fmt.Fprintf(w.w, "%s%s\n", FailurePrefix(w.marker), msg)
	return werr
}
