// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/peterlynch/caliper/model"
)

// A Kind classifies a protocol line.
type Kind int

const (
	// Result lines start with the marker.
	Result Kind = iota + 1
	// Failure lines start with FailurePrefix(marker).
	Failure
)

// A Reader scans worker output for protocol lines.
//
// Its API is modeled on bufio.Scanner. Scan stops at result and
// failure lines only; every other line is copied, including its line
// terminator, to Passthrough and counted. Lines of any length are
// supported.
type Reader struct {
	// Passthrough receives ordinary lines. Nil discards them.
	// Write errors on Passthrough are ignored so that the input
	// is always drained.
	Passthrough io.Writer

	br      *bufio.Reader
	marker  []byte
	failure []byte

	lineNum   int
	textLines int
	kind      Kind
	line      []byte
	err       error
}

// A MalformedError reports a result line whose payload could not be
// decoded.
type MalformedError struct {
	Line int
	Msg  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("line %d: malformed result: %s", e.Line, e.Msg)
}

// NewReader returns a Reader that reads r looking for marker.
func NewReader(r io.Reader, marker string) *Reader {
	return &Reader{
		br:      bufio.NewReader(r),
		marker:  []byte(marker),
		failure: []byte(FailurePrefix(marker)),
	}
}

// Scan advances to the next result or failure line and reports whether
// one was found. At EOF or on an I/O error it returns false; the caller
// should then check Err.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	for {
		kind, ok := r.next()
		if !ok {
			return false
		}
		if kind != 0 {
			r.kind = kind
			return true
		}
	}
}

// next consumes one line. It returns 0 for ordinary lines.
func (r *Reader) next() (Kind, bool) {
	r.line = r.line[:0]
	var kind Kind
	first := true
	for {
		chunk, err := r.br.ReadSlice('\n')
		if first {
			if len(chunk) == 0 && err != nil {
				r.err = err
				return 0, false
			}
			first = false
			r.lineNum++
			// bufio's buffer is far longer than any marker, so
			// the first chunk always holds the whole prefix.
			switch {
			case bytes.HasPrefix(chunk, r.marker):
				kind = Result
			case bytes.HasPrefix(chunk, r.failure):
				kind = Failure
			default:
				r.textLines++
			}
		}
		if kind == 0 {
			if r.Passthrough != nil {
				r.Passthrough.Write(chunk)
			}
		} else {
			r.line = append(r.line, chunk...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			r.err = err
		}
		break
	}
	r.line = bytes.TrimRight(r.line, "\r\n")
	return kind, true
}

// Kind returns the kind of the current line.
func (r *Reader) Kind() Kind {
	return r.kind
}

// Line returns the 1-based number of the current line.
func (r *Reader) Line() int {
	return r.lineNum
}

// TextLines returns the number of ordinary lines consumed so far.
func (r *Reader) TextLines() int {
	return r.textLines
}

// Set decodes the current result line.
func (r *Reader) Set() (model.MeasurementSet, error) {
	var set model.MeasurementSet
	if r.kind != Result {
		return set, fmt.Errorf("line %d is not a result line", r.lineNum)
	}
	payload := r.line[len(r.marker):]
	if err := json.Unmarshal(payload, &set); err != nil {
		return model.MeasurementSet{}, &MalformedError{r.lineNum, err.Error()}
	}
	if err := set.Validate(); err != nil {
		return model.MeasurementSet{}, &MalformedError{r.lineNum, err.Error()}
	}
	return set, nil
}

// Message returns the message of the current failure line.
func (r *Reader) Message() string {
	if r.kind != Failure {
		return ""
	}
	return string(r.line[len(r.failure):])
}

// Err returns the first non-EOF I/O error.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

// Output summarizes one worker's complete stdout.
type Output struct {
	// Set is the first result line's payload, or nil if there was
	// none or it was malformed.
	Set *model.MeasurementSet
	// SetErr is the decoding error of the first result line.
	SetErr error
	// Failure is the message of the first failure line.
	Failure string
	Failed  bool
	// ExtraResults counts result lines after the first.
	ExtraResults int
	// TextLines counts ordinary lines.
	TextLines int
}

// Collect reads r to EOF and summarizes it. Ordinary lines are copied
// to pass. The returned error is only ever an I/O error.
func Collect(r io.Reader, marker string, pass io.Writer) (*Output, error) {
	rd := NewReader(r, marker)
	rd.Passthrough = pass
	out := new(Output)
	seen := false
	for rd.Scan() {
		switch rd.Kind() {
		case Result:
			if seen {
				out.ExtraResults++
				continue
			}
			seen = true
			set, err := rd.Set()
			if err != nil {
				out.SetErr = err
				continue
			}
			out.Set = &set
		case Failure:
			if !out.Failed {
				out.Failed = true
				out.Failure = rd.Message()
			}
		}
	}
	out.TextLines = rd.TextLines()
	return out, rd.Err()
}
