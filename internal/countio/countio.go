// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package countio provides writers that count the bytes passing
// through them.
package countio

import (
	"io"
	"sync/atomic"
)

// A Writer forwards writes to an underlying writer and counts the bytes
// successfully written. It is safe for concurrent use if the underlying
// writer is.
type Writer struct {
	w io.Writer
	n atomic.Int64
}

// NewWriter returns a counting Writer wrapping w. A nil w discards.
func NewWriter(w io.Writer) *Writer {
	if w == nil {
		w = io.Discard
	}
	return &Writer{w: w}
}

func (c *Writer) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

// Count returns the number of bytes written so far.
func (c *Writer) Count() int64 {
	return c.n.Load()
}
