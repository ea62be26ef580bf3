// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
)

// progress adapts a progress bar to runner.Progress.
type progress struct {
	bar *pb.ProgressBar
}

// newProgress returns a progress bar over total trials drawn on w, or
// nil if w is not a terminal or enabled is false.
func newProgress(w io.Writer, total int, enabled bool) *progress {
	if !enabled || !isTerminal(w) {
		return nil
	}
	bar := pb.New(total)
	bar.SetWriter(w)
	bar.Start()
	return &progress{bar: bar}
}

func (p *progress) Increment() {
	p.bar.Increment()
}

func (p *progress) finish() {
	if p != nil {
		p.bar.Finish()
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
