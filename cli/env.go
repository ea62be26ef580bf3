// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"os"
	"runtime"
	"strconv"
)

// environment returns a fingerprint of the machine running the
// orchestrator.
func environment() map[string]string {
	env := map[string]string{
		"go.version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       strconv.Itoa(runtime.NumCPU()),
		"gomaxprocs": strconv.Itoa(runtime.GOMAXPROCS(0)),
	}
	if host, err := os.Hostname(); err == nil {
		env["host"] = host
	}
	return env
}
