// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterlynch/caliper/cli"
	"github.com/peterlynch/caliper/store"
	"github.com/peterlynch/caliper/worker"
)

func TestMain(m *testing.M) {
	if worker.IsWorker() {
		os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

func caliperdemo(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	// Keep the user's configuration out of the test.
	t.Setenv("HOME", t.TempDir())
	var out, errb bytes.Buffer
	code = cli.Main(args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestStrings(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "strings.json")
	code, stdout, stderr := caliperdemo(t, "--warmup", "5ms", "--run", "30ms", "-t", "1",
		"-b", "Concat", "-D", "length=10,100", "-o", dest, "Strings")
	require.Equal(t, 0, code, "stderr:\n%s", stderr)

	lines := strings.Split(stdout, "\n")
	require.Greater(t, len(lines), 3, stdout)
	assert.Equal(t, "Results for micro:", lines[0])
	assert.Regexp(t, `^length +ns linear runtime$`, lines[1])
	assert.Regexp(t, `^ +10 +[0-9.]+ \S+$`, lines[2])
	assert.Regexp(t, `^ +100 +[0-9.]+ \S+$`, lines[3])

	run, err := store.ReadFile(dest)
	require.NoError(t, err)
	require.Len(t, run.Results, 2)
	assert.Equal(t, "10", run.Scenarios[0].UserParameters["length"])
	assert.Equal(t, "100", run.Scenarios[1].UserParameters["length"])
	for _, r := range run.Results {
		assert.NotEmpty(t, r.Measurements)
	}
}

func TestDemoDryRun(t *testing.T) {
	code, stdout, stderr := caliperdemo(t, "-n", "Demo")
	require.Equal(t, 0, code, "stderr:\n%s", stderr)
	// string=abc with number=1 vetoes itself in SetUp.
	assert.Equal(t, "Dry run: 160 scenarios ran, 32 skipped.\n", stdout)
}

func TestDemoVeto(t *testing.T) {
	code, stdout, stderr := caliperdemo(t, "-i", "instances", "-o", t.TempDir(),
		"-b", "Something", "-D", "string=abc,def", "-D", "number=1",
		"-D", "foo=FOO", "-D", "money=0.00", "-D", "duration=1ns", "Demo")
	require.Equal(t, 0, code, "stderr:\n%s", stderr)
	assert.Contains(t, stdout, "Results for instances:")
	assert.Contains(t, stdout, "string: def")
}
