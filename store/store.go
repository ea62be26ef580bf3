// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store persists finished benchmark runs.
//
// A destination string selects the backend:
//
//	""                      the directory DefaultDir
//	dir/                    a new uniquely named JSON file in dir
//	file.json               the JSON file, overwritten
//	sqlite3://path          an SQLite database
//	mysql://dsn             a MySQL database (go-sql-driver DSN)
//	postgres://...          a PostgreSQL database (lib/pq URL)
//	gs://bucket/object      a Google Cloud Storage object
//	gs://bucket/prefix/     a new uniquely named object under prefix
//
// An existing directory is treated as if it had a trailing slash.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterlynch/caliper/model"
)

// DefaultDir is where runs are saved when no destination is given.
const DefaultDir = "caliper-results"

// A Store saves runs.
type Store interface {
	// Save persists run and returns a description of where.
	Save(ctx context.Context, run *model.Run) (string, error)
	Close() error
}

// Open returns the Store for dest.
func Open(ctx context.Context, dest string) (Store, error) {
	switch {
	case dest == "":
		return &FileStore{Path: DefaultDir + string(filepath.Separator)}, nil
	case strings.HasPrefix(dest, "gs://"):
		return OpenGCS(ctx, dest)
	case strings.HasPrefix(dest, "sqlite3://"):
		return OpenSQL(ctx, "sqlite3", strings.TrimPrefix(dest, "sqlite3://"))
	case strings.HasPrefix(dest, "mysql://"):
		return OpenSQL(ctx, "mysql", strings.TrimPrefix(dest, "mysql://"))
	case strings.HasPrefix(dest, "postgres://"), strings.HasPrefix(dest, "postgresql://"):
		return OpenSQL(ctx, "postgres", dest)
	}
	if fi, err := os.Stat(dest); err == nil && fi.IsDir() && !isDirPath(dest) {
		dest += string(filepath.Separator)
	}
	return &FileStore{Path: dest}, nil
}

// UniqueName returns a file name for run that does not collide with
// other runs.
func UniqueName(run *model.Run) string {
	ts := run.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	id := strings.ReplaceAll(run.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	suite := run.Suite
	if suite == "" {
		suite = "run"
	}
	return fmt.Sprintf("%s.%s.%s.json", suite, ts.UTC().Format("2006-01-02T15-04-05Z"), id)
}

func isDirPath(p string) bool {
	return strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(filepath.Separator))
}
