// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peterlynch/caliper/model"
)

// A FileStore writes runs as indented JSON. A Path ending in a
// separator is a directory that receives one new file per run.
type FileStore struct {
	Path string
}

func (s *FileStore) Save(ctx context.Context, run *model.Run) (string, error) {
	path := s.Path
	if isDirPath(path) {
		if err := os.MkdirAll(path, 0o777); err != nil {
			return "", err
		}
		path = filepath.Join(path, UniqueName(run))
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", err
	}
	data = append(data, '\n')

	// Write to a temporary file and rename so that readers never
	// see a partial run.
	f, err := os.CreateTemp(filepath.Dir(path), ".caliper-*.json")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("saving run: %w", err)
	}
	return path, nil
}

func (s *FileStore) Close() error { return nil }

// ReadFile reads a run written by a FileStore.
func ReadFile(path string) (*model.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	run := new(model.Run)
	if err := json.Unmarshal(data, run); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return run, nil
}
