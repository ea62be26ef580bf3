// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/peterlynch/caliper/model"
)

// A GCSStore uploads runs to Google Cloud Storage using Application
// Default Credentials.
type GCSStore struct {
	client *storage.Client
	Bucket string
	// Object is the object name, or a prefix ending in "/".
	Object string
}

// ParseGCS splits a gs://bucket/object URL.
func ParseGCS(dest string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(dest, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URL: %q", dest)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", dest)
	}
	if object == "" {
		object = DefaultDir + "/"
	}
	return bucket, object, nil
}

// OpenGCS returns a GCSStore for a gs:// destination.
func OpenGCS(ctx context.Context, dest string) (*GCSStore, error) {
	bucket, object, err := ParseGCS(dest)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStore{client: client, Bucket: bucket, Object: object}, nil
}

// objectName returns the object run is written to.
func (s *GCSStore) objectName(run *model.Run) string {
	if strings.HasSuffix(s.Object, "/") {
		return path.Join(s.Object, UniqueName(run))
	}
	return s.Object
}

func (s *GCSStore) Save(ctx context.Context, run *model.Run) (string, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", err
	}
	name := s.objectName(run)
	w := s.client.Bucket(s.Bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("uploading gs://%s/%s: %w", s.Bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("uploading gs://%s/%s: %w", s.Bucket, name, err)
	}
	return "gs://" + s.Bucket + "/" + name, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
