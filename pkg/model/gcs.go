// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const gcsScheme = "gs://"

func isGCSPath(path string) bool {
	return strings.HasPrefix(path, gcsScheme)
}

// splitGCSPath splits "gs://<bucket>/<object>" into its bucket and object names.
func splitGCSPath(path string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(path, gcsScheme)
	bucket, object, found := strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", errors.Errorf("invalid GCS path %q, expected \"gs://<bucket>/<object>\"", path)
	}
	return bucket, object, nil
}

// readGCSObject returns the contents of an object stored in Google Cloud Storage.
// It can be replaced in tests.
var readGCSObject = func(ctx context.Context, bucket, object string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating GCS storage client")
	}
	defer func() { _ = client.Close() }()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// readGCS reads the graph description stored at the "gs://" URL gcsURL.
func readGCS(ctx context.Context, gcsURL string) ([]byte, error) {
	log := klog.FromContext(ctx)
	bucket, object, err := splitGCSPath(gcsURL)
	if err != nil {
		return nil, err
	}

	log.Info("downloading graph from GCS", "url", gcsURL)
	startedAt := time.Now()
	src, err := readGCSObject(ctx, bucket, object)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, errors.Wrapf(ErrFileNotFound, "graph object %q", gcsURL)
		}
		return nil, errors.Wrapf(err, "reading graph object %q", gcsURL)
	}
	log.Info("downloaded graph from GCS", "url", gcsURL, "bytes", len(src), "duration", time.Since(startedAt))
	return src, nil
}
