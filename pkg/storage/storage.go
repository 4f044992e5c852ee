// Package storage keeps named snapshot blobs on local disk or in an
// S3-compatible object store.
//
// Speaker profile snapshots are small and written whole, so the
// interface moves complete byte slices rather than streams. Names are
// slash-separated and must satisfy [fs.ValidPath].
//
// Use [Open] to pick a backend from a location string:
//
//	st, err := storage.Open(ctx, "s3://bucket/profiles", storage.S3Options{Region: "us-east-1"})
//	st, err := storage.Open(ctx, "/var/lib/diarize", storage.S3Options{})
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
)

// ErrInvalidName is returned for names that are empty, absolute or
// escape the store root.
var ErrInvalidName = errors.New("storage: invalid name")

// FileStore stores whole blobs by name.
//
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Get returns the blob contents. A missing blob yields an error
	// wrapping fs.ErrNotExist.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put replaces the blob contents. Readers never observe a partial
	// write.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

func checkName(name string) error {
	if name == "" || !fs.ValidPath(name) || name == "." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Open returns a FileStore for location. "s3://bucket[/prefix]" selects
// S3 with opts; "file://dir" or a bare path selects the local disk.
func Open(ctx context.Context, location string, opts S3Options) (FileStore, error) {
	if !strings.Contains(location, "://") {
		return NewLocal(location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("storage: parse %q: %w", location, err)
	}
	switch u.Scheme {
	case "file":
		return NewLocal(u.Host + u.Path)
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("storage: %q has no bucket", location)
		}
		client, err := newS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		return NewS3(client, u.Host, strings.Trim(u.Path, "/")), nil
	default:
		return nil, fmt.Errorf("storage: unsupported scheme %q", u.Scheme)
	}
}
