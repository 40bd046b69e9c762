// Package filestore reads fixture documents from object storage.
//
// Providers implement Store; callers depend only on this package. A fixture
// location is written as s3://bucket/key, or s3://bucket/prefix/ for every
// object below a prefix.
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	loc, _ := filestore.ParseLocation("s3://fixtures/regions.yaml")
//	obj, err := store.GetObject(ctx, loc.Bucket, loc.Key)
package filestore

import (
	"context"
	"strings"

	"github.com/koustreak/frameload/internal/errs"
)

// Store is the read-only interface storage providers implement.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// ListObjects returns the objects in bucket that match opts, ordered by key.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object without downloading it.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
}

// Scheme prefixes object storage locations.
const Scheme = "s3://"

// Location addresses an object, or every object below a prefix when
// IsPrefix is true.
type Location struct {
	Bucket string
	Key    string
}

// IsPrefix reports whether l names a directory-like prefix.
func (l Location) IsPrefix() bool {
	return l.Key == "" || strings.HasSuffix(l.Key, "/")
}

func (l Location) String() string {
	return Scheme + l.Bucket + "/" + l.Key
}

// IsLocation reports whether s uses the object storage scheme.
func IsLocation(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// ParseLocation parses "s3://bucket/key".
func ParseLocation(s string) (Location, error) {
	if !IsLocation(s) {
		return Location{}, errs.Newf(errs.ErrKindInvalidInput, "%q is not an %s location", s, Scheme)
	}
	rest := strings.TrimPrefix(s, Scheme)
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, errs.Newf(errs.ErrKindInvalidInput, "%q: missing bucket", s)
	}
	return Location{Bucket: bucket, Key: key}, nil
}
