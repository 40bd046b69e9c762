package filestore

import (
	"io"
	"strings"
	"time"
)

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "fixtures/regions.yaml").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	ContentType  string
	ETag         string
	LastModified time.Time

	// IsDir is true when the entry is a virtual directory (common prefix).
	IsDir bool
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListOptions controls how ListObjects filters results.
type ListOptions struct {
	// Prefix restricts results to keys starting with this string.
	Prefix string

	// Recursive lists everything below Prefix instead of grouping by
	// virtual directories.
	Recursive bool

	// Suffixes, when set, keeps only keys ending in one of them (compared
	// case-insensitively) and drops directory entries.
	Suffixes []string

	// Limit caps the number of results. 0 means no limit.
	Limit int
}

// Match reports whether key passes the prefix and suffix filters.
func (o ListOptions) Match(key string) bool {
	if !strings.HasPrefix(key, o.Prefix) {
		return false
	}
	if len(o.Suffixes) == 0 {
		return true
	}
	if strings.HasSuffix(key, "/") {
		return false
	}
	lower := strings.ToLower(key)
	for _, s := range o.Suffixes {
		if strings.HasSuffix(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
