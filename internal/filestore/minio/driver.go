// Package minio provides a MinIO (and S3-compatible) implementation of
// filestore.Store.
package minio

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Driver reads fixtures through the MinIO SDK. It is safe for concurrent use.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New builds a client for cfg and pings it before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "create minio client for "+cfg.Endpoint, err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping checks the configured bucket, or lists buckets when none is set.
func (d *Driver) Ping(ctx context.Context) error {
	if d.bucket == "" {
		if _, err := d.client.ListBuckets(ctx); err != nil {
			return mapError(err, "ping")
		}
		return nil
	}

	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping "+filestore.Scheme+d.bucket)
	}
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "bucket %s does not exist", d.bucket)
	}
	return nil
}

// Close is a no-op; the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	// cancelling stops the SDK's listing goroutine on early return
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	where := filestore.Location{Bucket: bucket, Key: opts.Prefix}.String()

	var out []filestore.ObjectInfo
	for obj := range d.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{
		Prefix:    opts.Prefix,
		Recursive: opts.Recursive,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "list "+where)
		}
		if !opts.Match(obj.Key) {
			continue
		}

		info := objectInfo(obj)
		info.IsDir = strings.HasSuffix(obj.Key, "/")
		out = append(out, *info)

		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// GetObject opens key for reading. A missing key is reported here rather
// than on the first Read.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	where := filestore.Location{Bucket: bucket, Key: key}.String()

	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "get "+where)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "get "+where)
	}
	return &reader{ReadCloser: obj, info: objectInfo(stat)}, nil
}

func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "stat "+filestore.Location{Bucket: bucket, Key: key}.String())
	}
	return objectInfo(stat), nil
}

func objectInfo(o miniogo.ObjectInfo) *filestore.ObjectInfo {
	return &filestore.ObjectInfo{
		Key:          o.Key,
		Size:         o.Size,
		ContentType:  o.ContentType,
		ETag:         o.ETag,
		LastModified: o.LastModified,
	}
}

type reader struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (r *reader) Info() *filestore.ObjectInfo { return r.info }
