package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/bundlefetch/internal/logging"
)

// Scheme is the URI scheme served by a Transport.
const Scheme = "bucket"

var log = logging.L("blobstore")

// Common errors.
var (
	ErrNotFound = errors.New("blobstore: object not found")
	ErrNoKey    = errors.New("blobstore: uri has no object key")
)

// Transport streams bundles from a gocloud.dev bucket. URIs of the form
// bucket://releases/prefabs map to the key releases/prefabs.
type Transport struct {
	bucket *blob.Bucket
}

// New creates a Transport reading from b. The caller keeps ownership of b.
func New(b *blob.Bucket) *Transport {
	return &Transport{bucket: b}
}

// OpenBucket opens the bucket at bucketURL (s3://, gs://, azblob://,
// file://, mem://) and returns a Transport over it. Close releases the
// bucket.
func OpenBucket(ctx context.Context, bucketURL string) (*Transport, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return New(b), nil
}

// Close closes the underlying bucket.
func (t *Transport) Close() error {
	return t.bucket.Close()
}

// Key returns the object key a bucket:// URI refers to.
func Key(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri: %w", err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	key := strings.TrimPrefix(path.Join(u.Host, u.Path), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("%w: %q", ErrNoKey, uri)
	}
	return key, nil
}

// URI returns the bucket:// URI for key.
func URI(key string) string {
	return Scheme + "://" + strings.TrimPrefix(key, "/")
}

// Open implements bundle.Transport.
func (t *Transport) Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	key, err := Key(uri)
	if err != nil {
		return nil, 0, err
	}

	r, err := t.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, 0, fmt.Errorf("open %s: %w", key, err)
	}
	log.Debug("object opened", logging.KeyURI, uri, logging.KeyBytes, r.Size())
	return r, r.Size(), nil
}

// Publish uploads the bundle file at localPath to key and returns the
// number of bytes written. A failed upload leaves no object behind.
func (t *Transport) Publish(ctx context.Context, localPath, key string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Cancelling the writer's context aborts the upload instead of committing
	// a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := t.bucket.NewWriter(wctx, key, &blob.WriterOptions{
		ContentType: "application/gzip",
	})
	if err != nil {
		return 0, fmt.Errorf("create writer: %w", err)
	}

	n, err := io.Copy(w, f)
	if err != nil {
		cancel()
		w.Close()
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", key, err)
	}
	log.Debug("object published", logging.KeyPath, localPath, "key", key, logging.KeyBytes, n)
	return n, nil
}

// Delete removes the object at key.
func (t *Transport) Delete(ctx context.Context, key string) error {
	if err := t.bucket.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns the keys under prefix.
func (t *Transport) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := t.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}
