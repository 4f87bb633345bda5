package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"
)

func openMem(t *testing.T) *Transport {
	t.Helper()
	tr, err := OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestKey(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "bucket://releases/v2/prefabs", want: "releases/v2/prefabs"},
		{uri: "BUCKET://prefabs", want: "prefabs"},
		{uri: "bucket:///abs/levels", want: "abs/levels"},
		{uri: "bucket://", wantErr: true},
		{uri: "http://host/prefabs", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := Key(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Key(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	tr := openMem(t)
	ctx := context.Background()
	data := []byte("bundle bytes")

	if err := tr.bucket.WriteAll(ctx, "releases/prefabs", data, nil); err != nil {
		t.Fatalf("write: %v", err)
	}

	body, size, err := tr.Open(ctx, URI("releases/prefabs"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Close()

	if size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), size)
	}
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("expected %q, got %q", data, got)
	}
}

func TestOpenNotFound(t *testing.T) {
	tr := openMem(t)

	_, _, err := tr.Open(context.Background(), "bucket://missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPublishListDelete(t *testing.T) {
	tr := openMem(t)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "levels")
	if err := os.WriteFile(local, []byte("levels bundle"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := tr.Publish(ctx, local, "releases/levels")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n != int64(len("levels bundle")) {
		t.Errorf("expected %d bytes, got %d", len("levels bundle"), n)
	}

	attrs, err := tr.bucket.Attributes(ctx, "releases/levels")
	if err != nil {
		t.Fatalf("attributes: %v", err)
	}
	if attrs.ContentType != "application/gzip" {
		t.Errorf("expected content type application/gzip, got %s", attrs.ContentType)
	}

	keys, err := tr.List(ctx, "releases/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(keys, []string{"releases/levels"}) {
		t.Errorf("unexpected keys %v", keys)
	}

	if err := tr.Delete(ctx, "releases/levels"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tr.Delete(ctx, "releases/levels"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPublishMissingFile(t *testing.T) {
	tr := openMem(t)

	if _, err := tr.Publish(context.Background(), filepath.Join(t.TempDir(), "nope"), "k"); err == nil {
		t.Error("expected error")
	}
	if ok, _ := tr.bucket.Exists(context.Background(), "k"); ok {
		t.Error("expected no object after failed publish")
	}
}

func TestNewSharesBucket(t *testing.T) {
	b, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.WriteAll(context.Background(), "k", []byte("v"), nil); err != nil {
		t.Fatal(err)
	}
	body, _, err := New(b).Open(context.Background(), "bucket://k")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	body.Close()
}
