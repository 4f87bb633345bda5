//go:build integration

// Package testutils provides shared infrastructure for integration tests:
// an HTTP bundle server and a MinIO bucket running in a container.
package testutils

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ligustah/bundlefetch/internal/blobstore"
)

const (
	minioImage  = "minio/minio:latest"
	mcImage     = "minio/mc:latest"
	minioUser   = "minioadmin"
	minioSecret = "minioadmin"
)

// BundleServer serves bundle archives over HTTP and counts requests per
// path.
type BundleServer struct {
	*httptest.Server

	mu       sync.Mutex
	bundles  map[string][]byte
	requests map[string]int
}

// StartBundleServer serves each bundle at /<name>. The server is closed
// when the test ends.
func StartBundleServer(t *testing.T, bundles map[string][]byte) *BundleServer {
	t.Helper()

	s := &BundleServer{bundles: make(map[string][]byte), requests: make(map[string]int)}
	for name, data := range bundles {
		s.bundles["/"+name] = data
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *BundleServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests[r.URL.Path]++
	data, ok := s.bundles[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// URL returns the address of the named bundle.
func (s *BundleServer) URL(name string) string {
	return s.Server.URL + "/" + name
}

// Requests returns how many requests were made for the named bundle.
func (s *BundleServer) Requests(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests["/"+name]
}

// MinioEnv is a running MinIO server with one bucket.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string
	Endpoint  string
}

// Transport opens a blobstore.Transport on the bucket. It is closed when
// the test ends.
func (e *MinioEnv) Transport(t *testing.T, ctx context.Context) *blobstore.Transport {
	t.Helper()
	tr, err := blobstore.OpenBucket(ctx, e.BucketURL)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

// StartMinio starts MinIO with bucketName created. The containers are
// terminated when the test ends.
func StartMinio(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	networkName := fmt.Sprintf("bundlefetch-minio-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{Name: networkName},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(context.Background()) })

	minio, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          minioImage,
			ExposedPorts:   []string{"9000/tcp"},
			Networks:       []string{networkName},
			NetworkAliases: map[string][]string{networkName: {"minio"}},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioSecret,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio: %v", err)
	}
	t.Cleanup(func() {
		if err := minio.Terminate(context.Background()); err != nil {
			t.Logf("terminate minio: %v", err)
		}
	})

	makeBucket(t, ctx, networkName, bucketName)

	host, err := minio.Host(ctx)
	if err != nil {
		t.Fatalf("minio host: %v", err)
	}
	port, err := minio.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("minio port: %v", err)
	}
	endpoint := fmt.Sprintf("%s:%s", host, port.Port())

	// s3blob reads credentials from the environment.
	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioSecret)

	return &MinioEnv{
		Container: minio,
		BucketURL: fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1",
			bucketName, endpoint),
		Endpoint: endpoint,
	}
}

// makeBucket runs the mc client once to create bucketName.
func makeBucket(t *testing.T, ctx context.Context, networkName, bucketName string) {
	t.Helper()

	mc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      mcImage,
			Networks:   []string{networkName},
			Entrypoint: []string{"/bin/sh", "-c"},
			Cmd: []string{fmt.Sprintf(
				"mc alias set local http://minio:9000 %s %s && mc mb --ignore-existing local/%s",
				minioUser, minioSecret, bucketName,
			)},
			WaitingFor: wait.ForExit(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	defer mc.Terminate(context.Background())
}

// AssertFileContent fails t unless the file at path holds exactly want.
func AssertFileContent(t *testing.T, path string, want []byte) {
	t.Helper()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("content mismatch in %s: got %d bytes, want %d", path, len(got), len(want))
	}
}
