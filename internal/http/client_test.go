package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.RetryBackoff = 10 * time.Millisecond
	opts.RetryMaxBackoff = 50 * time.Millisecond
	return opts
}

func TestOpen(t *testing.T) {
	data := []byte("bundle payload")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "bundlefetch" {
			t.Errorf("expected user agent bundlefetch, got %q", ua)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	body, size, err := client.Open(context.Background(), server.URL+"/prefabs")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Close()

	if size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), size)
	}

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("expected %q, got %q", data, got)
	}
}

func TestOpenNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testOptions())
	_, _, err := client.Open(context.Background(), server.URL)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		code     int
		expected error
	}{
		{http.StatusForbidden, ErrForbidden},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusTeapot, ErrStatus},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.code)
		}))

		client := NewClient(testOptions())
		_, _, err := client.Open(context.Background(), server.URL)
		if !errors.Is(err, tt.expected) {
			t.Errorf("status %d: expected %v, got %v", tt.code, tt.expected, err)
		}
		server.Close()
	}
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(testOptions())
	body, _, err := client.Open(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	body.Close()

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestRetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	opts := testOptions()
	opts.RetryAttempts = 2
	client := NewClient(opts)
	_, _, err := client.Open(context.Background(), server.URL)
	if !errors.Is(err, ErrServerError) {
		t.Errorf("expected ErrServerError, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestCheckStatusCode(t *testing.T) {
	for _, code := range []int{200, 204, 299} {
		if err := checkStatusCode(code); err != nil {
			t.Errorf("checkStatusCode(%d) = %v, want nil", code, err)
		}
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(DefaultOptions())
	_, _, err := client.Open(ctx, server.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSlowBodyOutlivesHeaderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("-last"))
	}))
	defer server.Close()

	opts := testOptions()
	opts.HeaderTimeout = 50 * time.Millisecond
	opts.RetryAttempts = 0

	body, _, err := NewClient(opts).Open(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "first-last" {
		t.Errorf("expected %q, got %q", "first-last", got)
	}
}

func TestHeaderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	opts := testOptions()
	opts.HeaderTimeout = 50 * time.Millisecond
	opts.RetryAttempts = 0

	start := time.Now()
	_, _, err := NewClient(opts).Open(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected header timeout error")
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("expected Open to give up after the header timeout, took %v", elapsed)
	}
}
