package bundle

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
)

// Transport streams a remote bundle. Open returns the body and its size in
// bytes, or -1 when the size is not known in advance. A non-success response
// must be reported as an error, never as a body.
type Transport interface {
	Open(ctx context.Context, uri string) (body io.ReadCloser, size int64, err error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, uri string) (io.ReadCloser, int64, error)

// Open calls f.
func (f TransportFunc) Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	return f(ctx, uri)
}

// Router dispatches to a Transport by URI scheme.
type Router struct {
	mu      sync.RWMutex
	schemes map[string]Transport
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{schemes: make(map[string]Transport)}
}

// Handle registers t for the given schemes, replacing earlier registrations.
func (r *Router) Handle(t Transport, schemes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schemes {
		r.schemes[strings.ToLower(s)] = t
	}
}

// Open resolves the transport for uri's scheme and opens it.
func (r *Router) Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, 0, fmt.Errorf("parse uri: %w", err)
	}

	r.mu.RLock()
	t, ok := r.schemes[strings.ToLower(u.Scheme)]
	r.mu.RUnlock()
	if !ok {
		return nil, 0, fmt.Errorf("no transport registered for scheme %q", u.Scheme)
	}
	return t.Open(ctx, uri)
}
