package bundletest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ligustah/bundlefetch/internal/progress"
	"github.com/ligustah/bundlefetch/pkg/bundle"
)

// ErrInjected is the failure produced by fakes configured to fail.
var ErrInjected = errors.New("bundletest: injected failure")

// Transport serves in-memory bodies keyed by URI and counts opens.
type Transport struct {
	// ChunkSize bounds each Read of a body. Zero means unbounded.
	ChunkSize int
	// FailAfter makes bodies fail with ErrInjected once this many bytes
	// have been read. Zero disables the failure.
	FailAfter int
	// UnknownSize reports -1 instead of the body length.
	UnknownSize bool
	// Gate, when set, blocks every Read until it yields or is closed.
	Gate chan struct{}

	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
}

// NewTransport creates a Transport serving bodies.
func NewTransport(bodies map[string][]byte) *Transport {
	if bodies == nil {
		bodies = make(map[string][]byte)
	}
	return &Transport{bodies: bodies, calls: make(map[string]int)}
}

// Set serves data at uri.
func (t *Transport) Set(uri string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bodies[uri] = data
}

// Calls returns how often uri was opened.
func (t *Transport) Calls(uri string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[uri]
}

// Total returns the number of opens across all URIs.
func (t *Transport) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		n += c
	}
	return n
}

// Open implements bundle.Transport.
func (t *Transport) Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	t.mu.Lock()
	t.calls[uri]++
	data, ok := t.bodies[uri]
	t.mu.Unlock()

	if !ok {
		return nil, 0, fmt.Errorf("%s: 404 not found", uri)
	}
	size := int64(len(data))
	if t.UnknownSize {
		size = -1
	}
	return &body{
		ctx:       ctx,
		r:         bytes.NewReader(data),
		chunk:     t.ChunkSize,
		failAfter: t.FailAfter,
		gate:      t.Gate,
	}, size, nil
}

type body struct {
	ctx       context.Context
	r         *bytes.Reader
	chunk     int
	failAfter int
	gate      chan struct{}
	read      int
}

func (b *body) Read(p []byte) (int, error) {
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-b.ctx.Done():
			return 0, b.ctx.Err()
		}
	}
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}
	if b.failAfter > 0 && b.read >= b.failAfter {
		return 0, ErrInjected
	}
	if b.chunk > 0 && len(p) > b.chunk {
		p = p[:b.chunk]
	}
	if b.failAfter > 0 && len(p) > b.failAfter-b.read {
		p = p[:b.failAfter-b.read]
	}
	n, err := b.r.Read(p)
	b.read += n
	return n, err
}

func (b *body) Close() error {
	return nil
}

// Container is a scriptable bundle.Container that counts releases and
// lookups.
type Container struct {
	Scene  bool
	Scenes []string
	Assets map[string]any

	releases atomic.Int32
	lookups  atomic.Int32
}

// AssetContainer returns an asset Container holding assets.
func AssetContainer(assets map[string]any) *Container {
	return &Container{Assets: assets}
}

// SceneContainer returns a scene Container exposing scenes.
func SceneContainer(scenes ...string) *Container {
	return &Container{Scene: true, Scenes: scenes}
}

func (c *Container) IsSceneContainer() bool { return c.Scene }

func (c *Container) ScenePaths() []string { return slices.Clone(c.Scenes) }

func (c *Container) Asset(_ context.Context, path string) (any, bool) {
	c.lookups.Add(1)
	obj, ok := c.Assets[path]
	return obj, ok
}

func (c *Container) Release(bool) { c.releases.Add(1) }

// Releases returns how often Release was called.
func (c *Container) Releases() int { return int(c.releases.Load()) }

// Lookups returns how often Asset was called.
func (c *Container) Lookups() int { return int(c.lookups.Load()) }

// Decoder returns a fixed Container, reporting Steps as progress first.
type Decoder struct {
	Container bundle.Container
	Err       error
	Steps     []float64
	// Gate, when set, blocks Decode until it yields or is closed. Decode
	// ignores ctx while blocked, like a deserializer that cannot be
	// interrupted.
	Gate chan struct{}

	calls atomic.Int32
}

// Decode implements bundle.Decoder.
func (d *Decoder) Decode(_ context.Context, _ string, onProgress progress.Func) (bundle.Container, error) {
	d.calls.Add(1)
	for _, s := range d.Steps {
		onProgress(s)
	}
	if d.Gate != nil {
		<-d.Gate
	}
	return d.Container, d.Err
}

// Calls returns how often Decode was called.
func (d *Decoder) Calls() int { return int(d.calls.Load()) }

// Activation records one Activate call.
type Activation struct {
	Path string
	Mode bundle.Mode
}

// Activator records scene activations. Every Activate yields a new
// SceneRef for the path.
type Activator struct {
	// Err is returned from Activate when set.
	Err error

	mu            sync.Mutex
	next          uint64
	activations   []Activation
	deactivations []bundle.SceneRef
	current       map[string]bundle.SceneRef
}

// Activate implements bundle.SceneActivator.
func (a *Activator) Activate(_ context.Context, scenePath string, mode bundle.Mode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activations = append(a.activations, Activation{Path: scenePath, Mode: mode})
	if a.Err != nil {
		return a.Err
	}
	if a.current == nil {
		a.current = make(map[string]bundle.SceneRef)
	}
	a.next++
	a.current[scenePath] = bundle.SceneRef{Path: scenePath, ID: a.next}
	return nil
}

// Deactivate implements bundle.SceneActivator.
func (a *Activator) Deactivate(_ context.Context, ref bundle.SceneRef) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deactivations = append(a.deactivations, ref)
	if cur, ok := a.current[ref.Path]; ok && cur == ref {
		delete(a.current, ref.Path)
	}
	return nil
}

// CurrentSceneFor implements bundle.SceneActivator.
func (a *Activator) CurrentSceneFor(scenePath string) (bundle.SceneRef, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ref, ok := a.current[scenePath]
	return ref, ok
}

// Activations returns the recorded Activate calls.
func (a *Activator) Activations() []Activation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.activations)
}

// Deactivations returns the recorded Deactivate calls.
func (a *Activator) Deactivations() []bundle.SceneRef {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.deactivations)
}

// Recorder collects progress values.
type Recorder struct {
	mu     sync.Mutex
	values []float64
}

// Report appends f. Pass it where a progress.Func is expected.
func (r *Recorder) Report(f float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, f)
}

// Values returns the recorded values.
func (r *Recorder) Values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.values)
}

// Monotonic reports whether the values never decrease.
func (r *Recorder) Monotonic() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i < len(r.values); i++ {
		if r.values[i] < r.values[i-1] {
			return false
		}
	}
	return true
}

// Last returns the final value, or -1 if none was recorded.
func (r *Recorder) Last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return -1
	}
	return r.values[len(r.values)-1]
}
