package bundle

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/ligustah/bundlefetch/internal/logging"
	"github.com/ligustah/bundlefetch/internal/progress"
)

// Container is a deserialized bundle as produced by a Decoder.
type Container interface {
	// IsSceneContainer reports whether the bundle carries scenes rather
	// than individual assets.
	IsSceneContainer() bool

	// ScenePaths lists the scenes the bundle exposes.
	ScenePaths() []string

	// Asset returns the object stored at path, or false if there is none.
	// The returned object must stay valid after Release.
	Asset(ctx context.Context, path string) (any, bool)

	// Release frees the bundle's memory. When keepLoadedObjects is false,
	// objects the container still tracks may be freed as well; objects
	// already handed out by Asset are unaffected.
	Release(keepLoadedObjects bool)
}

// Decoder turns a cached bundle file into a Container. Decode reports
// progress as a fraction of the file consumed.
type Decoder interface {
	Decode(ctx context.Context, path string, onProgress progress.Func) (Container, error)
}

// Handle is the exclusive owner of a loaded Container. The first call to
// Release frees the container; later calls do nothing. A Handle must not be
// shared between concurrent extractions.
type Handle struct {
	name      string
	container Container
	released  atomic.Bool
}

// NewHandle wraps c. Loader.Load is the usual producer of handles.
func NewHandle(name string, c Container) *Handle {
	return &Handle{name: name, container: c}
}

// Name returns the bundle's cache entry name.
func (h *Handle) Name() string {
	return h.name
}

// IsSceneContainer reports whether the bundle carries scenes.
func (h *Handle) IsSceneContainer() bool {
	return h.container.IsSceneContainer()
}

// ScenePaths returns a sorted copy of the bundle's scene paths.
func (h *Handle) ScenePaths() []string {
	paths := slices.Clone(h.container.ScenePaths())
	slices.Sort(paths)
	return paths
}

// HasScene reports whether scenePath is one of the bundle's scenes.
func (h *Handle) HasScene(scenePath string) bool {
	return slices.Contains(h.container.ScenePaths(), scenePath)
}

// Release frees the bundle's memory exactly once. Objects previously
// extracted from the bundle remain valid.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	h.container.Release(false)
	log.Debug("bundle released", logging.KeyBundle, h.name)
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h.released.Load()
}
