package bundle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ligustah/bundlefetch/internal/logging"
)

const (
	expectSceneContainer = "expected scene container"
	expectAssetContainer = "expected asset container, found scene container"
)

// Extractor activates scenes from loaded bundles. It owns at most one
// activated scene at a time and deactivates it before activating the next.
type Extractor struct {
	activator SceneActivator

	mu      sync.Mutex
	current SceneRef
}

// NewExtractor creates an Extractor that activates scenes through a.
func NewExtractor(a SceneActivator) *Extractor {
	return &Extractor{activator: a}
}

// ExtractScene activates scenePath from h with the given mode and releases
// h. The handle is released exactly once on every path, after activation
// has completed when it succeeds.
//
// A previously activated scene owned by e is deactivated first. A handle
// that is not a scene container fails with WrongKind without touching the
// activator; a scene path the bundle does not expose fails with NotFound.
func (e *Extractor) ExtractScene(ctx context.Context, h *Handle, scenePath string, mode Mode) (SceneRef, error) {
	if h == nil {
		return SceneRef{}, notFound(scenePath, errors.New("nil handle"))
	}
	defer h.Release()

	if h.Released() {
		return SceneRef{}, ErrReleased
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.unloadLocked(ctx); err != nil {
		return SceneRef{}, err
	}

	if !h.IsSceneContainer() {
		return SceneRef{}, wrongKind(expectSceneContainer)
	}
	if !h.HasScene(scenePath) {
		return SceneRef{}, notFound(scenePath, fmt.Errorf("not in bundle %s", h.Name()))
	}

	if err := e.activator.Activate(ctx, scenePath, mode); err != nil {
		return SceneRef{}, fmt.Errorf("activate scene %s: %w", scenePath, err)
	}
	h.Release()

	ref, ok := e.activator.CurrentSceneFor(scenePath)
	if ok {
		e.current = ref
	}
	log.Debug("scene activated", logging.KeyScene, scenePath, "mode", mode, logging.KeyBundle, h.Name())
	return ref, nil
}

// Current returns the scene e currently owns.
func (e *Extractor) Current() (SceneRef, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.current.IsValid()
}

// Unload deactivates the scene e owns, if any. A scene that is no longer
// active is forgotten without calling the activator.
func (e *Extractor) Unload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unloadLocked(ctx)
}

func (e *Extractor) unloadLocked(ctx context.Context) error {
	if !e.current.IsValid() {
		return nil
	}
	// The scene may have been replaced or deactivated without e.
	if !e.ownsActiveLocked() {
		log.Debug("owned scene no longer active", logging.KeyScene, e.current.Path)
		e.current = SceneRef{}
		return nil
	}
	if err := e.activator.Deactivate(ctx, e.current); err != nil {
		if !e.ownsActiveLocked() {
			e.current = SceneRef{}
			return nil
		}
		return fmt.Errorf("deactivate scene %s: %w", e.current.Path, err)
	}
	log.Debug("scene deactivated", logging.KeyScene, e.current.Path)
	e.current = SceneRef{}
	return nil
}

func (e *Extractor) ownsActiveLocked() bool {
	ref, ok := e.activator.CurrentSceneFor(e.current.Path)
	return ok && ref == e.current
}

// Status is the outcome of a typed asset lookup.
type Status int

const (
	// Absent means the bundle has no object at the path.
	Absent Status = iota
	// Found means the object exists and has the requested type.
	Found
	// WrongType means the object exists but has a different type.
	WrongType
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case WrongType:
		return "wrong type"
	default:
		return "absent"
	}
}

// Result is a tagged typed-lookup outcome. Value is set only when Status is
// Found; Actual names the stored type when Status is WrongType.
type Result[T any] struct {
	Status Status
	Value  T
	Actual string
}

// Lookup queries h for the object at assetPath as a T without releasing h.
func Lookup[T any](ctx context.Context, h *Handle, assetPath string) Result[T] {
	obj, ok := h.container.Asset(ctx, assetPath)
	if !ok || obj == nil {
		return Result[T]{Status: Absent}
	}
	v, ok := obj.(T)
	if !ok {
		return Result[T]{Status: WrongType, Actual: fmt.Sprintf("%T", obj)}
	}
	return Result[T]{Status: Found, Value: v}
}

// ExtractAsset returns the object at assetPath in h as a T and releases h.
// The handle is released exactly once on every path; the returned object
// stays valid afterwards.
//
// A scene container fails with WrongKind without any lookup. A missing
// object and an object of another type both fail with NotFound.
func ExtractAsset[T any](ctx context.Context, h *Handle, assetPath string) (T, error) {
	var zero T
	if h == nil {
		return zero, notFound(assetPath, errors.New("nil handle"))
	}
	defer h.Release()

	if h.Released() {
		return zero, ErrReleased
	}
	if h.IsSceneContainer() {
		return zero, wrongKind(expectAssetContainer)
	}

	res := Lookup[T](ctx, h, assetPath)
	switch res.Status {
	case Found:
		h.Release()
		log.Debug("asset extracted", logging.KeyAsset, assetPath, logging.KeyBundle, h.Name())
		return res.Value, nil
	case WrongType:
		return zero, notFound(assetPath, fmt.Errorf("stored as %s, requested %T", res.Actual, zero))
	default:
		return zero, notFound(assetPath, fmt.Errorf("not in bundle %s", h.Name()))
	}
}
