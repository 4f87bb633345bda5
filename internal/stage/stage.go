// Package stage keeps the set of active scenes for the command line tool.
//
// A Stage is the process-local SceneActivator: activating in Replace mode
// deactivates every other scene, Additive mode stacks scenes. Every
// activation gets a fresh SceneRef, so a stale reference cannot deactivate
// a scene that has since been reloaded.
package stage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ligustah/bundlefetch/internal/logging"
	"github.com/ligustah/bundlefetch/pkg/bundle"
)

var log = logging.L("stage")

// ErrNotActive is returned when deactivating a scene that is not active.
var ErrNotActive = errors.New("stage: scene not active")

// Stage tracks active scenes in activation order.
type Stage struct {
	mu     sync.Mutex
	next   uint64
	active []bundle.SceneRef
}

// New creates an empty Stage.
func New() *Stage {
	return &Stage{}
}

// Activate makes scenePath active. Activating an already active path
// replaces its reference.
func (s *Stage) Activate(ctx context.Context, scenePath string, mode bundle.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case bundle.Replace:
		for _, ref := range s.active {
			log.Debug("scene replaced", logging.KeyScene, ref.Path)
		}
		s.active = s.active[:0]
	case bundle.Additive:
		s.active = slices.DeleteFunc(s.active, func(r bundle.SceneRef) bool { return r.Path == scenePath })
	default:
		return fmt.Errorf("stage: unknown mode %v", mode)
	}

	s.next++
	ref := bundle.SceneRef{Path: scenePath, ID: s.next}
	s.active = append(s.active, ref)
	log.Info("scene active", logging.KeyScene, scenePath, "mode", mode, "id", ref.ID)
	return nil
}

// Deactivate removes ref. It fails with ErrNotActive if ref is not the
// current reference for its path.
func (s *Stage) Deactivate(ctx context.Context, ref bundle.SceneRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.active, ref)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotActive, ref.Path)
	}
	s.active = slices.Delete(s.active, i, i+1)
	log.Info("scene inactive", logging.KeyScene, ref.Path, "id", ref.ID)
	return nil
}

// CurrentSceneFor returns the active reference for scenePath.
func (s *Stage) CurrentSceneFor(scenePath string) (bundle.SceneRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ref := range s.active {
		if ref.Path == scenePath {
			return ref, true
		}
	}
	return bundle.SceneRef{}, false
}

// Active returns the active scenes in activation order.
func (s *Stage) Active() []bundle.SceneRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.active)
}
