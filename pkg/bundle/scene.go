package bundle

import (
	"context"
	"fmt"
)

// Mode selects how an activated scene relates to those already active.
type Mode int

const (
	// Replace deactivates every other scene.
	Replace Mode = iota
	// Additive activates the scene alongside the others.
	Additive
)

func (m Mode) String() string {
	switch m {
	case Replace:
		return "replace"
	case Additive:
		return "additive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "replace" or "additive".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "replace", "":
		return Replace, nil
	case "additive":
		return Additive, nil
	default:
		return 0, fmt.Errorf("unknown scene mode %q", s)
	}
}

// SceneRef identifies an activated scene. The zero value refers to no scene.
type SceneRef struct {
	Path string
	ID   uint64
}

// IsValid reports whether r refers to a scene.
func (r SceneRef) IsValid() bool {
	return r.ID != 0
}

// SceneActivator is the collaborator that makes scenes live. Activated
// scene content does not depend on the bundle it came from.
type SceneActivator interface {
	Activate(ctx context.Context, scenePath string, mode Mode) error
	Deactivate(ctx context.Context, ref SceneRef) error
	CurrentSceneFor(scenePath string) (SceneRef, bool)
}
