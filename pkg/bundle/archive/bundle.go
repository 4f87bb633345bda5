package archive

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Blob is an opaque binary asset.
type Blob []byte

// Text is a UTF-8 text asset.
type Text string

// Document is a structured asset decoded from YAML or JSON.
type Document map[string]any

// Bundle is a decoded archive. It implements bundle.Container.
type Bundle struct {
	manifest Manifest

	mu       sync.Mutex
	objects  map[string]any
	released bool
}

// Manifest returns a copy of the bundle's manifest.
func (b *Bundle) Manifest() Manifest {
	m := b.manifest
	m.Scenes = slices.Clone(m.Scenes)
	m.Assets = slices.Clone(m.Assets)
	return m
}

// IsSceneContainer reports whether the manifest kind is scenes.
func (b *Bundle) IsSceneContainer() bool {
	return b.manifest.Kind == KindScenes
}

// ScenePaths returns the scenes declared by the manifest.
func (b *Bundle) ScenePaths() []string {
	return slices.Clone(b.manifest.Scenes)
}

// AssetPaths returns the sorted asset paths declared by the manifest.
func (b *Bundle) AssetPaths() []string {
	paths := make([]string, 0, len(b.manifest.Assets))
	for _, a := range b.manifest.Assets {
		paths = append(paths, a.Path)
	}
	slices.Sort(paths)
	return paths
}

// Asset returns a copy of the object at path. The copy does not share
// memory with the bundle and stays valid after Release.
func (b *Bundle) Asset(_ context.Context, path string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, false
	}
	obj, ok := b.objects[path]
	if !ok {
		return nil, false
	}
	return cloneObject(obj), true
}

// Release drops the decoded payloads. Objects returned by Asset are copies
// and are unaffected either way, so keepLoadedObjects has no effect.
func (b *Bundle) Release(keepLoadedObjects bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects = nil
	b.released = true
}

func decodeAsset(a AssetEntry, data []byte) (any, error) {
	switch a.Type {
	case TypeBlob:
		return Blob(bytes.Clone(data)), nil
	case TypeText:
		return Text(data), nil
	case TypeDocument:
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", a.Path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		return Document(doc), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, a.Type)
	}
}

func cloneObject(obj any) any {
	switch v := obj.(type) {
	case Blob:
		return Blob(bytes.Clone(v))
	case Document:
		return Document(cloneMap(v))
	default:
		return obj
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		return bytes.Clone(t)
	default:
		return v
	}
}
