package archive

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ManifestName is the archive entry that describes a bundle.
const ManifestName = "bundle.yaml"

// Kind declares what a bundle carries.
type Kind string

const (
	KindAssets Kind = "assets"
	KindScenes Kind = "scenes"
)

// AssetType selects how an asset's payload is decoded.
type AssetType string

const (
	TypeBlob     AssetType = "blob"
	TypeText     AssetType = "text"
	TypeDocument AssetType = "document"
)

// Manifest is the bundle.yaml document at the root of an archive.
type Manifest struct {
	Name    string       `yaml:"name"`
	Version string       `yaml:"version,omitempty"`
	Kind    Kind         `yaml:"kind"`
	Scenes  []string     `yaml:"scenes,omitempty"`
	Assets  []AssetEntry `yaml:"assets,omitempty"`
}

// AssetEntry maps an asset path to an archive file and payload type.
type AssetEntry struct {
	Path string    `yaml:"path"`
	Type AssetType `yaml:"type"`
	File string    `yaml:"file"`
}

// Manifest validation errors.
var (
	ErrMissingName  = errors.New("manifest: name is required")
	ErrInvalidKind  = errors.New("manifest: invalid kind")
	ErrInvalidType  = errors.New("manifest: invalid asset type")
	ErrDuplicate    = errors.New("manifest: duplicate path")
	ErrMixedContent = errors.New("manifest: scene bundles cannot carry assets")
)

// ParseManifest decodes and validates a bundle.yaml document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for consistency.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}

	switch m.Kind {
	case KindAssets:
	case KindScenes:
		if len(m.Assets) > 0 {
			return ErrMixedContent
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, m.Kind)
	}

	seen := make(map[string]bool, len(m.Scenes)+len(m.Assets))
	for _, s := range m.Scenes {
		if s == "" {
			return errors.New("manifest: empty scene path")
		}
		if seen[s] {
			return fmt.Errorf("%w: %s", ErrDuplicate, s)
		}
		seen[s] = true
	}
	for i, a := range m.Assets {
		if a.Path == "" {
			return fmt.Errorf("manifest: asset %d has no path", i)
		}
		if a.File == "" {
			return fmt.Errorf("manifest: asset %s has no file", a.Path)
		}
		switch a.Type {
		case TypeBlob, TypeText, TypeDocument:
		default:
			return fmt.Errorf("%w: %s has type %q", ErrInvalidType, a.Path, a.Type)
		}
		if seen[a.Path] {
			return fmt.Errorf("%w: %s", ErrDuplicate, a.Path)
		}
		seen[a.Path] = true
	}
	return nil
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}
