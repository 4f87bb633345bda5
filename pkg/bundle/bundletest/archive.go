// Package bundletest provides fakes and fixtures for testing code that uses
// package bundle.
package bundletest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/ligustah/bundlefetch/pkg/bundle/archive"
)

// AssetManifest returns a manifest for an asset bundle.
func AssetManifest(name string, assets ...archive.AssetEntry) archive.Manifest {
	return archive.Manifest{Name: name, Version: "1.0.0", Kind: archive.KindAssets, Assets: assets}
}

// SceneManifest returns a manifest for a scene bundle.
func SceneManifest(name string, scenes ...string) archive.Manifest {
	return archive.Manifest{Name: name, Version: "1.0.0", Kind: archive.KindScenes, Scenes: scenes}
}

// Build returns a gzipped tar archive holding m as bundle.yaml plus files,
// keyed by archive path.
func Build(m archive.Manifest, files map[string]string) ([]byte, error) {
	manifest, err := m.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	entries := map[string][]byte{archive.ManifestName: manifest}
	for name, data := range files {
		entries[name] = []byte(data)
	}
	return tarGz(entries)
}

// ArchiveBytes is Build failing t on error.
func ArchiveBytes(t testing.TB, m archive.Manifest, files map[string]string) []byte {
	t.Helper()
	data, err := Build(m, files)
	if err != nil {
		t.Fatalf("build archive: %v", err)
	}
	return data
}

// TarGz builds a gzipped tar archive from raw entries in name order.
func TarGz(t testing.TB, entries map[string][]byte) []byte {
	t.Helper()
	data, err := tarGz(entries)
	if err != nil {
		t.Fatalf("build archive: %v", err)
	}
	return data
}

func tarGz(entries map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		data := entries[name]
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: time.Unix(0, 0),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("write header %s: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteArchive writes an archive built by ArchiveBytes to dir/name and
// returns its path.
func WriteArchive(t testing.TB, dir, name string, m archive.Manifest, files map[string]string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, ArchiveBytes(t, m, files), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return p
}
