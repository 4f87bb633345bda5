package bundle_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/ligustah/bundlefetch/pkg/bundle"
	"github.com/ligustah/bundlefetch/pkg/bundle/bundletest"
)

func writeCacheFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("bundle"), 0o644); err != nil {
		t.Fatalf("write cache file: %v", err)
	}
	return p
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dec := &bundletest.Decoder{Container: bundletest.AssetContainer(nil)}
	l := bundle.NewLoader(dec)

	h, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	if h != nil {
		t.Errorf("expected no handle, got %v", h)
	}
	if !errors.Is(err, bundle.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if dec.Calls() != 0 {
		t.Errorf("expected decoder not to run, got %d calls", dec.Calls())
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	l := bundle.NewLoader(&bundletest.Decoder{})

	_, err := l.LoadNamed(context.Background(), dir, "sub", nil)
	if bundle.KindOf(err) != bundle.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestLoadSuccess(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, "levels")
	c := bundletest.SceneContainer("Scenes/B", "Scenes/A")
	l := bundle.NewLoader(&bundletest.Decoder{Container: c, Steps: []float64{0.3, 0.1, 0.6}})

	var rec bundletest.Recorder
	h, err := l.LoadNamed(context.Background(), dir, "levels", rec.Report)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if h.Name() != "levels" {
		t.Errorf("expected name levels, got %s", h.Name())
	}
	if !h.IsSceneContainer() {
		t.Error("expected scene container")
	}
	if got := h.ScenePaths(); !slices.Equal(got, []string{"Scenes/A", "Scenes/B"}) {
		t.Errorf("expected sorted scene paths, got %v", got)
	}
	if got := rec.Values(); !slices.Equal(got, []float64{0.3, 0.6, 1}) {
		t.Errorf("expected progress [0.3 0.6 1], got %v", got)
	}
	if c.Releases() != 0 {
		t.Errorf("expected container to stay alive, got %d releases", c.Releases())
	}
}

func TestLoadNilContainer(t *testing.T) {
	dir := t.TempDir()
	p := writeCacheFile(t, dir, "empty")
	l := bundle.NewLoader(&bundletest.Decoder{})

	var rec bundletest.Recorder
	h, err := l.Load(context.Background(), p, rec.Report)
	if h != nil {
		t.Errorf("expected no handle")
	}
	if bundle.KindOf(err) != bundle.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
	if rec.Last() == 1.0 {
		t.Errorf("expected no terminal progress on failure, got %v", rec.Values())
	}
}

func TestLoadDecodeErrorReleasesPartial(t *testing.T) {
	dir := t.TempDir()
	p := writeCacheFile(t, dir, "corrupt")
	c := bundletest.AssetContainer(nil)
	l := bundle.NewLoader(&bundletest.Decoder{Container: c, Err: bundletest.ErrInjected})

	_, err := l.Load(context.Background(), p, nil)
	if bundle.KindOf(err) != bundle.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
	if !errors.Is(err, bundletest.ErrInjected) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	if c.Releases() != 1 {
		t.Errorf("expected partial container released once, got %d", c.Releases())
	}
}

func TestLoadCancelledReleasesLateContainer(t *testing.T) {
	dir := t.TempDir()
	p := writeCacheFile(t, dir, "slow")
	c := bundletest.AssetContainer(nil)
	dec := &bundletest.Decoder{Container: c, Gate: make(chan struct{})}
	l := bundle.NewLoader(dec)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Load(ctx, p, nil)
		errCh <- err
	}()

	waitFor(t, "decode to start", func() bool { return dec.Calls() == 1 })
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	close(dec.Gate)
	waitFor(t, "late container release", func() bool { return c.Releases() == 1 })
}
