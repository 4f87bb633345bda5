package bundle_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	httpclient "github.com/ligustah/bundlefetch/internal/http"
	"github.com/ligustah/bundlefetch/pkg/bundle"
	"github.com/ligustah/bundlefetch/pkg/bundle/archive"
	"github.com/ligustah/bundlefetch/pkg/bundle/bundletest"
)

type bundleServer struct {
	*httptest.Server
	requests atomic.Int32
}

func startBundleServer(t *testing.T, bundles map[string][]byte) *bundleServer {
	t.Helper()
	s := &bundleServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		data, ok := bundles[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestClient(act bundle.SceneActivator) *bundle.Client {
	opts := httpclient.DefaultOptions()
	opts.RetryAttempts = 1
	router := bundle.NewRouter()
	router.Handle(httpclient.NewClient(opts), "http", "https")
	return bundle.NewClient(
		bundle.NewFetcher(router),
		bundle.NewLoader(archive.NewDecoder()),
		bundle.NewExtractor(act),
	)
}

func drain[T any](t *testing.T, task *bundle.Task[T]) []float64 {
	t.Helper()
	var values []float64
	for f := range task.Progress() {
		values = append(values, f)
	}
	select {
	case <-task.Done():
	default:
		t.Error("expected Done to be closed once Progress is drained")
	}
	return values
}

func pipelineFixtures(t *testing.T) map[string][]byte {
	assets := bundletest.AssetManifest("prefabs",
		archive.AssetEntry{Path: "Prefabs/Cube.prefab", Type: archive.TypeDocument, File: "data/cube.yaml"},
		archive.AssetEntry{Path: "Text/Readme.txt", Type: archive.TypeText, File: "data/readme.txt"},
	)
	scenes := bundletest.SceneManifest("levels", "Scenes/Intro", "Scenes/Main")
	return map[string][]byte{
		"/bundles/prefabs": bundletest.ArchiveBytes(t, assets, map[string]string{
			"data/cube.yaml":  "name: cube\nsize: 2\n",
			"data/readme.txt": "hello",
		}),
		"/bundles/levels": bundletest.ArchiveBytes(t, scenes, nil),
	}
}

func TestClientFetchThenLoadAsset(t *testing.T) {
	srv := startBundleServer(t, pipelineFixtures(t))
	c := newTestClient(&bundletest.Activator{})
	ctx := context.Background()
	dir := t.TempDir()

	fetch := c.Fetch(ctx, dir, srv.URL+"/bundles/prefabs")
	values := drain(t, fetch)
	if _, err := fetch.Wait(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(values) == 0 || values[len(values)-1] != 1.0 {
		t.Errorf("expected progress ending at 1.0, got %v", values)
	}

	doc, err := bundle.LoadAsset[archive.Document](ctx, c, dir, "prefabs", "Prefabs/Cube.prefab").Wait(ctx)
	if err != nil {
		t.Fatalf("LoadAsset: %v", err)
	}
	if doc["name"] != "cube" {
		t.Errorf("expected name cube, got %v", doc["name"])
	}

	text, err := bundle.LoadAsset[archive.Text](ctx, c, dir, "prefabs", "Text/Readme.txt").Wait(ctx)
	if err != nil {
		t.Fatalf("LoadAsset text: %v", err)
	}
	if text != "hello" {
		t.Errorf("expected hello, got %q", text)
	}

	_, err = bundle.LoadAsset[archive.Blob](ctx, c, dir, "prefabs", "Text/Readme.txt").Wait(ctx)
	if bundle.KindOf(err) != bundle.NotFound {
		t.Errorf("expected NotFound for wrong type, got %v", err)
	}

	refetch := c.Fetch(ctx, dir, srv.URL+"/bundles/prefabs")
	if _, err := refetch.Wait(ctx); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if n := srv.requests.Load(); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestClientLoadScene(t *testing.T) {
	srv := startBundleServer(t, pipelineFixtures(t))
	act := &bundletest.Activator{}
	c := newTestClient(act)
	ctx := context.Background()
	dir := t.TempDir()

	if _, err := c.Fetch(ctx, dir, srv.URL+"/bundles/levels").Wait(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	task := c.LoadScene(ctx, dir, "levels", "Scenes/Main", bundle.Additive)
	values := drain(t, task)
	ref, err := task.Wait(ctx)
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	if !ref.IsValid() || ref.Path != "Scenes/Main" {
		t.Errorf("unexpected ref %+v", ref)
	}
	if len(values) == 0 || values[len(values)-1] != 1.0 {
		t.Errorf("expected load progress ending at 1.0, got %v", values)
	}
	if got := act.Activations(); len(got) != 1 || got[0].Mode != bundle.Additive {
		t.Errorf("expected one additive activation, got %v", got)
	}

	_, err = c.LoadScene(ctx, dir, "prefabs", "Scenes/Main", bundle.Replace).Wait(ctx)
	if bundle.KindOf(err) != bundle.NotFound {
		t.Errorf("expected NotFound for uncached bundle, got %v", err)
	}
}

func TestClientKindMismatch(t *testing.T) {
	srv := startBundleServer(t, pipelineFixtures(t))
	act := &bundletest.Activator{}
	c := newTestClient(act)
	ctx := context.Background()
	dir := t.TempDir()

	if _, err := c.FetchAll(ctx, dir, srv.URL+"/bundles/prefabs", srv.URL+"/bundles/levels").Wait(ctx); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	_, err := c.LoadScene(ctx, dir, "prefabs", "Scenes/X", bundle.Replace).Wait(ctx)
	if !errors.Is(err, bundle.ErrWrongKind) {
		t.Errorf("expected ErrWrongKind for scene from asset bundle, got %v", err)
	}
	if n := len(act.Activations()); n != 0 {
		t.Errorf("expected no activation, got %d", n)
	}

	_, err = bundle.LoadAsset[archive.Document](ctx, c, dir, "levels", "Prefabs/Cube.prefab").Wait(ctx)
	if !errors.Is(err, bundle.ErrWrongKind) {
		t.Errorf("expected ErrWrongKind for asset from scene bundle, got %v", err)
	}
}

func TestClientFetchNotFound(t *testing.T) {
	srv := startBundleServer(t, nil)
	c := newTestClient(&bundletest.Activator{})
	ctx := context.Background()

	_, err := c.Fetch(ctx, t.TempDir(), srv.URL+"/bundles/missing").Wait(ctx)
	if !errors.Is(err, bundle.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
	if !errors.Is(err, httpclient.ErrNotFound) {
		t.Errorf("expected http not found cause, got %v", err)
	}
}

func TestClientLoad(t *testing.T) {
	dir := t.TempDir()
	bundletest.WriteArchive(t, dir, "levels", bundletest.SceneManifest("levels", "Scenes/A"), nil)
	c := newTestClient(&bundletest.Activator{})
	ctx := context.Background()

	h, err := c.Load(ctx, dir, "levels").Wait(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer h.Release()
	if !h.HasScene("Scenes/A") {
		t.Errorf("expected Scenes/A, got %v", h.ScenePaths())
	}
}

func TestTaskWaitContext(t *testing.T) {
	tr := bundletest.NewTransport(map[string][]byte{"http://host/slow": testData(10)})
	tr.Gate = make(chan struct{})
	c := bundle.NewClient(bundle.NewFetcher(tr), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	task := c.Fetch(context.Background(), t.TempDir(), "http://host/slow")
	cancel()

	if _, err := task.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from Wait, got %v", err)
	}

	close(tr.Gate)
	if _, err := task.Wait(context.Background()); err != nil {
		t.Errorf("expected task to complete after Wait gave up, got %v", err)
	}
}
