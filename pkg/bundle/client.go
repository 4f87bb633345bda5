package bundle

import (
	"context"

	"github.com/ligustah/bundlefetch/internal/progress"
)

// Client chains the pipeline stages behind an asynchronous surface. Each
// method starts the operation immediately and returns a Task for it.
type Client struct {
	fetcher   *Fetcher
	loader    *Loader
	extractor *Extractor
}

// NewClient creates a Client from its stages.
func NewClient(f *Fetcher, l *Loader, e *Extractor) *Client {
	return &Client{fetcher: f, loader: l, extractor: e}
}

// Extractor returns the Extractor that owns scenes activated by LoadScene.
func (c *Client) Extractor() *Extractor {
	return c.extractor
}

// Fetch downloads uri into dir unless it is already cached. The task yields
// the cache path.
func (c *Client) Fetch(ctx context.Context, dir, uri string) *Task[string] {
	return start(ctx, func(ctx context.Context, report progress.Func) (string, error) {
		return c.fetcher.Fetch(ctx, Source{URI: uri, Dir: dir}, report)
	})
}

// FetchAll downloads every uri into dir concurrently. The task succeeds
// only when all of them are cached.
func (c *Client) FetchAll(ctx context.Context, dir string, uris ...string) *Task[[]string] {
	return start(ctx, func(ctx context.Context, report progress.Func) ([]string, error) {
		return c.fetcher.FetchAll(ctx, dir, uris, report)
	})
}

// Load decodes the cached bundle dir/name. The caller owns the resulting
// Handle.
func (c *Client) Load(ctx context.Context, dir, name string) *Task[*Handle] {
	return start(ctx, func(ctx context.Context, report progress.Func) (*Handle, error) {
		return c.loader.LoadNamed(ctx, dir, name, report)
	})
}

// LoadScene loads dir/name and activates scenePath from it. Progress covers
// the load stage.
func (c *Client) LoadScene(ctx context.Context, dir, name, scenePath string, mode Mode) *Task[SceneRef] {
	return start(ctx, func(ctx context.Context, report progress.Func) (SceneRef, error) {
		h, err := c.loader.LoadNamed(ctx, dir, name, report)
		if err != nil {
			return SceneRef{}, err
		}
		return c.extractor.ExtractScene(ctx, h, scenePath, mode)
	})
}

// LoadAsset loads dir/name and extracts the object at assetPath as a T.
// Progress covers the load stage.
func LoadAsset[T any](ctx context.Context, c *Client, dir, name, assetPath string) *Task[T] {
	return start(ctx, func(ctx context.Context, report progress.Func) (T, error) {
		h, err := c.loader.LoadNamed(ctx, dir, name, report)
		if err != nil {
			var zero T
			return zero, err
		}
		return ExtractAsset[T](ctx, h, assetPath)
	})
}
