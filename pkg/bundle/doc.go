// Package bundle fetches remote content bundles into a local cache, loads
// them into memory and extracts scenes or typed assets from them.
//
// The pipeline has three stages, each usable on its own:
//
//   - [Fetcher] downloads a [Source] to its cache path at most once.
//   - [Loader] decodes a cached file into a [Handle] through a [Decoder].
//   - [Extractor] and [ExtractAsset] consume a Handle, releasing it on every
//     path.
//
// # Usage
//
//	router := bundle.NewRouter()
//	router.Handle(httpclient.NewClient(httpclient.DefaultOptions()), "http", "https")
//
//	client := bundle.NewClient(
//		bundle.NewFetcher(router),
//		bundle.NewLoader(archive.NewDecoder()),
//		bundle.NewExtractor(activator),
//	)
//
//	task := client.Fetch(ctx, "/var/cache/bundles", "https://cdn.example.com/prefabs")
//	for f := range task.Progress() {
//		fmt.Printf("%.0f%%\n", f*100)
//	}
//	path, err := task.Wait(ctx)
//
//	doc, err := bundle.LoadAsset[archive.Document](ctx, client, dir, "prefabs", "Assets/Cube.prefab").Wait(ctx)
//
// # Caching
//
// The cache path is the source directory joined with the last element of
// the URI path. Its existence is the only cache-hit signal. Downloads are
// written to a temporary file in the same directory and renamed into place,
// so the cache path never holds a partial file. Concurrent fetches of the
// same path share one transfer inside a process and are serialized across
// processes by a <path>.lock file.
//
// # Errors
//
// Failures are *[Error] values of kind [FetchFailed], [NotFound] or
// [WrongKind]:
//
//	if errors.Is(err, bundle.ErrNotFound) { ... }
//
// Cleanup (partial files removed, handles released) has always completed by
// the time an error is returned.
package bundle
