package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ligustah/bundlefetch/internal/logging"
	"github.com/ligustah/bundlefetch/internal/progress"
)

var log = logging.L("bundle")

// ErrTooLarge is returned when a bundle exceeds the fetcher's size limit.
var ErrTooLarge = errors.New("bundle exceeds size limit")

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLockTimeout bounds how long Fetch waits for another process that is
// downloading the same cache entry. Default: 5m.
func WithLockTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.lockTimeout = d
	}
}

// WithMaxSize rejects bundles larger than n bytes. Zero disables the limit.
func WithMaxSize(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxSize = n
	}
}

// Fetcher downloads bundles into a local cache directory, at most once per
// cache path.
type Fetcher struct {
	transport   Transport
	lockTimeout time.Duration
	maxSize     int64
	inflight    singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// NewFetcher creates a Fetcher that downloads through t.
func NewFetcher(t Transport, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		transport:   t,
		lockTimeout: 5 * time.Minute,
		flights:     make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch ensures src is present in its cache directory and returns the cache
// path. If the file already exists no transfer happens. Otherwise the body
// is streamed to a temporary file next to the cache path and renamed into
// place once complete, so a partial download is never visible at the cache
// path.
//
// onProgress receives fractions of bytes received; the last value reported
// before a successful return is 1.0. On failure the returned error is an
// *Error of kind FetchFailed and no file is left at the cache path.
//
// Concurrent calls for the same cache path within a process share a single
// transfer and all receive its progress; across processes an advisory lock
// file (<path>.lock) serializes them. The shared transfer does not depend on
// any one caller's ctx: a caller whose ctx ends stops waiting and fails with
// FetchFailed, and the transfer is cancelled only when no caller is left.
func (f *Fetcher) Fetch(ctx context.Context, src Source, onProgress progress.Func) (string, error) {
	tracker := progress.NewTracker(onProgress)
	defer tracker.Close()

	cachePath, err := src.CachePath()
	if err != nil {
		return "", fetchFailed(src.URI, err)
	}

	if err := os.MkdirAll(src.Dir, 0o755); err != nil {
		return "", fetchFailed(src.URI, fmt.Errorf("create cache dir: %w", err))
	}

	if exists(cachePath) {
		log.Debug("cache hit", logging.KeyURI, src.URI, logging.KeyPath, cachePath)
		tracker.Finish()
		return cachePath, nil
	}

	fl, ch := f.join(ctx, src.URI, cachePath, tracker)
	select {
	case res := <-ch:
		f.leave(cachePath, fl, tracker)
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Debug("joined in-flight transfer", logging.KeyURI, src.URI)
		}
	case <-ctx.Done():
		// The last caller to give up cancels the transfer and waits for its
		// rollback.
		if f.leave(cachePath, fl, tracker) {
			<-ch
		}
		return "", fetchFailed(src.URI, ctx.Err())
	}

	tracker.Finish()
	return cachePath, nil
}

// flight is a transfer shared by every Fetch waiting on one cache path. It
// runs detached from the callers' contexts and is cancelled once the last
// of them leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters map[*progress.Tracker]struct{}
}

// join registers tracker as a waiter on the transfer for cachePath,
// starting one if none is running.
func (f *Fetcher) join(ctx context.Context, uri, cachePath string, tracker *progress.Tracker) (*flight, <-chan singleflight.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl, ok := f.flights[cachePath]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: fctx, cancel: cancel, waiters: make(map[*progress.Tracker]struct{})}
		f.flights[cachePath] = fl
	}
	fl.waiters[tracker] = struct{}{}

	ch := f.inflight.DoChan(cachePath, func() (any, error) {
		return nil, f.transfer(fl.ctx, uri, cachePath, f.reporter(fl))
	})
	return fl, ch
}

// leave removes tracker from fl. It reports whether tracker was the last
// waiter, in which case the transfer has been cancelled.
func (f *Fetcher) leave(cachePath string, fl *flight, tracker *progress.Tracker) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(fl.waiters, tracker)
	if len(fl.waiters) > 0 {
		return false
	}
	fl.cancel()
	if f.flights[cachePath] == fl {
		delete(f.flights, cachePath)
		// A later Fetch must not join the cancelled transfer.
		f.inflight.Forget(cachePath)
	}
	return true
}

// reporter fans transfer progress out to every current waiter of fl.
func (f *Fetcher) reporter(fl *flight) progress.Func {
	return func(frac float64) {
		f.mu.Lock()
		trackers := make([]*progress.Tracker, 0, len(fl.waiters))
		for t := range fl.waiters {
			trackers = append(trackers, t)
		}
		f.mu.Unlock()
		for _, t := range trackers {
			t.Report(frac)
		}
	}
}

// FetchAll fetches every uri into dir concurrently and returns their cache
// paths in order. It returns once all transfers have finished; the first
// failure cancels the remaining transfers and is returned.
func (f *Fetcher) FetchAll(ctx context.Context, dir string, uris []string, onProgress progress.Func) ([]string, error) {
	tracker := progress.NewTracker(onProgress)
	defer tracker.Close()

	agg := progress.NewAggregate(len(uris), tracker.Report)
	paths := make([]string, len(uris))

	g, gctx := errgroup.WithContext(ctx)
	for i, uri := range uris {
		g.Go(func() error {
			p, err := f.Fetch(gctx, Source{URI: uri, Dir: dir}, agg.Part(i))
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tracker.Finish()
	return paths, nil
}

func (f *Fetcher) transfer(ctx context.Context, uri, cachePath string, report progress.Func) error {
	lock := flock.New(cachePath + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, f.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return fetchFailed(uri, fmt.Errorf("acquire cache lock: %w", err))
	}
	if locked {
		defer lock.Unlock()
	}

	// Another process may have completed the transfer while we waited.
	if exists(cachePath) {
		log.Debug("cache filled while waiting for lock", logging.KeyURI, uri)
		return nil
	}

	body, size, err := f.transport.Open(ctx, uri)
	if err != nil {
		return fetchFailed(uri, err)
	}
	defer body.Close()

	if f.maxSize > 0 && size > f.maxSize {
		return fetchFailed(uri, fmt.Errorf("%w: %s > %s", ErrTooLarge,
			progress.FormatBytes(size), progress.FormatBytes(f.maxSize)))
	}

	log.Debug("transfer started", logging.KeyURI, uri, logging.KeyBytes, size)
	report(0)

	dir, name := filepath.Split(cachePath)
	tmp, err := os.CreateTemp(dir, "."+name+".part-*")
	if err != nil {
		return fetchFailed(uri, fmt.Errorf("create temp file: %w", err))
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			log.Warn("remove partial download", logging.KeyPath, tmp.Name(), logging.KeyError, err)
		}
	}()

	var src io.Reader = body
	if f.maxSize > 0 {
		src = io.LimitReader(body, f.maxSize+1)
	}
	counter := progress.NewCounter(size, report)
	n, err := io.Copy(tmp, io.TeeReader(src, counter))
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return fetchFailed(uri, fmt.Errorf("write %s: %w", name, err))
	}
	if f.maxSize > 0 && n > f.maxSize {
		return fetchFailed(uri, fmt.Errorf("%w: more than %s", ErrTooLarge, progress.FormatBytes(f.maxSize)))
	}
	if size >= 0 && n != size {
		return fetchFailed(uri, fmt.Errorf("short body: expected %d bytes, got %d", size, n))
	}

	if err := tmp.Sync(); err != nil {
		return fetchFailed(uri, fmt.Errorf("sync %s: %w", name, err))
	}
	if err := tmp.Close(); err != nil {
		return fetchFailed(uri, fmt.Errorf("close %s: %w", name, err))
	}
	if err := ctx.Err(); err != nil {
		return fetchFailed(uri, err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		return fetchFailed(uri, fmt.Errorf("commit %s: %w", name, err))
	}
	committed = true

	log.Debug("transfer complete", logging.KeyURI, uri, logging.KeyPath, cachePath, logging.KeyBytes, n)
	return nil
}

func exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
