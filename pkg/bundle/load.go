package bundle

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ligustah/bundlefetch/internal/logging"
	"github.com/ligustah/bundlefetch/internal/progress"
)

// errNoContainer is the cause reported when a decoder yields nothing usable.
var errNoContainer = errors.New("decoder returned no bundle")

// Loader deserializes cached bundle files into Handles.
type Loader struct {
	decoder Decoder
}

// NewLoader creates a Loader that decodes with d.
func NewLoader(d Decoder) *Loader {
	return &Loader{decoder: d}
}

// Load decodes the bundle at cachePath. The caller becomes the sole owner of
// the returned Handle and must eventually release it, usually by passing it
// to an extraction.
//
// A missing file and a file that does not decode into a usable bundle both
// fail with an *Error of kind NotFound. If ctx is cancelled while decoding,
// Load returns ctx.Err() and releases whatever the decoder produces later.
func (l *Loader) Load(ctx context.Context, cachePath string, onProgress progress.Func) (*Handle, error) {
	name := filepath.Base(cachePath)

	fi, err := os.Stat(cachePath)
	if err != nil {
		return nil, notFound(name, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, notFound(name, errors.New("not a regular file"))
	}

	tracker := progress.NewTracker(onProgress)
	defer tracker.Close()

	type result struct {
		c   Container
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := l.decoder.Decode(ctx, cachePath, tracker.Report)
		done <- result{c: c, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil || r.c == nil {
			if r.c != nil {
				r.c.Release(false)
			}
			cause := r.err
			if cause == nil {
				cause = errNoContainer
			}
			log.Debug("bundle load failed", logging.KeyBundle, name, logging.KeyError, cause)
			return nil, notFound(name, cause)
		}
		tracker.Finish()
		log.Debug("bundle loaded", logging.KeyBundle, name, "scenes", r.c.IsSceneContainer())
		return NewHandle(name, r.c), nil

	case <-ctx.Done():
		go func() {
			if r := <-done; r.c != nil {
				r.c.Release(false)
			}
		}()
		return nil, ctx.Err()
	}
}

// LoadNamed loads the bundle called name from dir.
func (l *Loader) LoadNamed(ctx context.Context, dir, name string, onProgress progress.Func) (*Handle, error) {
	return l.Load(ctx, filepath.Join(dir, name), onProgress)
}
