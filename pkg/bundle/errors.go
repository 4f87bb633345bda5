package bundle

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures by the remedy available to the caller.
type Kind int

const (
	// FetchFailed means the transport could not deliver the bundle. Any
	// partially written cache file has been removed.
	FetchFailed Kind = iota + 1
	// NotFound means the target does not exist where expected: the cache
	// file, a usable deserialized bundle, a scene path or an asset.
	NotFound
	// WrongKind means a scene was requested from an asset bundle or an
	// asset from a scene bundle.
	WrongKind
)

func (k Kind) String() string {
	switch k {
	case FetchFailed:
		return "fetch failed"
	case NotFound:
		return "not found"
	case WrongKind:
		return "wrong kind"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against any *Error of the same Kind.
var (
	ErrFetchFailed = errors.New("bundle: fetch failed")
	ErrNotFound    = errors.New("bundle: not found")
	ErrWrongKind   = errors.New("bundle: wrong kind")
)

// ErrReleased is returned when an extraction is attempted on a handle whose
// memory has already been released.
var ErrReleased = errors.New("bundle: handle already released")

// ErrNoBasename is returned when a source URI has no final path element to
// name its cache entry after.
var ErrNoBasename = errors.New("bundle: uri has no basename")

func (k Kind) sentinel() error {
	switch k {
	case FetchFailed:
		return ErrFetchFailed
	case NotFound:
		return ErrNotFound
	case WrongKind:
		return ErrWrongKind
	default:
		return nil
	}
}

// Error is returned by every pipeline stage on failure. Resources have been
// cleaned up by the time an Error is returned.
//
// Target names what was being fetched or looked up: a URI for FetchFailed,
// a bundle, scene or asset path for NotFound, and the expected container
// kind for WrongKind.
//
// Use errors.Is with ErrFetchFailed, ErrNotFound or ErrWrongKind to branch
// on the kind, or errors.As to inspect Target and the underlying cause.
type Error struct {
	Kind   Kind
	Target string
	Err    error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case FetchFailed:
		msg = fmt.Sprintf("bundle: fetch %s failed", e.Target)
	case NotFound:
		msg = fmt.Sprintf("bundle: %s not found", e.Target)
	case WrongKind:
		msg = fmt.Sprintf("bundle: wrong kind: %s", e.Target)
	default:
		msg = fmt.Sprintf("bundle: %s: %s", e.Kind, e.Target)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func fetchFailed(uri string, err error) error {
	return &Error{Kind: FetchFailed, Target: uri, Err: err}
}

func notFound(target string, err error) error {
	return &Error{Kind: NotFound, Target: target, Err: err}
}

func wrongKind(expected string) error {
	return &Error{Kind: WrongKind, Target: expected}
}
