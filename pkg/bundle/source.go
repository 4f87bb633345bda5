package bundle

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
)

// Source identifies a remote bundle and the local directory it is cached in.
type Source struct {
	URI string
	Dir string
}

// Name returns the cache entry name: the last element of the URI path.
// Query strings and fragments are ignored.
func (s Source) Name() (string, error) {
	u, err := url.Parse(s.URI)
	if err != nil {
		return "", fmt.Errorf("parse uri %q: %w", s.URI, err)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	base := path.Base(p)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("%w: %q", ErrNoBasename, s.URI)
	}
	return base, nil
}

// CachePath returns Dir joined with Name. The same Source always maps to the
// same path.
func (s Source) CachePath() (string, error) {
	name, err := s.Name()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, name), nil
}
