package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/ligustah/bundlefetch/internal/logging"
	"github.com/ligustah/bundlefetch/internal/progress"
	"github.com/ligustah/bundlefetch/pkg/bundle"
)

var log = logging.L("archive")

var drivePathPattern = regexp.MustCompile(`^[a-zA-Z]:/`)

// Archive errors.
var (
	ErrNotArchive      = errors.New("archive: not a gzipped archive")
	ErrIllegalPath     = errors.New("archive: illegal path")
	ErrMissingManifest = errors.New("archive: missing " + ManifestName)
	ErrMissingFile     = errors.New("archive: asset file missing")
	ErrEntryTooLarge   = errors.New("archive: entry exceeds size limit")
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxEntrySize rejects archive entries larger than n bytes. Zero
// disables the limit. Default: 256 MiB.
func WithMaxEntrySize(n int64) Option {
	return func(d *Decoder) {
		d.maxEntrySize = n
	}
}

// Decoder reads gzipped tar bundles. It implements bundle.Decoder.
type Decoder struct {
	maxEntrySize int64
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{maxEntrySize: 256 << 20}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads the archive at path. Progress is the fraction of the file
// consumed.
func (d *Decoder) Decode(ctx context.Context, path string, onProgress progress.Func) (bundle.Container, error) {
	b, err := d.DecodeFile(ctx, path, onProgress)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeFile is Decode returning the concrete *Bundle.
func (d *Decoder) DecodeFile(ctx context.Context, name string, onProgress progress.Func) (*Bundle, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, errors.New("cannot decode a directory")
	}

	raw, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	if err := ensureArchive(name, raw); err != nil {
		return nil, err
	}

	counter := progress.NewCounter(fi.Size(), onProgress)
	b, err := d.Read(ctx, io.TeeReader(raw, counter))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	log.Debug("archive decoded", logging.KeyPath, name, logging.KeyBundle, b.manifest.Name,
		"assets", len(b.manifest.Assets), "scenes", len(b.manifest.Scenes))
	return b, nil
}

// Read decodes a gzipped tar stream into a Bundle.
func (d *Decoder) Read(ctx context.Context, in io.Reader) (*Bundle, error) {
	files, err := d.readFiles(ctx, in)
	if err != nil {
		return nil, err
	}

	raw, ok := files[ManifestName]
	if !ok {
		return nil, ErrMissingManifest
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return nil, err
	}

	objects := make(map[string]any, len(m.Assets))
	for _, a := range m.Assets {
		data, ok := files[path.Clean(a.File)]
		if !ok {
			return nil, fmt.Errorf("%w: %s (asset %s)", ErrMissingFile, a.File, a.Path)
		}
		obj, err := decodeAsset(a, data)
		if err != nil {
			return nil, err
		}
		objects[a.Path] = obj
	}

	return &Bundle{manifest: *m, objects: objects}, nil
}

// ensureArchive returns an informative error if the file does not look like
// a gzipped archive, then rewinds it.
func ensureArchive(name string, raw *os.File) error {
	defer raw.Seek(0, io.SeekStart)

	buffer := make([]byte, 512)
	n, err := raw.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("file '%s' cannot be read: %w", name, err)
	}
	if contentType := http.DetectContentType(buffer[:n]); contentType != "application/x-gzip" {
		return fmt.Errorf("%w: file '%s' has content type '%s'", ErrNotArchive, name, contentType)
	}
	return nil
}

// readFiles expands the archive into memory, rejecting entries that would
// escape the archive root.
func (d *Decoder) readFiles(ctx context.Context, in io.Reader) (map[string][]byte, error) {
	unzipped, err := gzip.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotArchive, err)
	}
	defer unzipped.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(unzipped)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hd, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if hd.FileInfo().IsDir() {
			continue
		}
		switch hd.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			continue
		}

		n, err := cleanEntryName(hd.Name)
		if err != nil {
			return nil, err
		}

		if d.maxEntrySize > 0 && hd.Size > d.maxEntrySize {
			return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, n)
		}

		var b bytes.Buffer
		if _, err := io.Copy(&b, tr); err != nil {
			return nil, err
		}
		files[n] = b.Bytes()
	}

	if len(files) == 0 {
		return nil, errors.New("archive: no files in archive")
	}
	return files, nil
}

func cleanEntryName(name string) (string, error) {
	// Archives built on Windows may use backslashes.
	n := strings.ReplaceAll(name, "\\", "/")

	if path.IsAbs(n) {
		return "", fmt.Errorf("%w: absolute path %q", ErrIllegalPath, name)
	}
	n = path.Clean(n)
	if n == "." {
		return "", fmt.Errorf("%w: %q", ErrIllegalPath, name)
	}
	if n == ".." || strings.HasPrefix(n, "../") {
		return "", fmt.Errorf("%w: %q references parent directory", ErrIllegalPath, name)
	}
	if drivePathPattern.MatchString(n) {
		return "", fmt.Errorf("%w: %q", ErrIllegalPath, name)
	}
	return n, nil
}
