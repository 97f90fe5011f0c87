// Package fetch obtains HUD package archives, either from a download URL or
// from a local path, streaming them into the reserved staging directory.
// Transfers are cooperatively cancellable at every I/O chunk boundary, and a
// failed or cancelled transfer never leaves a partial file behind.
package fetch

import (
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/logging"
	"github.com/tf2hud/hudman/pkg/types"
	"lukechampine.com/blake3"
)

// copyChunkSize is the granularity at which cancellation and the size
// ceiling are checked during a transfer.
const copyChunkSize = 32 * 1024

// ProgressFunc receives transfer progress. total is -1 when unknown.
type ProgressFunc func(done, total int64)

// Options configures a Fetcher.
type Options struct {
	// StagingDir is where staged archives are written.
	StagingDir string
	// MaxBytes is the archive size ceiling; 0 means unlimited.
	MaxBytes int64
	// Timeout bounds a whole remote transfer; 0 means no timeout.
	Timeout time.Duration
}

// Fetcher stages HUD package archives for extraction.
type Fetcher struct {
	client     *http.Client
	stagingDir string
	maxBytes   int64
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	return &Fetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		stagingDir: opts.StagingDir,
		maxBytes:   opts.MaxBytes,
	}
}

// Fetch obtains the archive for source and returns the staged file path.
// checksum, when non-empty, is the expected hex-encoded BLAKE3 digest of the
// archive; a mismatch fails the fetch. progress may be nil.
func (f *Fetcher) Fetch(ctx context.Context, source types.Source, checksum string, progress ProgressFunc) (string, error) {
	logger := logging.GetLogger("fetch")
	done := logging.LogOperationStart(logger, "fetch "+source.Location)
	defer done()

	if err := os.MkdirAll(f.stagingDir, 0755); err != nil {
		return "", errors.Wrap(err, errors.ErrSourceUnreachable, "failed to create staging directory")
	}

	switch source.Kind {
	case types.SourceRemote:
		return f.fetchRemote(ctx, source.Location, checksum, progress)
	case types.SourceLocal:
		return f.fetchLocal(ctx, source.Location, checksum, progress)
	default:
		return "", errors.Newf(errors.ErrSourceUnreachable, "unknown source kind %q", source.Kind)
	}
}

func (f *Fetcher) fetchRemote(ctx context.Context, url, checksum string, progress ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrSourceUnreachable, "invalid URL %q", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), errors.ErrCancelled, "fetch cancelled")
		}
		return "", errors.Wrapf(err, errors.ErrSourceUnreachable, "failed to download %q", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.ErrSourceUnreachable, "downloading %q: unexpected status %s", url, resp.Status)
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return "", errors.Newf(errors.ErrSourceTooLarge,
			"archive is %d bytes, limit is %d", resp.ContentLength, f.maxBytes)
	}

	name := fileNameFromURL(url)
	if name == "" {
		name = fileNameFromURL(resp.Request.URL.Path)
	}
	if name == "" {
		name = "package.zip"
	}

	return f.stage(ctx, resp.Body, resp.ContentLength, name, checksum, progress)
}

func (f *Fetcher) fetchLocal(ctx context.Context, srcPath, checksum string, progress ProgressFunc) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrSourceUnreachable, "cannot open local archive %q", srcPath)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrSourceUnreachable, "cannot stat local archive %q", srcPath)
	}
	if f.maxBytes > 0 && info.Size() > f.maxBytes {
		return "", errors.Newf(errors.ErrSourceTooLarge,
			"archive is %d bytes, limit is %d", info.Size(), f.maxBytes)
	}

	return f.stage(ctx, src, info.Size(), filepath.Base(srcPath), checksum, progress)
}

// stage streams src into a uniquely named file in the staging directory.
// The staged file is removed on every failure path.
func (f *Fetcher) stage(ctx context.Context, src io.Reader, total int64, name, checksum string, progress ProgressFunc) (string, error) {
	out, err := os.CreateTemp(f.stagingDir, "dl-*-"+sanitizeFileName(name))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrSourceUnreachable, "failed to create staging file")
	}
	stagedPath := out.Name()

	discard := func(cause error) (string, error) {
		_ = out.Close()
		_ = os.Remove(stagedPath)
		return "", cause
	}

	hasher := blake3.New(32, nil)
	written, err := copyChunked(ctx, io.MultiWriter(out, hasher), src, total, f.maxBytes, progress)
	if err != nil {
		return discard(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(stagedPath)
		return "", errors.Wrap(err, errors.ErrSourceUnreachable, "failed to finish staging file")
	}

	if checksum != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, checksum) {
			_ = os.Remove(stagedPath)
			return "", errors.Newf(errors.ErrChecksumMismatch,
				"archive digest %s does not match expected %s", got, checksum)
		}
	}

	logger := logging.GetLogger("fetch")
	logger.Debug().
		Str("path", stagedPath).
		Int64("bytes", written).
		Msg("Archive staged")

	return stagedPath, nil
}

// copyChunked copies src to dst in fixed-size chunks, checking cancellation
// and the byte ceiling at every chunk boundary.
func copyChunked(ctx context.Context, dst io.Writer, src io.Reader, total, maxBytes int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, errors.Wrap(err, errors.ErrCancelled, "transfer cancelled")
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if maxBytes > 0 && written+int64(n) > maxBytes {
				return written, errors.Newf(errors.ErrSourceTooLarge,
					"transfer exceeded the %d byte limit", maxBytes)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, errors.Wrap(err, errors.ErrSourceUnreachable, "failed to write staged file")
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return written, errors.Wrap(ctx.Err(), errors.ErrCancelled, "transfer cancelled")
			}
			return written, errors.Wrap(readErr, errors.ErrSourceUnreachable, "failed to read source")
		}
	}
}

// fileNameFromURL extracts a usable archive file name from a URL: the last
// path segment with any query stripped, accepted only when it carries an
// extension ("master.zip" from .../archive/refs/heads/master.zip,
// "3HUD.7z" from .../3HUD.7z?dl=1).
func fileNameFromURL(url string) string {
	idx := strings.LastIndexByte(url, '/')
	if idx < 0 || idx+1 >= len(url) {
		return ""
	}
	name := url[idx+1:]
	if q := strings.IndexByte(name, '?'); q >= 0 {
		name = name[:q]
	}
	if name == "" || path.Ext(name) == "" {
		return ""
	}
	return name
}

// sanitizeFileName keeps staged file names safe to join under staging.
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "package.zip"
	}
	return strings.Map(func(r rune) rune {
		if r == '*' || r == '?' {
			return '-'
		}
		return r
	}, name)
}
