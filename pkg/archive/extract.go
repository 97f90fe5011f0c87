// Package archive validates and unpacks staged HUD package archives and
// scans the result for the HUD directories it contains.
//
// Extraction writes into a private directory that is not yet part of the
// visible catalog namespace; the reconciliation engine decides visibility.
// No partial extraction ever survives: any failure removes the whole
// extraction directory before the error is surfaced.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/logging"
	"github.com/ulikunitz/xz"
)

// Extract unpacks the staged archive into destDir, creating it. The
// container format is chosen by file extension. The whole destination is
// removed before any error is returned.
func Extract(archivePath, destDir string) error {
	logger := logging.GetLogger("archive")

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrCorruptArchive, "failed to create extraction directory")
	}

	err := extractInto(archivePath, destDir)
	if err != nil {
		if rmErr := os.RemoveAll(destDir); rmErr != nil {
			logger.Warn().Err(rmErr).Str("dir", destDir).Msg("Failed to clean up extraction directory")
		}
		return err
	}

	logger.Debug().Str("archive", archivePath).Str("dir", destDir).Msg("Archive extracted")
	return nil
}

func extractInto(archivePath, destDir string) error {
	name := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return extractZip(archivePath, destDir)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return extractTar(archivePath, destDir, func(r io.Reader) (io.Reader, error) {
			return pgzip.NewReader(r)
		})
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return extractTar(archivePath, destDir, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case strings.HasSuffix(name, ".tar.zst"):
		return extractTar(archivePath, destDir, func(r io.Reader) (io.Reader, error) {
			return zstd.NewReader(r)
		})
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		return extractTar(archivePath, destDir, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	case strings.HasSuffix(name, ".tar"):
		return extractTar(archivePath, destDir, func(r io.Reader) (io.Reader, error) {
			return r, nil
		})
	default:
		return errors.Newf(errors.ErrCorruptArchive, "unsupported archive type %q", filepath.Ext(archivePath))
	}
}

// securePath resolves an archive entry name inside dest and rejects
// anything that would land outside it: absolute names, parent-directory
// segments, or tricks that survive filepath.Join.
func securePath(dest, entryName string) (string, error) {
	if filepath.IsAbs(entryName) {
		return "", errors.Newf(errors.ErrUnsafePath, "absolute path in archive: %s", entryName)
	}
	target := filepath.Join(dest, filepath.FromSlash(entryName))
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", errors.Newf(errors.ErrUnsafePath, "illegal file path in archive: %s", entryName)
	}
	return target, nil
}

// secureLinkTarget validates a symlink entry: the resolved target must stay
// within dest.
func secureLinkTarget(dest, entryDir, linkTarget string) error {
	if filepath.IsAbs(linkTarget) {
		return errors.Newf(errors.ErrUnsafePath, "absolute symlink target in archive: %s", linkTarget)
	}
	resolved := filepath.Join(entryDir, filepath.FromSlash(linkTarget))
	if resolved != dest && !strings.HasPrefix(resolved, dest+string(os.PathSeparator)) {
		return errors.Newf(errors.ErrUnsafePath, "symlink escapes extraction directory: %s", linkTarget)
	}
	return nil
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot read archive %q", archivePath)
	}
	defer func() { _ = r.Close() }()

	dest, err := filepath.Abs(destDir)
	if err != nil {
		return errors.Wrap(err, errors.ErrCorruptArchive, "cannot resolve extraction directory")
	}

	// Validate every entry before writing anything: an unsafe entry rejects
	// the whole archive, not just the offending file.
	for _, f := range r.File {
		if _, err := securePath(dest, f.Name); err != nil {
			return err
		}
	}

	for _, f := range r.File {
		fpath, err := securePath(dest, f.Name)
		if err != nil {
			return err
		}

		mode := f.FileInfo().Mode()
		switch {
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create directory %q", f.Name)
			}

		case mode&os.ModeSymlink != 0:
			target, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := secureLinkTarget(dest, filepath.Dir(fpath), string(target)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create directory for %q", f.Name)
			}
			if err := os.Symlink(string(target), fpath); err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create symlink %q", f.Name)
			}

		default:
			if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create directory for %q", f.Name)
			}
			if err := writeZipEntry(f, fpath); err != nil {
				return err
			}
		}
	}
	return nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCorruptArchive, "cannot open archive entry %q", f.Name)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCorruptArchive, "cannot read archive entry %q", f.Name)
	}
	return data, nil
}

func writeZipEntry(f *zip.File, fpath string) error {
	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryMode(f.Mode()))
	if err != nil {
		return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create file %q", fpath)
	}

	rc, err := f.Open()
	if err != nil {
		_ = outFile.Close()
		return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot open archive entry %q", f.Name)
	}

	_, err = io.Copy(outFile, rc)

	// Close files inside the loop to avoid holding too many descriptors.
	_ = rc.Close()
	if closeErr := outFile.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot write file %q", fpath)
	}
	return nil
}

func extractTar(archivePath, destDir string, decompress func(io.Reader) (io.Reader, error)) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot read archive %q", archivePath)
	}
	defer func() { _ = f.Close() }()

	dr, err := decompress(f)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot read archive %q", archivePath)
	}
	if closer, ok := dr.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	dest, err := filepath.Abs(destDir)
	if err != nil {
		return errors.Wrap(err, errors.ErrCorruptArchive, "cannot resolve extraction directory")
	}

	tr := tar.NewReader(dr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot read archive %q", archivePath)
		}

		fpath, err := securePath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create directory %q", hdr.Name)
			}

		case tar.TypeSymlink:
			if err := secureLinkTarget(dest, filepath.Dir(fpath), hdr.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create directory for %q", hdr.Name)
			}
			if err := os.Symlink(hdr.Linkname, fpath); err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create symlink %q", hdr.Name)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create directory for %q", hdr.Name)
			}
			outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryMode(hdr.FileInfo().Mode()))
			if err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot create file %q", hdr.Name)
			}
			_, err = io.Copy(outFile, tr)
			if closeErr := outFile.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot write file %q", hdr.Name)
			}

		default:
			// Hard links, devices and the like have no business in a HUD
			// package.
			return errors.Newf(errors.ErrUnsafePath, "unsupported entry type in archive: %s", hdr.Name)
		}
	}
}

// entryMode normalizes archive entry permissions: keep the executable bit,
// drop everything exotic.
func entryMode(mode os.FileMode) os.FileMode {
	if mode&0111 != 0 {
		return 0755
	}
	return 0644
}
