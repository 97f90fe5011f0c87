// Package testutil builds the archive fixtures the package and engine tests
// feed through the install pipeline.
package testutil

import (
	"archive/tar"
	"bytes"
	"encoding/hex"
	"os"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

// ArchiveEntry is one entry in a fixture archive.
type ArchiveEntry struct {
	Name string
	Body string
	Dir  bool
}

// ZipBytes builds a zip archive in memory.
func ZipBytes(t *testing.T, entries []ArchiveEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		name := e.Name
		if e.Dir {
			name += "/"
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		if !e.Dir {
			_, err = w.Write([]byte(e.Body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteZip writes a zip archive to path.
func WriteZip(t *testing.T, path string, entries []ArchiveEntry) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, ZipBytes(t, entries), 0644))
}

// WriteTarGz writes a gzipped tar archive to path.
func WriteTarGz(t *testing.T, path string, entries []ArchiveEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gw := pgzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		if e.Dir {
			require.NoError(t, tw.WriteHeader(&tar.Header{
				Name:     e.Name + "/",
				Typeflag: tar.TypeDir,
				Mode:     0755,
			}))
			continue
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     e.Name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(e.Body)),
		}))
		_, err = tw.Write([]byte(e.Body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())
}

// HudArchive builds a zip shaped like a typical HUD release: a single root
// directory holding info.vdf and a resource file.
func HudArchive(t *testing.T, hudName string) []byte {
	t.Helper()
	return ZipBytes(t, []ArchiveEntry{
		{Name: hudName, Dir: true},
		{Name: hudName + "/info.vdf", Body: "\"" + hudName + "\"\n{\n}\n"},
		{Name: hudName + "/resource/clientscheme.res", Body: "\"Scheme\" {}\n"},
	})
}

// Digest returns the hex BLAKE3 digest of data, as carried on descriptors.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
