// pkg/fetch/fetch_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: httptest server, real filesystem via t.TempDir
// PURPOSE: Test streaming downloads, cancellation cleanup, size ceiling and
// checksum verification

package fetch_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/fetch"
	"github.com/tf2hud/hudman/pkg/testutil"
	"github.com/tf2hud/hudman/pkg/types"
)

func newFetcher(t *testing.T, maxBytes int64) (*fetch.Fetcher, string) {
	t.Helper()
	staging := filepath.Join(t.TempDir(), ".hudman-staging")
	return fetch.New(fetch.Options{
		StagingDir: staging,
		MaxBytes:   maxBytes,
		Timeout:    10 * time.Second,
	}), staging
}

func stagingEntries(t *testing.T, staging string) []string {
	t.Helper()
	entries, err := os.ReadDir(staging)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFetch_Remote(t *testing.T) {
	payload := bytes.Repeat([]byte("hud"), 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	fetcher, staging := newFetcher(t, 0)

	var lastDone int64
	staged, err := fetcher.Fetch(context.Background(),
		types.RemoteSource(server.URL+"/archive/master.zip"), "",
		func(done, total int64) { lastDone = done })
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(staged, "master.zip"),
		"staged name should come from the URL, got %s", staged)
	assert.Equal(t, staging, filepath.Dir(staged))
	assert.Equal(t, int64(len(payload)), lastDone)

	data, err := os.ReadFile(staged)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFetch_RemoteQueryStringStripped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("content"))
	}))
	defer server.Close()

	fetcher, _ := newFetcher(t, 0)
	staged, err := fetcher.Fetch(context.Background(),
		types.RemoteSource(server.URL+"/s/abc/3HUD.7z?dl=1"), "", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(staged, "3HUD.7z"), "got %s", staged)
}

func TestFetch_RemoteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	fetcher, staging := newFetcher(t, 0)
	_, err := fetcher.Fetch(context.Background(), types.RemoteSource(server.URL+"/gone.zip"), "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSourceUnreachable))
	assert.Empty(t, stagingEntries(t, staging))
}

func TestFetch_CancelledMidTransfer(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// First chunk goes out immediately, then the handler stalls until
		// the client gives up.
		_, _ = w.Write(bytes.Repeat([]byte("x"), 64*1024))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	fetcher, staging := newFetcher(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := fetcher.Fetch(ctx, types.RemoteSource(server.URL+"/big.zip"), "",
		func(done, total int64) {
			// Withdraw the request as soon as bytes start flowing.
			cancel()
		})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCancelled), "got %v", err)

	assert.Empty(t, stagingEntries(t, staging), "cancelled fetch must leave zero staging files")
}

func TestFetch_SourceTooLarge_ContentLength(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	fetcher, staging := newFetcher(t, 1024)
	_, err := fetcher.Fetch(context.Background(), types.RemoteSource(server.URL+"/big.zip"), "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSourceTooLarge))
	assert.Empty(t, stagingEntries(t, staging))
}

func TestFetch_SourceTooLarge_Streaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response: no Content-Length to pre-check against.
		f := w.(http.Flusher)
		for i := 0; i < 8; i++ {
			_, _ = w.Write(bytes.Repeat([]byte("x"), 1024))
			f.Flush()
		}
	}))
	defer server.Close()

	fetcher, staging := newFetcher(t, 2048)
	_, err := fetcher.Fetch(context.Background(), types.RemoteSource(server.URL+"/big.zip"), "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSourceTooLarge))
	assert.Empty(t, stagingEntries(t, staging), "oversized transfer must be cleaned up")
}

func TestFetch_Local(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "myhud.zip")
	require.NoError(t, os.WriteFile(srcPath, []byte("archive bytes"), 0644))

	fetcher, staging := newFetcher(t, 0)
	staged, err := fetcher.Fetch(context.Background(), types.LocalSource(srcPath), "", nil)
	require.NoError(t, err)

	assert.Equal(t, staging, filepath.Dir(staged))
	assert.True(t, strings.HasSuffix(staged, "myhud.zip"))

	data, err := os.ReadFile(staged)
	require.NoError(t, err)
	assert.Equal(t, []byte("archive bytes"), data)

	// The original file is untouched.
	_, err = os.Stat(srcPath)
	assert.NoError(t, err)
}

func TestFetch_LocalMissing(t *testing.T) {
	fetcher, _ := newFetcher(t, 0)
	_, err := fetcher.Fetch(context.Background(),
		types.LocalSource(filepath.Join(t.TempDir(), "nope.zip")), "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSourceUnreachable))
}

func TestFetch_ChecksumVerification(t *testing.T) {
	payload := []byte("hud package payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	good := testutil.Digest(payload)

	fetcher, staging := newFetcher(t, 0)

	t.Run("matching checksum passes", func(t *testing.T) {
		staged, err := fetcher.Fetch(context.Background(),
			types.RemoteSource(server.URL+"/hud.zip"), good, nil)
		require.NoError(t, err)
		require.NoError(t, os.Remove(staged))
	})

	t.Run("mismatch removes the staged file", func(t *testing.T) {
		_, err := fetcher.Fetch(context.Background(),
			types.RemoteSource(server.URL+"/hud.zip"), strings.Repeat("00", 32), nil)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrChecksumMismatch))
		assert.Empty(t, stagingEntries(t, staging))
	})
}
