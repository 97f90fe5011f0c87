// pkg/state/state_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: In-memory filesystem
// PURPOSE: Test atomic persistence, round trips and forward compatibility

package state_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/filesystem"
	"github.com/tf2hud/hudman/pkg/state"
	"github.com/tf2hud/hudman/pkg/types"
)

func sampleState() state.PersistedState {
	return state.PersistedState{
		Installed: []types.InstalledHud{
			{
				HudDescriptor: types.HudDescriptor{
					ID:     "rayshud",
					Name:   "rayshud",
					Source: types.RemoteSource("https://example.com/rayshud.zip"),
				},
				DirName:     "rayshud",
				InstalledAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
				SizeBytes:   4096,
			},
		},
		Known: []types.HudDescriptor{
			{ID: "7hud", Name: "7HUD", Source: types.RemoteSource("https://example.com/7hud.zip")},
		},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	fs := filesystem.NewMem()
	path := "/data/hudman/state.json"
	saver := state.NewSaver(fs, path)

	require.NoError(t, saver.Save(sampleState()))

	loaded, err := saver.Load()
	require.NoError(t, err)

	assert.Equal(t, state.CurrentVersion, loaded.Version)
	require.Len(t, loaded.Installed, 1)
	assert.Equal(t, "rayshud", loaded.Installed[0].ID)
	assert.Equal(t, "rayshud", loaded.Installed[0].DirName)
	assert.Equal(t, int64(4096), loaded.Installed[0].SizeBytes)
	require.Len(t, loaded.Known, 1)
	assert.Equal(t, "7hud", loaded.Known[0].ID)
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	fs := filesystem.NewMem()
	path := "/data/state.json"
	saver := state.NewSaver(fs, path)

	require.NoError(t, saver.Save(sampleState()))

	_, err := fs.Stat(path + ".tmp")
	assert.Error(t, err, "temporary file must not survive a save")

	_, err = fs.Stat(path)
	assert.NoError(t, err)
}

func TestLoad_MissingFileIsEmptyState(t *testing.T) {
	fs := filesystem.NewMem()
	saver := state.NewSaver(fs, "/data/state.json")

	st, err := saver.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Installed)
	assert.Empty(t, st.Known)
}

func TestLoad_MalformedFile(t *testing.T) {
	fs := filesystem.NewMem()
	path := "/data/state.json"
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, fs.WriteFile(path, []byte("{not json"), 0644))

	_, err := state.NewSaver(fs, path).Load()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPersistenceFailed))
}

func TestLoad_IgnoresUnknownFields(t *testing.T) {
	fs := filesystem.NewMem()
	path := "/data/state.json"
	// A file written by a future version with extra fields still loads.
	content := `{
  "version": 3,
  "some_future_field": {"nested": true},
  "installed": [
    {"id": "rayshud", "name": "rayshud", "source": {"kind": "remote", "location": "https://x/r.zip"},
     "dir_name": "rayshud", "installed_at": "2026-03-14T12:00:00Z", "size_bytes": 1, "future": "yes"}
  ]
}`
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, fs.WriteFile(path, []byte(content), 0644))

	st, err := state.NewSaver(fs, path).Load()
	require.NoError(t, err)
	require.Len(t, st.Installed, 1)
	assert.Equal(t, "rayshud", st.Installed[0].DirName)
}

func TestSave_OverwritesPrevious(t *testing.T) {
	fs := filesystem.NewMem()
	saver := state.NewSaver(fs, "/data/state.json")

	require.NoError(t, saver.Save(sampleState()))
	require.NoError(t, saver.Save(state.PersistedState{}))

	st, err := saver.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Installed, "a later save fully replaces the earlier one")
}
