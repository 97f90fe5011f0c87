// pkg/catalog/catalog_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: In-memory filesystem
// PURPOSE: Test cold-start scanning, mutations and persistence projection

package catalog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tf2hud/hudman/pkg/catalog"
	"github.com/tf2hud/hudman/pkg/filesystem"
	"github.com/tf2hud/hudman/pkg/state"
	"github.com/tf2hud/hudman/pkg/types"
)

func installedHud(id, dirName string) types.InstalledHud {
	return types.InstalledHud{
		HudDescriptor: types.HudDescriptor{
			ID:     id,
			Name:   id,
			Source: types.RemoteSource("https://example.com/" + id + ".zip"),
		},
		DirName:     dirName,
		InstalledAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SizeBytes:   128,
	}
}

func TestScan_MatchesPersistedByDirName(t *testing.T) {
	fs := filesystem.NewMem()
	root := "/custom"
	require.NoError(t, fs.MkdirAll(root+"/rayshud/resource", 0755))
	require.NoError(t, fs.MkdirAll(root+"/somebody-elses-mod", 0755))
	require.NoError(t, fs.MkdirAll(root+"/.hudman-staging", 0755))

	persisted := state.PersistedState{
		Installed: []types.InstalledHud{installedHud("rayshud", "rayshud")},
		Known:     []types.HudDescriptor{{ID: "7hud", Name: "7HUD"}},
	}

	c, err := catalog.Scan(fs, root, persisted)
	require.NoError(t, err)

	entry, ok := c.Lookup("rayshud")
	require.True(t, ok)
	require.True(t, entry.IsInstalled())
	assert.Equal(t, "rayshud", entry.Installed.DirName)

	// Unmanaged directory is tracked as foreign, never adopted.
	assert.Equal(t, []string{"somebody-elses-mod"}, c.ForeignDirs())
	assert.True(t, c.DirNameTaken("somebody-elses-mod"))

	// The staging namespace is invisible to the catalog.
	assert.False(t, c.DirNameTaken(".hudman-staging"))

	// Known-but-not-installed descriptors survive the scan.
	known, ok := c.Lookup("7hud")
	require.True(t, ok)
	assert.False(t, known.IsInstalled())

	assert.False(t, c.Dirty())
}

func TestScan_DropsStaleInstallRecords(t *testing.T) {
	fs := filesystem.NewMem()
	root := "/custom"
	require.NoError(t, fs.MkdirAll(root, 0755))

	persisted := state.PersistedState{
		Installed: []types.InstalledHud{installedHud("ghost", "ghost")},
	}

	c, err := catalog.Scan(fs, root, persisted)
	require.NoError(t, err)

	_, ok := c.Lookup("ghost")
	assert.False(t, ok, "record without a directory must be dropped")
	assert.True(t, c.Dirty(), "dropping a stale record requires re-persisting")
}

func TestApply_InstallLifecycle(t *testing.T) {
	c := catalog.New()

	c.Apply(catalog.AddDescriptor(types.HudDescriptor{ID: "rayshud", Name: "rayshud"}))
	entry, ok := c.Lookup("rayshud")
	require.True(t, ok)
	assert.False(t, entry.IsInstalled())
	assert.True(t, c.Dirty())

	c.MarkClean()
	c.Apply(catalog.SetInstalled(installedHud("rayshud", "rayshud")))
	assert.True(t, c.DirNameTaken("rayshud"))
	assert.True(t, c.Dirty())

	c.Apply(catalog.ClearInstalled("rayshud"))
	entry, ok = c.Lookup("rayshud")
	require.True(t, ok, "descriptor survives uninstall")
	assert.False(t, entry.IsInstalled())
	assert.False(t, c.DirNameTaken("rayshud"))

	c.Apply(catalog.RemoveEntry("rayshud"))
	_, ok = c.Lookup("rayshud")
	assert.False(t, ok)
}

func TestLookup_ReturnsCopies(t *testing.T) {
	c := catalog.New()
	c.Apply(catalog.SetInstalled(installedHud("rayshud", "rayshud")))

	entry, _ := c.Lookup("rayshud")
	entry.Installed.DirName = "mutated"

	again, _ := c.Lookup("rayshud")
	assert.Equal(t, "rayshud", again.Installed.DirName, "callers must not reach the catalog's own state")
}

func TestToPersisted(t *testing.T) {
	c := catalog.New()
	c.Apply(
		catalog.SetInstalled(installedHud("rayshud", "rayshud")),
		catalog.AddDescriptor(types.HudDescriptor{ID: "7hud", Name: "7HUD"}),
	)

	st := c.ToPersisted()
	require.Len(t, st.Installed, 1)
	assert.Equal(t, "rayshud", st.Installed[0].ID)
	require.Len(t, st.Known, 1)
	assert.Equal(t, "7hud", st.Known[0].ID)
}
