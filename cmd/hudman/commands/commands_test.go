package commands

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tf2hud/hudman/pkg/paths"
	"github.com/tf2hud/hudman/pkg/testutil"
	"github.com/tf2hud/hudman/pkg/types"
)

// TEST TYPE: CLI Integration
// DEPENDENCIES: Temp directories via environment overrides, httptest
// PURPOSE: Verify the command tree end to end against a throwaway layout

// setupCLIEnv points every hudman directory at temp space so commands
// observe each other's effects without touching the real system.
func setupCLIEnv(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	targetRoot := filepath.Join(root, "custom")
	require.NoError(t, os.MkdirAll(targetRoot, 0755))

	t.Setenv(paths.EnvTargetRoot, targetRoot)
	t.Setenv(paths.EnvDataDir, filepath.Join(root, "data"))
	t.Setenv(paths.EnvConfigDir, filepath.Join(root, "config"))
	t.Setenv(paths.EnvStateDir, filepath.Join(root, "state"))
	return targetRoot
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func TestCLI_Lifecycle(t *testing.T) {
	targetRoot := setupCLIEnv(t)

	payload := testutil.HudArchive(t, "rayshud")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	// add discovers the hud name from info.vdf and registers it.
	require.NoError(t, runCommand(t, "add", srv.URL+"/rayshud.zip"))

	require.NoError(t, runCommand(t, "list"))

	require.NoError(t, runCommand(t, "install", "rayshud"))
	_, err := os.Stat(filepath.Join(targetRoot, "rayshud", "info.vdf"))
	require.NoError(t, err)

	require.NoError(t, runCommand(t, "switch", "rayshud"))
	marker, err := os.ReadFile(filepath.Join(targetRoot, paths.ActiveMarkerName))
	require.NoError(t, err)
	assert.Equal(t, "rayshud", string(marker))

	require.NoError(t, runCommand(t, "info", "rayshud"))

	require.NoError(t, runCommand(t, "uninstall", "rayshud"))
	_, err = os.Stat(filepath.Join(targetRoot, "rayshud"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, runCommand(t, "remove", "rayshud"))
}

func TestCLI_InstallUnknownHudFails(t *testing.T) {
	setupCLIEnv(t)
	err := runCommand(t, "install", "nosuchhud")
	require.Error(t, err)
}

func TestCLI_NoCommandFails(t *testing.T) {
	setupCLIEnv(t)
	err := runCommand(t)
	require.Error(t, err)
}

func TestCLI_SandboxNeedsNoGameDir(t *testing.T) {
	// No target-root override, no Steam install: the sandbox provides
	// everything.
	t.Setenv(paths.EnvTargetRoot, "")
	t.Setenv(paths.EnvConfigDir, filepath.Join(t.TempDir(), "config"))
	require.NoError(t, runCommand(t, "list", "--sandbox"))
}

func TestCLI_GenConfig(t *testing.T) {
	setupCLIEnv(t)

	require.NoError(t, runCommand(t, "gen-config", "--write"))

	data, err := os.ReadFile(paths.DefaultConfigFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_download_bytes")

	// A second write must not clobber the existing file.
	err = runCommand(t, "gen-config", "--write")
	require.Error(t, err)
}

func TestParseSource(t *testing.T) {
	src, err := parseSource("https://example.com/hud.zip")
	require.NoError(t, err)
	assert.Equal(t, types.SourceRemote, src.Kind)

	tmp := t.TempDir()
	archive := filepath.Join(tmp, "hud.zip")
	require.NoError(t, os.WriteFile(archive, []byte("x"), 0644))
	src, err = parseSource(archive)
	require.NoError(t, err)
	assert.Equal(t, types.SourceLocal, src.Kind)
	assert.Equal(t, archive, src.Location)

	_, err = parseSource(filepath.Join(tmp, "missing.zip"))
	require.Error(t, err)
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already clean", in: "rayshud", want: "rayshud"},
		{name: "mixed case", in: "RaysHUD", want: "rayshud"},
		{name: "spaces", in: "Rays HUD", want: "rays-hud"},
		{name: "underscores", in: "rays_hud", want: "rays-hud"},
		{name: "exotic characters dropped", in: "rays!hud™", want: "rayshud"},
		{name: "surrounding dashes trimmed", in: " -rayshud- ", want: "rayshud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeID(tt.in))
		})
	}
}
