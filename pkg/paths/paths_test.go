// pkg/paths/paths_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Environment variables only
// PURPOSE: Test path resolution, env overrides and the reserved-name rules

package paths_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/paths"
)

func TestNew(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv(paths.EnvDataDir, filepath.Join(tempDir, "data"))
	t.Setenv(paths.EnvConfigDir, filepath.Join(tempDir, "config"))
	t.Setenv(paths.EnvStateDir, filepath.Join(tempDir, "state"))

	target := filepath.Join(tempDir, "custom")
	p, err := paths.New(target)
	require.NoError(t, err)

	assert.Equal(t, target, p.TargetRoot())
	assert.Equal(t, filepath.Join(target, ".hudman-staging"), p.StagingDir())
	assert.Equal(t, filepath.Join(target, ".hudman-active"), p.ActiveMarkerPath())
	assert.Equal(t, filepath.Join(tempDir, "data", "state.json"), p.StateFilePath())
	assert.Equal(t, filepath.Join(tempDir, "config", "config.toml"), p.ConfigFilePath())
	assert.False(t, p.Sandboxed())
}

func TestNew_NoTargetRoot(t *testing.T) {
	t.Setenv(paths.EnvTargetRoot, "")

	_, err := paths.New("")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrGameNotFound))
}

func TestNew_TargetRootEnvOverride(t *testing.T) {
	override := t.TempDir()
	t.Setenv(paths.EnvTargetRoot, override)

	p, err := paths.New("/somewhere/else")
	require.NoError(t, err)
	assert.Equal(t, override, p.TargetRoot())
}

func TestIsReservedName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{".hudman-staging", true},
		{".hudman-active", true},
		{".hudman-extract-rayshud", true},
		{"rayshud", false},
		{".hidden", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, paths.IsReservedName(tt.name), tt.name)
	}
}

func TestNewSandbox(t *testing.T) {
	p, cleanup, err := paths.NewSandbox()
	require.NoError(t, err)

	assert.True(t, p.Sandboxed())
	for _, dir := range []string{p.TargetRoot(), p.DataDir(), p.ConfigDir(), p.StateDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}

	require.NoError(t, cleanup())

	_, err = os.Stat(p.TargetRoot())
	assert.True(t, os.IsNotExist(err), "sandbox should be removed recursively")
}
