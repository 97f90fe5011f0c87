package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// NewSandbox builds a complete hudman layout under a process-lifetime
// temporary directory: target root, data, config and state dirs. It is the
// testing-mode substitute for the real game directory; every other component
// only ever sees the returned Paths value and cannot tell the difference.
//
// The returned cleanup function removes the whole sandbox recursively and
// must be called on shutdown. Removal is best-effort: a force-killed process
// leaves the directory behind for the OS tempdir reaper.
func NewSandbox() (Paths, func() error, error) {
	root, err := os.MkdirTemp("", "hudman-sandbox-")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sandbox root: %w", err)
	}

	p := &paths{
		targetRoot: filepath.Join(root, "custom"),
		dataDir:    filepath.Join(root, "data"),
		configDir:  filepath.Join(root, "config"),
		stateDir:   filepath.Join(root, "state"),
		sandboxed:  true,
	}

	for _, dir := range []string{p.targetRoot, p.dataDir, p.configDir, p.stateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = os.RemoveAll(root)
			return nil, nil, fmt.Errorf("failed to create sandbox directory %s: %w", dir, err)
		}
	}

	cleanup := func() error {
		return os.RemoveAll(root)
	}

	return p, cleanup, nil
}
