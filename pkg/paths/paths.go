// Package paths provides centralized path handling for hudman.
// It implements XDG Base Directory specification compliance and owns the
// reserved-name convention that keeps staging artifacts out of the game's
// visible namespace.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/tf2hud/hudman/pkg/errors"
)

// Environment variable names
const (
	// EnvTargetRoot overrides the game's custom-content directory
	EnvTargetRoot = "HUDMAN_TARGET_ROOT"

	// EnvDataDir overrides the XDG data directory for hudman
	EnvDataDir = "HUDMAN_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for hudman
	EnvConfigDir = "HUDMAN_CONFIG_DIR"

	// EnvStateDir overrides the XDG state directory for hudman
	EnvStateDir = "HUDMAN_STATE_DIR"
)

// Default directories and files
// IMPORTANT: The reserved names below are part of hudman's on-disk contract:
// the game client must never treat them as HUD installs, and the catalog
// scanner skips them. They are not user-configurable.
const (
	// AppDirName is the directory name for hudman-specific files
	AppDirName = "hudman"

	// StagingDirName is the hidden staging namespace inside the target root.
	// Downloads and extractions live here until the final commit rename.
	StagingDirName = ".hudman-staging"

	// ActiveMarkerName is the marker file recording the active HUD
	ActiveMarkerName = ".hudman-active"

	// StateFileName is the persisted catalog snapshot
	StateFileName = "state.json"

	// ConfigFileName is the user configuration file
	ConfigFileName = "config.toml"

	// LogFileName is the name of the log file
	LogFileName = "hudman.log"
)

// ReservedPrefix marks directory entries owned by hudman's machinery rather
// than by an installed HUD.
const ReservedPrefix = ".hudman"

// IsReservedName reports whether a directory entry under the target root
// belongs to hudman's internal namespace.
func IsReservedName(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}

// DefaultConfigFilePath resolves the user config file location without a
// target root, so configuration can be loaded before the game directory is
// known.
func DefaultConfigFilePath() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return filepath.Join(dir, ConfigFileName)
	}
	return filepath.Join(xdg.ConfigHome, AppDirName, ConfigFileName)
}

// Paths provides centralized path management for hudman
type Paths interface {
	// TargetRoot is the game's custom-content directory. It is fixed for
	// the lifetime of the process and never swapped mid-operation.
	TargetRoot() string

	// StagingDir is the reserved staging namespace inside the target root
	StagingDir() string

	// ActiveMarkerPath is the active-HUD marker file inside the target root
	ActiveMarkerPath() string

	DataDir() string
	ConfigDir() string
	StateDir() string

	// StateFilePath is the persisted catalog snapshot
	StateFilePath() string

	// ConfigFilePath is the user configuration file
	ConfigFilePath() string

	LogFilePath() string

	// Sandboxed reports whether the paths live in a disposable sandbox
	Sandboxed() bool
}

// paths provides centralized path management for hudman
type paths struct {
	targetRoot string
	dataDir    string
	configDir  string
	stateDir   string
	sandboxed  bool
}

// New creates a new Paths instance rooted at the given target directory.
// The target root must already be resolved by the caller (config override,
// the game locator, or a sandbox); an empty value is an error.
func New(targetRoot string) (Paths, error) {
	if override := os.Getenv(EnvTargetRoot); override != "" {
		targetRoot = override
	}
	if targetRoot == "" {
		return nil, errors.New(errors.ErrGameNotFound,
			"no target root: game installation not found and no override configured")
	}

	p := &paths{targetRoot: filepath.Clean(targetRoot)}

	if dir := os.Getenv(EnvDataDir); dir != "" {
		p.dataDir = dir
	} else {
		p.dataDir = filepath.Join(xdg.DataHome, AppDirName)
	}

	if dir := os.Getenv(EnvConfigDir); dir != "" {
		p.configDir = dir
	} else {
		p.configDir = filepath.Join(xdg.ConfigHome, AppDirName)
	}

	if dir := os.Getenv(EnvStateDir); dir != "" {
		p.stateDir = dir
	} else {
		p.stateDir = filepath.Join(xdg.StateHome, AppDirName)
	}

	return p, nil
}

func (p *paths) TargetRoot() string { return p.targetRoot }

func (p *paths) StagingDir() string {
	return filepath.Join(p.targetRoot, StagingDirName)
}

func (p *paths) ActiveMarkerPath() string {
	return filepath.Join(p.targetRoot, ActiveMarkerName)
}

func (p *paths) DataDir() string   { return p.dataDir }
func (p *paths) ConfigDir() string { return p.configDir }
func (p *paths) StateDir() string  { return p.stateDir }

func (p *paths) StateFilePath() string {
	return filepath.Join(p.dataDir, StateFileName)
}

func (p *paths) ConfigFilePath() string {
	return filepath.Join(p.configDir, ConfigFileName)
}

func (p *paths) LogFilePath() string {
	return filepath.Join(p.stateDir, LogFileName)
}

func (p *paths) Sandboxed() bool { return p.sandboxed }
