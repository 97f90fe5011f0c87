// Package steam locates the game's installation directory. It is the
// boundary to the platform installer: the engine only consumes the resolved
// custom-content path and treats "not found" as a fatal startup condition
// unless the sandbox is active.
package steam

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/logging"
)

// The game whose HUDs we manage.
const (
	gameDirName   = "Team Fortress 2"
	customRelPath = "tf/custom"
)

// EnvSteamDir overrides Steam root discovery.
const EnvSteamDir = "STEAM_DIR"

// Locator finds the game's custom-content directory.
type Locator interface {
	// LocateGameDir returns the directory the game reads custom HUDs from.
	// Returns an error with code GAME_NOT_FOUND when no installation exists.
	LocateGameDir() (string, error)
}

// defaultLocator searches the conventional Steam library locations.
type defaultLocator struct{}

// NewLocator returns the default Steam-based locator.
func NewLocator() Locator {
	return &defaultLocator{}
}

func (l *defaultLocator) LocateGameDir() (string, error) {
	logger := logging.GetLogger("steam")

	for _, root := range steamRoots() {
		for _, lib := range libraryDirs(root) {
			gameDir := filepath.Join(lib, "steamapps", "common", gameDirName)
			custom := filepath.Join(gameDir, filepath.FromSlash(customRelPath))
			if info, err := os.Stat(custom); err == nil && info.IsDir() {
				logger.Debug().Str("path", custom).Msg("Found game custom directory")
				return custom, nil
			}
			// The game may be installed without the custom dir having been
			// created yet; the directory next to it is proof enough.
			if info, err := os.Stat(gameDir); err == nil && info.IsDir() {
				logger.Debug().Str("path", gameDir).Msg("Found game, creating custom directory path")
				return custom, nil
			}
		}
	}

	return "", errors.New(errors.ErrGameNotFound, "could not locate the game's Steam installation")
}

// steamRoots returns candidate Steam installation roots for this platform.
func steamRoots() []string {
	if dir := os.Getenv(EnvSteamDir); dir != "" {
		return []string{dir}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		return []string{filepath.Join(home, "Library", "Application Support", "Steam")}
	case "windows":
		return []string{
			`C:\Program Files (x86)\Steam`,
			`C:\Program Files\Steam`,
		}
	default:
		return []string{
			filepath.Join(home, ".steam", "steam"),
			filepath.Join(home, ".local", "share", "Steam"),
			filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam"),
		}
	}
}

// libraryDirs returns the root itself plus any extra library folders listed
// in steamapps/libraryfolders.vdf. The VDF is parsed loosely: only the
// quoted values of "path" keys are needed.
func libraryDirs(root string) []string {
	dirs := []string{root}

	data, err := os.ReadFile(filepath.Join(root, "steamapps", "libraryfolders.vdf"))
	if err != nil {
		return dirs
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := splitVDFLine(line)
		if len(fields) == 2 && fields[0] == "path" && fields[1] != root {
			dirs = append(dirs, fields[1])
		}
	}
	return dirs
}

// splitVDFLine extracts the quoted tokens of a VDF line, e.g.
// `    "path"    "/mnt/games/SteamLibrary"` -> ["path", "/mnt/games/SteamLibrary"].
func splitVDFLine(line string) []string {
	var fields []string
	rest := line
	for {
		start := strings.IndexByte(rest, '"')
		if start < 0 {
			break
		}
		rest = rest[start+1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			break
		}
		fields = append(fields, rest[:end])
		rest = rest[end+1:]
	}
	return fields
}
