package archive

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/tf2hud/hudman/pkg/logging"
)

// MetaFileName is an optional sidecar a HUD author can ship next to
// info.vdf. Where present it takes precedence over the info.vdf name,
// which is frequently a leftover from whatever HUD the author forked.
const MetaFileName = "hudman.toml"

// HudMeta holds the fields a hudman.toml sidecar may declare.
type HudMeta struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// readHudMeta loads the hudman.toml in dir, if any. A missing file is the
// normal case; a malformed one is logged and ignored so a bad sidecar
// never blocks an install.
func readHudMeta(dir string) *HudMeta {
	data, err := os.ReadFile(filepath.Join(dir, MetaFileName))
	if err != nil {
		return nil
	}

	logger := logging.GetLogger("archive")

	var meta HudMeta
	if err := toml.Unmarshal(data, &meta); err != nil {
		logger.Warn().
			Str("dir", dir).
			Err(err).
			Msg("Ignoring malformed hudman.toml")
		return nil
	}

	logger.Debug().
		Str("dir", dir).
		Str("name", meta.Name).
		Str("version", meta.Version).
		Msg("Loaded HUD metadata sidecar")
	return &meta
}
