// Package state persists the catalog's installed-HUD entries to a single
// JSON file. Writes go to a temporary file that is renamed into place, so a
// crash mid-write never corrupts the previously persisted state. Loading is
// forward compatible: unknown fields are ignored and missing fields default.
package state

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"path/filepath"

	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/logging"
	"github.com/tf2hud/hudman/pkg/types"
)

// CurrentVersion is written into every state file. Older versions load as-is
// since fields are only ever added.
const CurrentVersion = 1

// PersistedState is the serialized form of the catalog.
type PersistedState struct {
	Version int `json:"version"`

	// Installed holds one record per committed installation.
	Installed []types.InstalledHud `json:"installed"`

	// Known holds descriptors registered but not installed, so that an
	// added HUD survives restarts without a remote index round trip.
	Known []types.HudDescriptor `json:"known,omitempty"`
}

// Saver reads and writes the persisted state file.
type Saver struct {
	fs   types.FS
	path string
}

// NewSaver creates a Saver for the state file at path.
func NewSaver(filesystem types.FS, path string) *Saver {
	return &Saver{fs: filesystem, path: path}
}

// Save atomically replaces the state file with the given snapshot.
func (s *Saver) Save(st PersistedState) error {
	logger := logging.GetLogger("state")

	st.Version = CurrentVersion
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrPersistenceFailed, "failed to encode state")
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrPersistenceFailed, "failed to create state directory")
	}

	tmp := s.path + ".tmp"
	if err := s.fs.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrPersistenceFailed, "failed to write state file")
	}

	if err := s.fs.Rename(tmp, s.path); err != nil {
		// Don't leave the temporary file behind on a failed commit.
		_ = s.fs.Remove(tmp)
		return errors.Wrap(err, errors.ErrPersistenceFailed, "failed to replace state file")
	}

	logger.Debug().Str("path", s.path).Int("installed", len(st.Installed)).Msg("State saved")
	return nil
}

// Load reads the persisted state. A missing file yields an empty state and
// no error; an unreadable or malformed file returns an error the caller
// treats as "fall back to a full directory scan".
func (s *Saver) Load() (PersistedState, error) {
	var st PersistedState

	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if pathErrorIsNotExist(err) {
			return st, nil
		}
		return st, errors.Wrap(err, errors.ErrPersistenceFailed, "failed to read state file")
	}

	if err := json.Unmarshal(data, &st); err != nil {
		return PersistedState{}, errors.Wrap(err, errors.ErrPersistenceFailed, "state file is malformed")
	}

	return st, nil
}

func pathErrorIsNotExist(err error) bool {
	// afero and os both surface fs.ErrNotExist through errors.Is.
	return stderrors.Is(err, fs.ErrNotExist)
}
