package archive

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/logging"
)

// InfoFileName is the marker file every HUD carries at its root. Its
// top-level key is the HUD's display name.
const InfoFileName = "info.vdf"

// HudDir is a directory inside an extracted package that holds a complete
// HUD, identified by its info.vdf marker.
type HudDir struct {
	// Path is the absolute path of the HUD directory.
	Path string
	// Name is the name declared by a hudman.toml sidecar if present,
	// else the one declared in info.vdf, else the directory's base name.
	Name string
}

// ScanPackage walks root and returns every directory that contains an
// info.vdf file, sorted by path. Nested HUDs under an already matched
// directory are not descended into.
func ScanPackage(root string) ([]HudDir, error) {
	logger := logging.GetLogger("archive")

	var huds []HudDir
	err := walkForHuds(root, &huds)
	if err != nil {
		return nil, err
	}

	sort.Slice(huds, func(i, j int) bool { return huds[i].Path < huds[j].Path })
	logger.Debug().Str("root", root).Int("count", len(huds)).Msg("Package scanned")
	return huds, nil
}

func walkForHuds(dir string, huds *[]HudDir) error {
	infoPath := filepath.Join(dir, InfoFileName)
	if _, err := os.Stat(infoPath); err == nil {
		name := ""
		if meta := readHudMeta(dir); meta != nil {
			name = meta.Name
		}
		if name == "" {
			name = hudNameFromInfo(infoPath)
		}
		if name == "" {
			name = filepath.Base(dir)
		}
		*huds = append(*huds, HudDir{Path: dir, Name: name})
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCorruptArchive, "cannot scan package directory %q", dir)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := walkForHuds(filepath.Join(dir, entry.Name()), huds); err != nil {
			return err
		}
	}
	return nil
}

// SelectHudDir picks the directory to install for the HUD identified by id
// out of an extracted package:
//
//   - a scanned HUD whose name matches id (case-insensitive) wins;
//   - otherwise a lone scanned HUD wins;
//   - otherwise a lone top-level directory is assumed to be the HUD
//     (source archives from code forges wrap everything in one);
//   - otherwise root itself is the HUD.
func SelectHudDir(root, id string) (string, error) {
	huds, err := ScanPackage(root)
	if err != nil {
		return "", err
	}

	for _, hud := range huds {
		if strings.EqualFold(hud.Name, id) {
			return hud.Path, nil
		}
	}
	if len(huds) == 1 {
		return huds[0].Path, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCorruptArchive, "cannot scan package directory %q", root)
	}
	var dirs []string
	loose := false
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else {
			loose = true
		}
	}
	if len(dirs) == 1 && !loose {
		return filepath.Join(root, dirs[0]), nil
	}
	return root, nil
}

// hudNameFromInfo reads the top-level key out of an info.vdf file. The
// format in the wild is messy, so the parse is deliberately loose: the
// first token before the opening brace is the name, quoted or not. An
// unreadable or empty file yields "".
func hudNameFromInfo(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return parseVDFKey(data)
}

func parseVDFKey(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if idx := strings.Index(line, "{"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "\"") {
			if end := strings.Index(line[1:], "\""); end >= 0 {
				return line[1 : end+1]
			}
			return strings.Trim(line, "\"")
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}
