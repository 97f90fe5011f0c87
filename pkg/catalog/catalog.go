// Package catalog holds the in-memory model of every HUD known to the
// engine. It is a pure state projection plus an index: the catalog never
// mutates the filesystem, and it is mutated exclusively through Apply, called
// only by the reconciliation engine under its per-identifier serialization.
package catalog

import (
	"sort"

	"github.com/tf2hud/hudman/pkg/logging"
	"github.com/tf2hud/hudman/pkg/paths"
	"github.com/tf2hud/hudman/pkg/state"
	"github.com/tf2hud/hudman/pkg/types"
)

// Entry pairs a descriptor with its optional installation record.
type Entry struct {
	Descriptor types.HudDescriptor
	// Installed is nil while the HUD is not on disk.
	Installed *types.InstalledHud
}

// IsInstalled reports whether the entry has a committed installation.
func (e Entry) IsInstalled() bool { return e.Installed != nil }

// Catalog maps HUD identifiers to entries and tracks which directory names
// under the target root are taken, including foreign (unmanaged) directories
// that hudman must never touch.
type Catalog struct {
	entries map[string]*Entry
	// dirIndex maps a visible directory name to the owning HUD id.
	dirIndex map[string]string
	// foreign is the set of unmanaged directory names seen during scan.
	foreign map[string]struct{}
	dirty   bool
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		entries:  make(map[string]*Entry),
		dirIndex: make(map[string]string),
		foreign:  make(map[string]struct{}),
	}
}

// Scan builds a catalog from the directories actually present under the
// target root, matched against the persisted state by directory name.
// Directories not matching any persisted record are recorded as foreign and
// left untouched. Persisted records whose directory has vanished are dropped.
// Reserved names (the staging namespace, the active marker) are skipped.
func Scan(fs types.FS, root string, persisted state.PersistedState) (*Catalog, error) {
	logger := logging.GetLogger("catalog")
	c := New()

	byDirName := make(map[string]types.InstalledHud, len(persisted.Installed))
	for _, hud := range persisted.Installed {
		byDirName[hud.DirName] = hud
	}

	entries, err := fs.ReadDir(root)
	if err != nil {
		return nil, err
	}

	for _, dirEntry := range entries {
		name := dirEntry.Name()
		if paths.IsReservedName(name) {
			continue
		}
		if !dirEntry.IsDir() {
			continue
		}

		if hud, ok := byDirName[name]; ok {
			installed := hud
			c.entries[hud.ID] = &Entry{Descriptor: hud.HudDescriptor, Installed: &installed}
			c.dirIndex[name] = hud.ID
			continue
		}

		logger.Debug().Str("dir", name).Msg("Unmanaged directory, leaving untouched")
		c.foreign[name] = struct{}{}
	}

	for _, hud := range persisted.Installed {
		if _, ok := c.entries[hud.ID]; !ok {
			logger.Warn().Str("id", hud.ID).Str("dir", hud.DirName).
				Msg("Persisted install has no directory on disk, dropping")
			c.dirty = true
		}
	}

	for _, desc := range persisted.Known {
		if _, ok := c.entries[desc.ID]; !ok {
			c.entries[desc.ID] = &Entry{Descriptor: desc}
		}
	}

	return c, nil
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id string) (Entry, bool) {
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(e), true
}

// Entries returns all entries sorted by identifier.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor.ID < out[j].Descriptor.ID })
	return out
}

// DirNameTaken reports whether a directory name is already claimed, either
// by an installed HUD or by a foreign directory.
func (c *Catalog) DirNameTaken(name string) bool {
	if _, ok := c.dirIndex[name]; ok {
		return true
	}
	_, ok := c.foreign[name]
	return ok
}

// ForeignDirs returns the unmanaged directory names seen during scan.
func (c *Catalog) ForeignDirs() []string {
	out := make([]string, 0, len(c.foreign))
	for name := range c.foreign {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dirty reports whether the catalog has changes not yet persisted.
func (c *Catalog) Dirty() bool { return c.dirty }

// MarkClean records that the current state has been persisted.
func (c *Catalog) MarkClean() { c.dirty = false }

// Mutation is a single change applied to the catalog by the engine.
type Mutation func(*Catalog)

// AddDescriptor registers a HUD without installing it. An existing entry for
// the same id keeps its installation record; the descriptor is replaced
// wholesale.
func AddDescriptor(desc types.HudDescriptor) Mutation {
	return func(c *Catalog) {
		if e, ok := c.entries[desc.ID]; ok {
			e.Descriptor = desc
			return
		}
		c.entries[desc.ID] = &Entry{Descriptor: desc}
	}
}

// SetInstalled records a committed installation.
func SetInstalled(hud types.InstalledHud) Mutation {
	return func(c *Catalog) {
		installed := hud
		c.entries[hud.ID] = &Entry{Descriptor: hud.HudDescriptor, Installed: &installed}
		c.dirIndex[hud.DirName] = hud.ID
	}
}

// ClearInstalled removes the installation record but keeps the descriptor.
func ClearInstalled(id string) Mutation {
	return func(c *Catalog) {
		e, ok := c.entries[id]
		if !ok || e.Installed == nil {
			return
		}
		delete(c.dirIndex, e.Installed.DirName)
		e.Installed = nil
	}
}

// RemoveEntry forgets a HUD entirely.
func RemoveEntry(id string) Mutation {
	return func(c *Catalog) {
		if e, ok := c.entries[id]; ok && e.Installed != nil {
			delete(c.dirIndex, e.Installed.DirName)
		}
		delete(c.entries, id)
	}
}

// Apply runs the mutations and marks the catalog dirty for persistence.
func (c *Catalog) Apply(mutations ...Mutation) {
	for _, m := range mutations {
		m(c)
	}
	c.dirty = true
}

// ToPersisted projects the catalog into its serialized form.
func (c *Catalog) ToPersisted() state.PersistedState {
	var st state.PersistedState
	for _, e := range c.Entries() {
		if e.Installed != nil {
			st.Installed = append(st.Installed, *e.Installed)
		} else {
			st.Known = append(st.Known, e.Descriptor)
		}
	}
	return st
}

func copyEntry(e *Entry) Entry {
	out := Entry{Descriptor: e.Descriptor}
	if e.Installed != nil {
		installed := *e.Installed
		out.Installed = &installed
	}
	return out
}
