package types

import (
	"time"
)

// SourceKind discriminates where HUD package bytes come from.
type SourceKind string

const (
	// SourceRemote is a HTTP(S) download location.
	SourceRemote SourceKind = "remote"
	// SourceLocal is a path to an archive already on disk.
	SourceLocal SourceKind = "local"
)

// Source identifies where a HUD package can be obtained from.
type Source struct {
	Kind     SourceKind `json:"kind" yaml:"kind"`
	Location string     `json:"location" yaml:"location"`
}

// RemoteSource returns a Source for a download URL.
func RemoteSource(url string) Source {
	return Source{Kind: SourceRemote, Location: url}
}

// LocalSource returns a Source for an archive file on disk.
func LocalSource(path string) Source {
	return Source{Kind: SourceLocal, Location: path}
}

// IsZero reports whether the source is unset.
func (s Source) IsZero() bool {
	return s.Kind == "" && s.Location == ""
}

// HudDescriptor identifies one HUD package known to the catalog.
// Descriptors are immutable once created; updates replace them wholesale.
type HudDescriptor struct {
	// ID is the stable identifier, unique within the catalog.
	ID string `json:"id" yaml:"id"`
	// Name is the human-readable display name.
	Name string `json:"name" yaml:"name"`
	// Source is where the package archive is obtained from.
	Source Source `json:"source" yaml:"source"`
	// Version is an optional revision tag.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	// Checksum is an optional hex-encoded BLAKE3 digest of the archive.
	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// InstalledHud is a descriptor plus the on-disk attributes of a committed
// installation. It exists only while the corresponding directory is visible
// under the target root.
type InstalledHud struct {
	HudDescriptor

	// DirName is the directory name under the target root. Unique among
	// siblings; usually the descriptor ID, suffixed on collision.
	DirName string `json:"dir_name"`
	// InstalledAt is when the install was committed.
	InstalledAt time.Time `json:"installed_at"`
	// SizeBytes is the size of the installed tree on disk.
	SizeBytes int64 `json:"size_bytes"`
}
