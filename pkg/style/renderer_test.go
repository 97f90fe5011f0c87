package style

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tf2hud/hudman/pkg/catalog"
	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/types"
)

// TEST TYPE: Unit
// DEPENDENCIES: None
// PURPOSE: Verify rendering of listings, details, and errors

func sampleEntries() []catalog.Entry {
	return []catalog.Entry{
		{
			Descriptor: types.HudDescriptor{
				ID: "budhud", Name: "budhud",
				Source: types.RemoteSource("https://example.com/budhud.zip"),
			},
		},
		{
			Descriptor: types.HudDescriptor{
				ID: "rayshud", Name: "rayshud",
				Source:  types.RemoteSource("https://example.com/rayshud.zip"),
				Version: "9.2",
			},
			Installed: &types.InstalledHud{
				HudDescriptor: types.HudDescriptor{ID: "rayshud", Name: "rayshud"},
				DirName:       "rayshud",
				InstalledAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				SizeBytes:     4 << 20,
			},
		},
	}
}

func TestTerminalRenderer_HudList(t *testing.T) {
	r := NewTerminalRenderer()
	out := r.RenderHudList(sampleEntries(), "rayshud")

	assert.Contains(t, out, "budhud")
	assert.Contains(t, out, "rayshud")
	assert.Contains(t, out, "installed")
	assert.Contains(t, out, "active")
}

func TestTerminalRenderer_EmptyList(t *testing.T) {
	r := NewTerminalRenderer()
	out := r.RenderHudList(nil, "")
	assert.Contains(t, out, "No huds known")
}

func TestPlainRenderer_HudList(t *testing.T) {
	r := &PlainRenderer{}
	out := r.RenderHudList(sampleEntries(), "")

	assert.Contains(t, out, "budhud\tavailable")
	assert.Contains(t, out, "rayshud\tinstalled")
}

func TestRenderHudDetail(t *testing.T) {
	entry := sampleEntries()[1]

	for _, r := range []Renderer{NewTerminalRenderer(), &PlainRenderer{}} {
		out := r.RenderHudDetail(entry, true)
		assert.Contains(t, out, "rayshud")
		assert.Contains(t, out, "4.0 MiB")
	}
}

func TestRenderError(t *testing.T) {
	err := errors.New(errors.ErrNotFound, "unknown hud")

	term := NewTerminalRenderer().RenderError(err)
	assert.Contains(t, term, "NOT_FOUND")
	assert.Contains(t, term, "unknown hud")

	plain := (&PlainRenderer{}).RenderError(err)
	assert.Contains(t, plain, "NOT_FOUND")

	assert.Empty(t, NewTerminalRenderer().RenderError(nil))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.0 KiB", formatSize(1024))
	assert.Equal(t, "4.0 MiB", formatSize(4<<20))
}
