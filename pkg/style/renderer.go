package style

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"
	"github.com/tf2hud/hudman/pkg/catalog"
	"github.com/tf2hud/hudman/pkg/errors"
)

// Renderer defines the interface for rendering various output types
type Renderer interface {
	RenderHudList(entries []catalog.Entry, activeID string) string
	RenderHudDetail(entry catalog.Entry, active bool) string
	RenderError(err error) string
}

// NewRenderer picks rich or plain output depending on whether w is a
// terminal that supports color.
func NewRenderer(w io.Writer) Renderer {
	if os.Getenv("NO_COLOR") != "" {
		return &PlainRenderer{}
	}
	f, ok := w.(*os.File)
	if !ok || (!isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())) {
		return &PlainRenderer{}
	}
	if termenv.ColorProfile() == termenv.Ascii {
		return &PlainRenderer{}
	}
	return NewTerminalRenderer()
}

// TerminalRenderer implements Renderer with rich terminal output
type TerminalRenderer struct {
	width int
}

// NewTerminalRenderer creates a new terminal renderer
func NewTerminalRenderer() *TerminalRenderer {
	return &TerminalRenderer{width: 80}
}

// SetWidth updates the terminal width for rendering
func (r *TerminalRenderer) SetWidth(width int) {
	r.width = width
}

// RenderHudList renders the catalog as a listing, one HUD per block.
func (r *TerminalRenderer) RenderHudList(entries []catalog.Entry, activeID string) string {
	if len(entries) == 0 {
		return MutedStyle.Render("No huds known. Try 'hudman refresh' or 'hudman add <url>'.")
	}

	var result strings.Builder
	result.WriteString(TitleStyle.Render("Huds") + "\n\n")

	for _, entry := range entries {
		result.WriteString(fmt.Sprintf("%s %s%s\n",
			pterm.Info.Prefix.Text,
			NameStyle.Render(entry.Descriptor.ID),
			r.renderBadges(entry, activeID)))

		detail := describeEntry(entry)
		if detail != "" {
			result.WriteString("  " + MutedStyle.Render(detail) + "\n")
		}
		result.WriteString("\n")
	}

	return strings.TrimRight(result.String(), "\n")
}

func (r *TerminalRenderer) renderBadges(entry catalog.Entry, activeID string) string {
	var badges []string
	if entry.IsInstalled() {
		badges = append(badges, SuccessStyle.Render("installed"))
	}
	if entry.Descriptor.ID == activeID {
		badges = append(badges, WarningStyle.Render("active"))
	}
	if len(badges) == 0 {
		return ""
	}
	return " [" + strings.Join(badges, ", ") + "]"
}

// RenderHudDetail renders one catalog entry in full.
func (r *TerminalRenderer) RenderHudDetail(entry catalog.Entry, active bool) string {
	var result strings.Builder
	result.WriteString(TitleStyle.Render(entry.Descriptor.Name) + "\n\n")

	write := func(label, value string) {
		if value != "" {
			result.WriteString(fmt.Sprintf("  %-10s %s\n", label, value))
		}
	}

	write("id", NameStyle.Render(entry.Descriptor.ID))
	write("source", PathStyle.Render(entry.Descriptor.Source.Location))
	write("version", entry.Descriptor.Version)
	if entry.IsInstalled() {
		write("status", SuccessStyle.Render("installed"))
		write("directory", PathStyle.Render(entry.Installed.DirName))
		write("installed", entry.Installed.InstalledAt.Local().Format(time.RFC1123))
		write("size", formatSize(entry.Installed.SizeBytes))
	} else {
		write("status", MutedStyle.Render("not installed"))
	}
	if active {
		write("active", WarningStyle.Render("yes"))
	}

	return strings.TrimRight(result.String(), "\n")
}

// RenderError renders an error message
func (r *TerminalRenderer) RenderError(err error) string {
	if err == nil {
		return ""
	}
	if code := errors.GetErrorCode(err); code != errors.ErrUnknown {
		return fmt.Sprintf("%s %s: %s",
			pterm.Error.Prefix.Text,
			pterm.Error.MessageStyle.Sprint(string(code)),
			err.Error())
	}
	return fmt.Sprintf("%s %s", pterm.Error.Prefix.Text, pterm.Error.MessageStyle.Sprint(err.Error()))
}

// PlainRenderer implements Renderer with plain text output (no styling),
// used when stdout is not a terminal.
type PlainRenderer struct{}

func (r *PlainRenderer) RenderHudList(entries []catalog.Entry, activeID string) string {
	if len(entries) == 0 {
		return "No huds known."
	}

	var result strings.Builder
	for _, entry := range entries {
		status := "available"
		if entry.IsInstalled() {
			status = "installed"
		}
		if entry.Descriptor.ID == activeID {
			status += ",active"
		}
		result.WriteString(fmt.Sprintf("%s\t%s\t%s\n", entry.Descriptor.ID, status, entry.Descriptor.Source.Location))
	}
	return strings.TrimRight(result.String(), "\n")
}

func (r *PlainRenderer) RenderHudDetail(entry catalog.Entry, active bool) string {
	var result strings.Builder
	result.WriteString("id: " + entry.Descriptor.ID + "\n")
	result.WriteString("name: " + entry.Descriptor.Name + "\n")
	result.WriteString("source: " + entry.Descriptor.Source.Location + "\n")
	if entry.Descriptor.Version != "" {
		result.WriteString("version: " + entry.Descriptor.Version + "\n")
	}
	if entry.IsInstalled() {
		result.WriteString("status: installed\n")
		result.WriteString("directory: " + entry.Installed.DirName + "\n")
		result.WriteString("installed: " + entry.Installed.InstalledAt.UTC().Format(time.RFC3339) + "\n")
		result.WriteString("size: " + formatSize(entry.Installed.SizeBytes) + "\n")
	} else {
		result.WriteString("status: not installed\n")
	}
	if active {
		result.WriteString("active: yes\n")
	}
	return strings.TrimRight(result.String(), "\n")
}

func (r *PlainRenderer) RenderError(err error) string {
	if err == nil {
		return ""
	}
	if code := errors.GetErrorCode(err); code != errors.ErrUnknown {
		return fmt.Sprintf("error [%s]: %s", code, err.Error())
	}
	return "error: " + err.Error()
}

func describeEntry(entry catalog.Entry) string {
	var parts []string
	if entry.IsInstalled() {
		parts = append(parts, fmt.Sprintf("in %s, %s",
			entry.Installed.DirName, formatSize(entry.Installed.SizeBytes)))
	}
	if entry.Descriptor.Version != "" {
		parts = append(parts, "version "+entry.Descriptor.Version)
	}
	if entry.Descriptor.Source.Location != "" {
		parts = append(parts, entry.Descriptor.Source.Location)
	}
	return strings.Join(parts, " · ")
}

// formatSize renders a byte count for humans.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
