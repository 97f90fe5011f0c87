package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/types"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   MsgListShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			fmt.Println(rt.renderer.RenderHudList(rt.eng.Snapshot(), rt.eng.ActiveID()))
			return nil
		}),
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "info <hud>",
		Short:             MsgInfoShort,
		GroupID:           "core",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: hudIDCompletion,
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			id := args[0]
			entry, ok := rt.eng.Lookup(id)
			if !ok {
				return errors.Newf(errors.ErrNotFound, "unknown hud %q", id)
			}

			fmt.Println(rt.renderer.RenderHudDetail(entry, rt.eng.ActiveID() == id))

			if entry.IsInstalled() {
				if readme := findReadme(filepath.Join(rt.paths.TargetRoot(), entry.Installed.DirName)); readme != "" {
					rendered, err := glamour.Render(readme, "auto")
					if err == nil {
						fmt.Println()
						fmt.Println(rendered)
					}
				}
			}
			return nil
		}),
	}
}

func newAddCmd() *cobra.Command {
	var idOverride string

	cmd := &cobra.Command{
		Use:     "add <url|path>",
		Short:   MsgAddShort,
		Long:    MsgAddLong,
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			source, err := parseSource(args[0])
			if err != nil {
				return err
			}

			names, err := rt.eng.Discover(ctx, source)
			if err != nil {
				return err
			}

			if len(names) == 0 {
				if idOverride == "" {
					fmt.Printf(MsgNothingFound, args[0])
					return nil
				}
				names = []string{idOverride}
			}
			if idOverride != "" && len(names) > 1 {
				return errors.Newf(errors.ErrInternal,
					"package provides %d huds, --id only applies to single-hud packages", len(names))
			}

			for _, name := range names {
				id := idOverride
				if id == "" {
					id = normalizeID(name)
				}
				if err := rt.eng.AddHud(types.HudDescriptor{
					ID:     id,
					Name:   name,
					Source: source,
				}); err != nil {
					return err
				}
				fmt.Printf(MsgAdded, id)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&idOverride, "id", "", MsgFlagID)
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "remove <hud>",
		Short:             MsgRemoveShort,
		GroupID:           "core",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: hudIDCompletion,
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if err := rt.eng.RemoveHud(args[0]); err != nil {
				return err
			}
			fmt.Printf(MsgRemoved, args[0])
			return nil
		}),
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "refresh",
		Short:   MsgRefreshShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if err := rt.eng.Refresh(ctx); err != nil {
				return err
			}
			fmt.Printf(MsgRefreshed, len(rt.eng.Snapshot()))
			return nil
		}),
	}
}

// parseSource classifies the add argument: anything with an http(s) scheme
// is a download, everything else must be an archive on disk.
func parseSource(arg string) (types.Source, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return types.RemoteSource(arg), nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return types.Source{}, errors.Wrapf(err, errors.ErrSourceUnreachable, "invalid archive path %q", arg)
	}
	if _, err := os.Stat(abs); err != nil {
		return types.Source{}, errors.Wrapf(err, errors.ErrSourceUnreachable, "archive %q not found", arg)
	}
	return types.LocalSource(abs), nil
}

// normalizeID turns a scanned HUD name into a catalog identifier.
func normalizeID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		case r == ' ', r == '_':
			return '-'
		default:
			return -1
		}
	}, id)
	return strings.Trim(id, "-")
}

// findReadme returns the contents of the first README-looking file at the
// top of dir, or "".
func findReadme(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if name == "readme.md" || name == "readme" || name == "readme.txt" {
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return ""
			}
			return string(data)
		}
	}
	return ""
}
