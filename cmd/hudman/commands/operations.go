package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/tf2hud/hudman/pkg/types"
)

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "install <hud>",
		Short:             MsgInstallShort,
		GroupID:           "core",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: hudIDCompletion,
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			id := args[0]
			watchProgress(rt.eng.Events(), id)

			op, err := rt.eng.Install(ctx, id)
			if err != nil {
				return err
			}
			if err := op.Wait(ctx); err != nil {
				return err
			}
			fmt.Printf(MsgInstalled, id)
			return nil
		}),
	}
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "uninstall <hud>",
		Short:             MsgUninstallShort,
		GroupID:           "core",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: hudIDCompletion,
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			id := args[0]
			op, err := rt.eng.Uninstall(ctx, id)
			if err != nil {
				return err
			}
			if err := op.Wait(ctx); err != nil {
				return err
			}
			fmt.Printf(MsgUninstalled, id)
			return nil
		}),
	}
}

func newSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "switch <hud>",
		Short:             MsgSwitchShort,
		GroupID:           "core",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: hudIDCompletion,
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			id := args[0]
			op, err := rt.eng.SwitchActive(ctx, id)
			if err != nil {
				return err
			}
			if err := op.Wait(ctx); err != nil {
				return err
			}
			fmt.Printf(MsgSwitched, id)
			return nil
		}),
	}
}

// watchProgress draws a byte progress bar on stderr while the operation's
// download is in flight. Progress events are advisory, so nothing here is
// load-bearing; on a non-terminal stderr the bar is skipped entirely.
func watchProgress(events <-chan types.Event, id string) {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return
	}

	go func() {
		var bar *progressbar.ProgressBar
		for ev := range events {
			switch e := ev.(type) {
			case types.OperationProgress:
				if e.ID != id {
					continue
				}
				switch e.Phase {
				case types.StateFetching:
					if e.BytesTotal > 0 {
						if bar == nil {
							bar = progressbar.DefaultBytes(e.BytesTotal, "downloading")
						}
						_ = bar.Set64(e.BytesDone)
					}
				case types.StateExtracting:
					if bar != nil {
						_ = bar.Finish()
						bar = nil
					}
				}
			case types.OperationCompleted:
				if e.ID == id {
					if bar != nil {
						_ = bar.Finish()
					}
					return
				}
			}
		}
	}()
}

// hudIDCompletion provides shell completion for hud identifiers.
func hudIDCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	rt, err := newRuntime(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer rt.close()

	var ids []string
	for _, entry := range rt.eng.Snapshot() {
		ids = append(ids, entry.Descriptor.ID)
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
