package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tf2hud/hudman/pkg/config"
	"github.com/tf2hud/hudman/pkg/engine"
	"github.com/tf2hud/hudman/pkg/filesystem"
	"github.com/tf2hud/hudman/pkg/paths"
	"github.com/tf2hud/hudman/pkg/steam"
	"github.com/tf2hud/hudman/pkg/style"
)

// runtime wires the pieces every command needs: resolved paths, effective
// configuration, a live engine, and a renderer for the terminal.
type runtime struct {
	paths    paths.Paths
	cfg      *config.Config
	eng      *engine.Engine
	renderer style.Renderer
	cleanups []func()
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	sandbox, _ := cmd.Root().PersistentFlags().GetBool("sandbox")

	cfg, err := config.Load(paths.DefaultConfigFilePath())
	if err != nil {
		return nil, err
	}

	var (
		p        paths.Paths
		cleanups []func()
	)
	if sandbox {
		sp, cleanup, err := paths.NewSandbox()
		if err != nil {
			return nil, err
		}
		cleanups = append(cleanups, func() { _ = cleanup() })
		p = sp
		fmt.Fprintf(os.Stderr, "sandbox: %s\n", sp.TargetRoot())
	} else {
		targetRoot := cfg.GameDir
		if targetRoot == "" && os.Getenv(paths.EnvTargetRoot) == "" {
			targetRoot, err = steam.NewLocator().LocateGameDir()
			if err != nil {
				return nil, err
			}
		}
		p, err = paths.New(targetRoot)
		if err != nil {
			return nil, err
		}
	}

	eng, err := engine.New(filesystem.NewOS(), p, cfg)
	if err != nil {
		for _, cleanup := range cleanups {
			cleanup()
		}
		return nil, err
	}

	return &runtime{
		paths:    p,
		cfg:      cfg,
		eng:      eng,
		renderer: style.NewRenderer(os.Stdout),
		cleanups: cleanups,
	}, nil
}

func (r *runtime) close() {
	_ = r.eng.Close()
	for _, cleanup := range r.cleanups {
		cleanup()
	}
}

// withRuntime wraps a command body with runtime setup, teardown, and error
// rendering.
func withRuntime(fn func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		rt, err := newRuntime(cmd)
		if err != nil {
			printError(err)
			return err
		}
		defer rt.close()

		if err := fn(ctx, rt, cmd, args); err != nil {
			printError(err)
			return err
		}
		return nil
	}
}

func printError(err error) {
	renderer := style.NewRenderer(os.Stderr)
	fmt.Fprintln(os.Stderr, renderer.RenderError(err))
}
