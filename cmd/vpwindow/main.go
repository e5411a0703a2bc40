// vpwindow runs the interactive viewport in a desktop window. The engine
// renders offscreen through the chosen backend and the window only shows
// the resulting colour buffer.
//
//	vpwindow --backend vulkan model.glb
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"viewport-engine/config"
	"viewport-engine/editor"
	"viewport-engine/effects"
	"viewport-engine/internal/harness"
	_ "viewport-engine/internal/opengl"
	"viewport-engine/viewport"
	_ "viewport-engine/vulkan"
)

const (
	version = "0.1.0"
	tps     = 60
)

type options struct {
	speed float32
	hud   bool
	day   float32
}

func newRootCmd() *cobra.Command {
	g := &harness.Flags{}
	o := &options{}
	root := &cobra.Command{
		Use:   "vpwindow [model]",
		Short: "Interactive viewport in a desktop window",
		Long: "Orbit, pick and edit a model (.obj, .gltf, .glb or .vmesh) or the " +
			"reference scene with the mouse and keyboard.\n\n" + harness.Controls +
			"\nq           quit",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.Load(cmd)
			if err != nil {
				return err
			}
			model := ""
			if len(args) == 1 {
				model = args[0]
			}
			return run(cfg, model, o)
		},
	}
	g.Bind(root, 1024, 768)
	f := root.Flags()
	f.Float32Var(&o.speed, "speed", 2, "camera speed in world units per second")
	f.BoolVar(&o.hud, "hud", true, "show backend and frame statistics")
	f.Float32Var(&o.day, "day-length", 0, "run a day cycle of this many seconds (0 disables)")
	return root
}

func run(cfg config.Config, model string, o *options) error {
	v := viewport.New(cfg.Width, cfg.Height, cfg.Backend, viewport.WithConfig(cfg))
	if v == nil {
		return fmt.Errorf("failed to create %s viewport", cfg.Backend)
	}
	defer v.Destroy()

	triangles, err := harness.Populate(v, model)
	if err != nil {
		return err
	}
	ctrl := editor.NewController(v)
	defer ctrl.Destroy()

	g := newGame(v, ctrl, o)
	g.triangles = triangles
	if o.day > 0 {
		g.sky = effects.NewSky()
		g.sky.Period = o.day
		if !g.sky.Attach(v) {
			return fmt.Errorf("failed to attach day cycle")
		}
		defer g.sky.Detach()
	}

	ebiten.SetWindowTitle(fmt.Sprintf("vpwindow (%s)", v.Backend()))
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(tps)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}
