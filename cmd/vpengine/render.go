package main

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/spf13/cobra"
	xdraw "golang.org/x/image/draw"

	"viewport-engine/config"
	"viewport-engine/effects"
	"viewport-engine/internal/harness"
	"viewport-engine/viewport"
)

type renderOptions struct {
	out    string
	hud    bool
	scale  int
	smooth bool
	frames int
	time   float32
}

func newRenderCmd(g *harness.Flags) *cobra.Command {
	o := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render [model]",
		Short: "Render one frame to a PNG",
		Long: "Render a model (.obj, .gltf, .glb or .vmesh) or, without one, the " +
			"reference scene, and write the colour buffer as a PNG.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.Load(cmd)
			if err != nil {
				return err
			}
			model := ""
			if len(args) == 1 {
				model = args[0]
			}
			return runRender(cfg, model, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.out, "out", "o", "frame.png", "output PNG path")
	f.BoolVar(&o.hud, "hud", true, "stamp backend and frame statistics on the image")
	f.IntVar(&o.scale, "scale", 1, "integer upscale factor for the written image")
	f.BoolVar(&o.smooth, "smooth", false, "bilinear instead of nearest upscale")
	f.IntVar(&o.frames, "frames", 1, "frames to render before capturing")
	f.Float32Var(&o.time, "time-of-day", -1, "light the scene as the day cycle at 0..1 (0 noon, 0.5 midnight)")
	return cmd
}

func runRender(cfg config.Config, model string, o *renderOptions) error {
	v := viewport.New(cfg.Width, cfg.Height, cfg.Backend, viewport.WithConfig(cfg))
	if v == nil {
		return fmt.Errorf("failed to create %s viewport", cfg.Backend)
	}
	defer v.Destroy()

	triangles, err := harness.Populate(v, model)
	if err != nil {
		return err
	}
	if o.time >= 0 {
		sky := effects.NewSky()
		sky.Time, sky.Active = o.time, false
		if !sky.Attach(v) {
			return fmt.Errorf("failed to attach day cycle")
		}
		defer sky.Detach()
	}
	for range max(o.frames, 1) {
		v.Render()
	}

	img := frameImage(v)
	if o.hud {
		st := v.Stats()
		h := &harness.HUD{}
		h.Add("%s %dx%d", v.Backend(), cfg.Width, cfg.Height)
		h.Add("%d tris  %d draws  %d culled", triangles, st.DrawCalls, st.CulledMeshes)
		h.Add("frame %.2f ms", float64(st.Total.Microseconds())/1000)
		h.Draw(img)
	}
	img = upscale(img, o.scale, o.smooth)
	return writePNG(o.out, img)
}

// frameImage copies the viewport's colour buffer, which is only valid
// until the next frame.
func frameImage(v *viewport.Viewport) *image.RGBA {
	return rgbaImage(v.ReadColor())
}

func rgbaImage(px []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, px)
	return img
}

func upscale(src *image.RGBA, factor int, smooth bool) *image.RGBA {
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	var s xdraw.Scaler = xdraw.NearestNeighbor
	if smooth {
		s = xdraw.ApproxBiLinear
	}
	s.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
