// vptty runs the interactive viewport inside a terminal. Every cell shows
// two framebuffer rows through an upper half block, so the framebuffer is
// as wide as the terminal and twice as tall as the rows above the status
// line.
//
//	vptty --backend cpu model.glb
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/spf13/cobra"

	"viewport-engine/config"
	"viewport-engine/editor"
	"viewport-engine/internal/harness"
	_ "viewport-engine/internal/opengl"
	"viewport-engine/viewport"
	_ "viewport-engine/vulkan"
)

const version = "0.1.0"

type options struct {
	fps  int
	step float32
}

func newRootCmd() *cobra.Command {
	g := &harness.Flags{}
	o := &options{}
	root := &cobra.Command{
		Use:   "vptty [model]",
		Short: "Interactive viewport in the terminal",
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
	g.Bind(root, 0, 0)
	f := root.Flags()
	f.IntVar(&o.fps, "fps", 30, "target frames per second")
	f.Float32Var(&o.step, "step", 0.25, "camera move per key press in world units")
	return root
}

// fbSize is the framebuffer that fills a terminal of cols x rows, keeping
// the last row for the status line.
func fbSize(cols, rows int) (int, int) {
	return max(cols, 1), max(rows-1, 1) * 2
}

func run(cfg config.Config, model string, o *options) error {
	term := uv.DefaultTerminal()
	cols, rows, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("failed to get terminal size: %w", err)
	}

	w, h := fbSize(cols, rows)
	v := viewport.New(w, h, cfg.Backend, viewport.WithConfig(cfg))
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

	if err := term.Start(); err != nil {
		return fmt.Errorf("failed to start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(cols, rows)
	fmt.Fprint(os.Stdout, "\x1b[?1003h\x1b[?1006h")
	defer func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The viewport is single-threaded: events cross over to this goroutine.
	events := make(chan uv.Event, 64)
	go func() {
		for ev := range term.Events() {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(max(o.fps, 1)))
	defer ticker.Stop()

	status := ""
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				cols, rows = ev.Width, ev.Height
				term.Erase()
				term.Resize(cols, rows)
				v.Resize(fbSize(cols, rows))
			case uv.KeyPressEvent:
				if ev.MatchString("q") || ev.MatchString("ctrl+c") {
					return nil
				}
				if in, ok := harness.KeyEvent(ev.String(), &v.Settings, o.step); ok {
					ctrl.Handle(in)
				}
			default:
				if in, ok := mouseEvent(ev); ok {
					ctrl.Handle(in)
				}
			}
			for _, out := range ctrl.PollEvents() {
				status = describe(out)
			}

		case <-ticker.C:
			v.Render()
			px, fw, fh := v.ReadColor()
			drawFrame(term, px, fw, fh)
			st := v.Stats()
			line := fmt.Sprintf(" %s  %d tris  %d draws  %.1f ms  %s", v.Backend(), triangles, st.DrawCalls,
				float64(st.Total.Microseconds())/1000, status)
			drawStatus(term, line, cols, rows-1)
			if err := term.Display(); err != nil {
				return fmt.Errorf("failed to display frame: %w", err)
			}
		}
	}
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}
