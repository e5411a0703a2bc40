package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"viewport-engine/config"
	"viewport-engine/internal/harness"
	"viewport-engine/rhi"
	"viewport-engine/viewport"
)

type compareOptions struct {
	dump string
}

func newCompareCmd(g *harness.Flags) *cobra.Command {
	o := &compareOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Render the reference scene on every backend and diff against software",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.Load(cmd)
			if err != nil {
				return err
			}
			return runCompare(cmd, cfg, o)
		},
	}
	cmd.Flags().StringVar(&o.dump, "dump", "", "directory to write each backend's frame as <backend>.png")
	return cmd
}

// renderReference draws the reference scene and returns a copy of the
// frame, or nil when the backend cannot be opened.
func renderReference(cfg config.Config, backend string) []byte {
	v := viewport.New(cfg.Width, cfg.Height, backend)
	if v == nil {
		return nil
	}
	defer v.Destroy()
	viewport.BuildReferenceScene(v)
	v.Render()
	px, _, _ := v.ReadColor()
	return append([]byte(nil), px...)
}

func runCompare(cmd *cobra.Command, cfg config.Config, o *compareOptions) error {
	out := cmd.OutOrStdout()
	ref := renderReference(cfg, rhi.Software)
	if ref == nil {
		return fmt.Errorf("software reference could not be rendered")
	}
	if err := dumpFrame(o.dump, rhi.Software, cfg, ref); err != nil {
		return err
	}

	failed := 0
	fmt.Fprintf(out, "%-10s %9s %8s  %s\n", "backend", "within", "maxdiff", "result")
	for _, name := range rhi.Backends() {
		if name == rhi.Software {
			continue
		}
		px := renderReference(cfg, name)
		if px == nil {
			fmt.Fprintf(out, "%-10s %9s %8s  %s\n", name, "-", "-", "unavailable")
			continue
		}
		if err := dumpFrame(o.dump, name, cfg, px); err != nil {
			return err
		}
		d := viewport.CompareRGBA(ref, px, viewport.EquivalentTolerance)
		result := verdict(d)
		if !d.Equivalent() {
			failed++
		}
		fmt.Fprintf(out, "%-10s %8.2f%% %8d  %s\n", name, 100*d.Ratio(), d.MaxDiff, result)
	}
	if failed > 0 {
		return fmt.Errorf("%d backend(s) below %.0f%% agreement or over max diff %d",
			failed, 100*viewport.EquivalentRatio, viewport.MaxPixelDiff)
	}
	return nil
}

func verdict(d viewport.ImageDiff) string {
	switch {
	case d.Ratio() < viewport.EquivalentRatio:
		return "MISMATCH"
	case d.MaxDiff > viewport.MaxPixelDiff:
		return "OUTLIER"
	case !d.Equivalent():
		return "MISMATCH"
	}
	return "ok"
}

func dumpFrame(dir, backend string, cfg config.Config, px []byte) error {
	if dir == "" {
		return nil
	}
	return writePNG(filepath.Join(dir, backend+".png"), rgbaImage(px, cfg.Width, cfg.Height))
}
