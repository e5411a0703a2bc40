package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"viewport-engine/internal/harness"
	"viewport-engine/rhi"
)

func newBackendsCmd(g *harness.Flags) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List registered backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.Load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			selected := rhi.ParseBackend(cfg.Backend)
			for _, name := range rhi.Backends() {
				mark := " "
				if name == selected {
					mark = "*"
				}
				if !probe {
					fmt.Fprintf(out, "%s %s\n", mark, name)
					continue
				}
				fmt.Fprintf(out, "%s %-10s %s\n", mark, name, probeBackend(name))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "open each backend and report its limits")
	return cmd
}

func probeBackend(name string) string {
	d, err := rhi.Open(name, rhi.DeviceConfig{})
	if err != nil {
		return "unavailable: " + err.Error()
	}
	defer d.Destroy()
	c := d.Caps()
	return fmt.Sprintf("draws/frame %d, ubo align %d, max texture %d, depth [0,1] %t",
		c.MaxDrawsPerFrame, c.UniformAlignment, c.MaxTextureSize, c.DepthZeroToOne)
}
