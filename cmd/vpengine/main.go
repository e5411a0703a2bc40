// vpengine renders, compares and converts scenes headlessly through any
// registered backend.
//
//	vpengine render --backend vulkan --out frame.png model.glb
//	vpengine compare --width 256 --height 192
//	vpengine convert model.obj model.vmesh
//	vpengine backends
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"viewport-engine/internal/harness"
	_ "viewport-engine/internal/opengl"
	_ "viewport-engine/vulkan"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	g := &harness.Flags{}
	root := &cobra.Command{
		Use:           "vpengine",
		Short:         "Headless viewport engine harness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.Bind(root, 800, 600)

	root.AddCommand(
		newRenderCmd(g),
		newCompareCmd(g),
		newConvertCmd(g),
		newBackendsCmd(g),
	)
	return root
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}
