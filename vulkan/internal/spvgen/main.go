// spvgen compiles the Vulkan backend's GLSL into the SPIR-V files the
// package embeds. It runs from go generate in the vulkan directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"viewport-engine/vulkan"
)

func newRootCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:          "spvgen",
		Short:        "Compile the mesh shaders to SPIR-V",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generate(dir, vulkan.ShaderStages, vulkan.CompileGLSL)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "spirv", "output directory")
	return cmd
}

// generate writes one .spv per stage and then the manifest, so a failed
// run never leaves a manifest that vouches for missing modules.
func generate(dir string, stages []vulkan.ShaderStage, compile func(source, stage string) ([]byte, error)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, st := range stages {
		spv, err := compile(st.GLSL, st.Stage)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", st.Name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, st.FileName()), spv, 0o644); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(dir, vulkan.ManifestName), vulkan.FormatManifest(stages), 0o644)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
