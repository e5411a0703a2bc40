package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"viewport-engine/internal/harness"
	vio "viewport-engine/io"
)

type convertOptions struct {
	objectID uint32
	split    bool
}

func newConvertCmd(_ *harness.Flags) *cobra.Command {
	o := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert <model> [out.vmesh]",
		Short: "Convert an OBJ or glTF model to the binary .vmesh format",
		Long: "Bake every part's transform into one mesh and write it as .vmesh. " +
			"With --split each part is written to its own file, numbered from the output name.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			return runConvert(cmd, args[0], out, o)
		},
	}
	f := cmd.Flags()
	f.Uint32Var(&o.objectID, "object-id", 1, "object id stored in the file (first id with --split)")
	f.BoolVar(&o.split, "split", false, "write one file per model part")
	return cmd
}

func runConvert(cmd *cobra.Command, in, out string, o *convertOptions) error {
	m, err := harness.LoadModel(in)
	if err != nil {
		return err
	}
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".vmesh"
	}
	if !o.split {
		g := m.Merged()
		if err := writeVMeshFile(out, func(f *os.File) error { return vio.WriteGeometry(f, g, o.objectID) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d vertices, %d triangles\n", out, len(g.Vertices), len(g.Indices)/3)
		return nil
	}

	base := strings.TrimSuffix(out, filepath.Ext(out))
	for i, p := range m.Parts {
		g := p.Geometry.Transform(p.Transform)
		path := fmt.Sprintf("%s_%03d.vmesh", base, i)
		id := o.objectID + uint32(i)
		if err := writeVMeshFile(path, func(f *os.File) error { return vio.WriteGeometry(f, g, id) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d triangles, id %d\n", path, p.Name, len(g.Indices)/3, id)
	}
	return nil
}

func writeVMeshFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
