package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/spf13/cobra"

	"github.com/gogpu/shadergraph"
	"github.com/gogpu/shadergraph/export"
	"github.com/gogpu/shadergraph/shaderspace"
)

func newCompileCmd(a *app) *cobra.Command {
	var (
		outDir  string
		spirv   bool
		realize bool
	)
	cmd := &cobra.Command{
		Use:   "compile SCENE",
		Short: "Compile a scene and print its render plan summary",
		Long: `Compile a scene file or .zip archive. With --out the WGSL of every
drawing pass is written to the directory, plus SPIR-V with --spirv.
--realize creates every GPU resource on the no-op backend as a dry run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.compileFile(args[0])
			if err != nil {
				return kindError(err)
			}
			w := cmd.OutOrStdout()
			printSummary(w, res)

			spirv = spirv || a.cfg.Render.SPIRV
			if outDir != "" {
				if err := writeShaders(w, outDir, res.Space, spirv); err != nil {
					return err
				}
			}
			if realize {
				if err := dryRun(res.Space, spirv); err != nil {
					return kindError(err)
				}
				fmt.Fprintln(w, "realize:   ok")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for shader sources")
	cmd.Flags().BoolVar(&spirv, "spirv", false, "also emit SPIR-V")
	cmd.Flags().BoolVar(&realize, "realize", false, "create the GPU resources on the no-op backend")
	return cmd
}

func kindError(err error) error {
	return fmt.Errorf("%s: %w", shadergraph.ErrorKind(err), err)
}

func printSummary(w io.Writer, res *shadergraph.Result) {
	p := res.Plan
	fmt.Fprintf(w, "scene:     %s\n", res.Scene.Metadata.Name)
	fmt.Fprintf(w, "size:      %dx%d\n", p.Width, p.Height)
	fmt.Fprintf(w, "passes:    %d\n", len(p.Passes))
	fmt.Fprintf(w, "textures:  %d\n", len(p.Textures))
	fmt.Fprintf(w, "buffers:   %d\n", len(p.Buffers))
	fmt.Fprintf(w, "animated:  %t\n", p.Animated)
	fmt.Fprintf(w, "signature: %016x\n", res.Signature)
}

// fileName maps a pass id such as "compose:a->b" to a file name. Letters,
// digits, dashes and underscores are kept; anything else becomes "_".
func fileName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

func writeShaders(w io.Writer, dir string, s *shaderspace.Space, spirv bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, p := range s.Passes {
		if p.Shader == "" {
			continue
		}
		path := filepath.Join(dir, fileName(p.ID)+".wgsl")
		if err := os.WriteFile(path, []byte(p.Shader), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(w, "wrote", path)
	}
	if !spirv {
		return nil
	}
	mods, err := shaderspace.ExportSPIRV(s)
	if err != nil {
		return kindError(err)
	}
	for _, p := range s.Passes {
		code, ok := mods[p.ID]
		if !ok {
			continue
		}
		path := filepath.Join(dir, fileName(p.ID)+".spv")
		if err := os.WriteFile(path, code, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(w, "wrote", path)
	}
	return nil
}

// dryRun realizes s on the no-op HAL backend and releases it again.
func dryRun(s *shaderspace.Space, spirv bool) error {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return err
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return errors.New("sgc: no-op backend has no adapter")
	}
	dev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		return err
	}
	defer dev.Device.Destroy()

	res, err := shaderspace.Realize(dev.Device, dev.Queue, s, shaderspace.RealizeOptions{SPIRV: spirv})
	if err != nil {
		return err
	}
	res.Destroy()
	return nil
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate SCENE",
		Short: "Check a scene's structure and node types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadScene(args[0])
			if err != nil {
				return kindError(err)
			}
			if err := s.CheckStructure(); err != nil {
				return kindError(err)
			}
			c, err := a.compiler()
			if err != nil {
				return err
			}
			if _, err := c.Schema().Validate(s); err != nil {
				return kindError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d nodes, %d connections\n", len(s.Nodes), len(s.Connections))
			return nil
		},
	}
}

func newGraphCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "graph SCENE",
		Short: "Print the node order and render passes of a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.compileFile(args[0])
			if err != nil {
				return kindError(err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "nodes:")
			for i, id := range res.Prepared.Order {
				fmt.Fprintf(w, "  %2d %-16s %s\n", i, id, res.Prepared.Nodes[id].Type)
			}
			fmt.Fprintln(w, "passes:")
			for i, p := range res.Plan.Passes {
				fmt.Fprintf(w, "  %2d %-24s %-8s -> %s %dx%d\n", i, p.ID, p.Kind, p.Target, p.Width, p.Height)
			}
			return nil
		},
	}
}

func newBakeCmd(a *app) *cobra.Command {
	var (
		outDir string
		ext    string
	)
	cmd := &cobra.Command{
		Use:   "bake SCENE",
		Short: "Write the CPU-baked textures of a scene to image files",
		Long: `Write every texture the plan uploads from the CPU (text, images,
baked layers) to the output directory, one file per texture.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.compileFile(args[0])
			if err != nil {
				return kindError(err)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			n := 0
			for _, t := range res.Space.Textures {
				if t.Upload == "" {
					continue
				}
				buf, ok := res.Space.Buffer(t.Upload)
				if !ok {
					return fmt.Errorf("sgc: texture %s: no upload buffer %s", t.Name, t.Upload)
				}
				img := &export.Image{
					Width:  int(t.Descriptor.Size.Width),
					Height: int(t.Descriptor.Size.Height),
					Format: t.Descriptor.Format,
					Pix:    buf.Data,
				}
				path := filepath.Join(outDir, fileName(t.Name)+ext)
				if err := export.WriteFile(path, img); err != nil {
					return kindError(err)
				}
				fmt.Fprintln(w, "wrote", path)
				n++
			}
			if n == 0 {
				fmt.Fprintln(w, "no baked textures")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&ext, "ext", export.ExtPNG, "image container: .png, .tiff, .bmp or .hdr")
	return cmd
}
