// Command sgc compiles shader-graph scenes and serves live updates.
//
//	sgc compile scene.json -o out/ --spirv
//	sgc validate scene.json
//	sgc graph scene.zip
//	sgc bake scene.json -o textures/ --ext .png
//	sgc serve scene.json --addr :7878
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/shadergraph"
	"github.com/gogpu/shadergraph/internal/config"
	"github.com/gogpu/shadergraph/internal/livesrv"
	"github.com/gogpu/shadergraph/scene"
	"github.com/gogpu/shadergraph/schema"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries configuration shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	width      int
	height     int

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "sgc",
		Short:        "Compile shader-graph scenes into GPU render plans",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML configuration file")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	f.IntVar(&a.width, "width", 0, "default output width when the Screen node has none")
	f.IntVar(&a.height, "height", 0, "default output height when the Screen node has none")

	root.AddCommand(
		newCompileCmd(a),
		newValidateCmd(a),
		newGraphCmd(a),
		newBakeCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.width > 0 {
		cfg.Render.Width = a.width
	}
	if a.height > 0 {
		cfg.Render.Height = a.height
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	shadergraph.SetLogger(cfg.Logger(cmd.ErrOrStderr()))
	return nil
}

// compiler builds a compiler from the configuration. Extra options are
// applied last.
func (a *app) compiler(extra ...shadergraph.CompilerOption) (*shadergraph.Compiler, error) {
	opts := []shadergraph.CompilerOption{
		shadergraph.WithDefaultResolution(a.cfg.Render.Width, a.cfg.Render.Height),
	}
	if a.cfg.Schema != "" {
		s, err := schema.Load(a.cfg.Schema)
		if err != nil {
			return nil, err
		}
		opts = append(opts, shadergraph.WithSchema(s))
	}
	if a.cfg.BaseDir != "" {
		opts = append(opts, shadergraph.WithBaseDir(a.cfg.BaseDir))
	}
	return shadergraph.NewCompiler(append(opts, extra...)...), nil
}

// compileFile loads a scene file or archive and compiles it.
func (a *app) compileFile(path string) (*shadergraph.Result, error) {
	s, ar, err := livesrv.Load(path)
	if err != nil {
		return nil, err
	}
	var extra []shadergraph.CompilerOption
	if ar != nil {
		extra = append(extra, shadergraph.WithAssets(ar))
	}
	c, err := a.compiler(extra...)
	if err != nil {
		return nil, err
	}
	return c.Compile(s)
}

func loadScene(path string) (*scene.Scene, error) {
	s, _, err := livesrv.Load(path)
	return s, err
}
