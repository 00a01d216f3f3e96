package shadergraph

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/shadergraph/expr"
	"github.com/gogpu/shadergraph/plan"
	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/resolve"
	"github.com/gogpu/shadergraph/scene"
	"github.com/gogpu/shadergraph/schema"
	"github.com/gogpu/shadergraph/shaderspace"
)

// Metrics receives compile outcomes. kind is "" on success and an
// ErrorKind label otherwise.
type Metrics interface {
	ObserveCompile(d time.Duration, passes int, kind string)
}

// Result is a compiled scene.
type Result struct {
	// Scene is the validated scene the plan was built from.
	Scene    *scene.Scene
	Prepared *prepare.Prepared
	Plan     *plan.Plan
	Space    *shaderspace.Space

	// Signature changes only when the GPU pipelines must be rebuilt.
	Signature uint64

	// Error is set on results built by ErrorResult.
	Error error

	Duration time.Duration
}

// CompilerOption configures a Compiler.
type CompilerOption func(*compilerOptions)

type compilerOptions struct {
	schema   *schema.Schema
	registry *expr.Registry
	width    int
	height   int
	assets   plan.Assets
	baseDir  string
	metrics  Metrics
}

// WithSchema replaces the built-in node-type schema.
func WithSchema(s *schema.Schema) CompilerOption {
	return func(o *compilerOptions) {
		o.schema = s
	}
}

// WithRegistry replaces the default expression compilers.
func WithRegistry(r *expr.Registry) CompilerOption {
	return func(o *compilerOptions) {
		o.registry = r
	}
}

// WithDefaultResolution sets the output size used when the Screen node
// does not declare one, and the size of the error pipeline.
func WithDefaultResolution(w, h int) CompilerOption {
	return func(o *compilerOptions) {
		if w > 0 && h > 0 {
			o.width, o.height = w, h
		}
	}
}

// WithAssets sets the source of assetId images, typically a
// *scene.Archive.
func WithAssets(a plan.Assets) CompilerOption {
	return func(o *compilerOptions) {
		o.assets = a
	}
}

// WithBaseDir allows ImageTexture nodes to load relative paths below dir.
func WithBaseDir(dir string) CompilerOption {
	return func(o *compilerOptions) {
		o.baseDir = dir
	}
}

// WithMetrics reports every compile to m.
func WithMetrics(m Metrics) CompilerOption {
	return func(o *compilerOptions) {
		o.metrics = m
	}
}

// Compiler runs the compile pipeline. A Compiler holds no state between
// calls and is safe for concurrent use.
type Compiler struct {
	opts compilerOptions
}

// NewCompiler returns a compiler using the built-in schema and default
// expression compilers unless overridden.
func NewCompiler(opts ...CompilerOption) *Compiler {
	o := compilerOptions{
		width:  prepare.DefaultWidth,
		height: prepare.DefaultHeight,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.schema == nil {
		o.schema = schema.Builtin()
	}
	if o.registry == nil {
		o.registry = expr.DefaultRegistry()
	}
	return &Compiler{opts: o}
}

// Schema returns the node-type schema in use.
func (c *Compiler) Schema() *schema.Schema { return c.opts.schema }

// Compile runs validation, preparation, resolution, planning and assembly
// on s. s is not modified. Every call starts from scratch; nothing from a
// previous attempt is reused.
func (c *Compiler) Compile(s *scene.Scene) (res *Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &PanicError{Value: r}
		}
		c.observe(start, res, err)
	}()
	log := logger.Load()

	if err := s.CheckStructure(); err != nil {
		return nil, err
	}
	validated, err := c.opts.schema.Validate(s)
	if err != nil {
		return nil, err
	}
	prepared, err := prepare.Prepare(validated, c.opts.schema, prepare.Options{
		DefaultWidth:  c.opts.width,
		DefaultHeight: c.opts.height,
	})
	if err != nil {
		return nil, err
	}
	resolved, err := resolve.Resolve(prepared)
	if err != nil {
		return nil, err
	}
	p, err := plan.Build(prepared, resolved, plan.Options{
		Assets:   c.opts.assets,
		BaseDir:  c.opts.baseDir,
		Registry: c.opts.registry,
	})
	if err != nil {
		return nil, err
	}
	space := shaderspace.Assemble(p)

	res = &Result{
		Scene:     validated,
		Prepared:  prepared,
		Plan:      p,
		Space:     space,
		Signature: space.Signature,
		Duration:  time.Since(start),
	}
	log.Debug("shadergraph: compiled",
		"scene", s.Metadata.Name,
		"passes", len(p.Passes),
		"textures", len(p.Textures),
		"signature", fmt.Sprintf("%016x", space.Signature),
		"duration", res.Duration)
	return res, nil
}

func (c *Compiler) observe(start time.Time, res *Result, err error) {
	if c.opts.metrics == nil {
		return
	}
	passes := 0
	if res != nil {
		passes = len(res.Plan.Passes)
	}
	c.opts.metrics.ObserveCompile(time.Since(start), passes, ErrorKind(err))
}

// ErrorResult returns the diagnostic pipeline shown for cause. The size
// comes from a resolution error when cause is one, and from the default
// resolution otherwise.
func (c *Compiler) ErrorResult(cause error) *Result {
	w, h := c.opts.width, c.opts.height
	var re *prepare.ResolutionError
	if errors.As(cause, &re) && re.Width > 0 && re.Height > 0 {
		w, h = re.Width, re.Height
	}
	p := plan.ErrorPlan(w, h, plan.ErrorColor)
	space := shaderspace.Assemble(p)
	return &Result{Plan: p, Space: space, Signature: space.Signature, Error: cause}
}
