// Package shadergraph compiles node-graph scenes into GPU render plans.
//
// # Overview
//
// A scene is a JSON document of typed nodes joined by connections. The
// compiler validates it against a node-type schema, rewrites it into a
// prepared scene, resolves which texture every draw node renders into,
// compiles per-node WGSL expressions and emits a render plan: textures,
// buffers, samplers and fullscreen or geometry passes, each with its
// shader, bindings, blend state and load op.
//
// # Quick Start
//
//	s, err := scene.ParseFile("scene.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	c := shadergraph.NewCompiler()
//	res, err := c.Compile(s)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, p := range res.Space.Passes {
//		fmt.Println(p.ID, p.Target)
//	}
//
// # Live Updates
//
// A Driver keeps a scene live while it is edited remotely. Submit takes
// full scenes and deltas, Step compiles the newest one on the render
// loop. A scene that fails to compile never replaces the last good one;
// before any scene has compiled, the driver serves a fixed-color error
// pipeline.
//
// # Architecture
//
//   - scene: scene model, JSON and zip archive loading, live messages
//   - schema: HCL node-type schema and validation
//   - prepare: structural rewrites, topological and composite ordering
//   - resolve: coordinate domains and composition routing
//   - expr: typed WGSL expression compiler
//   - plan: render planner
//   - shaderspace: GPU descriptors, pipeline signature, hal realization
//   - live: scene cache, latest-wins slot, last-known-good cell
//   - export: PNG, TIFF, BMP and Radiance HDR output
//
// The sgc command (cmd/sgc) wraps the compiler: compile, validate, graph,
// bake and a websocket live-update server.
//
// # Logging
//
// shadergraph is silent by default. SetLogger enables structured logging
// for the root package and every sub-package.
package shadergraph
