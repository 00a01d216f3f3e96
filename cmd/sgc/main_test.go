package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/shadergraph"
	"github.com/gogpu/shadergraph/internal/config"
	"github.com/gogpu/shadergraph/scene"
)

func writeScene(t *testing.T, s *scene.Scene) string {
	t.Helper()
	data, err := s.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "scene.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func colorScene() *scene.Scene {
	return scene.NewBuilder("cli").
		Node("screen", "Screen", scene.Params{"width": 64.0, "height": 48.0}).
		Node("col", "Color", scene.Params{"value": []any{1.0, 0.5, 0.0, 1.0}}).
		Node("rp", "RenderPass", nil).
		Connect("col", "color", "rp", "color").
		Connect("rp", "pass", "screen", "pass").
		Build()
}

func textScene() *scene.Scene {
	return scene.NewBuilder("text").
		Node("screen", "Screen", scene.Params{"width": 64.0, "height": 48.0}).
		Node("label", "Text", scene.Params{"text": "Hi"}).
		Node("rp", "RenderPass", nil).
		Connect("label", "color", "rp", "color").
		Connect("rp", "pass", "screen", "pass").
		Build()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { shadergraph.SetLogger(nil) })
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompile(t *testing.T) {
	path := writeScene(t, colorScene())
	dir := filepath.Join(t.TempDir(), "out")

	out, err := run(t, "compile", path, "-o", dir, "--realize")
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
	for _, want := range []string{"scene:     cli", "size:      64x48", "passes:    1", "signature: ", "realize:   ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	shaders, _ := filepath.Glob(filepath.Join(dir, "*.wgsl"))
	if len(shaders) != 1 {
		t.Fatalf("wrote %d shaders, want 1", len(shaders))
	}
	src, err := os.ReadFile(shaders[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(src, []byte("fn fs_main")) {
		t.Error("shader has no fs_main entry point")
	}
}

func TestCompileErrors(t *testing.T) {
	unknown := writeScene(t, scene.NewBuilder("x").Node("screen", "Screen", nil).Node("q", "Quasar", nil).Build())
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"compile", filepath.Join(t.TempDir(), "none.json")}, "scene_parse"},
		{"unknown type", []string{"compile", unknown}, "schema_validation"},
		{"bad log format", []string{"--log-format", "xml", "compile", unknown}, "Log.Format"},
		{"no args", []string{"compile"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate", writeScene(t, colorScene()))
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "ok: 3 nodes, 2 connections") {
		t.Errorf("output = %q", out)
	}

	bad := colorScene()
	bad.Connections[0].From.NodeID = "ghost"
	if _, err := run(t, "validate", writeScene(t, bad)); err == nil || !strings.Contains(err.Error(), "scene_parse") {
		t.Errorf("dangling connection error = %v, want scene_parse", err)
	}
}

func TestGraph(t *testing.T) {
	out, err := run(t, "graph", writeScene(t, colorScene()))
	if err != nil {
		t.Fatalf("graph error = %v", err)
	}
	for _, want := range []string{"nodes:", "RenderPass", "passes:", "64x48"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBake(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "bake", writeScene(t, textScene()), "-o", dir)
	if err != nil {
		t.Fatalf("bake error = %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.png"))
	if len(files) != 1 {
		t.Fatalf("wrote %v, want one png\n%s", files, out)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		t.Errorf("baked image is empty: %v", b)
	}

	out, err = run(t, "bake", writeScene(t, colorScene()), "-o", dir)
	if err != nil || !strings.Contains(out, "no baked textures") {
		t.Errorf("bake of a scene without uploads = %q, %v", out, err)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"draw:rp", "draw_rp"},
		{"compose:a->b", "compose_a-_b"},
		{"blur-h_1", "blur-h_1"},
		{"draw:../x", "draw____x"},
	}
	for _, tt := range tests {
		if got := fileName(tt.in); got != tt.want {
			t.Errorf("fileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServeStops(t *testing.T) {
	t.Cleanup(func() { shadergraph.SetLogger(nil) })
	a := &app{cfg: config.Default()}
	a.cfg.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, []string{writeScene(t, colorScene())}) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
