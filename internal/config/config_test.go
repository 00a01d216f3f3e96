package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestParse(t *testing.T) {
	src := `
log:
  level: debug
  format: json
render:
  width: 1920
  height: 1080
  spirv: true
watch:
  debounce: 40ms
base_dir: assets
`
	cfg, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v, want debug/json", cfg.Log)
	}
	if cfg.Render.Width != 1920 || cfg.Render.Height != 1080 || !cfg.Render.SPIRV {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Watch.Debounce != 40*time.Millisecond {
		t.Errorf("debounce = %v, want 40ms", cfg.Watch.Debounce)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("addr = %q, want default kept", cfg.Server.Addr)
	}
	if cfg.BaseDir != "assets" {
		t.Errorf("base_dir = %q, want assets", cfg.BaseDir)
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Parse(nil) = %+v, want defaults", cfg)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown key", "render:\n  depth: 3\n", "depth"},
		{"bad level", "log:\n  level: loud\n", "Log.Level"},
		{"bad format", "log:\n  format: xml\n", "Log.Format"},
		{"zero width", "render:\n  width: 0\n", "Render.Width"},
		{"huge height", "render:\n  height: 20000\n", "Render.Height"},
		{"bad addr", "server:\n  addr: nowhere\n", "Server.Addr"},
		{"small limit", "server:\n  read_limit: 10\n", "Server.ReadLimit"},
		{"long debounce", "watch:\n  debounce: 1m\n", "Watch.Debounce"},
		{"not yaml", "log: [", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sgc.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHADERGRAPH_LOG_LEVEL", "WARN")
	t.Setenv("SHADERGRAPH_WIDTH", "320")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("level = %q, want env override warn", cfg.Log.Level)
	}
	if cfg.Render.Width != 320 {
		t.Errorf("width = %d, want 320", cfg.Render.Width)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestApplyEnvIgnoresGarbage(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"SHADERGRAPH_HEIGHT":   "tall",
		"SHADERGRAPH_DEBOUNCE": "soon",
		"SHADERGRAPH_ADDR":     "0.0.0.0:1",
	}
	applyEnv(&cfg, func(k string) string { return env[k] })
	if cfg.Render.Height != Default().Render.Height || cfg.Watch.Debounce != Default().Watch.Debounce {
		t.Errorf("unparsable env changed config: %+v", cfg)
	}
	if cfg.Server.Addr != "0.0.0.0:1" {
		t.Errorf("addr = %q, want 0.0.0.0:1", cfg.Server.Addr)
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.Log = Log{Level: "warn", Format: "json"}
	var buf bytes.Buffer
	l := cfg.Logger(&buf)
	if l.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("warn logger enabled for info")
	}
	l.Warn("careful", "n", 1)
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("output %q is not JSON", buf.String())
	}
}
