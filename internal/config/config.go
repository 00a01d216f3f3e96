// Package config loads the sgc configuration file.
//
// The file is YAML. Missing keys keep their defaults, then SHADERGRAPH_*
// environment variables override, then the result is validated. Command
// line flags are applied by the caller after Load.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/shadergraph/internal/logging"
)

// Config is the complete sgc configuration.
type Config struct {
	Log    Log    `yaml:"log"`
	Render Render `yaml:"render"`
	Server Server `yaml:"server"`
	Watch  Watch  `yaml:"watch"`

	// Schema is an optional HCL node-type file replacing the built-in one.
	Schema string `yaml:"schema"`

	// BaseDir is where ImageTexture paths are resolved. Empty disables path
	// loading.
	BaseDir string `yaml:"base_dir"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Render holds compile defaults.
type Render struct {
	Width  int `yaml:"width" validate:"gte=1,lte=16384"`
	Height int `yaml:"height" validate:"gte=1,lte=16384"`

	// SPIRV makes realized shader modules and compile output SPIR-V instead
	// of WGSL.
	SPIRV bool `yaml:"spirv"`
}

// Server configures the live-update endpoint.
type Server struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// ReadLimit caps one websocket message in bytes.
	ReadLimit int64 `yaml:"read_limit" validate:"gte=1024"`

	Metrics bool `yaml:"metrics"`
}

// Watch configures file watching.
type Watch struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0,lte=10s"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:    Log{Level: "info", Format: "text"},
		Render: Render{Width: 800, Height: 600},
		Server: Server{Addr: "127.0.0.1:7878", ReadLimit: 16 << 20, Metrics: true},
		Watch:  Watch{Debounce: 150 * time.Millisecond},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path loads only defaults and environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates, without consulting
// the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks field constraints and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("SHADERGRAPH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := getenv("SHADERGRAPH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := getenv("SHADERGRAPH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := getenv("SHADERGRAPH_WIDTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Render.Width = i
		}
	}
	if v := getenv("SHADERGRAPH_HEIGHT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Render.Height = i
		}
	}
	if v := getenv("SHADERGRAPH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Debounce = d
		}
	}
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return logging.New(w, logging.ParseLevel(c.Log.Level), c.Log.Format)
}
