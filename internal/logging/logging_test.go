package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(nopHandler); !ok {
		t.Error("WithAttrs() did not return nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup() did not return nopHandler")
	}
}

func TestCellZeroValueSilent(t *testing.T) {
	var c Cell
	l := c.Load()
	if l == nil {
		t.Fatal("Load() returned nil")
	}
	if !IsNop(l) {
		t.Error("zero Cell should be silent")
	}
}

func TestCellStore(t *testing.T) {
	var c Cell
	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c.Store(custom)
	if c.Load() != custom {
		t.Fatal("Load() did not return the stored logger")
	}
	c.Load().Info("hello", "k", 1)
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("output %q lacks message", buf.String())
	}
	c.Store(nil)
	if !IsNop(c.Load()) {
		t.Error("Store(nil) should restore silence")
	}
}

func TestCellConcurrentAccess(t *testing.T) {
	var c Cell
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Load().Debug("read")
		}()
		go func() {
			defer wg.Done()
			c.Store(slog.Default())
			c.Store(nil)
		}()
	}
	wg.Wait()
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelInfo, "json").Info("msg")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json output = %q", buf.String())
	}
	buf.Reset()
	New(&buf, slog.LevelInfo, "text").Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record emitted at info level: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
