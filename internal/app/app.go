// Package app holds the command runners behind the aptdec binary. Each
// runner takes an Env with the loaded configuration and a logger, and an
// options struct filled from flags.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/large-farva/aptdec/internal/config"
	"github.com/large-farva/aptdec/internal/server"
	"github.com/large-farva/aptdec/internal/telemetry"
	"github.com/large-farva/aptdec/internal/ws"
)

// Env is what every command needs from the caller.
type Env struct {
	Cfg    config.Config
	Log    *slog.Logger
	Stdout io.Writer
}

func (e Env) logger() *slog.Logger {
	if e.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Log
}

func (e Env) stdout() io.Writer {
	if e.Stdout == nil {
		return io.Discard
	}
	return e.Stdout
}

// NewLogger returns a text logger at level writing to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// DefaultConfigPath is where the CLI looks for a config file when -c is
// not given.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "aptdec.toml"
	}
	return filepath.Join(dir, "aptdec", "aptdec.toml")
}

// LoadConfig loads path, or the default location when path is empty. A
// missing default file is not an error.
func LoadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.LoadOrDefault(DefaultConfigPath())
	}
	return config.Load(path)
}

// replaceExt swaps the extension of path.
func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// Serve runs the decode service until ctx is cancelled. Log records at
// info and above are also streamed to event clients.
func Serve(ctx context.Context, env Env, bind string) error {
	base := env.logger()
	hub := ws.NewHub(base, false)
	srv := server.New(server.Options{
		Logger:  slog.New(telemetry.NewLogHandler(base.Handler(), hub, slog.LevelInfo)),
		Cfg:     env.Cfg,
		Bind:    bind,
		Hub:     hub,
		Version: VersionInfo(),
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// errUsage marks errors caused by bad arguments.
var errUsage = errors.New("usage")

// IsUsage reports whether err came from bad arguments.
func IsUsage(err error) bool { return errors.Is(err, errUsage) }

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
