// Package logging provides a process-wide zerolog setup and a small
// helper for obtaining a component-scoped logger, mirroring the
// call-site convention used throughout internal/syncengine and
// internal/mailclient: logging.WithComponent("name").
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	base    = zerolog.New(defaultWriter()).With().Timestamp().Logger()
	inited  bool
)

func defaultWriter() io.Writer {
	return os.Stderr
}

// Init configures the global logger level and output format. Call once
// at process startup (cmd/syncd); safe to call more than once in tests.
func Init(level string, pretty bool) {
	mu.Lock()
	defer mu.Unlock()

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	base = zerolog.New(w).With().Timestamp().Logger()
	inited = true
}

// WithComponent returns a logger scoped to the named component, e.g.
// logging.WithComponent("syncengine").
func WithComponent(name string) zerolog.Logger {
	mu.Lock()
	l := base
	mu.Unlock()
	return l.With().Str("component", name).Logger()
}

// IsInitialized reports whether Init has been called; used by tests that
// want to assert on default (non-pretty) output.
func IsInitialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return inited
}
