// Package logging configures the global zerolog logger used by every pokedex package.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is the textual level from config (LOG_LEVEL).
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr so stdout stays free for command output.
	Output io.Writer

	// Service is stamped on every line when set (pokedex, pokedex-bff).
	Service string
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. Packages pick it up
// through NewLogger or the zerolog/log package.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	lctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		lctx = lctx.Str("service", cfg.Service)
	}
	logger := lctx.Logger()

	log.Logger = logger
	return logger
}

// parseLevel falls back to info for unknown values. "warning" is accepted as warn.
func parseLevel(level LogLevel) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(string(level)))
	if name == "warning" {
		name = "warn"
	}
	switch lvl, err := zerolog.ParseLevel(name); {
	case err != nil, name == "", lvl < zerolog.DebugLevel, lvl > zerolog.ErrorLevel:
		return zerolog.InfoLevel
	default:
		return lvl
	}
}

// NewLogger returns the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit, revalidation, TTL)
//   - Pager transitions (initial load, next page, retry)
//   - Cancelled fetches
//
// Info: Normal operation events
//   - BFF access log lines
//   - Batch fetch progress and completion
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed page fetches (network, http, unknown)
//   - Shared cooldown started
//   - Cache or position store errors (fallback to upstream or defaults)
//   - Dropped pager events
//
// Error: Error conditions requiring attention
//   - Recovered panics
//   - Service unavailability
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting component (pokeapi-client, page-repository, pager, bff)
//   - endpoint: Upstream endpoint path
//   - offset, limit: Page window
//   - kind: Repository error kind (network, http, unknown)
//   - status: HTTP status code
//   - duration: Request duration
//   - request_id: BFF request id
//   - ttl: Cache entry TTL
