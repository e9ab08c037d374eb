package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the process wide logger.
type Config struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

var (
	mu sync.RWMutex

	// output is where every logger writes; replaced in tests.
	output io.Writer = os.Stderr

	// AdHocLogger is usable before Init has been called.
	AdHocLogger zerolog.Logger
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	AdHocLogger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "ad-hoc-logger").Caller().Logger()
}

// Init configures the global zerolog logger. It can be called again to
// reconfigure, the last call wins.
func Init(cfg Config) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	mu.Lock()
	defer mu.Unlock()

	var w io.Writer = output
	if cfg.Format == "console" {
		w = consoleWriter(output)
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp().Str("service", "postgres-to-es")
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	zerolog.SetGlobalLevel(level)
	return nil
}

// GetLogger returns a child of the global logger tagged with the component name.
func GetLogger(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.Logger.With().Str("component", component).Logger()
}

// SetOutput redirects all loggers created by the next Init call.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// human-readable logs for local runs
func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339,
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprintf("[%5s]", i))
		},
		FormatMessage: func(i any) string {
			return fmt.Sprintf("| %s |", i)
		},
		FormatCaller: func(i any) string {
			return filepath.Base(fmt.Sprintf("%s", i))
		},
	}
}
