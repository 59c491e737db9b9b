// Package logging configures the global zerolog logger and bridges it into
// the libraries that bring their own logger interfaces.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Settings struct {
	Level string `mapstructure:"level"`
	// File switches output to a rotating log file.
	File string `mapstructure:"file"`
	// Format is "console" or "json". Console is used when empty and the
	// output is a terminal.
	Format string `mapstructure:"format"`
}

// Writer returns where log lines should go. When no file is configured it
// returns fallback.
func (s Settings) Writer(fallback io.Writer) io.Writer {
	if s.File == "" {
		return fallback
	}
	return &lumberjack.Logger{
		Filename:   s.File,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
}

// New builds a logger from s, writing to fallback when no file is set.
func New(s Settings, fallback io.Writer) zerolog.Logger {
	w := s.Writer(fallback)
	if useConsole(s.Format, w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: s.File != ""}
	}
	return zerolog.New(w).Level(ParseLevel(s.Level)).With().Timestamp().Logger()
}

// Init replaces the global logger. CLI commands log to stderr.
func Init(s Settings) {
	log.Logger = New(s, os.Stderr)
	zerolog.SetGlobalLevel(ParseLevel(s.Level))
}

// InitForTUI is Init for full-screen programs: without a log file nothing is
// written, so log lines cannot tear the alternate screen.
func InitForTUI(s Settings) {
	if s.File == "" {
		log.Logger = zerolog.New(io.Discard)
		return
	}
	Init(s)
}

func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func useConsole(format string, w io.Writer) bool {
	switch strings.ToLower(format) {
	case "json":
		return false
	case "console", "text":
		return true
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
