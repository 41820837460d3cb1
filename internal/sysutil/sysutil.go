// Package sysutil holds process-level helpers: global log configuration, the
// rotating audit log and small string utilities shared by the entry points.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// SetupLogging sets the global level and, when pretty is true, replaces the
// global logger with a human-readable console writer on stderr.
func SetupLogging(level string, pretty bool) {
	SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// NewAuditLogger returns the logger used for model-call audit records. With
// an empty path it derives from the global logger; otherwise records are
// also appended to a size-rotated file at path. The returned closer releases
// the file and is never nil.
func NewAuditLogger(path string) (zerolog.Logger, io.Closer) {
	base := log.With().Str("stream", "audit").Logger()
	if strings.TrimSpace(path) == "" {
		return base, io.NopCloser(nil)
	}
	rot := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	l := zerolog.New(zerolog.MultiLevelWriter(rot, log.Logger)).
		With().Timestamp().Str("stream", "audit").Logger()
	return l, rot
}

// FirstNonEmpty returns the first non-blank string from a variadic list.
// If all values are blank, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
