// Package logger builds the diagnostic logger. Output goes to stderr and,
// when configured, to a rotating file; stdout carries protocol records only.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmLog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/machinefabric/pdbridge-go/config"
)

const (
	defaultFormat = "text"
	defaultLevel  = "info"
)

// New creates the logger described by cfg writing to stderr. The returned
// closer releases the log file, if any.
func New(cfg config.Logging) (*slog.Logger, io.Closer, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit console writer
func NewWithWriter(cfg config.Logging, console io.Writer) (*slog.Logger, io.Closer, error) {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = defaultFormat
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	writer := console
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // days
		}
		writer = io.MultiWriter(console, file)
		closer = file
	}

	var handler slog.Handler
	switch format {
	case "text", "logfmt":
		formatter := charmLog.TextFormatter
		if format == "logfmt" {
			formatter = charmLog.LogfmtFormatter
		}
		handler = charmLog.NewWithOptions(writer, charmLog.Options{
			Level:           charmLevel(level),
			ReportTimestamp: true,
			ReportCaller:    cfg.AddSource,
			Formatter:       formatter,
		})
	case "json":
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		})
	default:
		return nil, nil, fmt.Errorf("unsupported log format %q", format)
	}

	return slog.New(handler), closer, nil
}

// ParseLevel converts a level name into a slog.Level. Empty means info.
func ParseLevel(input string) (slog.Level, error) {
	levelText := strings.ToLower(strings.TrimSpace(input))
	if levelText == "" {
		levelText = defaultLevel
	}

	switch levelText {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", levelText)
	}
}

func charmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
