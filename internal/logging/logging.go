// Package logging builds the process zerolog.Logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and destination.
type Config struct {
	Level  string // zerolog level name; empty means info
	Format string // console, json or auto (console on a terminal)
	File   string // rotating log file; empty writes to Stdout

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Stdout is the terminal destination. Defaults to os.Stdout.
	Stdout *os.File
}

// New returns the logger described by cfg and a closer for its file, if any.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
		tty    bool
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out, closer = lj, lj
	} else {
		stdout := cfg.Stdout
		if stdout == nil {
			stdout = os.Stdout
		}
		tty = isatty.IsTerminal(stdout.Fd()) || isatty.IsCygwinTerminal(stdout.Fd())
		out = colorable.NewColorable(stdout)
	}

	console := false
	switch cfg.Format {
	case "console":
		console = true
	case "json":
	case "", "auto":
		console = tty
	default:
		return zerolog.Nop(), nil, fmt.Errorf("log format %q: want console, json or auto", cfg.Format)
	}
	if console {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.TimeOnly,
			NoColor:    !tty,
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
