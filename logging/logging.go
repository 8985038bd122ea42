// Package logging builds the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/bassamadnan/mailpilot/config"
)

// Options selects where log lines go. With Console nil the log file is the only sink,
// which is how the dashboard runs so logs never draw over it.
type Options struct {
	Level   string
	Format  string // config.LogFormatConsole or config.LogFormatJSON
	File    string
	Console io.Writer
}

// FromConfig maps the log section of the config file to Options.
func FromConfig(cfg config.LogConfig, console io.Writer) Options {
	return Options{Level: cfg.Level, Format: cfg.Format, File: cfg.File, Console: console}
}

// New returns the root logger and a closer for the log file, if one was opened.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("ensure log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log file: %w", err)
		}
		closer = f
		// the file always gets JSON so it stays greppable
		writers = append(writers, f)
	}

	if opts.Console != nil {
		if opts.Format == config.LogFormatJSON {
			writers = append(writers, opts.Console)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.Kitchen})
		}
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", config.AppName).Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
