package utils

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures a rotating application logger.
type LoggerOptions struct {
	Prefix     string
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Stdout     bool
}

// NewRotatingLogger builds a goroutine-safe logger writing to a
// size-rotated file, optionally mirrored to stdout. An empty FilePath
// yields a stdout-only logger.
func NewRotatingLogger(opts LoggerOptions) *log.Logger {
	var writers []io.Writer
	if opts.Stdout || opts.FilePath == "" {
		writers = append(writers, os.Stdout)
	}
	if opts.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		})
	}
	return log.New(io.MultiWriter(writers...), opts.Prefix, log.LstdFlags|log.Lmicroseconds|log.LUTC)
}
