package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/acudp-mock/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup points the standard logger at stderr and, when a file is
// configured, a size-rotated copy of the same stream. The returned closer
// releases the log file.
func Setup(cfg config.LoggingConfig) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	rotator := NewRotator(cfg)
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator
}

// NewRotator returns the rotating file writer for cfg.File
func NewRotator(cfg config.LoggingConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}
