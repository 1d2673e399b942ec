// Package logging builds the daemon's structured logger: a human-readable
// console sink and a size-capped, rotating JSON file sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mesh-intelligence/scribo/pkg/types"
)

// Rotation defaults for the log file.
const (
	DefaultFileName   = "scribo.log"
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 5
	DefaultLevel      = "info"
)

// New returns a logger for cfg and a function that flushes and closes it.
// Console output goes to console (stderr when nil) if cfg.Console is set.
// The file sink is used when cfg.File is non-empty.
//
// The logger is a production logger: DPanic records are written at the
// highest non-fatal level and never panic.
func New(cfg types.LogConfig, console io.Writer) (*zap.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("parse log level: %w", err)
		}
		level = l
	}

	var (
		cores  []zapcore.Core
		closer io.Closer
	)
	if cfg.Console {
		if console == nil {
			console = os.Stderr
		}
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(zapcore.AddSync(console)), level))
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    positive(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: positive(cfg.MaxBackups, DefaultMaxBackups),
		}
		closer = rotator
		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(rotator), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() error { return nil }, nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.DPanicLevel))
	return logger, func() error {
		// Sync on a terminal stderr can fail with EINVAL; nothing to do about it.
		_ = logger.Sync()
		if closer != nil {
			return closer.Close()
		}
		return nil
	}, nil
}

func positive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
