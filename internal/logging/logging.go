// Package logging builds the application's zap logger: a console core
// for operators plus an optional rotating JSON file core.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhle/cyclic-tasks/internal/model"
)

// New creates a sugared logger from cfg. Console output goes to stderr
// so it never mixes with command output on stdout.
func New(cfg model.LogConfig) (*zap.SugaredLogger, error) {
	return build(cfg, true)
}

// NewFileOnly creates a logger without the console core, for full-screen
// programs that own the terminal. With no file configured it discards
// everything.
func NewFileOnly(cfg model.LogConfig) (*zap.SugaredLogger, error) {
	return build(cfg, false)
}

func build(cfg model.LogConfig, console bool) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	if cfg.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(newRotator(cfg)),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	return logger.Sugar(), nil
}

func newRotator(cfg model.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
}
