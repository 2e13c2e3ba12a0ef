package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// L is the global sugared logger.
	L *zap.SugaredLogger
	// Z is the underlying zap.Logger.
	Z *zap.Logger
)

func init() {
	z, _ := zap.NewProduction()
	Set(z)
}

type Config struct {
	Level      string // debug, info, warn, error
	File       string // rotating log file; empty logs to stderr only
	MaxSize    int    // megabytes per file
	MaxBackups int
	MaxAge     int // days
}

// Init rebuilds the global logger from cfg.
func Init(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var output io.Writer = os.Stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("creating log dir: %w", err)
		}
		output = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSize, 64),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAge, 7),
			Compress:   true,
		})
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(output), level)
	Set(zap.New(core, zap.AddCallerSkip(1)))
	return nil
}

// Set replaces the global logger.
func Set(z *zap.Logger) {
	Z = z
	L = z.Sugar()
}

func Sync() {
	if Z != nil {
		_ = Z.Sync()
	}
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unsupported log level %q", s)
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

func Debugf(template string, args ...interface{}) { L.Debugf(template, args...) }

func Infof(template string, args ...interface{}) { L.Infof(template, args...) }

func Warnf(template string, args ...interface{}) { L.Warnf(template, args...) }

func Errorf(template string, args ...interface{}) { L.Errorf(template, args...) }
