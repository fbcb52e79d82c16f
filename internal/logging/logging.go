// Package logging builds the zap logger used by the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, encoding and destination.
type Config struct {
	Level   string // debug, info, warn, error
	Format  string // json or console
	File    string // rotate into this file instead of stderr when set
	Service string

	// MaxSizeMB, MaxBackups and MaxAgeDays tune rotation; zero picks defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

// EncoderConfig is the production encoder config with ISO 8601 timestamps
// under "timestamp" and capital level names.
func EncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	return cfg
}

// New builds a logger from cfg. The returned closer releases the log file.
func New(cfg Config) (*zap.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	var sink zapcore.WriteSyncer
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		}
		sink, closer = zapcore.AddSync(lj), lj
	} else {
		sink = zapcore.Lock(os.Stderr)
	}
	return NewWithSink(cfg, level, sink), closer, nil
}

// NewWithSink builds a logger writing to sink.
func NewWithSink(cfg Config, level zapcore.Level, sink zapcore.WriteSyncer) *zap.Logger {
	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "console", "text":
		enc = zapcore.NewConsoleEncoder(EncoderConfig())
	default:
		enc = zapcore.NewJSONEncoder(EncoderConfig())
	}
	service := cfg.Service
	if service == "" {
		service = "hayabib"
	}
	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()).With(
		zap.Int("pid", os.Getpid()),
		zap.String("service", service),
	)
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
