package logging

import (
	"fmt"
	"strings"

	"github.com/notargets/DGTransport/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink is a destination for structured solver logs
type Sink interface {
	Logger() *zap.Logger
	// Close flushes buffered entries
	Close() error
}

// Config selects a sink
type Config struct {
	Kind  string `yaml:"kind"` // console, file or nop
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

type zapSink struct {
	logger *zap.Logger
}

func (s *zapSink) Logger() *zap.Logger { return s.logger }

func (s *zapSink) Close() error {
	err := s.logger.Sync()
	// Syncing a terminal is not supported on every platform
	if err != nil && strings.Contains(err.Error(), "/dev/std") {
		return nil
	}
	return err
}

type nopSink struct{}

func (nopSink) Logger() *zap.Logger { return zap.NewNop() }
func (nopSink) Close() error        { return nil }

// Nop discards everything
func Nop() Sink { return nopSink{} }

// NewSink builds the sink described by cfg
func NewSink(cfg Config) (Sink, error) {
	switch strings.ToLower(cfg.Kind) {
	case "nop", "none":
		return Nop(), nil
	case "", "console":
		logger, err := NewLogger(cfg.Level)
		if err != nil {
			return nil, err
		}
		return &zapSink{logger: logger}, nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: file log sink needs a path", utils.ErrInput)
		}
		level, err := parseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{cfg.Path}
		config.ErrorOutputPaths = []string{cfg.Path}
		config.Sampling = nil
		logger, err := config.Build()
		if err != nil {
			return nil, fmt.Errorf("%w: log file %q: %v", utils.ErrInput, cfg.Path, err)
		}
		return &zapSink{logger: logger}, nil
	}
	return nil, fmt.Errorf("%w: unknown log sink %q", utils.ErrInput, cfg.Kind)
}

// NewLogger returns a console logger at the given level
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.DisableStacktrace = true
	return config.Build()
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return lvl, fmt.Errorf("%w: log level %q", utils.ErrInput, level)
	}
	return lvl, nil
}
