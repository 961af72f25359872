// Package logging builds the process-wide *zap.Logger. Loggers are passed to components through
// their constructors; nothing in this repository reads a global logger.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	Level   string
	Dev     bool
	Service string
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a development console logger when opts.Dev is set, otherwise a JSON logger on stdout
// with ISO8601 timestamps. An empty level means debug in dev and info otherwise.
func New(opts Options) (*zap.Logger, error) {
	lvl := opts.Level
	if lvl == "" {
		if opts.Dev {
			lvl = "debug"
		} else {
			lvl = "info"
		}
	}
	level := levelFromString(lvl)

	var logger *zap.Logger
	if opts.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(level)
		l, err := c.Build()
		if err != nil {
			return nil, err
		}
		logger = l
	} else {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), level)
		logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if opts.Service != "" {
		logger = logger.With(zap.String("service", opts.Service))
	}
	return logger, nil
}
