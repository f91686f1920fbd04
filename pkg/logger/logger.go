// Package logger builds the Zap logger every FrameDB component shares.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`
	// Format is the output format, "json" or "console".
	Format string `yaml:"format"`
	// OutputFile is the log destination. "stdout" and "stderr" write to the
	// console; anything else is treated as a file path and appended to.
	OutputFile string `yaml:"output_file"`
}

// New creates a zap.Logger from the configuration. Intended to be called
// once at startup and passed down to the storage components.
func New(config Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(config.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	sink, err := newSink(config.OutputFile)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(config.Format), sink, level)
	return zap.New(core, zap.AddCaller()).
		WithOptions(zap.Fields(zap.String("service", "framedb"))), nil
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	if strings.ToLower(format) == "console" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

func newSink(outputFile string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(outputFile) {
	case "stdout", "":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		file, err := os.OpenFile(outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", outputFile, err)
		}
		return zapcore.AddSync(file), nil
	}
}
