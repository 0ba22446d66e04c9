// Package logger собирает zap.Logger для сервера генерации книг.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New создает zap.Logger. В development окружении используется console
// кодировщик и уровень debug, иначе production JSON с уровнем info.
// Уровень можно переопределить через LOG_LEVEL.
func New(environment string) (*zap.Logger, error) {
	development := strings.ToLower(environment) == "development"

	level := zap.NewAtomicLevel()
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		if development {
			logLevel = "debug"
		} else {
			logLevel = "info"
		}
	}
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'. Error: %v\n", logLevel, err)
		level.SetLevel(zap.InfoLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoding := "json"
	if development {
		encoding = "console"
	}

	zapConfig := zap.Config{
		Level:             level,
		Development:       development,
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
