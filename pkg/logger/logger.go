// Package logger provides opinionated logging capabilities for the cipherbob gateway
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the console logger used by the gateway, writing to stdout.
func NewLogger(debug bool) *zap.Logger {
	return newLogger(os.Stdout, debug)
}

func newLogger(w io.Writer, debug bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	return zap.New(core, zap.AddCaller())
}

// Mask hides all but the last four characters of a secret so it can be
// logged for identification. Secrets of eight characters or fewer are
// fully masked.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}
