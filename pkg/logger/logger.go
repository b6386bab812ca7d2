// Package logger is a printf-style facade over a zap console logger. Debug
// output is off until SetDebug(true).
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar *zap.SugaredLogger
)

func init() {
	setOutput(os.Stderr)
}

// setOutput rebuilds the logger writing to w.
func setOutput(w io.Writer) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), level)
	sugar = zap.New(core).Sugar()
}

// SetDebug enables or disables debug logging
func SetDebug(enabled bool) {
	if enabled {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// Info logs an informational message
func Info(format string, args ...interface{}) {
	sugar.Infof(format, args...)
}

// Warn logs a recoverable problem
func Warn(format string, args ...interface{}) {
	sugar.Warnf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	sugar.Errorf(format, args...)
}

// Debug logs a debug message if debug logging is enabled
func Debug(format string, args ...interface{}) {
	sugar.Debugf(format, args...)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = sugar.Sync()
}

// Fatalf logs an error message and exits with status 1
func Fatalf(format string, args ...interface{}) {
	sugar.Errorf(format, args...)
	_ = sugar.Sync()
	os.Exit(1)
}
