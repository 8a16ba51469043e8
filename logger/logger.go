// Package logger provides the process-wide logger for the sidecar. Output
// goes to a file because stdout carries the msgpack-RPC stream.
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sug          = zap.NewNop().Sugar()
	traceEnabled = false
)

// Init configures logging to path at the given level. Level "trace" selects
// debug verbosity and additionally enables Trace section timing. An empty
// path logs to stderr. Must be called before any goroutines start logging.
func Init(path, level string) error {
	lvl := zapcore.InfoLevel
	trace := false
	switch strings.ToLower(level) {
	case "trace":
		lvl = zapcore.DebugLevel
		trace = true
	case "debug":
		lvl = zapcore.DebugLevel
	case "info", "":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	var ws zapcore.WriteSyncer
	if path == "" {
		ws = zapcore.AddSync(os.Stderr)
	} else {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		ws = zapcore.AddSync(f)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, lvl)
	sug = zap.New(core).Sugar()
	traceEnabled = trace
	return nil
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	_ = sug.Sync()
}

func Debug(format string, args ...any) {
	sug.Debugf(format, args...)
}

func Info(format string, args ...any) {
	sug.Infof(format, args...)
}

func Warn(format string, args ...any) {
	sug.Warnf(format, args...)
}

func Error(format string, args ...any) {
	sug.Errorf(format, args...)
}

// Trace logs entry into a named section and returns a func that logs the
// elapsed time when invoked. Intended for defer:
//
//	defer logger.Trace("suggest.Do")()
//
// No-op unless the level is "trace".
func Trace(name string) func() {
	if !traceEnabled {
		return func() {}
	}
	start := time.Now()
	sug.Debugf("%s: begin", name)
	return func() {
		sug.Debugf("%s: done in %s", name, time.Since(start))
	}
}
