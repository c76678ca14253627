package datachannel

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/native"
)

// LogLevel represents libdatachannel log levels.
type LogLevel = native.LogLevel

// Log level constants matching libdatachannel's RTC_LOG_* values.
const (
	LogNone    = native.LogNone
	LogFatal   = native.LogFatal
	LogError   = native.LogError
	LogWarning = native.LogWarning
	LogInfo    = native.LogInfo
	LogDebug   = native.LogDebug
	LogVerbose = native.LogVerbose
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the package logger. It uses a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger configures the package logger used by engines created without
// WithLogger. Pass nil to restore the no-op logger.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

// ParseLogLevel parses a level name such as "warning" or "debug".
// Unknown names return LogWarning and false.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "quiet":
		return LogNone, true
	case "fatal":
		return LogFatal, true
	case "error":
		return LogError, true
	case "warning", "warn":
		return LogWarning, true
	case "info":
		return LogInfo, true
	case "debug":
		return LogDebug, true
	case "verbose", "trace":
		return LogVerbose, true
	}
	return LogWarning, false
}

// nativeLogSink forwards native log lines to l.
func nativeLogSink(l *zap.Logger) native.LogSink {
	l = l.Named("native")
	return func(level native.LogLevel, message string) {
		switch level {
		case native.LogFatal, native.LogError:
			l.Error(message)
		case native.LogWarning:
			l.Warn(message)
		case native.LogInfo:
			l.Info(message)
		case native.LogDebug, native.LogVerbose:
			l.Debug(message)
		}
	}
}
