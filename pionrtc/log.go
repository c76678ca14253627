package pionrtc

import (
	"fmt"

	"github.com/pion/logging"

	"github.com/obinnaokechukwu/datachannel/native"
)

// loggerFactory routes pion's internal logging to the sink installed with
// InitLogger, the way libdatachannel forwards its own log lines.
type loggerFactory struct {
	b *Backend
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &scopedLogger{b: f.b, scope: scope}
}

type scopedLogger struct {
	b     *Backend
	scope string
}

func (l *scopedLogger) emit(level native.LogLevel, msg string) {
	if level > native.LogLevel(l.b.logLevel.Load()) {
		return
	}
	ref := l.b.logSink.Load()
	if ref == nil {
		return
	}
	ref.fn(level, l.scope+": "+msg)
}

func (l *scopedLogger) Trace(msg string) { l.emit(native.LogVerbose, msg) }
func (l *scopedLogger) Tracef(format string, args ...interface{}) {
	l.emit(native.LogVerbose, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Debug(msg string) { l.emit(native.LogDebug, msg) }
func (l *scopedLogger) Debugf(format string, args ...interface{}) {
	l.emit(native.LogDebug, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Info(msg string) { l.emit(native.LogInfo, msg) }
func (l *scopedLogger) Infof(format string, args ...interface{}) {
	l.emit(native.LogInfo, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Warn(msg string) { l.emit(native.LogWarning, msg) }
func (l *scopedLogger) Warnf(format string, args ...interface{}) {
	l.emit(native.LogWarning, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Error(msg string) { l.emit(native.LogError, msg) }
func (l *scopedLogger) Errorf(format string, args ...interface{}) {
	l.emit(native.LogError, fmt.Sprintf(format, args...))
}
