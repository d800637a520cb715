package logger

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Logger is a subsystem logger. All messages are tagged with the subsystem
// tag and filtered by the logger's current level before being handed to the
// owning backend.
type Logger struct {
	lvl uint32 // Level. atomic
	tag string
	b   *Backend
}

// Backend returns the backend this logger writes through.
func (l *Logger) Backend() *Backend {
	return l.b
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32(&l.lvl))
}

// SetLevel changes the logging level to the passed level.
func (l *Logger) SetLevel(logLevel Level) {
	atomic.StoreUint32(&l.lvl, uint32(logLevel))
}

// Tracef formats message according to format specifier and writes to
// to log with LevelTrace.
func (l *Logger) Tracef(format string, params ...interface{}) {
	l.printf(LevelTrace, format, params...)
}

// Debugf formats message according to format specifier and writes to
// log with LevelDebug.
func (l *Logger) Debugf(format string, params ...interface{}) {
	l.printf(LevelDebug, format, params...)
}

// Infof formats message according to format specifier and writes to
// log with LevelInfo.
func (l *Logger) Infof(format string, params ...interface{}) {
	l.printf(LevelInfo, format, params...)
}

// Warnf formats message according to format specifier and writes to
// log with LevelWarn.
func (l *Logger) Warnf(format string, params ...interface{}) {
	l.printf(LevelWarn, format, params...)
}

// Errorf formats message according to format specifier and writes to
// log with LevelError.
func (l *Logger) Errorf(format string, params ...interface{}) {
	l.printf(LevelError, format, params...)
}

// Criticalf formats message according to format specifier and writes to
// log with LevelCritical.
func (l *Logger) Criticalf(format string, params ...interface{}) {
	l.printf(LevelCritical, format, params...)
}

// Trace formats message using the default formats for its operands
// and writes to log with LevelTrace.
func (l *Logger) Trace(args ...interface{}) {
	l.print(LevelTrace, args...)
}

// Debug formats message using the default formats for its operands
// and writes to log with LevelDebug.
func (l *Logger) Debug(args ...interface{}) {
	l.print(LevelDebug, args...)
}

// Info formats message using the default formats for its operands
// and writes to log with LevelInfo.
func (l *Logger) Info(args ...interface{}) {
	l.print(LevelInfo, args...)
}

// Warn formats message using the default formats for its operands
// and writes to log with LevelWarn.
func (l *Logger) Warn(args ...interface{}) {
	l.print(LevelWarn, args...)
}

// Error formats message using the default formats for its operands
// and writes to log with LevelError.
func (l *Logger) Error(args ...interface{}) {
	l.print(LevelError, args...)
}

// Critical formats message using the default formats for its operands
// and writes to log with LevelCritical.
func (l *Logger) Critical(args ...interface{}) {
	l.print(LevelCritical, args...)
}

func (l *Logger) printf(logLevel Level, format string, params ...interface{}) {
	if logLevel < l.Level() {
		return
	}
	l.write(logLevel, fmt.Sprintf(format, params...))
}

func (l *Logger) print(logLevel Level, args ...interface{}) {
	if logLevel < l.Level() {
		return
	}
	l.write(logLevel, fmt.Sprint(args...))
}

func (l *Logger) write(logLevel Level, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	formatted := fmt.Sprintf("%s [%s] %s: %s\n", timestamp, logLevel, l.tag, message)

	// Messages logged before the backend has been started are written
	// synchronously to stderr on warn level and above, and dropped
	// otherwise. This keeps library usage (tests in particular) from
	// blocking on the backend's write channel.
	if !l.b.IsRunning() {
		if logLevel >= LevelWarn {
			_, _ = fmt.Fprint(os.Stderr, formatted)
		}
		return
	}
	l.b.writeChan <- logEntry{log: []byte(formatted), level: logLevel}
}
