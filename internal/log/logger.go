// SPDX-License-Identifier: MIT
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// slogLevel maps onto the slog scale. Fatal sits above Error.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelError + 4
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var (
	currentLevel atomic.Uint32
	levelVar     = new(slog.LevelVar)
	logger       atomic.Pointer[slog.Logger]

	// exit is swapped in tests so Fatal paths can be observed.
	exit = os.Exit
)

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetOutput redirects all log output to w using a text handler.
func SetOutput(w io.Writer) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl > slog.LevelError {
					return slog.String(slog.LevelKey, LevelFatal.String())
				}
			}
			return a
		},
	})
	logger.Store(slog.New(h))
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
	levelVar.Set(level.slogLevel())
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

func emit(level LogLevel, msg string) {
	logger.Load().Log(context.Background(), level.slogLevel(), msg)
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		emit(LevelDebug, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) {
	if shouldLog(LevelInfo) {
		emit(LevelInfo, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) {
	if shouldLog(LevelWarn) {
		emit(LevelWarn, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) {
	if shouldLog(LevelError) {
		emit(LevelError, fmt.Sprintf(format, v...))
	}
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	emit(LevelFatal, fmt.Sprintf(format, v...))
	exit(1)
}

// Fatal logs a fatal message and exits the application.
func Fatal(v ...any) {
	emit(LevelFatal, fmt.Sprint(v...))
	exit(1)
}
