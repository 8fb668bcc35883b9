package util

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	defaultLogger *zap.SugaredLogger
	once          sync.Once
	mu            sync.RWMutex
)

// GetLogger returns the default logger instance.
func GetLogger() *zap.SugaredLogger {
	once.Do(func() {
		setLogger(NewLogger(zapcore.InfoLevel, "", os.Stderr))
	})
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func setLogger(l *zap.SugaredLogger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// NewLogger creates a logger writing to console (when non-nil) and to a
// rotating file (when filePath is set).
func NewLogger(level zapcore.Level, filePath string, console zapcore.WriteSyncer) *zap.SugaredLogger {
	var cores []zapcore.Core

	if console != nil {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(console), level))
	}

	if filePath != "" {
		if err := EnsureDir(filepath.Dir(filePath)); err == nil {
			fileWriter := zapcore.AddSync(&lumberjack.Logger{
				Filename:   filePath,
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			})
			encCfg := zap.NewProductionEncoderConfig()
			encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileWriter, level))
		}
	}

	if len(cores) == 0 {
		return zap.NewNop().Sugar()
	}
	return zap.New(zapcore.NewTee(cores...)).Named("sawlah").Sugar()
}

// ParseLevel parses a string log level.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
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

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// InitLogger initializes the default logger with config. Console output goes
// to stderr so command output on stdout stays pipeable.
func InitLogger(level string, filePath string) {
	once.Do(func() {})
	setLogger(NewLogger(ParseLevel(level), filePath, os.Stderr))
}

// InitFileLogger initializes a file-only logger, used while the terminal
// dashboard owns the screen.
func InitFileLogger(level string, filePath string) {
	once.Do(func() {})
	setLogger(NewLogger(ParseLevel(level), filePath, nil))
}

// SyncLogger flushes buffered log entries.
func SyncLogger() {
	_ = GetLogger().Sync()
}
