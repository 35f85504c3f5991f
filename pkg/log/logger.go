package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps a level name to a LogLevel, falling back to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is a leveled printf-style logger backed by zap.
// Output goes to stderr by default: stdout carries the rendered chat stream.
type Logger struct {
	level zap.AtomicLevel
	// sugar reports the caller of the Logger method, pkgSugar the caller of
	// the package-level convenience functions.
	sugar    *zap.SugaredLogger
	pkgSugar *zap.SugaredLogger
}

func NewLogger(level LogLevel) *Logger {
	return NewWriterLogger(os.Stderr, level)
}

// NewWriterLogger creates a logger that writes console-encoded entries to w.
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	return newLogger(zapcore.AddSync(w), level)
}

func newLogger(ws zapcore.WriteSyncer, level LogLevel) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	atom := zap.NewAtomicLevelAt(level.zapLevel())
	core := zapcore.NewCore(encoder, zapcore.Lock(ws), atom)
	base := zap.New(core, zap.AddCaller())

	return &Logger{
		level:    atom,
		sugar:    base.WithOptions(zap.AddCallerSkip(2)).Sugar(),
		pkgSugar: base.WithOptions(zap.AddCallerSkip(3)).Sugar(),
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(l.sugar, LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(l.sugar, LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(l.sugar, LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(l.sugar, LevelError, format, args...)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(l.sugar, LevelFatal, format, args...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) log(s *zap.SugaredLogger, level LogLevel, format string, args ...interface{}) {
	switch level {
	case LevelDebug:
		s.Debugf(format, args...)
	case LevelInfo:
		s.Infof(format, args...)
	case LevelWarn:
		s.Warnf(format, args...)
	case LevelError:
		s.Errorf(format, args...)
	case LevelFatal:
		s.Fatalf(format, args...)
	}
}

// FileConfig controls the rotating file sink.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileLogger writes to a size-rotated file.
type FileLogger struct {
	*Logger
	rotator *lumberjack.Logger
}

// NewFileLogger creates a logger writing to logFile with lumberjack rotation.
func NewFileLogger(cfg FileConfig, level LogLevel) (*FileLogger, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	return &FileLogger{
		Logger:  newLogger(zapcore.AddSync(rotator), level),
		rotator: rotator,
	}, nil
}

func (l *FileLogger) Close() error {
	_ = l.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitLogger replaces the global logger with a stderr logger at level.
func InitLogger(level LogLevel) {
	SetLogger(NewLogger(level))
}

// SetLogger installs l as the global logger.
func SetLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

func GetLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

func Debug(format string, args ...interface{}) {
	l := GetLogger()
	l.log(l.pkgSugar, LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	l := GetLogger()
	l.log(l.pkgSugar, LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	l := GetLogger()
	l.log(l.pkgSugar, LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	l := GetLogger()
	l.log(l.pkgSugar, LevelError, format, args...)
}

func Fatal(format string, args ...interface{}) {
	l := GetLogger()
	l.log(l.pkgSugar, LevelFatal, format, args...)
}
