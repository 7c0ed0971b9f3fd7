package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultDir        = "logs"
	defaultFilename   = "dispatch.log"
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 30
)

// Options configures file output in release mode.
type Options struct {
	Dir        string
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// L is the process-wide logger. Use Z() to read it.
var L *zap.Logger

var (
	fallbackOnce sync.Once
	fallbackLog  *zap.Logger
)

// Init builds the global logger for mode ("debug" logs to the console,
// anything else writes JSON to a rotating file).
func Init(mode string, opts Options) *zap.Logger {
	L = New(mode, opts)
	zap.ReplaceGlobals(L)
	return L
}

// New builds a logger without installing it.
func New(mode string, opts Options) *zap.Logger {
	debug := strings.EqualFold(strings.TrimSpace(mode), "debug")
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	enc := encoderConfig()
	if debug {
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(os.Stdout), level)
		return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	ws, err := fileSyncer(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: file output unavailable, using stdout: %v\n", err)
		ws = zapcore.AddSync(os.Stdout)
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	return enc
}

// Z returns the global logger or a console fallback.
func Z() *zap.Logger {
	if L != nil {
		return L
	}
	fallbackOnce.Do(func() {
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(zap.InfoLevel))
		fallbackLog = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	})
	return fallbackLog
}

// S returns the sugared global logger.
func S() *zap.SugaredLogger { return Z().Sugar() }

// StdLogger adapts the global logger for APIs that want a *log.Logger.
func StdLogger() *log.Logger { return zap.NewStdLog(Z()) }

func Debugw(msg string, kv ...interface{}) { S().Debugw(msg, kv...) }
func Infow(msg string, kv ...interface{})  { S().Infow(msg, kv...) }
func Warnw(msg string, kv ...interface{})  { S().Warnw(msg, kv...) }
func Errorw(msg string, kv ...interface{}) { S().Errorw(msg, kv...) }

// Sync flushes buffered entries.
func Sync() { _ = Z().Sync() }

func fileSyncer(opts Options) (zapcore.WriteSyncer, error) {
	path, err := logFilePath(opts)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    positive(opts.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: positive(opts.MaxBackups, defaultMaxBackups),
		MaxAge:     positive(opts.MaxAgeDays, defaultMaxAgeDays),
		Compress:   opts.Compress,
	}), nil
}

func logFilePath(opts Options) (string, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve workdir: %w", err)
		}
		dir = filepath.Join(wd, defaultDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	name := strings.TrimSpace(opts.Filename)
	if name == "" {
		name = defaultFilename
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close log file: %w", err)
	}
	return path, nil
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
