package logging

import (
	"github.com/gobuffalo/nulls"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"io"
	"os"
)

// Config configures the outputs of the logger created with NewLogger.
type Config struct {
	// StdoutLogLevel is the minimum level for logging to stdout.
	StdoutLogLevel zapcore.Level `json:"stdout_level"`
	// HighPriorityOutput is an optional file for warnings and errors.
	HighPriorityOutput nulls.String `json:"high_priority_output"`
	// DebugOutput is an optional file for all log entries.
	DebugOutput nulls.String `json:"debug_output"`
	// MaxSize is the maximum size in megabytes of a log file before it gets
	// rotated.
	MaxSize int `json:"max_size"`
	// KeepDays is the maximum number of days to keep rotated log files.
	KeepDays int `json:"keep_days"`
	// SystemDebugStatsInterval is the interval in minutes for logging system
	// stats. Disabled if not set.
	SystemDebugStatsInterval nulls.Int `json:"system_debug_stats_interval"`
}

// encoderConfig is the base config for all cores.
var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "level",
	NameKey:        "logger",
	CallerKey:      "caller",
	FunctionKey:    zapcore.OmitKey,
	MessageKey:     "msg",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// NewLogger creates the application logger. It logs to stdout with colored
// levels, errors additionally to stderr and, if configured, to rotated files.
func NewLogger(config Config) *zap.Logger {
	return zap.New(zapcore.NewTee(cores(config, os.Stdout, os.Stderr)...))
}

func cores(config Config, stdout io.Writer, stderr io.Writer) []zapcore.Core {
	cores := make([]zapcore.Core, 0)
	// Setup stdout logger with colorful level output.
	stdoutEncoderConfig := encoderConfig
	stdoutEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(stdoutEncoderConfig),
		zapcore.Lock(zapcore.AddSync(stdout)),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= config.StdoutLogLevel
		})))
	// Setup error logger.
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(stderr)),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= zap.ErrorLevel
		})))
	// Setup high priority logger.
	if config.HighPriorityOutput.Valid {
		cores = append(cores, newFileCore(config, config.HighPriorityOutput.String, zap.WarnLevel))
	}
	// Setup debug logger.
	if config.DebugOutput.Valid {
		cores = append(cores, newFileCore(config, config.DebugOutput.String, zap.DebugLevel))
	}
	return cores
}

// newFileCore creates a zapcore.Core writing to a file that is rotated by
// lumberjack.
func newFileCore(config Config, filename string, minLevel zapcore.Level) zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename: filename,
			MaxSize:  config.MaxSize,
			MaxAge:   config.KeepDays,
		}),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= minLevel
		}))
}
