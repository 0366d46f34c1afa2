// internal/logger/pretty.go
package logger

import (
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
)

// Цвет уровня, неизвестные уровни выводятся без цвета.
var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel:  "\033[36m",
	zapcore.InfoLevel:   "\033[32m",
	zapcore.WarnLevel:   "\033[33m",
	zapcore.ErrorLevel:  "\033[31m",
	zapcore.DPanicLevel: "\033[31m" + ansiBold,
	zapcore.PanicLevel:  "\033[31m" + ansiBold,
	zapcore.FatalLevel:  "\033[31m" + ansiBold,
}

// PrettyEncoder is a compact colored console encoder for interactive runs:
// clock time, level tag, logger name and message, no caller or stacktrace.
func PrettyEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     clockTimeEncoder,
		EncodeLevel:    coloredLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func coloredLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	tag := "[" + level.CapitalString() + "]"
	if color, ok := levelColors[level]; ok {
		tag = color + tag + ansiReset
	}
	enc.AppendString(tag)
}

func clockTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05.000"))
}

// ShortAddress shortens a base58 address for console output.
func ShortAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
