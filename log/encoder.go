package log

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	DPanicLevel
	PanicLevel
	FatalLevel
)

// ParseLevel accepts the zap level names, case insensitive.
func ParseLevel(text string) (Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(text))); err != nil {
		return InfoLevel, errors.WithMessagef(err, "parse log level %q", text)
	}
	return Level(level), nil
}

func (l Level) String() string {
	return zapcore.Level(l).String()
}

type OutputEncoder func(config zapcore.EncoderConfig) zapcore.Encoder

var (
	JsonOutputEncoder    OutputEncoder = zapcore.NewJSONEncoder
	ConsoleOutputEncoder OutputEncoder = zapcore.NewConsoleEncoder
)

type LevelEncoder func(zapcore.Level, zapcore.PrimitiveArrayEncoder)

var (
	BracketLevelEncoder LevelEncoder = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + level.CapitalString() + "]")
	}
	CapitalLevelEncoder   LevelEncoder = zapcore.CapitalLevelEncoder
	LowercaseLevelEncoder LevelEncoder = zapcore.LowercaseLevelEncoder
)

type CallerEncoder func(zapcore.EntryCaller, zapcore.PrimitiveArrayEncoder)

var (
	ShortCallerEncoder CallerEncoder = zapcore.ShortCallerEncoder
	FullCallerEncoder  CallerEncoder = zapcore.FullCallerEncoder
)
