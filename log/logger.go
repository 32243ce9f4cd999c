package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	rootLogger Logger
	rootLevel  zap.AtomicLevel
	mutex      = &sync.Mutex{}
)

type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Fatalf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Named(name string) Logger
	Sync() error
}

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) Named(name string) Logger {
	return &logger{l.SugaredLogger.Named(name)}
}

// Global returns the root logger, a no-op logger until Setup is called.
func Global() Logger {
	mutex.Lock()
	defer mutex.Unlock()
	if rootLogger == nil {
		return Nop()
	}
	return rootLogger
}

func Nop() Logger {
	return &logger{zap.NewNop().Sugar()}
}

func Setup(options *Options) {
	mutex.Lock()
	defer mutex.Unlock()
	if rootLogger != nil {
		rootLogger.Warn("can't re setup root logger")
		return
	}
	rootLogger, rootLevel = newLogger(options)
}

// SetLevel changes the level of the root logger.
func SetLevel(level Level) {
	mutex.Lock()
	defer mutex.Unlock()
	if rootLogger != nil {
		rootLevel.SetLevel(zapcore.Level(level))
	}
}

// New builds a logger without installing it as the root logger.
func New(options *Options) Logger {
	l, _ := newLogger(options)
	return l
}

func newLogger(options *Options) (Logger, zap.AtomicLevel) {
	var (
		infoWriteSyncers []zapcore.WriteSyncer
		errWriteSyncers  []zapcore.WriteSyncer
		opts             []zap.Option
		encoderConfig    = zap.NewProductionEncoderConfig()
	)

	if options.writer != nil {
		infoWriteSyncers = append(infoWriteSyncers, zapcore.AddSync(options.writer))
		errWriteSyncers = append(errWriteSyncers, zapcore.AddSync(options.writer))
	}
	if options.stdOutput {
		infoWriteSyncers = append(infoWriteSyncers, zapcore.AddSync(os.Stdout))
		errWriteSyncers = append(errWriteSyncers, zapcore.AddSync(os.Stderr))
	}

	if options.callerEncoder != nil {
		opts = append(opts, zap.AddCaller())
		encoderConfig.EncodeCaller = zapcore.CallerEncoder(options.callerEncoder)
	}

	encoderConfig.EncodeLevel = zapcore.LevelEncoder(options.levelEncoder)
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(options.timeLayout)
	encoderConfig.ConsoleSeparator = " "
	level := zap.NewAtomicLevelAt(zapcore.Level(options.level))
	cores := []zapcore.Core{zapcore.NewCore(
		options.outputEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(infoWriteSyncers...),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return level.Enabled(lvl) && lvl < zapcore.WarnLevel
		}),
	), zapcore.NewCore(
		options.outputEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(errWriteSyncers...),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return level.Enabled(lvl) && lvl >= zapcore.WarnLevel
		}),
	)}

	if options.stacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.WarnLevel))
	}
	sugared := zap.New(zapcore.NewTee(cores...), opts...).Sugar()
	if options.name != "" {
		sugared = sugared.Named(options.name)
	}
	return &logger{sugared}, level
}
