package log

import "io"

// Options builds a logger; every With method returns the receiver for chaining.
type Options struct {
	//info to stdout, warn and above to stderr
	stdOutput bool
	//receives every level, used by tests and by trigger-sim to log to stderr
	writer        io.Writer
	outputEncoder OutputEncoder
	//minimum level, changeable later with SetLevel for the root logger
	level Level
	//nil disables caller reporting
	callerEncoder CallerEncoder
	levelEncoder  LevelEncoder
	//attach stack traces from warn up
	stacktrace bool
	timeLayout string
	name       string
}

func (o *Options) WithStacktrace(stacktrace bool) *Options {
	o.stacktrace = stacktrace
	return o
}

func (o *Options) WithTimeLayout(timeLayout string) *Options {
	o.timeLayout = timeLayout
	return o
}

func (o *Options) WithOutputEncoder(outputEncoder OutputEncoder) *Options {
	o.outputEncoder = outputEncoder
	return o
}

func (o *Options) WithLevel(level Level) *Options {
	o.level = level
	return o
}

func (o *Options) WithCallerEncoder(callerEncoder CallerEncoder) *Options {
	o.callerEncoder = callerEncoder
	return o
}

func (o *Options) WithLevelEncoder(encoder LevelEncoder) *Options {
	o.levelEncoder = encoder
	return o
}

func (o *Options) WithNamed(name string) *Options {
	o.name = name
	return o
}

func (o *Options) WithStdOutput(stdOutput bool) *Options {
	o.stdOutput = stdOutput
	return o
}

func (o *Options) WithWriter(writer io.Writer) *Options {
	o.writer = writer
	return o
}

func DefaultOptions() *Options {
	return &Options{level: InfoLevel,
		timeLayout:    "02/Jan/2006:15:04:05 +0800",
		levelEncoder:  BracketLevelEncoder,
		outputEncoder: JsonOutputEncoder, callerEncoder: nil, stdOutput: true}
}
