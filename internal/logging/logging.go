package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level picks the minimum level from the CLI verbosity flags.
func Level(verbose, quiet bool) zapcore.Level {
	switch {
	case verbose:
		return zapcore.DebugLevel
	case quiet:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds the process logger: human-readable console lines written to out,
// normally stderr (or a progress bar's log writer), so stdout stays free for
// command results.
func New(level zapcore.Level, out io.Writer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	sink := zapcore.Lock(zapcore.AddSync(out))
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), sink, level)
	return zap.New(core, zap.ErrorOutput(sink))
}
