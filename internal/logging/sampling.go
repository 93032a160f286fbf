package logging

import "go.uber.org/zap/zapcore"

// newSampledCore samples entries below Error and passes Error and above
// through untouched.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	errorsOnly := bandCore{Core: core, keep: func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel }}
	belowError := bandCore{Core: core, keep: func(l zapcore.Level) bool { return l < zapcore.ErrorLevel }}
	sampled := zapcore.NewSamplerWithOptions(belowError, cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter)
	return zapcore.NewTee(errorsOnly, sampled)
}

// bandCore restricts core to the levels keep accepts.
type bandCore struct {
	zapcore.Core
	keep func(zapcore.Level) bool
}

func (c bandCore) Enabled(l zapcore.Level) bool {
	return c.keep(l) && c.Core.Enabled(l)
}

func (c bandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.keep(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c bandCore) With(fields []zapcore.Field) zapcore.Core {
	return bandCore{Core: c.Core.With(fields), keep: c.keep}
}
