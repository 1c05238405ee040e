package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// minLevelCore drops entries below min on top of the wrapped core's own level.
type minLevelCore struct {
	zapcore.Core

	// min is the lowest level passed through.
	min zapcore.Level
}

// Enabled implements zapcore.LevelEnabler.
func (c *minLevelCore) Enabled(l zapcore.Level) bool {
	return l >= c.min && c.Core.Enabled(l)
}

// Check implements zapcore.Core.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *minLevelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return c.Core.Check(ent, ce)
}

// With implements zapcore.Core.
//
//nolint:ireturn // zapcore API returns the Core interface.
func (c *minLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &minLevelCore{Core: c.Core.With(fields), min: c.min}
}

// WithMinLevel raises the level of an existing logger. It never lowers it:
// entries the logger already drops stay dropped.
//
//nolint:ireturn // zap options are interfaces.
func WithMinLevel(level zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &minLevelCore{Core: core, min: level}
	})
}

// Quiet returns a context whose logger only passes entries at level or above.
// Interactive modes use it so log lines do not break their output.
func Quiet(ctx context.Context, level zapcore.Level) context.Context {
	return ToContext(ctx, FromContext(ctx).WithOptions(WithMinLevel(level)))
}
