package logger

import (
	"log/slog"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultSampleInitial    = 100
	defaultSampleThereafter = 10
)

func newZapHandler(cfg Config) slog.Handler {
	lvl := cfg.level()
	core := zapcore.NewCore(zapEncoder(cfg.AddSource), zapcore.AddSync(cfg.Output), toZapLevel(lvl))

	// presence churn can burst; identical lines are sampled per second
	core = zapcore.NewSamplerWithOptions(core, time.Second,
		positiveOr(cfg.SampleInitial, defaultSampleInitial),
		positiveOr(cfg.SampleThereafter, defaultSampleThereafter),
	)

	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return slogzap.Option{Level: lvl, Logger: z}.NewZapHandler()
}

func zapEncoder(addSource bool) zapcore.Encoder {
	c := zap.NewProductionEncoderConfig()
	c.TimeKey = "ts"
	c.EncodeTime = zapcore.ISO8601TimeEncoder
	c.EncodeLevel = zapcore.CapitalLevelEncoder
	if addSource {
		c.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return zapcore.NewJSONEncoder(c)
}

// toZapLevel rounds a slog level down to the nearest zap level.
func toZapLevel(lvl slog.Level) zapcore.Level {
	switch {
	case lvl < slog.LevelInfo:
		return zapcore.DebugLevel
	case lvl < slog.LevelWarn:
		return zapcore.InfoLevel
	case lvl < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
