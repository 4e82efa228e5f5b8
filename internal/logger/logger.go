package logger

import (
	"context"
	"log"

	"github.com/polycast/relay/internal/configs"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

type Options struct {
	configs *configs.LoggerConfigs
}

type Optioner func(o *Options)

func WithGlobalConfigs(c *configs.LoggerConfigs) Optioner {
	return func(o *Options) {
		o.configs = c
	}
}

func Init(ctx context.Context, options ...Optioner) {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}

	zapConfigs := zap.NewProductionConfig()
	zapConfigs.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if opts.configs != nil {
		if opts.configs.Level != "" {
			level, err := zapcore.ParseLevel(opts.configs.Level)
			if err != nil {
				log.Printf("logger.Init: unknown level %s, using info", opts.configs.Level)
				level = zapcore.InfoLevel
			}
			zapConfigs.Level = zap.NewAtomicLevelAt(level)
		}
		if opts.configs.Encoding != "" {
			zapConfigs.Encoding = opts.configs.Encoding
		}
	}

	l, err := zapConfigs.Build(zap.AddCallerSkip(1))
	if err != nil {
		log.Fatalf("logger.Init: err = %s", err)
		return
	}

	globalLogger = l
	zap.ReplaceGlobals(l)
}

func Logger() *zap.Logger {
	return zap.L()
}

func Close() {
	zap.L().Sync()
}

func SDebug(msg string, fields ...zap.Field) {
	zap.L().Debug(msg, fields...)
}

func SInfo(msg string, fields ...zap.Field) {
	zap.L().Info(msg, fields...)
}

func SWarn(msg string, fields ...zap.Field) {
	zap.L().Warn(msg, fields...)
}

func SError(msg string, fields ...zap.Field) {
	zap.L().Error(msg, fields...)
}

func SFatal(msg string, fields ...zap.Field) {
	zap.L().Fatal(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	zap.L().Error(msg, fields...)
}

func Json(key string, value interface{}) zap.Field {
	encoded, err := sonic.Marshal(value)
	if err != nil {
		return zap.Any(key, value)
	}
	return zap.String(key, string(encoded))
}
