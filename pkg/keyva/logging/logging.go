// Package logging builds the zap logger used across keyva, with file
// rotation handled by lumberjack. The Config shape mirrors the settings
// layout used elsewhere in this codebase's ecosystem (log level plus
// lumberjack's rotation knobs), so a keyva embedder can fold it into their
// own configuration tree without translation.
package logging

import (
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls log level and file rotation.
type Config struct {
	LogLevel    string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	FileLogName string `mapstructure:"file_log_name"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxSize     int    `mapstructure:"max_size"`
	Compress    bool   `mapstructure:"compress"`
}

// DefaultConfig logs at info level to stderr only (FileLogName empty).
func DefaultConfig() Config {
	return Config{LogLevel: "info"}
}

// New builds a zap.Logger from cfg. When FileLogName is set, logs are
// written to that file through a lumberjack rotator in addition to stderr.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, err
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	}
	if cfg.FileLogName != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FileLogName,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			MaxSize:    cfg.MaxSize,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core), nil
}
