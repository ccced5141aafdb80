package infrastructure

import (
	"os"

	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger.
// level: debug, info, warn, error (default info). format: json or console (default json).
func NewLogger(level, format, serviceName string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	if serviceName != "" {
		logger = logger.With(zap.String("service_name", serviceName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		logger = logger.With(zap.String("hostname", hostname))
	}
	return logger, nil
}

// waLogger routes whatsmeow logs into zap.
type waLogger struct {
	log *zap.SugaredLogger
}

func NewWALogger(logger *zap.Logger, module string) waLog.Logger {
	return &waLogger{log: logger.Sugar().With("module", module)}
}

func (l *waLogger) Errorf(msg string, args ...interface{}) { l.log.Errorf(msg, args...) }
func (l *waLogger) Warnf(msg string, args ...interface{})  { l.log.Warnf(msg, args...) }
func (l *waLogger) Infof(msg string, args ...interface{})  { l.log.Infof(msg, args...) }
func (l *waLogger) Debugf(msg string, args ...interface{}) { l.log.Debugf(msg, args...) }

func (l *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{log: l.log.With("submodule", module)}
}
