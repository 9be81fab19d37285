package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Loggers are the two sinks of the bot: App goes to the console and logs/app.log, State only
// to logs/internal_state.log and receives a ledger snapshot after every cycle.
type Loggers struct {
	App   *zap.Logger
	State *zap.Logger
}

func (l *Loggers) Sync() {
	_ = l.App.Sync()
	_ = l.State.Sync()
}

// Nop returns loggers that discard everything.
func Nop() *Loggers {
	return &Loggers{App: zap.NewNop(), State: zap.NewNop()}
}

func newLogger(config Config, useConsole bool) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(config.Filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	fileHandler := &lumberjack.Logger{
		Filename:   config.Filename,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	level := zap.InfoLevel
	if levelEnv := os.Getenv("LOG_LEVEL"); levelEnv != "" {
		if parsedLevel, err := zapcore.ParseLevel(levelEnv); err == nil {
			level = parsedLevel
		}
	}
	logLevel := zap.NewAtomicLevelAt(level)

	productionCfg := zap.NewProductionEncoderConfig()
	productionCfg.TimeKey = "timestamp"
	productionCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	developmentCfg := zap.NewDevelopmentEncoderConfig()
	developmentCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(developmentCfg)
	fileEncoder := zapcore.NewJSONEncoder(productionCfg)

	var cores []zapcore.Core
	if useConsole {
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), logLevel))
	}
	cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(fileHandler), logLevel))

	return zap.New(zapcore.NewTee(cores...)), nil
}

// New builds the loggers, writing their files under dir.
func New(dir string) (*Loggers, error) {
	appConfig := Config{
		Filename:   filepath.Join(dir, "app.log"),
		MaxSize:    5,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	stateConfig := Config{
		Filename:   filepath.Join(dir, "internal_state.log"),
		MaxSize:    5,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	appLogger, err := newLogger(appConfig, true) // with console output
	if err != nil {
		return nil, fmt.Errorf("failed to create app logger: %w", err)
	}

	stateLogger, err := newLogger(stateConfig, false) // without console output
	if err != nil {
		return nil, fmt.Errorf("failed to create state logger: %w", err)
	}

	return &Loggers{App: appLogger, State: stateLogger}, nil
}
