package logger

import (
	"fmt"
	"io"
	"io/ioutil"
	"sync"

	prefixed "github.com/chappjc/logrus-prefix"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	getLoggerMutex sync.Mutex
	globalLogger   *log.Logger
)

// Config carries the logging section of the daemon configuration.
type Config struct {
	LogLevel   string `mapstructure:"level" json:"level"`
	Filename   string `mapstructure:"filename" json:"filename"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
	Quiet      bool   `mapstructure:"quiet" json:"quiet"`
}

// GetLogger returns a configured logger instance
func GetLogger(prefix string) *log.Entry {
	if prefix == "" {
		prefix = "<no prefix>"
	}
	getLoggerMutex.Lock()
	defer getLoggerMutex.Unlock()
	if globalLogger == nil {
		logger := log.New()
		logger.SetFormatter(&prefixed.TextFormatter{
			FullTimestamp: true,
		})
		globalLogger = logger
	}
	return globalLogger.WithField("prefix", prefix)
}

// Init applies level and file output to the shared logger. Every entry
// returned by GetLogger, before or after the call, picks it up.
func Init(cfg Config) error {
	l := GetLogger("logger")
	if cfg.LogLevel != "" {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
		l.Logger.SetLevel(level)
	}
	if cfg.Filename != "" {
		WithFile(l, rotatingWriter(cfg))
	}
	if cfg.Quiet {
		WithNoStdOutErr(l)
	}
	return nil
}

func rotatingWriter(cfg Config) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// WithFile logs to the specified writer in addition to the existing output.
func WithFile(entry *log.Entry, w io.Writer) {
	entry.Logger.AddHook(lfshook.NewHook(w, &log.TextFormatter{FullTimestamp: true}))
}

// WithNoStdOutErr disables logging to stdout/stderr.
func WithNoStdOutErr(entry *log.Entry) {
	entry.Logger.SetOutput(ioutil.Discard)
}
