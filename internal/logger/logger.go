package logger

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var once sync.Once
var logger *logrus.Logger

// GetLogger returns the process-wide logger. Until Configure is called it
// writes warnings and above to stderr.
func GetLogger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()

		logger.Out = os.Stderr
		logger.SetLevel(logrus.WarnLevel)

		logger.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
			PadLevelText:  true,
		})
	})

	return logger
}

// Options configures the log destination.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Configure points the logger at a rotating file. The terminal UI owns
// stdout, so log lines never go to the console once configured.
func Configure(opts Options) (io.Closer, error) {
	l := GetLogger()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if opts.File == "" {
		l.Out = io.Discard
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	l.Out = rotator
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LeveledLogger is the key/value logging interface go-retryablehttp expects.
type LeveledLogger interface {
	Error(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

var _ LeveledLogger = &LeveledLogrus{}

// NewLeveledLogrus wraps a logrus logger for the retrying HTTP client.
func NewLeveledLogrus(logger *logrus.Logger) *LeveledLogrus {
	return &LeveledLogrus{
		Logger: logger,
	}
}

type LeveledLogrus struct {
	*logrus.Logger
}

func (l *LeveledLogrus) fields(keysAndValues ...interface{}) map[string]interface{} {
	fields := make(map[string]interface{})

	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			if key == "url" {
				fields[key] = RedactURL(fmt.Sprint(keysAndValues[i+1]))
				continue
			}
			fields[key] = keysAndValues[i+1]
		}
	}

	return fields
}

// RedactURL masks the API key query parameter of a request URL.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if !q.Has("key") {
		return raw
	}
	q.Set("key", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}

func (l *LeveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.WithFields(l.fields(keysAndValues...)).Error(msg)
}

func (l *LeveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.WithFields(l.fields(keysAndValues...)).Info(msg)
}

func (l *LeveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.WithFields(l.fields(keysAndValues...)).Warn(msg)
}

func (l *LeveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	l.WithFields(l.fields(keysAndValues...)).Debug(msg)
}
