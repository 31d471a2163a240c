package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.Mutex
	base   = logrus.New()
	output *MultiWriter
	logger Logger = &logrusAdapter{entry: logrus.NewEntry(base)}
)

func init() {
	if err := Init(Config{}); err != nil {
		panic(err)
	}
}

// GetLogger returns the process logger. Before Init it writes info and
// above to stdout with the default pattern.
func GetLogger() Logger {
	return logger
}

// Init reconfigures the process logger in place. Loggers derived from
// GetLogger before the call pick up the new level, format and appenders.
// The appenders of the previous configuration are closed.
func Init(cfg Config) error {
	level, f, out, err := build(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	base.SetFormatter(f)
	base.SetOutput(out)
	base.SetLevel(level)

	prev := output
	output = out
	if prev != nil {
		return prev.Close()
	}
	return nil
}
