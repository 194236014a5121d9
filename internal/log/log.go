// Package log provides the process-wide structured logger: the allocation
// engine, the topology policies, host coordination and the ambient HTTP
// surface all log through here rather than through fmt or the bare stdlib
// log package. internal/driver/netlinksafe is the exception and reports its
// retry warnings through the stdlib log package.
package log

import (
	"flag"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log Log

var commandLine flag.FlagSet

type Log struct {
	logrus.FieldLogger
	Options

	mu sync.Mutex

	Flush func()
}

type Options struct {
	Verbosity bool

	// TextFormatter
	FullTimestamp   bool
	ForceColors     bool
	TimestampFormat string

	// JSONFormatter
	LogFile     string
	PrettyPrint bool

	// Log file rotation
	MaxSize, MaxAge, MaxBackups int

	// Async controls whether the JSON file sink writes off the logging
	// goroutine.
	Async bool
}

func Setup() {
	o := &log.Options
	logger := logrus.New()
	if o.Verbosity {
		logger.Level = logrus.TraceLevel
	}

	formatter := &logrus.TextFormatter{
		FullTimestamp:   o.FullTimestamp,
		ForceColors:     o.ForceColors,
		TimestampFormat: o.TimestampFormat,
	}
	logger.SetFormatter(formatter)

	logger.AddHook(&StackHook{
		LogLevels:          []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel},
		Skip:               6,
		MaximumCallerDepth: 25,
	})

	logger.SetOutput(os.Stderr)

	jsonHook := NewJSONHook(o.LogFile, o.Async, o.PrettyPrint, o.MaxSize, o.MaxAge, o.MaxBackups)
	logger.AddHook(jsonHook)

	log.FieldLogger = logger
	log.Flush = jsonHook.Flush
}

func init() {
	commandLine.BoolVar(&log.Verbosity, "v", false, "if true, allows Debug() and Trace() to be logged")
	commandLine.BoolVar(&log.Verbosity, "verbosity", false, "if true, allows Debug() and Trace() to be logged")
	commandLine.BoolVar(&log.FullTimestamp, "full-timestamp", true, "if true, log the full timestamp")
	commandLine.BoolVar(&log.ForceColors, "force-colors", true, "if true, bypass checking for a TTY before outputting colors")
	commandLine.StringVar(&log.TimestampFormat, "timestamp-format", time.DateTime, "timestamp layout used in text output")
	commandLine.StringVar(&log.LogFile, "log-file", "nethost.log", "path of the JSON log sink")
	commandLine.BoolVar(&log.PrettyPrint, "pretty-print", false, "indent JSON log records")
	commandLine.IntVar(&log.MaxSize, "log-file-size", 10, "size of the log file before rotating, in MB")
	commandLine.IntVar(&log.MaxAge, "log-age", 28, "age of a log file before rotating, in days")
	commandLine.IntVar(&log.MaxBackups, "log-backups", 3, "number of rotated log files to keep")
	commandLine.BoolVar(&log.Async, "async", false, "write the JSON log sink off the logging goroutine")
}

func Infoln(args ...interface{}) { log.Infoln(args...) }
func Infof(format string, args ...interface{}) { log.Infof(format, args...) }
func Warnln(args ...interface{}) { log.Warnln(args...) }
func Warnf(format string, args ...interface{}) { log.Warnf(format, args...) }
func Errorln(args ...interface{}) { log.Errorln(args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }
func Fatalln(args ...interface{}) { log.Fatalln(args...) }
func Fatalf(format string, args ...interface{}) { log.Fatalf(format, args...) }
func Debugln(args ...interface{}) { log.Debugln(args...) }
func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }

// WithFields returns an entry carrying the given structured fields, the way
// every engine/policy package annotates a log line with network/instance ids.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}

func Flush() {
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.Flush != nil {
		log.Flush()
	}
}

// InitFlags registers the package's flags on fs, or on flag.CommandLine if fs is nil.
func InitFlags(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	commandLine.VisitAll(func(f *flag.Flag) {
		fs.Var(f.Value, f.Name, f.Usage)
	})
}
