package logger

import (
	"context"
	"fmt"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel is the configured verbosity of the package-level logger.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorReset  = "\033[0m"
)

// ctxKey is a private context key type so values set here never collide
// with keys set by other packages.
type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	jobIDKey
)

type CustomFormatter struct {
	ForceColor bool
}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
	level := strings.ToUpper(entry.Level.String())

	var levelColor, resetColor string
	if f.ForceColor {
		switch entry.Level {
		case logrus.DebugLevel:
			levelColor = colorCyan
		case logrus.InfoLevel:
			levelColor = colorGreen
		case logrus.WarnLevel:
			levelColor = colorYellow
		case logrus.ErrorLevel:
			levelColor = colorRed
		case logrus.FatalLevel:
			levelColor = colorPurple
		default:
			levelColor = colorReset
		}
		resetColor = colorReset
	}

	caller := ""
	if val, ok := entry.Data["caller"]; ok {
		caller = fmt.Sprintf("%v", val)
	}

	fields := ""
	if v, ok := entry.Data["request_id"]; ok {
		fields += fmt.Sprintf("request_id=%v ", v)
	}
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "caller" && k != "request_id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields += fmt.Sprintf("%s=%v ", k, entry.Data[k])
	}
	fields = strings.TrimSpace(fields)

	return []byte(fmt.Sprintf("%s%-5s%s[%s] [%s] %-20s | %s\n",
		levelColor, level, resetColor, timestamp, fields, caller, entry.Message)), nil
}

func init() {
	logrus.SetFormatter(&CustomFormatter{ForceColor: true})
	logrus.SetReportCaller(false)
}

// GetLogger returns the logger entry carried by ctx, or a fresh default entry.
func GetLogger(ctx context.Context) *logrus.Entry {
	if logger := ctx.Value(loggerKey); logger != nil {
		return logger.(*logrus.Entry)
	}
	newLogger := logrus.New()
	newLogger.SetFormatter(&CustomFormatter{ForceColor: true})
	newLogger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(newLogger)
}

func SetLogLevel(level LogLevel) {
	var logLevel logrus.Level
	switch level {
	case LevelDebug:
		logLevel = logrus.DebugLevel
	case LevelInfo:
		logLevel = logrus.InfoLevel
	case LevelWarn:
		logLevel = logrus.WarnLevel
	case LevelError:
		logLevel = logrus.ErrorLevel
	case LevelFatal:
		logLevel = logrus.FatalLevel
	default:
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
}

func addCaller(entry *logrus.Entry, skip int) *logrus.Entry {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return entry
	}
	shortFile := path.Base(file)
	funcName := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		fullName := path.Base(fn.Name())
		parts := strings.Split(fullName, ".")
		funcName = parts[len(parts)-1]
	}
	return entry.WithField("caller", fmt.Sprintf("%s:%d[%s]", shortFile, line, funcName))
}

// WithRequestID attaches a request id that is carried by every subsequent
// GetLogger call on the returned context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return WithField(ctx, "request_id", requestID)
}

// WithJobID attaches a job_id log field (distinct from the telemetry event
// jobId).
func WithJobID(ctx context.Context, jobID string) context.Context {
	ctx = context.WithValue(ctx, jobIDKey, jobID)
	return WithField(ctx, "job_id", jobID)
}

func WithField(ctx context.Context, key string, value interface{}) context.Context {
	logger := GetLogger(ctx).WithField(key, value)
	return context.WithValue(ctx, loggerKey, logger)
}

func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	logger := GetLogger(ctx).WithFields(fields)
	return context.WithValue(ctx, loggerKey, logger)
}

func Debug(ctx context.Context, args ...interface{}) { addCaller(GetLogger(ctx), 2).Debug(args...) }

func Debugf(ctx context.Context, format string, args ...interface{}) {
	addCaller(GetLogger(ctx), 2).Debugf(format, args...)
}

func Info(ctx context.Context, args ...interface{}) { addCaller(GetLogger(ctx), 2).Info(args...) }

func Infof(ctx context.Context, format string, args ...interface{}) {
	addCaller(GetLogger(ctx), 2).Infof(format, args...)
}

func Warn(ctx context.Context, args ...interface{}) { addCaller(GetLogger(ctx), 2).Warn(args...) }

func Warnf(ctx context.Context, format string, args ...interface{}) {
	addCaller(GetLogger(ctx), 2).Warnf(format, args...)
}

func Error(ctx context.Context, args ...interface{}) { addCaller(GetLogger(ctx), 2).Error(args...) }

func Errorf(ctx context.Context, format string, args ...interface{}) {
	addCaller(GetLogger(ctx), 2).Errorf(format, args...)
}

func ErrorWithFields(ctx context.Context, err error, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	addCaller(GetLogger(ctx), 2).WithFields(fields).Error("stage failed")
}

// CloneContext copies the logger/request-id/job-id values into a fresh
// background context, severing any cancellation/deadline from ctx.
func CloneContext(ctx context.Context) context.Context {
	newCtx := context.Background()
	for _, k := range []ctxKey{loggerKey, requestIDKey, jobIDKey} {
		if v := ctx.Value(k); v != nil {
			newCtx = context.WithValue(newCtx, k, v)
		}
	}
	return newCtx
}
