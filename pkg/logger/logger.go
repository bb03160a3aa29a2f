package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"sermon-publisher/pkg/config"
)

// Logger 日志服务，封装 logrus
type Logger struct {
	log    *logrus.Logger
	closer io.Closer
}

var (
	globalMu     sync.RWMutex
	globalLogger = &Logger{log: logrus.StandardLogger()}
)

// NewLogger 根据配置创建日志服务
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	var logCfg config.LogConfig
	if cfg != nil {
		logCfg = cfg.Log
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(logCfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(logCfg.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	}

	out := &Logger{log: l}
	switch strings.ToLower(logCfg.Output) {
	case "file":
		if logCfg.Filename == "" {
			logCfg.Filename = "logs/sermon-publisher.log"
		}
		rotator := &lumberjack.Logger{
			Filename:   logCfg.Filename,
			MaxSize:    logCfg.MaxSize,
			MaxAge:     logCfg.MaxAge,
			MaxBackups: logCfg.MaxBackups,
			Compress:   logCfg.Compress,
		}
		l.SetOutput(rotator)
		out.closer = rotator
	case "both":
		if logCfg.Filename == "" {
			logCfg.Filename = "logs/sermon-publisher.log"
		}
		rotator := &lumberjack.Logger{
			Filename:   logCfg.Filename,
			MaxSize:    logCfg.MaxSize,
			MaxAge:     logCfg.MaxAge,
			MaxBackups: logCfg.MaxBackups,
			Compress:   logCfg.Compress,
		}
		l.SetOutput(io.MultiWriter(os.Stdout, rotator))
		out.closer = rotator
	default:
		l.SetOutput(os.Stdout)
	}
	return out
}

// SetGlobalLogger 设置全局日志器
func SetGlobalLogger(l *Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

func current() *logrus.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger.log
}

// Close 关闭日志输出
func (l *Logger) Close() {
	if l != nil && l.closer != nil {
		_ = l.closer.Close()
	}
}

// Raw 暴露底层 logrus 实例
func (l *Logger) Raw() *logrus.Logger {
	return l.log
}

func Debug(msg string, fields map[string]interface{}) {
	current().WithFields(fields).Debug(msg)
}

func Info(msg string, fields map[string]interface{}) {
	current().WithFields(fields).Info(msg)
}

func Warn(msg string, fields map[string]interface{}) {
	current().WithFields(fields).Warn(msg)
}

func Error(msg string, fields map[string]interface{}) {
	current().WithFields(fields).Error(msg)
}

func Debugf(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	current().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

// Fatal 记录后退出进程
func Fatal(msg string) {
	current().Fatal(msg)
}

type fieldsKey struct{}

// WithFields 把关联字段放入 context，沿调用链显式传递
func WithFields(ctx context.Context, fields map[string]interface{}) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	merged := logrus.Fields{}
	if prev, ok := ctx.Value(fieldsKey{}).(logrus.Fields); ok {
		for k, v := range prev {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FromContext 返回携带 context 关联字段的日志条目
func FromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(current())
	if ctx == nil {
		return entry
	}
	if fields, ok := ctx.Value(fieldsKey{}).(logrus.Fields); ok {
		return entry.WithFields(fields)
	}
	return entry
}

// Field 读取 context 中的单个关联字段
func Field(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	if fields, ok := ctx.Value(fieldsKey{}).(logrus.Fields); ok {
		if v, ok := fields[key]; ok {
			return fmt.Sprint(v)
		}
	}
	return ""
}
