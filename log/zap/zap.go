// Package zap adapts a go.uber.org/zap logger into the topic
// logger of go-projfs.
package zap

import (
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/go-projfs/go-projfs"
	"github.com/go-projfs/go-projfs/log"
)

type Zap struct {
	Logger  *zap.Logger
	Enable  log.Topics
	counter atomic.Uint64
}

// New logs the topics specified into the logger.
func New(logger *zap.Logger, enable log.Topics) *Zap {
	return &Zap{Logger: logger, Enable: enable}
}

func (l *Zap) Enabled(topics log.Topics) bool {
	return (l.Enable & topics) != 0
}

// level maps the most severe of the topics into a level. The
// callback traces share the debug level with the lifecycle.
func level(topics log.Topics) zapcore.Level {
	switch {
	case topics&log.TopicError != 0:
		return zapcore.WarnLevel
	case topics&log.TopicVerdict != 0:
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

// fields flattens the arguments, expanding the debug structs
// into one field per struct field, sorted by name.
func fields(args log.M) []zap.Field {
	var result []zap.Field
	for name, arg := range args {
		if ds, ok := arg.(projfs.DebugStruct); ok {
			if m := ds.Fields(); m != nil {
				for fieldName, value := range m {
					result = append(result, zap.Any(name+"."+fieldName, value))
				}
				continue
			}
		}
		result = append(result, zap.Any(name, arg))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

func (l *Zap) Call(name string, args log.M) string {
	if !l.Enabled(log.TopicCall) {
		return ""
	}
	cookie := fmt.Sprintf("%x", l.counter.Add(1))
	l.Logger.With(
		zap.String("name", name),
		zap.String("cookie", cookie),
	).Log(level(log.TopicCall), "call", fields(args)...)
	return cookie
}

func (l *Zap) Return(name, cookie string, rets log.M) {
	if !l.Enabled(log.TopicCall) {
		return
	}
	l.Logger.With(
		zap.String("name", name),
		zap.String("cookie", cookie),
	).Log(level(log.TopicCall), "return", fields(rets)...)
}

func (l *Zap) Log(topics log.Topics, msg string) {
	if !l.Enabled(topics) {
		return
	}
	l.Logger.Log(level(topics), msg)
}

func (l *Zap) Logf(topics log.Topics, msg string, args ...any) {
	if !l.Enabled(topics) {
		return
	}
	l.Logger.Log(level(topics), fmt.Sprintf(msg, args...))
}

var _ log.Log = (*Zap)(nil)

// Development logs every topic into a development logger.
func Development() (*Zap, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return New(logger, log.AllTopics), nil
}
