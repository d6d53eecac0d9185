// Package logrus adapts a sirupsen/logrus logger into the
// topic logger of go-projfs.
package logrus

import (
	"fmt"
	"sync/atomic"

	logrus "github.com/sirupsen/logrus"

	"github.com/go-projfs/go-projfs"
	"github.com/go-projfs/go-projfs/log"
)

type Logrus struct {
	Logger  *logrus.Logger
	Enable  log.Topics
	counter uint64
}

func (l *Logrus) Enabled(topics log.Topics) bool {
	return (l.Enable & topics) != 0
}

// level maps the most severe of the topics into a level.
func level(topics log.Topics) logrus.Level {
	switch {
	case topics&log.TopicError != 0:
		return logrus.WarnLevel
	case topics&log.TopicVerdict != 0:
		return logrus.InfoLevel
	case topics&(log.TopicTrace|log.TopicNotification) != 0:
		return logrus.DebugLevel
	}
	return logrus.TraceLevel
}

func logHandleDebugStruct(l *logrus.Entry, fields log.M, msg string) {
	smallFields := make(log.M)
	for name, field := range fields {
		if ds, ok := field.(projfs.DebugStruct); ok {
			if m := ds.Fields(); m != nil {
				for fieldName, value := range m {
					smallFields[name+"."+fieldName] = value
				}
				continue
			}
		}
		smallFields[name] = field
	}
	l.WithFields(smallFields).Log(level(log.TopicCall), msg)
}

func (l *Logrus) Call(name string, args log.M) string {
	if !l.Enabled(log.TopicCall) {
		return ""
	}
	cookie := fmt.Sprintf("%x", atomic.AddUint64(&l.counter, 1))
	logHandleDebugStruct(l.Logger.WithFields(logrus.Fields{
		"name":   name,
		"cookie": cookie,
	}), args, "call")
	return cookie
}

func (l *Logrus) Log(topics log.Topics, msg string) {
	if !l.Enabled(topics) {
		return
	}
	l.Logger.Log(level(topics), msg)
}

func (l *Logrus) Logf(topics log.Topics, msg string, args ...any) {
	if !l.Enabled(topics) {
		return
	}
	l.Logger.Logf(level(topics), msg, args...)
}

func (l *Logrus) Return(name, cookie string, rets log.M) {
	if !l.Enabled(log.TopicCall) {
		return
	}
	logHandleDebugStruct(l.Logger.WithFields(logrus.Fields{
		"name":   name,
		"cookie": cookie,
	}), rets, "return")
}

var _ log.Log = (*Logrus)(nil)

// Default logs every topic into a new logrus logger at the
// trace level, so that nothing is filtered by the level.
func Default() *Logrus {
	logger := logrus.New()
	logger.SetLevel(logrus.TraceLevel)
	return &Logrus{
		Logger: logger,
		Enable: log.AllTopics,
	}
}
