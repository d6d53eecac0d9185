package logrus

import (
	"bytes"
	"testing"

	logrus "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/go-projfs/go-projfs"
	"github.com/go-projfs/go-projfs/log"
)

type Assert struct {
	*assert.Assertions
}

func newTestLogger(enable log.Topics) (*Logrus, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.TraceLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})
	return &Logrus{Logger: logger, Enable: enable}, &buf
}

func TestLevels(t *testing.T) {
	assert := Assert{assert.New(t)}

	assert.Equal(logrus.WarnLevel, level(log.TopicError))
	assert.Equal(logrus.WarnLevel, level(log.TopicError|log.TopicTrace))
	assert.Equal(logrus.InfoLevel, level(log.TopicVerdict))
	assert.Equal(logrus.DebugLevel, level(log.TopicTrace))
	assert.Equal(logrus.DebugLevel, level(log.TopicNotification))
	assert.Equal(logrus.TraceLevel, level(log.TopicCall))
}

func TestLogf(t *testing.T) {
	assert := Assert{assert.New(t)}
	logger, buf := newTestLogger(log.TopicError)

	logger.Logf(log.TopicTrace, "hidden %d", 1)
	assert.Empty(buf.String())

	logger.Logf(log.TopicError, "shown %d", 2)
	assert.Contains(buf.String(), "level=warning")
	assert.Contains(buf.String(), "shown 2")
}

func TestCallReturn(t *testing.T) {
	assert := Assert{assert.New(t)}
	logger, buf := newTestLogger(log.AllTopics)

	info := &projfs.FileBasicInfo{FileSize: 667}
	cookie := logger.Call("GetPlaceholderInfo", log.M{
		"info": projfs.DebugBasicInfo{FileBasicInfo: info},
	})
	assert.Equal("1", cookie)
	assert.Contains(buf.String(), "info.FileSize=667")
	assert.Contains(buf.String(), "cookie=1")

	logger.Return("GetPlaceholderInfo", cookie, log.M{"result": projfs.S_OK})
	assert.Contains(buf.String(), "msg=return")

	disabled, disabledBuf := newTestLogger(log.TopicError)
	assert.Equal("", disabled.Call("GetFileData", nil))
	assert.Empty(disabledBuf.String())
}
