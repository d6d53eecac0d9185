// Package log defines the logging interface of go-projfs.
//
// The projection never picks a logging framework for its
// user. Instead the logger of choice is adapted into the
// topic based interface below, see the logrus and zap
// subpackages for ready made adapters.
//
// Every message is tagged with the topic it belongs to, so
// that the adapter can route callback traces, lifecycle
// decisions and protocol anomalies into different levels,
// or drop them before they are even formatted.
package log

// Topics specify the masks of the logger topic.
//
// The projection queries the logger before generating the
// message of a topic, so disabled topics cost nothing.
type Topics int

const (
	// TopicCall records the arguments and the returned
	// status of every callback received from the host.
	//
	// This affects `Log.Call` and `Log.Return` interface.
	// They won't be called if TopicCall is not enabled.
	TopicCall Topics = 1 << iota

	// TopicVerdict records the decisions made on behalf
	// of the host, like a vetoed file operation.
	TopicVerdict

	// TopicTrace records the lifecycle of a projection:
	// root marking, start and stop.
	TopicTrace

	// TopicError records the protocol anomalies and the
	// data source failures that are answered to the host
	// with an error status and otherwise tolerated.
	TopicError

	// TopicNotification records every file system event
	// reported by the host, whether the data source
	// observes notifications or not.
	TopicNotification
)

const (
	AllTopics = Topics(0) |
		TopicCall |
		TopicVerdict |
		TopicTrace |
		TopicError |
		TopicNotification
)

// M is the shorthand for `map[string]any`.
type M = map[string]any

// Log is the logger interface.
type Log interface {
	// Enabled checks if any of the topic is enabled.
	Enabled(Topics) bool

	// Call records the arguments of a callback.
	//
	// The returned cookie associates the call with the
	// status later recorded by Return.
	Call(name string, args M) string

	// Return records the status answered for a callback.
	Return(name, cookie string, rets M)

	// Log with the specified topics.
	Log(topics Topics, msg string)

	// Logf with the specified topics.
	Logf(topics Topics, msg string, args ...any)
}

// NoLog is the null implementation of the Log.
type NoLog struct{}

func (NoLog) Enabled(Topics) bool                         { return false }
func (NoLog) Call(string, M) string                       { return "" }
func (NoLog) Log(topics Topics, msg string)               {}
func (NoLog) Logf(topics Topics, msg string, args ...any) {}
func (NoLog) Return(name, cookie string, rets M)          {}

var _ Log = (*NoLog)(nil)

// OrNoLog returns l, or NoLog when l is nil.
func OrNoLog(l Log) Log {
	if l == nil {
		return NoLog{}
	}
	return l
}
