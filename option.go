package projfs

import (
	"github.com/go-projfs/go-projfs/log"
)

type option struct {
	library               Library
	strategy              Strategy
	logger                log.Log
	notificationMask      NotifyTypes
	negativePathCache     bool
	poolThreadCount       uint32
	concurrentThreadCount uint32
}

func newOption() *option {
	return &option{
		strategy:         DynamicResolution,
		logger:           log.NoLog{},
		notificationMask: NotifyAll,
	}
}

// Option is the options that could be passed to Start.
type Option func(*option)

// UseLibrary makes the projection call into the library
// specified, instead of resolving the native one. It is how
// a projection is driven by projfstest.Engine.
func UseLibrary(library Library) Option {
	return func(o *option) {
		o.library = library
	}
}

// LibraryStrategy selects how the native library is resolved,
// which is DynamicResolution by default.
func LibraryStrategy(strategy Strategy) Option {
	return func(o *option) {
		o.strategy = strategy
	}
}

// Logger sets the logger of the projection, the log.NoLog is
// used by default.
func Logger(logger log.Log) Option {
	return func(o *option) {
		o.logger = log.OrNoLog(logger)
	}
}

// NotificationMask specifies the notifications delivered for
// the whole virtualization root, which are all of them by
// default.
//
// Specifying NotifyNone, or NotifySuppressNotifications, will
// turn the notification callback off.
func NotificationMask(mask NotifyTypes) Option {
	return func(o *option) {
		o.notificationMask = mask
	}
}

// NegativePathCache lets the host remember the paths which
// were reported as not found, so that they are not queried
// again. The source must not grow those paths later.
func NegativePathCache(value bool) Option {
	return func(o *option) {
		o.negativePathCache = value
	}
}

// PoolThreadCount sets the number of threads the host keeps
// for delivering callbacks, 0 lets the host decide.
func PoolThreadCount(value uint32) Option {
	return func(o *option) {
		o.poolThreadCount = value
	}
}

// ConcurrentThreadCount sets the number of callbacks the host
// may deliver at the same time, 0 lets the host decide.
func ConcurrentThreadCount(value uint32) Option {
	return func(o *option) {
		o.concurrentThreadCount = value
	}
}

// Options is used to aggregate a bundle of options.
func Options(opts ...Option) Option {
	return func(o *option) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

func (o *option) startOptions() *StartOptions {
	options := &StartOptions{
		PoolThreadCount:       o.poolThreadCount,
		ConcurrentThreadCount: o.concurrentThreadCount,
	}
	if o.negativePathCache {
		options.Flags |= StartFlagNegativePathCache
	}
	if o.notificationMask != NotifyNone {
		options.NotificationMappings = []NotificationMapping{{
			Mask: o.notificationMask,
			Root: "",
		}}
	}
	return options
}
