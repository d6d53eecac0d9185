package projfs

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-projfs/go-projfs/log"
)

// Instance is a running projection of a Source into its
// virtualization root.
//
// The Instance owns the Source from Start on: the Source is
// closed when the projection is stopped, if it implements
// io.Closer.
type Instance struct {
	id      GUID
	root    string
	library Library
	logger  log.Log
	vctx    VirtualizationContext
	context *projectionContext

	stopOnce sync.Once
	stopErr  error
}

// checkRoot ensures the root is an existing, empty directory.
func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ConfigurationError{
				Root: root, Reason: "does not exist", Err: err,
			}
		}
		return &ConfigurationError{
			Root: root, Reason: "cannot be inspected", Err: err,
		}
	}
	if !info.IsDir() {
		return &ConfigurationError{Root: root, Reason: "is not a directory"}
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return &ConfigurationError{
			Root: root, Reason: "cannot be listed", Err: err,
		}
	}
	if len(entries) > 0 {
		return &ConfigurationError{Root: root, Reason: "is not empty"}
	}
	return nil
}

// Start projects the source into the root, which must be an
// existing and empty directory.
//
// The projection runs until Stop. Whatever the source does,
// the host is served the listings and contents it returns.
func Start(root string, source Source, opts ...Option) (*Instance, error) {
	if source == nil {
		return nil, errors.New("invalid nil source parameter")
	}
	option := newOption()
	if inner, ok := source.(BehaviourDefaultOptions); ok {
		Options(inner.DefaultOptions()...)(option)
	}
	Options(opts...)(option)
	logger := option.logger

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &ConfigurationError{
			Root: root, Reason: "cannot be resolved", Err: err,
		}
	}
	if err := checkRoot(absRoot); err != nil {
		return nil, err
	}
	library := option.library
	if library == nil {
		library, err = Resolve(option.strategy)
		if err != nil {
			return nil, err
		}
	}
	id, err := newGUID()
	if err != nil {
		return nil, err
	}
	if err := library.MarkDirectoryAsPlaceholder(
		absRoot, "", nil, id); err != nil {
		return nil, &EngineError{Op: OpMarkRoot, Err: err}
	}
	logger.Logf(log.TopicTrace, "marked %q as root %s", absRoot, id)

	// The source is owned by the context from now on.
	created := false
	context := newProjectionContext(library, source, logger)
	defer func() {
		if !created {
			if err := context.release(); err != nil {
				logger.Logf(log.TopicError,
					"release source of %q: %v", absRoot, err)
			}
		}
	}()
	vctx, err := library.StartVirtualizing(
		absRoot, context, option.startOptions())
	if err != nil {
		return nil, &EngineError{Op: OpStart, Err: err}
	}
	logger.Logf(log.TopicTrace, "started virtualizing %q", absRoot)
	created = true
	return &Instance{
		id:      id,
		root:    absRoot,
		library: library,
		logger:  logger,
		vctx:    vctx,
		context: context,
	}, nil
}

// ID is the instance id the root has been marked with.
func (p *Instance) ID() GUID {
	return p.id
}

// Root is the absolute path of the virtualization root.
func (p *Instance) Root() string {
	return p.root
}

// Stop ends the projection. It returns after every callback in
// flight has returned, and the source has been released.
//
// The files hydrated in the root remain there. Calling Stop
// more than once returns the result of the first call.
func (p *Instance) Stop() error {
	p.stopOnce.Do(func() {
		p.library.StopVirtualizing(p.vctx)
		p.logger.Logf(log.TopicTrace, "stopped virtualizing %q", p.root)
		if err := p.context.release(); err != nil {
			p.stopErr = &EngineError{
				Op:  OpStop,
				Err: errors.Wrap(err, "release source"),
			}
		}
	})
	return p.stopErr
}

// Close is Stop, for usage as io.Closer.
func (p *Instance) Close() error {
	return p.Stop()
}
