package asyncio

import (
	"github.com/eXtremal-ik7/asyncio-go/internal/logging"
)

// Method selects the reactor backend a Base drives its event loop with.
// There is no config file and no runtime reconfiguration: the method is
// fixed for the lifetime of the Base, exactly as createAsyncBase(method)
// fixes it for the lifetime of an asyncBase.
type Method int

const (
	// MethodOSDefault picks epoll on linux, kqueue on darwin/bsd, IOCP
	// on windows, and the select-based loop everywhere else.
	MethodOSDefault Method = iota
	MethodEpoll
	MethodKqueue
	MethodIOCP
	MethodSelect
	// MethodURing is an explicit opt-in only: a linux readiness backend
	// that waits through one-shot io_uring POLL_ADD entries on the
	// hand-rolled io_uring syscalls, never chosen by MethodOSDefault.
	MethodURing
)

func (m Method) String() string {
	switch m {
	case MethodOSDefault:
		return "os-default"
	case MethodEpoll:
		return "epoll"
	case MethodKqueue:
		return "kqueue"
	case MethodIOCP:
		return "iocp"
	case MethodSelect:
		return "select"
	case MethodURing:
		return "uring"
	default:
		return "unknown"
	}
}

// MaxSynchronousFinishedOperations bounds the fast-path finish chain
// (spec.md §4.5): once this many operations have resolved inline within
// one outermost submission call (including submissions made by the
// callbacks it ran inline), later ones are handed to the deferred-finish
// dispatcher goroutine instead of being resolved inline, so a
// pathological producer cannot grow the call stack without bound.
const MaxSynchronousFinishedOperations = 32

// Config holds the fixed, construction-time configuration for a Base.
// There is deliberately no Load/Save or file format: every field is set
// through DefaultConfig plus functional Options, matching the teacher's
// DeviceParams/DefaultParams/Options split.
type Config struct {
	// Method selects the reactor backend.
	Method Method

	// LoopThreads is the number of OS threads pinned to the reactor's
	// run loop. Zero means auto-detect from runtime.NumCPU().
	LoopThreads int

	// MaxSynchronousFinished bounds the fast-path finish chain.
	MaxSynchronousFinished int

	// Logger receives the Base's log output (for example, a failed
	// object registration). A nil Logger means logging.Default().
	Logger *logging.Logger

	// Observer receives metrics callbacks; the Base calls its
	// ObserveReactorRearm on every reactor re-arm and no other method.
	// A nil Observer means NoOpObserver.
	Observer Observer
}

// DefaultConfig returns the configuration used when New is called with
// no options.
func DefaultConfig() *Config {
	return &Config{
		Method:                 MethodOSDefault,
		LoopThreads:            0,
		MaxSynchronousFinished: MaxSynchronousFinishedOperations,
		Logger:                 logging.Default(),
		Observer:               NoOpObserver{},
	}
}

// Option mutates a Config. New(opts...) applies them in order over
// DefaultConfig().
type Option func(*Config)

// WithBackendMethod overrides the reactor backend. Passing MethodURing
// requires the linux uring capability probe to succeed; New returns an
// error otherwise.
func WithBackendMethod(method Method) Option {
	return func(c *Config) { c.Method = method }
}

// WithLoopThreads sets the number of OS threads pinned to the reactor's
// run loop. A value <= 0 means auto-detect.
func WithLoopThreads(n int) Option {
	return func(c *Config) { c.LoopThreads = n }
}

// WithMaxSynchronousFinished overrides the fast-path finish-chain bound.
func WithMaxSynchronousFinished(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxSynchronousFinished = n
		}
	}
}

// WithLogger overrides the logger the Base writes its log output to.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithObserver overrides the metrics observer.
func WithObserver(observer Observer) Option {
	return func(c *Config) {
		if observer != nil {
			c.Observer = observer
		}
	}
}
