package bridge

import (
	"time"
)

// options configures a Bridge.
type options struct {
	dialer    Dialer
	registry  *Registry
	startTime time.Time
}

// Option configures how a Bridge is set up.
type Option interface {
	apply(*options)
}

// funcOption wraps a function that modifies options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fdo *funcOption) apply(do *options) {
	fdo.f(do)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithDialer returns an Option which replaces how the command and feedback channels are opened.
// The default dials a UR controller.
func WithDialer(dialer Dialer) Option {
	return newFuncOption(func(o *options) {
		o.dialer = dialer
	})
}

// WithRegistry returns an Option which claims the target in registry instead of DefaultRegistry.
func WithRegistry(registry *Registry) Option {
	return newFuncOption(func(o *options) {
		o.registry = registry
	})
}

// WithStartTime returns an Option which sets the time the caller's session started. It defaults to
// the time the connection was established.
func WithStartTime(t time.Time) Option {
	return newFuncOption(func(o *options) {
		o.startTime = t
	})
}
