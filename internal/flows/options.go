package flows

import "github.com/meganet/portal/internal/logging"

type options struct {
	cache    StepCache
	auditor  Auditor
	observer Observer
	log      *logging.Logger
}

// Option configures a Service or an Engine.
type Option func(*options)

// WithCache enables the read-through step cache.
func WithCache(c StepCache) Option {
	return func(o *options) { o.cache = c }
}

// WithAuditor records authoring changes to a.
func WithAuditor(a Auditor) Option {
	return func(o *options) { o.auditor = a }
}

// WithObserver reports outcomes to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{observer: nopObserver{}, log: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.log == nil {
		o.log = logging.NewNop()
	}
	return o
}
