package stateos

// schedulerOptions holds configuration accumulated from a New call's
// Option values.
type schedulerOptions struct {
	clock    Clock
	logger   Logger
	onSwitch func()
	robin    bool
}

// Option configures a [Scheduler] at construction.
type Option interface {
	apply(*schedulerOptions)
}

type optionFunc func(*schedulerOptions)

func (f optionFunc) apply(o *schedulerOptions) { f(o) }

// WithClock supplies the tick source. Defaults to a fresh [ManualClock]
// if omitted, which is appropriate for tests; production callers should
// pass a [WallClock] (and drive it via [Scheduler.RunClock]).
func WithClock(c Clock) Option {
	return optionFunc(func(o *schedulerOptions) { o.clock = c })
}

// WithLogger supplies the diagnostics sink. Defaults to [NoOpLogger].
func WithLogger(l Logger) Option {
	return optionFunc(func(o *schedulerOptions) { o.logger = l })
}

// WithContextSwitchHook supplies an idempotent context-switch request
// hook, invoked synchronously, under the kernel lock, whenever a
// newly-ready task outranks the current one. It must not block and must
// not call back into the scheduler.
func WithContextSwitchHook(fn func()) Option {
	return optionFunc(func(o *schedulerOptions) { o.onSwitch = fn })
}

// WithRoundRobin enables round-robin rotation within a priority band on
// Yield. Disabled by default, in which case every Yield is a no-op.
func WithRoundRobin(enabled bool) Option {
	return optionFunc(func(o *schedulerOptions) { o.robin = enabled })
}

func resolveOptions(opts []Option) schedulerOptions {
	cfg := schedulerOptions{
		clock:  &ManualClock{},
		logger: NoOpLogger{},
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(&cfg)
	}
	return cfg
}
