package cellwrap

import (
	"io"
	"os"

	"github.com/cellwrap/cellwrap/internal/clone"
	"github.com/cellwrap/cellwrap/internal/logx"
	"github.com/cellwrap/cellwrap/internal/wire"
)

// config is the mutable configuration record assembled by resolveOptions
// and the optional builder callback, then frozen into a Wrapper. The shape
// (private config struct + exported Option closures + resolveOptions)
// mirrors inprocgrpc/options.go's channelOptions/Option/applyOption.
type config struct {
	name     string
	local    bool
	threads  int
	logger   logx.Logger
	cloner   clone.Cloner
	moveData bool
	defaults wire.Overrides
	policies map[string]wire.Overrides
	build    func(*Builder)
}

// Option configures a Wrapper at construction time.
type Option interface {
	applyOption(*config) error
}

// optionImpl implements Option via a closure, mirroring inprocgrpc's
// channelOptionImpl.
type optionImpl struct {
	fn func(*config) error
}

func (o *optionImpl) applyOption(c *config) error { return o.fn(c) }

func newOption(fn func(*config) error) Option { return &optionImpl{fn: fn} }

// WithName sets the wrapper's name, used for observability. Defaults to an
// identity-derived string if omitted.
func WithName(name string) Option {
	return newOption(func(c *config) error { c.name = name; return nil })
}

// WithLocal gives the server the object by reference instead of by
// ownership transfer (spec §4.3's use_current_ractor): the Handle stays
// live in the constructing goroutine and RecoverObject is not permitted.
// The server still runs in its own new goroutine, as in isolated mode.
func WithLocal(local bool) Option {
	return newOption(func(c *config) error { c.local = local; return nil })
}

// WithThreads sets the worker pool size. 0 (the default) means sequential
// mode: the inbox dispatch goroutine executes every call itself. Negative
// values are coerced to 0.
func WithThreads(n int) Option {
	return newOption(func(c *config) error {
		if n < 0 {
			n = 0
		}
		c.threads = n
		return nil
	})
}

// WithLogging enables or disables structured logging to stderr.
func WithLogging(enabled bool) Option {
	return newOption(func(c *config) error {
		if enabled {
			c.logger = logx.NewZerolog(os.Stderr)
		} else {
			c.logger = logx.Noop()
		}
		return nil
	})
}

// WithLogOutput enables structured logging to an explicit writer, for
// tests and non-stderr deployments.
func WithLogOutput(w io.Writer) Option {
	return newOption(func(c *config) error { c.logger = logx.NewZerolog(w); return nil })
}

// Cloner produces an independent deep copy of a value, used whenever a
// MethodPolicy calls for copy transport.
type Cloner = clone.Cloner

// ProtoCloner is an opt-in Cloner for payloads that are proto.Message,
// cloning via proto.Clone instead of the default reflection walk.
type ProtoCloner = clone.Proto

// WithCloner overrides the default reflection-based deep-copy Cloner, e.g.
// with ProtoCloner{} for protobuf payloads.
func WithCloner(cloner Cloner) Option {
	return newOption(func(c *config) error { c.cloner = cloner; return nil })
}

// WithMoveData sets the base move_data flag the four default move_*
// overrides inherit from when not explicitly set. execute_blocks_in_place
// does not inherit from it.
func WithMoveData(move bool) Option {
	return newOption(func(c *config) error { c.moveData = move; return nil })
}

// WithMoveArguments overrides the wrapper-wide default's move_arguments.
func WithMoveArguments(move bool) Option {
	return newOption(func(c *config) error { v := move; c.defaults.MoveArguments = &v; return nil })
}

// WithMoveResults overrides the wrapper-wide default's move_results.
func WithMoveResults(move bool) Option {
	return newOption(func(c *config) error { v := move; c.defaults.MoveResults = &v; return nil })
}

// WithMoveBlockArguments overrides the wrapper-wide default's
// move_block_arguments.
func WithMoveBlockArguments(move bool) Option {
	return newOption(func(c *config) error { v := move; c.defaults.MoveBlockArguments = &v; return nil })
}

// WithMoveBlockResults overrides the wrapper-wide default's
// move_block_results.
func WithMoveBlockResults(move bool) Option {
	return newOption(func(c *config) error { v := move; c.defaults.MoveBlockResults = &v; return nil })
}

// WithExecuteBlocksInPlace sets the wrapper-wide default's
// execute_blocks_in_place.
func WithExecuteBlocksInPlace(v bool) Option {
	return newOption(func(c *config) error { p := v; c.defaults.ExecuteBlocksInPlace = &p; return nil })
}

// WithBuilder supplies the builder block from spec §4.3: it runs
// synchronously inside New, before any server goroutine is spawned, and may
// call Builder.ConfigureMethod and the Builder setters. The wrapper is not
// published to the caller until New returns, so there is no way to observe
// a partially configured wrapper from a concurrently running server — the
// resolution of spec §9's second open question.
func WithBuilder(fn func(*Builder)) Option {
	return newOption(func(c *config) error { c.build = fn; return nil })
}

// Builder is the mutable view of a Wrapper's configuration exposed to the
// WithBuilder callback, before the configuration freezes.
type Builder struct {
	c *config
}

// SetName overrides the wrapper's name.
func (b *Builder) SetName(name string) { b.c.name = name }

// SetLoggingEnabled overrides whether structured logging is active.
func (b *Builder) SetLoggingEnabled(enabled bool) {
	if enabled {
		b.c.logger = logx.NewZerolog(os.Stderr)
	} else {
		b.c.logger = logx.Noop()
	}
}

// SetThreads overrides the worker pool size.
func (b *Builder) SetThreads(n int) {
	if n < 0 {
		n = 0
	}
	b.c.threads = n
}

// ConfigureMethod registers a per-method MethodPolicy override, layered
// onto the wrapper-wide default policy (unset fields inherit from it).
func (b *Builder) ConfigureMethod(name string, opts ...PolicyOption) {
	if b.c.policies == nil {
		b.c.policies = make(map[string]wire.Overrides)
	}
	o := b.c.policies[name]
	for _, opt := range opts {
		opt.apply(&o)
	}
	b.c.policies[name] = o
}

func resolveOptions(opts []Option) (*config, error) {
	c := &config{
		threads: 0,
		logger:  logx.Noop(),
		cloner:  clone.Reflect{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(c); err != nil {
			return nil, err
		}
	}
	if c.build != nil {
		c.build(&Builder{c: c})
	}
	return c, nil
}

// resolvePolicies turns the resolved config's default + per-method
// overrides into the frozen map a Wrapper consults at call time, keyed by
// method name plus wire.DefaultKey for the fallback.
func resolvePolicies(c *config) map[string]wire.MethodPolicy {
	out := make(map[string]wire.MethodPolicy, len(c.policies)+1)
	def := wire.DefaultPolicy(c.moveData, c.defaults)
	out[wire.DefaultKey] = def
	for name, o := range c.policies {
		out[name] = wire.NewMethodPolicy(def, o)
	}
	return out
}
