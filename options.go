package deepgp

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

type config struct {
	jitter float64
	src    rand.Source
	log    *zap.Logger
}

func newConfig(opts []Option) config {
	cfg := config{jitter: DefaultJitter, log: zap.NewNop()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.src == nil {
		cfg.src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return cfg
}

// Option configures a trajectory or reparameterization sampler.
type Option func(*config)

// WithJitter sets the diagonal jitter added to Gram matrices before
// factorization. The default is DefaultJitter.
func WithJitter(jitter float64) Option {
	return func(c *config) { c.jitter = jitter }
}

// WithSeed seeds the sampler's random source, making its draws
// reproducible.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.src = rand.NewSource(seed) }
}

// WithSource sets the sampler's random source directly.
func WithSource(src rand.Source) Option {
	return func(c *config) { c.src = src }
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}
