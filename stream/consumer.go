package stream

import (
	"context"

	"go.uber.org/zap"
)

type Middleware func(Processor, ConsumerOpts) Processor

// ConsumerOpts describes stream session preferences
type ConsumerOpts struct {
	Name         string
	MaxBatchSize int
	Middleware   []Middleware
}

type consumer struct {
	opts ConsumerOpts
}
type ConsumerOpt func(*ConsumerOpts)

func WithMaxBatchSize(v int) ConsumerOpt {
	return func(c *ConsumerOpts) { c.MaxBatchSize = v }
}
func WithName(v string) ConsumerOpt {
	return func(c *ConsumerOpts) { c.Name = v }
}
func WithPerformanceLogging(logger *zap.Logger) ConsumerOpt {
	return func(c *ConsumerOpts) {
		c.Middleware = append(c.Middleware, func(p Processor, opts ConsumerOpts) Processor {
			l := logger
			if opts.Name != "" {
				l = l.With(zap.String("consumer_name", opts.Name))
			}
			l = l.With(
				zap.Int("consumer_max_batch_size", opts.MaxBatchSize),
			)
			return PerformanceLogger(l, p)
		})
	}
}

type Consumer interface {
	Consume(ctx context.Context, src Source, processor Processor) error
}

func NewConsumer(opts ...ConsumerOpt) Consumer {
	config := ConsumerOpts{
		MaxBatchSize: 10,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.MaxBatchSize < 1 {
		config.MaxBatchSize = 1
	}
	return consumer{opts: config}
}

func (c consumer) Consume(ctx context.Context, src Source, processor Processor) error {
	return Consume(ctx, src, c.opts, processor)
}
