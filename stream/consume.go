package stream

import (
	"context"
)

// Processor is a function that will process stream records
type Processor func(context.Context, Batch) error

// Consume starts a Poller on src, and calls processor on each batch of records.
// src is no longer used once Consume returns.
func Consume(ctx context.Context, src Source, opts ConsumerOpts, processor Processor) error {
	ctx, cancel := context.WithCancel(ctx)
	poller := newPoller(ctx, src, opts)
	defer func() {
		cancel()
		for range poller.Ready() {
		}
	}()
	for _, middleware := range opts.Middleware {
		processor = middleware(processor, opts)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-poller.Ready():
			if !ok {
				return poller.Error()
			}
			err := processor(ctx, batch)
			if err != nil {
				return err
			}
		}
	}
}
