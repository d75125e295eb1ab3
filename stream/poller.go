package stream

import (
	"context"
	"io"
)

type poller struct {
	maxBatchSize int
	current      Batch
	ch           chan Batch
	err          error
}

type Poller interface {
	Ready() <-chan Batch
	// Error returns the error that stopped the poller. It must only be called
	// once Ready is closed.
	Error() error
}

func newPoller(ctx context.Context, src Source, opts ConsumerOpts) Poller {
	s := &poller{
		ch:           make(chan Batch),
		maxBatchSize: opts.MaxBatchSize,
		current:      Batch{Records: [][]byte{}},
	}
	go s.run(ctx, src)
	return s
}

func (s *poller) Error() error {
	return s.err
}
func (s *poller) Ready() <-chan Batch {
	return s.ch
}

func (s *poller) send(ctx context.Context) bool {
	select {
	case s.ch <- s.current:
		s.current = Batch{Records: [][]byte{}}
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *poller) run(ctx context.Context, src Source) {
	defer close(s.ch)
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := src.Next()
		if err == nil {
			if len(s.current.Records) == 0 {
				s.current.FirstOffset = src.Offset()
			}
			s.current.Records = append(s.current.Records, payload)
			s.current.LastOffset = src.Offset()
			if len(s.current.Records) >= s.maxBatchSize {
				if !s.send(ctx) {
					return
				}
			}
			continue
		}
		if len(s.current.Records) > 0 {
			if !s.send(ctx) {
				return
			}
		}
		if err != io.EOF {
			s.err = err
		}
		return
	}
}
