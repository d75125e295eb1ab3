package commitlog

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	DefaultBlockSize  = 4096
	DefaultBufferSize = 1 << 20
	DefaultPadSize    = 8
	DefaultMagic      = uint64(0x34050d23e85c9e3a)
)

// Options is the configuration of a Log. A Log keeps its own copy, so changing an
// Options value after Open has no effect on it.
type Options struct {
	// BlockSize is the alignment every flush trailer ends on.
	BlockSize int
	// BufferSize is the initial capacity of the write buffer. It is not a limit.
	BufferSize int
	// PadSize is the alignment every entry ends on.
	PadSize int
	// Magic marks a valid trailer.
	Magic uint64
	// MaxEntrySize bounds the payload length a Decoder accepts before allocating.
	// Zero means the package MaxEntrySize.
	MaxEntrySize uint64

	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

type Option func(*Options)

func WithBlockSize(v int) Option {
	return func(o *Options) { o.BlockSize = v }
}
func WithBufferSize(v int) Option {
	return func(o *Options) { o.BufferSize = v }
}
func WithPadSize(v int) Option {
	return func(o *Options) { o.PadSize = v }
}
func WithMagic(v uint64) Option {
	return func(o *Options) { o.Magic = v }
}
func WithMaxEntrySize(v uint64) Option {
	return func(o *Options) { o.MaxEntrySize = v }
}
func WithLogger(v *zap.Logger) Option {
	return func(o *Options) { o.Logger = v }
}
func WithRegisterer(v prometheus.Registerer) Option {
	return func(o *Options) { o.Registerer = v }
}

func DefaultOptions() Options {
	return Options{
		BlockSize:  DefaultBlockSize,
		BufferSize: DefaultBufferSize,
		PadSize:    DefaultPadSize,
		Magic:      DefaultMagic,
	}
}

// NewOptions returns DefaultOptions modified by opts.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Options) Validate() error {
	if o.BlockSize <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "block size must be positive, got %d", o.BlockSize)
	}
	if o.PadSize <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "pad size must be positive, got %d", o.PadSize)
	}
	if o.BufferSize < 0 {
		return errors.Wrap(ErrInvalidOptions, "buffer size must not be negative")
	}
	return nil
}

func (o Options) maxEntrySize() uint64 {
	if o.MaxEntrySize == 0 {
		return MaxEntrySize
	}
	return o.MaxEntrySize
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
