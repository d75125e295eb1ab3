package stream

import "github.com/vx-labs/blocklog/commitlog"

// Source yields log entries in order, and io.EOF once exhausted.
// *commitlog.EntryIterator satisfies it.
type Source interface {
	Next() ([]byte, error)
	Offset() uint64
}

var _ Source = (*commitlog.EntryIterator)(nil)

type Batch struct {
	FirstOffset uint64
	LastOffset  uint64
	Records     [][]byte
}

type decoderSource struct {
	dec commitlog.Decoder
}

// DecoderSource reads entries from a raw log stream.
func DecoderSource(dec commitlog.Decoder) Source {
	return &decoderSource{dec: dec}
}

func (d *decoderSource) Next() ([]byte, error) {
	entry, err := d.dec.Decode()
	if err != nil {
		return nil, err
	}
	return entry.Payload(), nil
}
func (d *decoderSource) Offset() uint64 { return d.dec.Offset() }
