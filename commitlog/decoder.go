package commitlog

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Decoder reads entries from a raw log stream, such as the content of a log file
// piped to a process, without opening a Log.
type Decoder interface {
	Decode() (Entry, error)
	// Offset returns the offset of the entry last returned by Decode.
	Offset() uint64
}

type decoder struct {
	headerBuf []byte
	r         *bufio.Reader
	opts      Options
	pos       uint64
	offset    uint64
	err       error
}

// NewDecoder returns a Decoder reading r from the start of a log. opts must match
// the options the log was written with. Invalid options are reported by Decode.
func NewDecoder(r io.Reader, opts Options) Decoder {
	if err := opts.Validate(); err != nil {
		return &decoder{err: err}
	}
	return &decoder{
		r:         bufio.NewReaderSize(r, opts.BlockSize+trailerSize),
		headerBuf: make([]byte, EntryHeaderSize),
		opts:      opts,
	}
}

func (d *decoder) Offset() uint64 {
	return d.offset
}

func (d *decoder) Decode() (Entry, error) {
	if d.err != nil {
		return nil, d.err
	}
	off := d.pos
	e, err := readEntry(d.r, d.headerBuf, d.opts.maxEntrySize())
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(err, "offset %d", off)
	}
	if !e.IsValid() {
		return nil, errors.Wrapf(ErrInvalidChecksum, "offset %d", off)
	}
	end := off + uint64(EntryHeaderSize) + e.Size()
	next := roundUp(end, d.opts.PadSize)
	if _, err := d.r.Discard(int(next - end)); err != nil {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "offset %d", end)
	}
	d.pos = next
	d.offset = off

	trailerPos := trailerOffset(next, d.opts.BlockSize)
	n := int(trailerPos-next) + trailerSize
	if buf, err := d.r.Peek(n); err == nil && decodeTrailer(buf[n-trailerSize:]).closes(off, d.opts.Magic) {
		d.r.Discard(n)
		d.pos = trailerPos + trailerSize
	}
	return e, nil
}
