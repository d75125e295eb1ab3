package commitlog

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

var (
	ErrInvalidBufferSize        = errors.New("invalid buffer size")
	ErrEntryTooBig              = errors.New("entry is too big")
	MaxEntrySize         uint64 = 1 << 32
)

const (
	checksumSize    int = 4
	EntryHeaderSize int = 8 + checksumSize
)

var encoding = binary.BigEndian

type Entry interface {
	Size() uint64
	Checksum() uint32
	Payload() []byte
	IsValid() bool
}

type entry struct {
	payloadSize uint64
	checksum    uint32
	payload     []byte
}

func hash(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

func (e entry) Size() uint64     { return e.payloadSize }
func (e entry) Payload() []byte  { return e.payload }
func (e entry) Checksum() uint32 { return e.checksum }
func (e entry) IsValid() bool    { return hash(e.payload) == e.checksum }

// padding returns the number of zero bytes needed to move off onto the next
// multiple of align.
func padding(off uint64, align int) uint64 {
	return (uint64(align) - off%uint64(align)) % uint64(align)
}

func roundUp(off uint64, align int) uint64 {
	return off + padding(off, align)
}

// encodedSize is the number of bytes an entry with a payload of n bytes takes
// when its header starts at off.
func encodedSize(off uint64, n int, padSize int) uint64 {
	end := off + uint64(EntryHeaderSize) + uint64(n)
	return roundUp(end, padSize) - off
}

// appendEntry encodes payload at the end of buf, assuming buf's end sits at
// absolute offset off, and returns the extended buffer.
func appendEntry(buf []byte, off uint64, payload []byte, padSize int) []byte {
	var header [EntryHeaderSize]byte
	encoding.PutUint64(header[0:8], uint64(len(payload)))
	encoding.PutUint32(header[8:12], hash(payload))
	buf = append(buf, header[:]...)
	buf = append(buf, payload...)
	pad := encodedSize(off, len(payload), padSize) - uint64(EntryHeaderSize) - uint64(len(payload))
	for i := uint64(0); i < pad; i++ {
		buf = append(buf, 0)
	}
	return buf
}

func decodeHeader(buf []byte) (uint64, uint32) {
	return encoding.Uint64(buf[0:8]), encoding.Uint32(buf[8:12])
}

// readEntry reads one entry header and its payload from r. Payloads larger than
// limit are rejected with ErrEntryTooBig before anything is allocated.
// The checksum is not verified; callers use IsValid.
func readEntry(r io.Reader, buf []byte, limit uint64) (Entry, error) {
	if len(buf) != EntryHeaderSize {
		return nil, ErrInvalidBufferSize
	}
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, err
	}
	payloadSize, checksum := decodeHeader(buf)
	if payloadSize > limit {
		return nil, ErrEntryTooBig
	}
	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(r, payload)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return entry{
		payloadSize: payloadSize,
		checksum:    checksum,
		payload:     payload,
	}, nil
}
