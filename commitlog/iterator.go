package commitlog

import (
	"io"
)

// EntryIterator replays the entries of a Log from the beginning, in the order
// they were appended. It cannot be rewound; call Log.Iter again to start over.
type EntryIterator struct {
	log    *Log
	cursor uint64
	offset uint64
	err    error
}

// Next returns the payload of the next entry. It returns io.EOF once every entry
// was returned. After any error, Next keeps returning that error.
func (it *EntryIterator) Next() ([]byte, error) {
	if it.err != nil {
		return nil, it.err
	}
	l := it.log
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.size == 0 || it.cursor > l.lastDataOff {
		it.err = io.EOF
		return nil, it.err
	}
	off := it.cursor
	chunk, err := l.read(off)
	if err != nil {
		it.err = err
		return nil, err
	}
	it.offset = off
	it.cursor = chunk.Next
	if off < l.lastDataOff {
		next, ok, err := l.closesFlush(off, chunk.Next)
		if err != nil {
			it.err = err
			return nil, err
		}
		if ok {
			it.cursor = next
		}
	}
	return chunk.Data, nil
}

// Offset returns the offset of the entry last returned by Next.
func (it *EntryIterator) Offset() uint64 {
	return it.offset
}
