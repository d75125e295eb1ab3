// Package commitlog implements a single-file, append-only log of checksummed
// entries.
//
// Entries are buffered in memory by Append and persisted by Flush. Every flush
// pads the file so that it ends on a block boundary with a 16 bytes trailer
// holding the offset of the last entry and a magic value. Open checks this
// trailer before handing the log back.
//
// A Log is meant to be driven by a single goroutine. Its methods are atomic, but
// an EntryIterator expects no Append, Flush or Read to happen while it is in use.
package commitlog

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vx-labs/blocklog/stats"
	"go.uber.org/zap"
)

type Log struct {
	mtx         sync.Mutex
	path        string
	fd          File
	opts        Options
	logger      *zap.Logger
	metrics     *stats.Metrics
	buffer      []byte
	headerBuf   []byte
	offset      uint64
	size        uint64
	lastDataOff uint64
}

// Chunk is the result of a Read: the entry payload and the offset following the
// entry.
type Chunk struct {
	Data []byte
	Next uint64
}

// Open opens the log stored at path, creating it if needed, and checks its
// trailer.
func Open(path string, opts Options) (*Log, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0650)
	if err != nil {
		return nil, ioError("open", err)
	}
	l, err := OpenFile(fd, opts)
	if err != nil {
		fd.Close()
		return nil, err
	}
	l.path = path
	return l, nil
}

// OpenExisting behaves like Open, but fails with ErrLogDoesNotExist instead of
// creating a missing log.
func OpenExisting(path string, opts Options) (*Log, error) {
	if !fileExists(path) {
		return nil, errors.Wrap(ErrLogDoesNotExist, path)
	}
	return Open(path, opts)
}

// OpenFile runs the opening protocol on an already opened file. The caller keeps
// ownership of fd if an error is returned.
func OpenFile(fd File, opts Options) (*Log, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	l := &Log{
		fd:        fd,
		opts:      opts,
		logger:    opts.logger(),
		metrics:   stats.NewMetrics(opts.Registerer),
		buffer:    make([]byte, 0, opts.BufferSize),
		headerBuf: make([]byte, EntryHeaderSize),
	}
	if name, ok := fd.(interface{ Name() string }); ok {
		l.path = name.Name()
	}
	if err := l.init(); err != nil {
		return nil, err
	}
	l.logger.Debug("log opened",
		zap.String("log_path", l.path),
		zap.Uint64("log_size", l.size),
		zap.Uint64("last_data_offset", l.lastDataOff))
	return l, nil
}

func (l *Log) init() error {
	info, err := l.fd.Stat()
	if err != nil {
		return ioError("stat", err)
	}
	size := uint64(info.Size())
	if size == 0 {
		return nil
	}
	if size%uint64(l.opts.BlockSize) != 0 {
		return errors.Wrapf(ErrInvalidLength, "size %d, block size %d", size, l.opts.BlockSize)
	}
	if size < trailerSize {
		return errors.Wrapf(ErrInvalidMagic, "size %d cannot hold a trailer", size)
	}
	buf := make([]byte, trailerSize)
	if _, err := l.fd.ReadAt(buf, int64(size-trailerSize)); err != nil {
		return ioError("read trailer", err)
	}
	t := decodeTrailer(buf)
	if t.magic != l.opts.Magic {
		return errors.Wrapf(ErrInvalidMagic, "found %#x", t.magic)
	}
	l.size = size
	l.offset = size
	l.lastDataOff = t.lastDataOff
	return nil
}

func (l *Log) Path() string {
	return l.path
}

// LastDataOffset returns the offset of the last appended entry, or 0 if the log
// is empty.
func (l *Log) LastDataOffset() uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.lastDataOff
}

// Repair is reserved for scanning the log and truncating it after its last valid
// entry.
func (l *Log) Repair() error {
	return ErrNotImplemented
}

// Close releases the underlying file. Buffered entries that were not flushed are
// dropped.
func (l *Log) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if n := len(l.buffer); n > 0 {
		l.logger.Warn("closing log with unflushed entries", zap.String("log_path", l.path), zap.Int("buffered_bytes", n))
	}
	l.buffer = l.buffer[:0]
	return ioError("close", l.fd.Close())
}

// Append buffers data as a new entry and returns the offset it will be readable
// at once flushed.
func (l *Log) Append(data []byte) uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.lastDataOff = l.offset
	l.buffer = appendEntry(l.buffer, l.offset, data, l.opts.PadSize)
	l.offset += encodedSize(l.offset, len(data), l.opts.PadSize)
	l.metrics.EntryAppended()
	return l.lastDataOff
}

// Flush writes the buffered entries followed by a trailer, then syncs the file.
// The buffer is kept if the write or the sync fails, so Flush can be retried.
func (l *Log) Flush() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.flush()
}

func (l *Log) flush() error {
	if len(l.buffer) == 0 {
		return nil
	}
	started := time.Now()
	bufferLen := len(l.buffer)
	offset := l.offset

	pad := padding(l.offset+trailerSize, l.opts.BlockSize)
	for i := uint64(0); i < pad; i++ {
		l.buffer = append(l.buffer, 0)
	}
	l.buffer = trailer{lastDataOff: l.lastDataOff, magic: l.opts.Magic}.appendTo(l.buffer)
	l.offset += pad + trailerSize

	err := l.write()
	if err != nil {
		l.buffer = l.buffer[:bufferLen]
		l.offset = offset
		l.metrics.FlushFailed()
		l.logger.Error("failed to flush log", zap.String("log_path", l.path), zap.Int("buffered_bytes", bufferLen), zap.Error(err))
		return err
	}
	l.metrics.ObserveFlush(started, len(l.buffer))
	l.size = l.offset
	l.buffer = l.buffer[:0]
	return nil
}

func (l *Log) write() error {
	w := &writerAt{pos: l.size, w: l.fd}
	if _, err := w.Write(l.buffer); err != nil {
		return ioError("write", err)
	}
	return ioError("sync", l.fd.Sync())
}

// Read returns the entry whose header starts at off. Only flushed entries can be
// read.
func (l *Log) Read(off uint64) (Chunk, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.read(off)
}

func (l *Log) read(off uint64) (Chunk, error) {
	var limit uint64
	if end := off + uint64(EntryHeaderSize); end <= l.size {
		limit = l.size - end
	}
	e, err := readEntry(&readerAt{pos: off, r: l.fd}, l.headerBuf, limit)
	if err != nil {
		if err == ErrEntryTooBig {
			err = io.ErrUnexpectedEOF
		}
		l.metrics.ReadFailed(stats.ReasonIO)
		return Chunk{}, errors.Wrapf(ioError("read", err), "offset %d", off)
	}
	if !e.IsValid() {
		l.metrics.ReadFailed(stats.ReasonChecksum)
		return Chunk{}, errors.Wrapf(ErrInvalidChecksum, "offset %d", off)
	}
	return Chunk{
		Data: e.Payload(),
		Next: roundUp(off+uint64(EntryHeaderSize)+e.Size(), l.opts.PadSize),
	}, nil
}

// closesFlush reports whether the entry at off, ending at next, was the last one
// of a flush, and where the following entry starts in that case.
func (l *Log) closesFlush(off, next uint64) (uint64, bool, error) {
	pos := trailerOffset(next, l.opts.BlockSize)
	if pos+trailerSize > l.size {
		return 0, false, nil
	}
	buf := make([]byte, trailerSize)
	if _, err := l.fd.ReadAt(buf, int64(pos)); err != nil {
		return 0, false, errors.Wrapf(ioError("read trailer", err), "offset %d", pos)
	}
	if !decodeTrailer(buf).closes(off, l.opts.Magic) {
		return 0, false, nil
	}
	return pos + trailerSize, true, nil
}

// Iter flushes the log and returns an iterator over all its entries.
func (l *Log) Iter() (*EntryIterator, error) {
	if err := l.Flush(); err != nil {
		return nil, err
	}
	return &EntryIterator{log: l}, nil
}
