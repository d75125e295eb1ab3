package commitlog

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func tempLogPath(t testing.TB) string {
	return filepath.Join(t.TempDir(), "log.db")
}

func corruptByte(t *testing.T, path string, off int64) {
	fd, err := os.OpenFile(path, os.O_RDWR, 0650)
	require.NoError(t, err)
	defer fd.Close()
	b := make([]byte, 1)
	_, err = fd.ReadAt(b, off)
	require.NoError(t, err)
	b[0] ^= 0xff
	_, err = fd.WriteAt(b, off)
	require.NoError(t, err)
}

func TestLog(t *testing.T) {
	path := tempLogPath(t)
	clog, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	defer func() { clog.Close() }()

	t.Run("should start empty", func(t *testing.T) {
		require.Equal(t, uint64(0), clog.LastDataOffset())
		require.Equal(t, Statistics{}, clog.Statistics())
	})
	t.Run("should return header offsets on append", func(t *testing.T) {
		require.Equal(t, uint64(0), clog.Append([]byte{1, 2, 3}))
		require.Equal(t, uint64(16), clog.Append([]byte{4, 5, 6}))
		require.Equal(t, uint64(16), clog.LastDataOffset())
		require.Equal(t, Statistics{WriteOffset: 32, LastDataOffset: 16, BufferedBytes: 32}, clog.Statistics())
	})
	t.Run("should not read buffered entries", func(t *testing.T) {
		_, err := clog.Read(0)
		require.True(t, errors.Is(err, ErrIO))
	})
	t.Run("should flush to a block aligned file", func(t *testing.T) {
		require.NoError(t, clog.Flush())
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, int64(DefaultBlockSize), info.Size())
		require.Equal(t, Statistics{WriteOffset: 4096, LastDataOffset: 16, StoredBytes: 4096}, clog.Statistics())
	})
	t.Run("should do nothing when flushing an empty buffer", func(t *testing.T) {
		require.NoError(t, clog.Flush())
		require.Equal(t, uint64(4096), clog.Statistics().StoredBytes)
	})
	t.Run("should read flushed entries", func(t *testing.T) {
		chunk, err := clog.Read(16)
		require.NoError(t, err)
		require.Equal(t, []byte{4, 5, 6}, chunk.Data)
		require.Equal(t, uint64(32), chunk.Next)
		chunk, err = clog.Read(0)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, chunk.Data)
		require.Equal(t, uint64(16), chunk.Next)
	})
	t.Run("should close then reopen without error", func(t *testing.T) {
		require.NoError(t, clog.Close())
		clog, err = Open(path, DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, uint64(16), clog.LastDataOffset())
		chunk, err := clog.Read(clog.LastDataOffset())
		require.NoError(t, err)
		require.Equal(t, []byte{4, 5, 6}, chunk.Data)
	})
	t.Run("should append after the previous trailer once reopened", func(t *testing.T) {
		require.Equal(t, uint64(4096), clog.Append([]byte("after reopen")))
		require.NoError(t, clog.Flush())
		require.Equal(t, uint64(4096), clog.LastDataOffset())
		chunk, err := clog.Read(4096)
		require.NoError(t, err)
		require.Equal(t, []byte("after reopen"), chunk.Data)
		chunk, err = clog.Read(16)
		require.NoError(t, err)
		require.Equal(t, []byte{4, 5, 6}, chunk.Data)
	})
	t.Run("should not implement repair", func(t *testing.T) {
		require.Equal(t, ErrNotImplemented, clog.Repair())
	})
}

func TestLogRoundTrip(t *testing.T) {
	clog, err := Open(tempLogPath(t), NewOptions(WithBufferSize(0)))
	require.NoError(t, err)
	defer clog.Close()

	payloads := [][]byte{
		{},
		{0},
		[]byte("test"),
		[]byte("a payload spanning more than a single padding unit"),
		make([]byte, 3*DefaultBlockSize+5),
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	}
	offsets := make([]uint64, len(payloads))
	for idx, payload := range payloads {
		offsets[idx] = clog.Append(payload)
		require.Equal(t, uint64(0), offsets[idx]%DefaultPadSize)
	}
	require.NoError(t, clog.Flush())
	for idx, payload := range payloads {
		chunk, err := clog.Read(offsets[idx])
		require.NoError(t, err)
		require.Equal(t, payload, chunk.Data)
		if idx < len(payloads)-1 {
			require.Equal(t, offsets[idx+1], chunk.Next)
		}
	}
}

func TestLogChecksum(t *testing.T) {
	path := tempLogPath(t)
	clog, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	clog.Append([]byte{1, 2, 3})
	clog.Append([]byte{4, 5, 6})
	clog.Append([]byte{7, 8, 9})
	require.NoError(t, clog.Flush())
	require.NoError(t, clog.Close())

	corruptByte(t, path, 16+int64(EntryHeaderSize))

	reg := prometheus.NewRegistry()
	clog, err = Open(path, NewOptions(WithRegisterer(reg)))
	require.NoError(t, err)
	defer func() { clog.Close() }()

	t.Run("should fail reading the corrupted entry", func(t *testing.T) {
		_, err := clog.Read(16)
		require.True(t, errors.Is(err, ErrInvalidChecksum))
		require.False(t, errors.Is(err, ErrIO))
	})
	t.Run("should still read other entries", func(t *testing.T) {
		chunk, err := clog.Read(0)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, chunk.Data)
		chunk, err = clog.Read(32)
		require.NoError(t, err)
		require.Equal(t, []byte{7, 8, 9}, chunk.Data)
	})
	t.Run("should count checksum failures", func(t *testing.T) {
		expected := `
# HELP blocklog_read_failures_total Failed entry reads, by reason.
# TYPE blocklog_read_failures_total counter
blocklog_read_failures_total{reason="checksum"} 1
`
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "blocklog_read_failures_total"))
	})
	t.Run("should reopen with the same registerer", func(t *testing.T) {
		require.NoError(t, clog.Close())
		require.NotPanics(t, func() {
			clog, err = Open(path, NewOptions(WithRegisterer(reg)))
		})
		require.NoError(t, err)
		_, err := clog.Read(16)
		require.True(t, errors.Is(err, ErrInvalidChecksum))
		expected := `
# HELP blocklog_read_failures_total Failed entry reads, by reason.
# TYPE blocklog_read_failures_total counter
blocklog_read_failures_total{reason="checksum"} 2
`
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "blocklog_read_failures_total"))
	})
}

func TestLogReadBounds(t *testing.T) {
	path := tempLogPath(t)
	clog, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	defer clog.Close()
	clog.Append([]byte("test"))
	require.NoError(t, clog.Flush())

	t.Run("should fail reading past the end of file", func(t *testing.T) {
		_, err := clog.Read(8192)
		require.True(t, errors.Is(err, ErrIO))
		var ioErr *IOError
		require.True(t, errors.As(err, &ioErr))
		require.Equal(t, "read", ioErr.Op)
	})
	t.Run("should fail reading a length running past the end of file", func(t *testing.T) {
		// the first half of the trailer magic is read as a length here
		_, err := clog.Read(4096 - 12)
		require.True(t, errors.Is(err, ErrIO))
		require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	})
}

func TestLogOpen(t *testing.T) {
	write := func(t *testing.T) string {
		path := tempLogPath(t)
		clog, err := Open(path, DefaultOptions())
		require.NoError(t, err)
		clog.Append([]byte{1, 2, 3})
		require.NoError(t, clog.Flush())
		require.NoError(t, clog.Close())
		return path
	}
	t.Run("should refuse a log that is not block aligned", func(t *testing.T) {
		path := write(t)
		require.NoError(t, os.Truncate(path, DefaultBlockSize-1))
		_, err := Open(path, DefaultOptions())
		require.True(t, errors.Is(err, ErrInvalidLength))
	})
	t.Run("should refuse a log with a corrupted magic", func(t *testing.T) {
		path := write(t)
		corruptByte(t, path, DefaultBlockSize-1)
		_, err := Open(path, DefaultOptions())
		require.True(t, errors.Is(err, ErrInvalidMagic))
	})
	t.Run("should refuse a log written with another magic", func(t *testing.T) {
		path := write(t)
		_, err := Open(path, NewOptions(WithMagic(42)))
		require.True(t, errors.Is(err, ErrInvalidMagic))
	})
	t.Run("should refuse invalid options", func(t *testing.T) {
		_, err := Open(tempLogPath(t), NewOptions(WithPadSize(0)))
		require.True(t, errors.Is(err, ErrInvalidOptions))
	})
	t.Run("should not create a log when opening an existing one", func(t *testing.T) {
		path := tempLogPath(t)
		_, err := OpenExisting(path, DefaultOptions())
		require.True(t, errors.Is(err, ErrLogDoesNotExist))
		_, err = os.Stat(path)
		require.True(t, os.IsNotExist(err))

		path = write(t)
		clog, err := OpenExisting(path, DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, path, clog.Path())
		require.NoError(t, clog.Close())
	})
}

type faultyFile struct {
	*os.File
	failWrites bool
	failSync   bool
}

func openFaulty(path string) (*faultyFile, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0650)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: fd}, nil
}

func (f *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	if f.failWrites {
		n, _ := f.File.WriteAt(p[:len(p)/2], off)
		return n, errors.New("no space left on device")
	}
	return f.File.WriteAt(p, off)
}

func (f *faultyFile) Sync() error {
	if f.failSync {
		return errors.New("sync failed")
	}
	return f.File.Sync()
}

func TestLogFlushFailure(t *testing.T) {
	path := tempLogPath(t)
	file, err := openFaulty(path)
	require.NoError(t, err)
	core, logs := observer.New(zapcore.ErrorLevel)
	reg := prometheus.NewRegistry()
	clog, err := OpenFile(file, NewOptions(WithLogger(zap.New(core)), WithRegisterer(reg)))
	require.NoError(t, err)
	defer clog.Close()
	require.Equal(t, path, clog.Path())

	clog.Append([]byte("first"))
	clog.Append([]byte("second"))
	before := clog.Statistics()

	t.Run("should keep the buffer when the write fails", func(t *testing.T) {
		file.failWrites = true
		err := clog.Flush()
		require.True(t, errors.Is(err, ErrIO))
		require.Equal(t, before, clog.Statistics())
		require.Equal(t, 1, logs.FilterMessage("failed to flush log").Len())
	})
	t.Run("should keep the buffer when the sync fails", func(t *testing.T) {
		file.failWrites = false
		file.failSync = true
		err := clog.Flush()
		require.True(t, errors.Is(err, ErrIO))
		require.Equal(t, before, clog.Statistics())
	})
	t.Run("should persist the buffer on retry", func(t *testing.T) {
		file.failSync = false
		require.NoError(t, clog.Flush())
		require.Equal(t, uint64(DefaultBlockSize), clog.Statistics().StoredBytes)
		chunk, err := clog.Read(clog.LastDataOffset())
		require.NoError(t, err)
		require.Equal(t, []byte("second"), chunk.Data)
	})
	t.Run("should count failed flushes", func(t *testing.T) {
		expected := `
# HELP blocklog_flush_failures_total Flushes that failed to write or sync.
# TYPE blocklog_flush_failures_total counter
blocklog_flush_failures_total 2
`
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "blocklog_flush_failures_total"))
	})
	t.Run("should reopen the retried flush", func(t *testing.T) {
		other, err := Open(path, DefaultOptions())
		require.NoError(t, err)
		defer other.Close()
		require.Equal(t, uint64(24), other.LastDataOffset())
		chunk, err := other.Read(0)
		require.NoError(t, err)
		require.Equal(t, []byte("first"), chunk.Data)
	})
}

func TestLogCustomOptions(t *testing.T) {
	path := tempLogPath(t)
	opts := NewOptions(WithBlockSize(64), WithPadSize(4), WithMagic(0xdeadbeef))
	clog, err := Open(path, opts)
	require.NoError(t, err)
	require.Equal(t, uint64(0), clog.Append([]byte{1}))
	require.Equal(t, uint64(16), clog.Append([]byte{1, 2, 3, 4}))
	require.NoError(t, clog.Flush())
	require.Equal(t, uint64(64), clog.Statistics().StoredBytes)
	require.Equal(t, uint64(64), clog.Append(make([]byte, 20)))
	require.NoError(t, clog.Flush())
	require.Equal(t, uint64(128), clog.Statistics().StoredBytes)
	require.NoError(t, clog.Close())

	clog, err = Open(path, opts)
	require.NoError(t, err)
	defer clog.Close()
	require.Equal(t, uint64(64), clog.LastDataOffset())
	chunk, err := clog.Read(16)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, chunk.Data)
	require.Equal(t, uint64(32), chunk.Next)
}

func BenchmarkLog(b *testing.B) {
	clog, err := Open(tempLogPath(b), DefaultOptions())
	require.NoError(b, err)
	defer clog.Close()
	value := []byte("test")
	b.Run("append", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			clog.Append(value)
		}
	})
	b.Run("flush", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			clog.Append(value)
			if err := clog.Flush(); err != nil {
				b.Fatalf("log flush failed: %v", err)
			}
		}
	})
}
