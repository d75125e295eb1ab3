package commitlog

import (
	"io"
	"os"
)

// File is the storage a Log runs on. *os.File satisfies it.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Sync commits the written data to stable storage.
	Sync() error
	Stat() (os.FileInfo, error)
}

var _ File = (*os.File)(nil)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
