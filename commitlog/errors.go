package commitlog

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidLength   = errors.New("log length is not block aligned")
	ErrInvalidMagic    = errors.New("log trailer magic mismatch")
	ErrInvalidChecksum = errors.New("entry checksum mismatch")
	ErrNotImplemented  = errors.New("not implemented")
	ErrInvalidOptions  = errors.New("invalid options")
	ErrLogDoesNotExist = errors.New("log does not exist")
	ErrIO              = errors.New("io error")
)

// IOError wraps a filesystem failure. errors.Is(err, ErrIO) reports true for it,
// and the underlying error stays reachable through Unwrap.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

func ioError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}
